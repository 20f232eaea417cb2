package link

import (
	"encoding/binary"
	"os"
	"sync"
	"time"

	"github.com/aidee-health/embody-serial-go/pkg/codec"
)

// progressEvery controls how often OnProgress fires, in received chunks,
// to keep the bulk-progress lane from being flooded on a fast link.
const progressEvery = 20

// bulkChunkSize is the largest single read issued while draining a file
// payload.
const bulkChunkSize = 2048

// fileSession describes one in-flight download and is the rendezvous
// between the caller of DownloadFile and the reader goroutine draining the
// bytes.
type fileSession struct {
	name     string
	size     int
	timeout  time.Duration
	delay    time.Duration
	progress ProgressListener

	done chan struct{}
	mu   sync.Mutex
	path string
	err  error
}

func newFileSession(name string, size int, timeout, delay time.Duration, progress ProgressListener) *fileSession {
	return &fileSession{
		name:     name,
		size:     size,
		timeout:  timeout,
		delay:    delay,
		progress: progress,
		done:     make(chan struct{}),
	}
}

func (s *fileSession) finish(path string, err error) {
	s.mu.Lock()
	s.path, s.err = path, err
	s.mu.Unlock()
	close(s.done)
}

func (s *fileSession) wait(timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.path, s.err
	case <-timer.C:
		return "", ErrTimeout
	}
}

// runBulkSession drains session.size bytes of file payload plus a 2-byte
// trailing CRC from the link, starting from prefix — the 3 bytes the
// framing loop had already consumed as a would-be header before the reader
// discovered it was in bulk mode. When size is 3 or smaller, prefix may
// itself contain the entire payload and part (or all) of the CRC, since
// nothing distinguished those bytes from a header at read time.
func (r *reader) runBulkSession(session *fileSession, prefix []byte) {
	var path string
	var sessionErr error

	defer func() {
		r.exitBulkMode()
		if sessionErr != nil {
			r.deliverFailed(session, sessionErr)
		}
		session.finish(path, sessionErr)
	}()

	size := session.size
	buf := make([]byte, 0, size)

	var crcBytes []byte
	if size <= len(prefix) {
		buf = append(buf, prefix[:size]...)
		crcBytes = append(crcBytes, prefix[size:]...)
	} else {
		buf = append(buf, prefix...)
	}

	remaining := size - len(buf)
	start := time.Now()
	chunks := 0

	for remaining > 0 {
		if time.Since(start) > session.timeout {
			sessionErr = ErrTimeout
			return
		}

		want := remaining
		if want > bulkChunkSize {
			want = bulkChunkSize
		}
		chunk := make([]byte, want)
		n, err := r.link.Read(chunk)
		if n == 0 {
			sessionErr = ErrMissingResponse
			return
		}
		buf = append(buf, chunk[:n]...)
		remaining -= n
		chunks++

		if chunks%progressEvery == 0 {
			r.deliverProgress(session, buf, size, start)
		}
		if err != nil {
			sessionErr = ErrMissingResponse
			return
		}
		if session.delay > 0 {
			time.Sleep(session.delay)
		}
	}

	if need := 2 - len(crcBytes); need > 0 {
		extra := make([]byte, need)
		if err := readFull(r.link, extra); err != nil {
			sessionErr = ErrMissingResponse
			return
		}
		crcBytes = append(crcBytes, extra...)
	}

	wantCRC := binary.BigEndian.Uint16(crcBytes)
	gotCRC := codec.CRC16Table(buf)
	if wantCRC != gotCRC {
		sessionErr = &CrcError{Expected: wantCRC, Computed: gotCRC}
		return
	}

	artifact, err := materializeFile(session.name, buf)
	if err != nil {
		sessionErr = err
		return
	}
	path = artifact

	elapsed := time.Since(start).Seconds()
	r.deliverComplete(session, path, kbps(size, elapsed))
}

func kbps(bytesTransferred int, elapsedSeconds float64) float64 {
	if elapsedSeconds <= 0 {
		return 0
	}
	return float64(bytesTransferred) / 1024 / elapsedSeconds
}

func (r *reader) deliverProgress(s *fileSession, buf []byte, size int, start time.Time) {
	if s.progress == nil {
		return
	}
	fraction := float64(len(buf)) / float64(size)
	elapsed := time.Since(start).Seconds()
	progress := s.progress
	r.bulkPool.Submit(func() { progress.OnProgress(fraction, kbps(len(buf), elapsed)) })
}

func (r *reader) deliverComplete(s *fileSession, path string, rate float64) {
	if s.progress == nil {
		return
	}
	progress := s.progress
	r.bulkPool.Submit(func() { progress.OnComplete(path, rate) })
}

func (r *reader) deliverFailed(s *fileSession, err error) {
	if s.progress == nil {
		return
	}
	progress := s.progress
	r.bulkPool.Submit(func() { progress.OnFailed(err) })
}

func materializeFile(name string, data []byte) (string, error) {
	f, err := os.CreateTemp("", "embody-serial-*-"+sanitizeFileName(name))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// sanitizeFileName strips path separators from a device-supplied file name
// before it is used as part of a local temp file name.
func sanitizeFileName(name string) string {
	out := make([]rune, 0, len(name))
	for _, c := range name {
		if c == '/' || c == '\\' || c == 0 {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return "file.bin"
	}
	return string(out)
}
