package link

import (
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/aidee-health/embody-serial-go/pkg/codec"
)

var errTransferInProgress = fmt.Errorf("link: a file transfer is already in progress")

type readerMode int

const (
	modeFraming readerMode = iota
	modeBulk
)

const chunkReadSize = 1024

// reader owns the single goroutine that reads bytes off the link. It
// normally runs a framing loop (read 3-byte header, read length-3 more
// bytes, decode, dispatch) but can be switched into bulk mode for the
// duration of one file transfer, during which it reads raw payload bytes
// instead of framed messages.
type reader struct {
	link     Link
	logger   *log.Logger
	onMsg    func(codec.Message)
	onDown   func()
	bulkPool *pool

	bulkReadTimeout    time.Duration
	framingReadTimeout time.Duration

	mu      sync.Mutex
	mode    readerMode
	session *fileSession

	done chan struct{}
}

func newReader(l Link, logger *log.Logger, bulkPool *pool, onMsg func(codec.Message), onDown func(), bulkReadTimeout, framingReadTimeout time.Duration) *reader {
	return &reader{
		link:               l,
		logger:             logger,
		bulkPool:           bulkPool,
		onMsg:              onMsg,
		onDown:             onDown,
		bulkReadTimeout:    bulkReadTimeout,
		framingReadTimeout: framingReadTimeout,
		done:               make(chan struct{}),
	}
}

func (r *reader) start() {
	go r.run()
}

func (r *reader) run() {
	defer close(r.done)
	defer r.onDown()

	header := make([]byte, 3)
	for r.link.IsOpen() {
		if err := readFull(r.link, header); err != nil {
			return
		}

		r.mu.Lock()
		mode := r.mode
		session := r.session
		r.mu.Unlock()

		if mode == modeBulk {
			r.runBulkSession(session, append([]byte(nil), header...))
			continue
		}

		msgType := header[0]
		length := binary.BigEndian.Uint16(header[1:3])
		if length < 3 {
			r.logger.Printf("link: reader: invalid frame length %d for type 0x%02x", length, msgType)
			continue
		}

		rest := make([]byte, int(length)-3)
		if err := r.readChunked(rest); err != nil {
			return
		}

		frame := make([]byte, 0, 3+len(rest))
		frame = append(frame, header...)
		frame = append(frame, rest...)

		msg, err := codec.Decode(frame)
		if err != nil {
			r.logger.Printf("link: reader: decode error for type 0x%02x: %v", msgType, err)
			continue
		}
		r.onMsg(msg)
	}
}

// readChunked reads exactly len(buf) bytes, in chunks of up to
// chunkReadSize, to avoid asking the serial driver for one oversized read.
func (r *reader) readChunked(buf []byte) error {
	off := 0
	for off < len(buf) {
		end := off + chunkReadSize
		if end > len(buf) {
			end = len(buf)
		}
		n, err := r.link.Read(buf[off:end])
		if n == 0 && err != nil {
			return err
		}
		off += n
	}
	return nil
}

// readFull reads exactly len(buf) bytes or returns an error.
func readFull(l Link, buf []byte) error {
	off := 0
	for off < len(buf) {
		n, err := l.Read(buf[off:])
		if n == 0 && err != nil {
			return err
		}
		off += n
	}
	return nil
}

// enterBulkMode switches the reader into bulk mode for the given session.
// It fails if a transfer is already in progress. If the link supports
// ReadTimeoutSetter, its read timeout is set to bulkReadTimeout for the
// duration of the transfer, so a single chunk read may wait that long
// (10s by default, against 500ms in framing mode) before it counts as a
// stalled device; exitBulkMode sets framingReadTimeout back afterwards.
func (r *reader) enterBulkMode(s *fileSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode == modeBulk {
		return errTransferInProgress
	}
	r.mode = modeBulk
	r.session = s
	if setter, ok := r.link.(ReadTimeoutSetter); ok && r.bulkReadTimeout > 0 {
		if err := setter.SetReadTimeout(r.bulkReadTimeout); err != nil {
			r.logger.Printf("link: reader: tighten read timeout for bulk mode: %v", err)
		}
	}
	return nil
}

func (r *reader) exitBulkMode() {
	r.mu.Lock()
	r.mode = modeFraming
	r.session = nil
	r.mu.Unlock()

	if setter, ok := r.link.(ReadTimeoutSetter); ok && r.framingReadTimeout > 0 {
		if err := setter.SetReadTimeout(r.framingReadTimeout); err != nil {
			r.logger.Printf("link: reader: restore framing read timeout: %v", err)
		}
	}
}
