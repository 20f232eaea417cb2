package link

import (
	"errors"
	"io"
	"sync"
	"time"
)

// fakeLink is an in-memory Link used by the tests in this package. Writes
// go to a buffer the test can inspect; reads are served from a byte
// channel the test feeds, so a test can push bytes at its own pace and
// simulate a link going quiet or closing mid-read.
type fakeLink struct {
	mu     sync.Mutex
	open   bool
	writes [][]byte

	inbox chan byte
}

func newFakeLink() *fakeLink {
	return &fakeLink{open: true, inbox: make(chan byte, 1<<20)}
}

func (f *fakeLink) push(b []byte) {
	for _, c := range b {
		f.inbox <- c
	}
}

func (f *fakeLink) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	b, ok := <-f.inbox
	if !ok {
		return 0, io.EOF
	}
	p[0] = b
	n := 1
	for n < len(p) {
		select {
		case b, ok := <-f.inbox:
			if !ok {
				return n, nil
			}
			p[n] = b
			n++
		default:
			return n, nil
		}
	}
	return n, nil
}

func (f *fakeLink) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return 0, errors.New("fakeLink: write on closed link")
	}
	cp := append([]byte(nil), p...)
	f.writes = append(f.writes, cp)
	return len(p), nil
}

func (f *fakeLink) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeLink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return nil
	}
	f.open = false
	close(f.inbox)
	return nil
}

func (f *fakeLink) lastWrite() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return nil
	}
	return f.writes[len(f.writes)-1]
}

func (f *fakeLink) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

// readTimeoutFakeLink extends fakeLink with ReadTimeoutSetter so tests can
// check that bulk mode tightens (and later restores) the link's read
// timeout.
type readTimeoutFakeLink struct {
	*fakeLink

	mu       sync.Mutex
	timeouts []time.Duration
}

func newReadTimeoutFakeLink() *readTimeoutFakeLink {
	return &readTimeoutFakeLink{fakeLink: newFakeLink()}
}

func (f *readTimeoutFakeLink) SetReadTimeout(d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeouts = append(f.timeouts, d)
	return nil
}

func (f *readTimeoutFakeLink) timeoutHistory() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.timeouts))
	copy(out, f.timeouts)
	return out
}
