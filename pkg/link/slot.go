package link

import (
	"sync"
	"time"

	"github.com/aidee-health/embody-serial-go/pkg/codec"
)

// responseSlot is the single-cell rendezvous between the dispatcher and the
// sender. Only the sender clears it (immediately before a write); only the
// dispatcher sets it (on the first response received after that write);
// only the sender reads it (once, after the send's wait returns). A queue
// would let a timed-out caller receive a stale response; the slot's
// clear-before-send rule guarantees the next waiter only ever sees
// responses that arrived after it armed.
type responseSlot struct {
	mu  sync.Mutex
	ch  chan struct{}
	msg codec.Message
	set bool
}

func newResponseSlot() *responseSlot {
	return &responseSlot{ch: make(chan struct{})}
}

// clear arms the slot for a new send: any response set before the next
// clear is discarded, and a new wait channel is installed so a previous,
// already-expired waiter cannot observe this cycle's response.
func (s *responseSlot) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msg = nil
	s.set = false
	s.ch = make(chan struct{})
}

// put stores msg if this is the first response since the last clear. Later
// responses in the same cycle are dropped here (the dispatcher still fans
// them out to response subscribers after put returns).
func (s *responseSlot) put(msg codec.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set {
		return
	}
	s.msg = msg
	s.set = true
	close(s.ch)
}

// wait blocks up to timeout for a response to arrive since the last clear.
func (s *responseSlot) wait(timeout time.Duration) (codec.Message, bool) {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.msg, true
	case <-timer.C:
		return nil, false
	}
}
