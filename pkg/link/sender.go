package link

import (
	"log"
	"sync"
	"time"

	"github.com/aidee-health/embody-serial-go/pkg/codec"
)

// sender serializes writes to the link on its own single-worker lane, so a
// SendAndWait from one goroutine can never interleave its clear-write-wait
// sequence with another caller's. The lane ordering already guarantees
// mutual exclusion; sendMu additionally documents (and would enforce, if
// the lane implementation ever changed) that the triple below is atomic
// with respect to the response slot.
type sender struct {
	link   Link
	slot   *responseSlot
	logger *log.Logger
	lane   *pool

	sendMu sync.Mutex
}

func newSender(link Link, slot *responseSlot, logger *log.Logger) *sender {
	return &sender{
		link:   link,
		slot:   slot,
		logger: logger,
		lane:   newPool("send", logger),
	}
}

// sendAsync enqueues msg for transmission without waiting for a response.
func (s *sender) sendAsync(msg codec.Message) {
	s.lane.Submit(func() {
		s.doSend(msg, false, 0)
	})
}

type sendOutcome struct {
	msg codec.Message
	ok  bool
}

// sendAndWait enqueues msg for transmission and blocks the caller until a
// response arrives or timeout elapses. Because the lane runs one send at a
// time, a concurrent sendAndWait from another goroutine waits its turn
// before its own write goes out.
func (s *sender) sendAndWait(msg codec.Message, timeout time.Duration) (codec.Message, bool) {
	result := make(chan sendOutcome, 1)
	s.lane.Submit(func() {
		m, ok := s.doSend(msg, true, timeout)
		result <- sendOutcome{msg: m, ok: ok}
	})
	outcome := <-result
	return outcome.msg, outcome.ok
}

func (s *sender) doSend(msg codec.Message, wait bool, timeout time.Duration) (codec.Message, bool) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if !s.link.IsOpen() {
		return nil, false
	}

	if wait {
		s.slot.clear()
	}

	encoded, err := codec.Encode(msg)
	if err != nil {
		s.logger.Printf("link: sender: encode %T: %v", msg, err)
		return nil, false
	}

	if _, err := s.link.Write(encoded); err != nil {
		s.logger.Printf("link: sender: write: %v", err)
		return nil, false
	}

	if !wait {
		return nil, false
	}
	return s.slot.wait(timeout)
}

func (s *sender) stop() {
	s.lane.Stop()
}
