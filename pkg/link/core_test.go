package link

import (
	"log"
	"sync"
	"testing"
	"time"

	"github.com/aidee-health/embody-serial-go/pkg/codec"
)

func testLogger() *log.Logger {
	return log.New(testWriter{}, "", 0)
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func frameFor(t *testing.T, msg codec.Message) []byte {
	t.Helper()
	b, err := codec.Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return b
}

// TestSendAndWaitMatchesResponse covers the basic request/response round
// trip: a Send call blocks until the matching response frame is fed in by
// the fake link, then returns it.
func TestSendAndWaitMatchesResponse(t *testing.T) {
	fl := newFakeLink()
	core := New(fl, WithLogger(testLogger()))
	defer core.Shutdown()

	go func() {
		time.Sleep(10 * time.Millisecond)
		fl.push(frameFor(t, codec.HeartbeatResponse{}))
	}()

	msg, ok := core.Send(codec.Heartbeat{}, time.Second)
	if !ok {
		t.Fatalf("Send: expected a response")
	}
	if _, isHR := msg.(codec.HeartbeatResponse); !isHR {
		t.Fatalf("Send returned %T, want HeartbeatResponse", msg)
	}
	if fl.writeCount() != 1 {
		t.Fatalf("expected exactly 1 write, got %d", fl.writeCount())
	}
}

// TestSendAndWaitTimesOut covers the case where no response ever arrives:
// Send must return promptly after its timeout, not hang.
func TestSendAndWaitTimesOut(t *testing.T) {
	fl := newFakeLink()
	core := New(fl, WithLogger(testLogger()))
	defer core.Shutdown()

	start := time.Now()
	_, ok := core.Send(codec.Heartbeat{}, 50*time.Millisecond)
	if ok {
		t.Fatalf("Send: expected no response")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Send blocked for %v, want ~50ms", elapsed)
	}
}

// TestSequentialSendAndWaitOrdering sends two independent requests back to
// back and checks each call receives the response fed in for it, in order.
func TestSequentialSendAndWaitOrdering(t *testing.T) {
	fl := newFakeLink()
	core := New(fl, WithLogger(testLogger()))
	defer core.Shutdown()

	go func() {
		time.Sleep(5 * time.Millisecond)
		fl.push(frameFor(t, codec.GetAttributeResponse{Value: codec.BatteryLevelAttribute{Value: 50}}))
	}()
	msg1, ok1 := core.Send(codec.GetAttribute{AttributeID: codec.AttributeBatteryLevel}, time.Second)
	if !ok1 {
		t.Fatalf("first Send: expected a response")
	}
	r1 := msg1.(codec.GetAttributeResponse).Value.(codec.BatteryLevelAttribute)
	if r1.Value != 50 {
		t.Fatalf("first response battery level = %d, want 50", r1.Value)
	}

	go func() {
		time.Sleep(5 * time.Millisecond)
		fl.push(frameFor(t, codec.GetAttributeResponse{Value: codec.BatteryLevelAttribute{Value: 75}}))
	}()
	msg2, ok2 := core.Send(codec.GetAttribute{AttributeID: codec.AttributeBatteryLevel}, time.Second)
	if !ok2 {
		t.Fatalf("second Send: expected a response")
	}
	r2 := msg2.(codec.GetAttributeResponse).Value.(codec.BatteryLevelAttribute)
	if r2.Value != 75 {
		t.Fatalf("second response battery level = %d, want 75", r2.Value)
	}
}

// TestNotificationListenerReceivesUnsolicitedMessage checks that a message
// with the response bit clear is fanned out to message listeners.
func TestNotificationListenerReceivesUnsolicitedMessage(t *testing.T) {
	fl := newFakeLink()
	core := New(fl, WithLogger(testLogger()))
	defer core.Shutdown()

	received := make(chan codec.Message, 1)
	core.AddMessageListener(func(msg codec.Message) {
		received <- msg
	})

	fl.push(frameFor(t, codec.Heartbeat{}))

	select {
	case msg := <-received:
		if _, ok := msg.(codec.Heartbeat); !ok {
			t.Fatalf("listener received %T, want Heartbeat", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("message listener was never called")
	}
}

// TestResponseListenerReceivesEveryResponse checks that response listeners
// fire even for a response nobody is waiting for.
func TestResponseListenerReceivesEveryResponse(t *testing.T) {
	fl := newFakeLink()
	core := New(fl, WithLogger(testLogger()))
	defer core.Shutdown()

	received := make(chan codec.Message, 1)
	core.AddResponseListener(func(msg codec.Message) {
		received <- msg
	})

	fl.push(frameFor(t, codec.HeartbeatResponse{}))

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatalf("response listener was never called")
	}
}

// TestShutdownIsIdempotentAndDisablesSend checks invariant: after Shutdown,
// Send returns immediately without blocking or panicking, and a second
// Shutdown call is a no-op.
func TestShutdownIsIdempotentAndDisablesSend(t *testing.T) {
	fl := newFakeLink()
	core := New(fl, WithLogger(testLogger()))

	core.Shutdown()
	core.Shutdown()

	start := time.Now()
	_, ok := core.Send(codec.Heartbeat{}, time.Second)
	if ok {
		t.Fatalf("Send after Shutdown: expected no response")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("Send after Shutdown blocked for %v, want immediate return", elapsed)
	}
}

// TestConnectionListenerFiresOnDisconnect checks that closing the link out
// from under the reader fires connection listeners with false.
func TestConnectionListenerFiresOnDisconnect(t *testing.T) {
	fl := newFakeLink()
	core := New(fl, WithLogger(testLogger()))

	disconnected := make(chan struct{})
	core.AddConnectionListener(func(connected bool) {
		if !connected {
			close(disconnected)
		}
	})

	fl.Close()

	select {
	case <-disconnected:
	case <-time.After(time.Second):
		t.Fatalf("connection listener never fired false after link close")
	}
}

// TestDownloadFileZeroSizeShortCircuits checks that a zero-size download
// never touches the link and returns an empty artifact immediately.
func TestDownloadFileZeroSizeShortCircuits(t *testing.T) {
	fl := newFakeLink()
	core := New(fl, WithLogger(testLogger()))
	defer core.Shutdown()

	path, err := core.DownloadFile("empty.bin", 0, time.Second, 0, nil)
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if path == "" {
		t.Fatalf("DownloadFile returned an empty path")
	}
	if fl.writeCount() != 0 {
		t.Fatalf("zero-size download issued %d writes, want 0", fl.writeCount())
	}
}

// fakeProgress records the calls made to a ProgressListener. The terminal
// callback runs on the bulk-progress lane, so it may land just after
// DownloadFile has returned.
type fakeProgress struct {
	mu        sync.Mutex
	completes []string
	failures  []error
}

func (f *fakeProgress) OnProgress(float64, float64) {}
func (f *fakeProgress) OnComplete(path string, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completes = append(f.completes, path)
}
func (f *fakeProgress) OnFailed(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, err)
}

// terminalCounts waits up to a second for a terminal callback, then returns
// how many OnComplete and OnFailed calls have been recorded.
func (f *fakeProgress) terminalCounts() (completes, failures int) {
	deadline := time.Now().Add(time.Second)
	for {
		f.mu.Lock()
		completes, failures = len(f.completes), len(f.failures)
		f.mu.Unlock()
		if completes+failures > 0 || time.Now().After(deadline) {
			return completes, failures
		}
		time.Sleep(time.Millisecond)
	}
}

// TestDownloadFileHappyPath feeds a small payload plus a correct trailing
// CRC and checks DownloadFile returns a path to the bytes received.
func TestDownloadFileHappyPath(t *testing.T) {
	fl := newFakeLink()
	core := New(fl, WithLogger(testLogger()))
	defer core.Shutdown()

	payload := []byte("hello, embody")
	crc := codec.CRC16(payload)
	progress := &fakeProgress{}

	go func() {
		time.Sleep(10 * time.Millisecond)
		fl.push(payload)
		fl.push([]byte{byte(crc >> 8), byte(crc)})
	}()

	path, err := core.DownloadFile("greeting.bin", len(payload), time.Second, 0, progress)
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if path == "" {
		t.Fatalf("DownloadFile returned an empty path")
	}
	if completes, _ := progress.terminalCounts(); completes != 1 {
		t.Fatalf("OnComplete called %d times, want 1", completes)
	}
}

// TestDownloadFileCrcMismatch checks that a corrupted trailing CRC is
// reported as a CrcError via OnFailed and the returned error.
func TestDownloadFileCrcMismatch(t *testing.T) {
	fl := newFakeLink()
	core := New(fl, WithLogger(testLogger()))
	defer core.Shutdown()

	payload := []byte("abc")
	progress := &fakeProgress{}

	go func() {
		time.Sleep(10 * time.Millisecond)
		fl.push(payload)
		fl.push([]byte{0x00, 0x00})
	}()

	_, err := core.DownloadFile("bad.bin", len(payload), time.Second, 0, progress)
	if err == nil {
		t.Fatalf("DownloadFile: expected a CRC error")
	}
	if _, ok := err.(*CrcError); !ok {
		t.Fatalf("DownloadFile error = %T, want *CrcError", err)
	}
	if _, failures := progress.terminalCounts(); failures != 1 {
		t.Fatalf("OnFailed called %d times, want 1", failures)
	}
}

// TestDownloadFileTightensAndRestoresReadTimeout checks that entering bulk
// mode installs the bulk-transfer read timeout on a Link implementing
// ReadTimeoutSetter, and that the framing timeout is restored once the
// transfer completes.
func TestDownloadFileTightensAndRestoresReadTimeout(t *testing.T) {
	fl := newReadTimeoutFakeLink()
	core := New(fl, WithLogger(testLogger()), WithBulkReadTimeout(7*time.Second), WithFramingReadTimeout(123*time.Millisecond))
	defer core.Shutdown()

	payload := []byte("readtimeout")
	crc := codec.CRC16(payload)

	go func() {
		time.Sleep(10 * time.Millisecond)
		fl.push(payload)
		fl.push([]byte{byte(crc >> 8), byte(crc)})
	}()

	_, err := core.DownloadFile("rt.bin", len(payload), time.Second, 0, nil)
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}

	history := fl.timeoutHistory()
	if len(history) != 2 {
		t.Fatalf("SetReadTimeout called %d times, want 2 (tighten, restore); history=%v", len(history), history)
	}
	if history[0] != 7*time.Second {
		t.Fatalf("first SetReadTimeout = %v, want 7s (bulk)", history[0])
	}
	if history[1] != 123*time.Millisecond {
		t.Fatalf("second SetReadTimeout = %v, want 123ms (framing restore)", history[1])
	}
}

// TestDownloadFileSmallerThanHeaderPrefix exercises the edge case where the
// payload is smaller than the 3-byte prefix the reader had already
// consumed before discovering it should be in bulk mode: the prefix bytes
// carry both the whole payload and part of the trailing CRC.
func TestDownloadFileSmallerThanHeaderPrefix(t *testing.T) {
	fl := newFakeLink()
	core := New(fl, WithLogger(testLogger()))
	defer core.Shutdown()

	payload := []byte{0x01, 0x02}
	crc := codec.CRC16(payload)

	go func() {
		time.Sleep(10 * time.Millisecond)
		fl.push(payload)
		fl.push([]byte{byte(crc >> 8), byte(crc)})
	}()

	path, err := core.DownloadFile("tiny.bin", len(payload), time.Second, 0, nil)
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if path == "" {
		t.Fatalf("DownloadFile returned an empty path")
	}
}
