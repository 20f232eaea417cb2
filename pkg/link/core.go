package link

import (
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/aidee-health/embody-serial-go/pkg/codec"
)

// DefaultSendTimeout is used by Send callers that don't specify their own.
const DefaultSendTimeout = 5 * time.Second

// Option configures a Core at construction time.
type Option func(*Core)

// WithLogger overrides the destination for the core's diagnostic logging.
// The default writes to os.Stderr with a "embody-serial: " prefix.
func WithLogger(logger *log.Logger) Option {
	return func(c *Core) { c.logger = logger }
}

// WithBulkReadTimeout overrides DefaultBulkReadTimeout, the per-chunk read
// deadline installed on the Link (if it supports ReadTimeoutSetter) for the
// duration of a bulk file transfer.
func WithBulkReadTimeout(d time.Duration) Option {
	return func(c *Core) { c.bulkReadTimeout = d }
}

// WithFramingReadTimeout overrides DefaultFramingReadTimeout, the read
// deadline link.Core restores on the Link once a bulk transfer completes.
func WithFramingReadTimeout(d time.Duration) Option {
	return func(c *Core) { c.framingReadTimeout = d }
}

// Core is the link-layer engine: one frame reader, one send lane, three
// subscriber fan-out lanes (notification, response, bulk-progress), and
// the bulk file-transfer state machine, all layered over a single Link.
type Core struct {
	link   Link
	logger *log.Logger

	reg          *registry
	slot         *responseSlot
	notification *pool
	response     *pool
	bulk         *pool
	dispatcher   *dispatcher
	sender       *sender
	rdr          *reader

	bulkReadTimeout    time.Duration
	framingReadTimeout time.Duration

	shutdownMu sync.Mutex
	connected  bool
	stopped    bool
}

// New wires up and starts a Core over an already-open Link.
func New(l Link, opts ...Option) *Core {
	c := &Core{
		link:               l,
		logger:             log.New(os.Stderr, "embody-serial: ", log.LstdFlags),
		reg:                &registry{},
		slot:               newResponseSlot(),
		connected:          true,
		bulkReadTimeout:    DefaultBulkReadTimeout,
		framingReadTimeout: DefaultFramingReadTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.notification = newPool("notification", c.logger)
	c.response = newPool("response", c.logger)
	c.bulk = newPool("bulk-progress", c.logger)
	c.dispatcher = newDispatcher(c.reg, c.notification, c.response, c.slot)
	c.sender = newSender(l, c.slot, c.logger)
	c.rdr = newReader(l, c.logger, c.bulk, c.dispatcher.dispatch, c.onReaderStopped, c.bulkReadTimeout, c.framingReadTimeout)

	c.reg.addConnection(func(connected bool) {
		if !connected {
			c.Shutdown()
		}
	})

	c.rdr.start()
	return c
}

// onReaderStopped runs on the reader goroutine itself, once, when the
// framing loop exits because the link closed or a read failed.
func (c *Core) onReaderStopped() {
	for _, l := range c.reg.connectionListeners() {
		l := l
		c.notification.Submit(func() { l(false) })
	}
}

// AddMessageListener registers a callback for unsolicited notifications.
func (c *Core) AddMessageListener(l MessageListener) { c.reg.addMessage(l) }

// AddResponseListener registers a callback for every response message.
func (c *Core) AddResponseListener(l ResponseListener) { c.reg.addResponse(l) }

// AddConnectionListener registers a callback for connected-state changes.
func (c *Core) AddConnectionListener(l ConnectionListener) { c.reg.addConnection(l) }

// IsConnected reports whether the link is still open and the core has not
// been shut down.
func (c *Core) IsConnected() bool {
	c.shutdownMu.Lock()
	defer c.shutdownMu.Unlock()
	return c.connected && c.link.IsOpen()
}

// SendAsync transmits msg without waiting for a response. It is silently
// dropped if the core is not connected.
func (c *Core) SendAsync(msg codec.Message) {
	if !c.IsConnected() {
		return
	}
	c.sender.sendAsync(msg)
}

// Send transmits msg and blocks for up to timeout for the first response
// to arrive. It returns (nil, false) immediately if the core is not
// connected, without enqueueing anything.
func (c *Core) Send(msg codec.Message, timeout time.Duration) (codec.Message, bool) {
	if !c.IsConnected() {
		return nil, false
	}
	return c.sender.sendAndWait(msg, timeout)
}

// DownloadSession represents a bulk transfer the reader has already been
// armed for. The triggering protocol request must be sent (via SendAsync)
// after BeginDownload returns and before the device starts streaming;
// Wait then blocks for the outcome.
type DownloadSession struct {
	session *fileSession
	timeout time.Duration
}

// Wait blocks until the transfer this session describes completes, fails,
// or the session's timeout (plus a small grace period for the final
// bookkeeping) elapses.
func (d *DownloadSession) Wait() (string, error) {
	return d.session.wait(d.timeout + time.Second)
}

// BeginDownload arms the reader to receive size bytes of file payload plus
// trailing CRC, before the caller has sent anything to trigger the
// transfer. Entering bulk mode first avoids a race where the device's
// first stream bytes arrive before the reader knows to treat them as
// payload instead of a frame header. chunkDelay, if positive, is applied
// between successive chunk reads; progress, if non-nil, receives periodic
// OnProgress calls and exactly one terminal OnComplete or OnFailed call.
func (c *Core) BeginDownload(name string, size int, timeout, chunkDelay time.Duration, progress ProgressListener) (*DownloadSession, error) {
	if !c.IsConnected() {
		return nil, io.ErrClosedPipe
	}
	session := newFileSession(name, size, timeout, chunkDelay, progress)
	if err := c.rdr.enterBulkMode(session); err != nil {
		return nil, err
	}
	return &DownloadSession{session: session, timeout: timeout}, nil
}

// DownloadFile is a convenience wrapper for callers with no triggering
// request to interleave: it requests size bytes of file payload and blocks
// until the transfer completes, fails, or exceeds timeout. A size of 0
// short-circuits entirely: an empty temp file is created and the reader
// never enters bulk mode.
func (c *Core) DownloadFile(name string, size int, timeout, chunkDelay time.Duration, progress ProgressListener) (string, error) {
	if size == 0 {
		f, err := os.CreateTemp("", "embody-serial-*-"+sanitizeFileName(name))
		if err != nil {
			return "", err
		}
		path := f.Name()
		f.Close()
		if progress != nil {
			c.bulk.Submit(func() { progress.OnComplete(path, 0) })
		}
		return path, nil
	}

	session, err := c.BeginDownload(name, size, timeout, chunkDelay, progress)
	if err != nil {
		return "", err
	}
	return session.Wait()
}

// Shutdown tears the core down idempotently: it stops accepting new sends,
// closes the link (unblocking the reader's pending read), waits up to one
// second for the reader goroutine to exit, and stops the fan-out lanes
// without waiting for already-queued callbacks to finish.
func (c *Core) Shutdown() {
	c.shutdownMu.Lock()
	if c.stopped {
		c.shutdownMu.Unlock()
		return
	}
	c.stopped = true
	c.connected = false
	c.shutdownMu.Unlock()

	if canceler, ok := c.link.(ReadCanceler); ok {
		_ = canceler.CancelRead()
	}
	_ = c.link.Close()

	select {
	case <-c.rdr.done:
	case <-time.After(time.Second):
	}

	c.sender.stop()
	c.notification.Stop()
	c.response.Stop()
	c.bulk.Stop()
}
