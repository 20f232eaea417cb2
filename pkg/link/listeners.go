package link

import "github.com/aidee-health/embody-serial-go/pkg/codec"

// MessageListener is notified of unsolicited device notifications
// (messages with type < 0x80).
type MessageListener func(msg codec.Message)

// ResponseListener is notified of every response message (type >= 0x80),
// whether or not a sender is currently waiting for it.
type ResponseListener func(msg codec.Message)

// ConnectionListener is notified when the link's connected state changes.
type ConnectionListener func(connected bool)

// ProgressListener receives bulk file transfer progress and terminal
// outcomes. All three methods run on the bulk-progress lane, serially, and
// a panic in any of them is recovered and logged like any other callback.
type ProgressListener interface {
	// OnProgress reports a fraction in [0,1] and the current throughput in
	// KB/s, delivered periodically during a download.
	OnProgress(fraction float64, kbps float64)
	// OnComplete reports the final artifact path and average throughput.
	OnComplete(path string, kbps float64)
	// OnFailed reports why the download did not complete.
	OnFailed(err error)
}

