package facade

import (
	"time"

	"github.com/aidee-health/embody-serial-go/pkg/link"
)

// DefaultRetryAttempts bounds the retry wrappers below. The device's
// transient failures (a stray NACK under load, a timed-out chunk) tend to
// clear within one or two retries; beyond that, retrying further just
// delays surfacing a real failure.
const DefaultRetryAttempts = 3

// RetryDelay is slept between attempts of a retrying wrapper.
const RetryDelay = 200 * time.Millisecond

// DeleteFileWithRetries calls DeleteFile up to DefaultRetryAttempts times,
// returning the first success or the last error encountered.
func (f *Facade) DeleteFileWithRetries(name string) error {
	var lastErr error
	for attempt := 0; attempt < DefaultRetryAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(RetryDelay)
		}
		if err := f.DeleteFile(name); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// DownloadFileWithRetries calls DownloadFile up to DefaultRetryAttempts
// times, retrying on a missing response, timeout, or CRC mismatch — the
// three failure modes a retry can plausibly fix. It returns the first
// success or the last error encountered.
func (f *Facade) DownloadFileWithRetries(name string, size int, timeout time.Duration, progress link.ProgressListener) (string, error) {
	var lastErr error
	for attempt := 0; attempt < DefaultRetryAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(RetryDelay)
		}
		path, err := f.DownloadFile(name, size, timeout, progress)
		if err == nil {
			return path, nil
		}
		lastErr = err
		if !isRetryableDownloadError(err) {
			return "", err
		}
	}
	return "", lastErr
}

func isRetryableDownloadError(err error) bool {
	switch err {
	case link.ErrMissingResponse, link.ErrTimeout:
		return true
	}
	_, isCrc := err.(*link.CrcError)
	return isCrc
}
