package serialio

import (
	"fmt"
	"log"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"

	"github.com/aidee-health/embody-serial-go/pkg/codec"
	"github.com/aidee-health/embody-serial-go/pkg/link"
)

// defaultVendorTokens matches against a USB port's product and
// manufacturer strings, case-insensitively, when no caller-supplied list
// is given. These are the tokens the original tooling's auto-detect used.
var defaultVendorTokens = []string{"Datek", "Aidee", "IsenseU", "G3", "EmBody"}

// probeTimeout bounds how long auto-detect waits for a heartbeat response
// on each candidate port before moving to the next one.
const probeTimeout = 3 * time.Second

// AutoDetectOptions configures Detect.
type AutoDetectOptions struct {
	// VendorTokens overrides defaultVendorTokens for narrowing the
	// enumerated port list before probing. A nil slice uses
	// defaultVendorTokens; an empty, non-nil slice probes every
	// enumerated port.
	VendorTokens []string
	BaudRate     int
	Logger       *log.Logger
}

// Detect enumerates serial ports, narrows them to plausible candidates by
// vendor/product string, and opens each in turn, sending a Heartbeat and
// waiting for a HeartbeatResponse. The first port that answers is
// returned, already open. Ports that don't answer are closed before the
// next candidate is tried.
func Detect(opts AutoDetectOptions) (*SerialLink, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	baud := opts.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	tokens := opts.VendorTokens
	if tokens == nil {
		tokens = defaultVendorTokens
	}

	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("serialio: enumerate ports: %w", err)
	}

	candidates := filterCandidates(ports, tokens)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("serialio: no candidate serial ports found")
	}

	var lastErr error
	for _, path := range candidates {
		if !portIsAlive(path, baud, logger) {
			continue
		}
		// portIsAlive already closed its probe connection; reopen fresh
		// so the caller gets a link with no probe traffic behind it.
		sl, err := Open(path, baud, logger)
		if err != nil {
			logger.Printf("serialio: autodetect: %s answered the probe but failed to reopen: %v", path, err)
			lastErr = err
			continue
		}
		logger.Printf("serialio: autodetect: selected %s", path)
		return sl, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("serialio: autodetect: no responsive port found, last error: %w", lastErr)
	}
	return nil, fmt.Errorf("serialio: autodetect: no responsive port found among %d candidates", len(candidates))
}

func filterCandidates(ports []*enumerator.PortDetails, tokens []string) []string {
	if len(tokens) == 0 {
		out := make([]string, 0, len(ports))
		for _, p := range ports {
			out = append(out, p.Name)
		}
		return out
	}

	var out []string
	for _, p := range ports {
		haystack := strings.ToLower(p.Product + " " + p.Manufacturer + " " + p.VID + " " + p.PID)
		for _, t := range tokens {
			if strings.Contains(haystack, strings.ToLower(t)) {
				out = append(out, p.Name)
				break
			}
		}
	}
	return out
}

// portIsAlive opens path on its own, sends a heartbeat over a short-lived
// link.Core, and waits for a response, probing whether the device on the
// other end speaks the expected protocol at all. The probe connection is
// always closed before returning, whether or not the probe succeeded.
func portIsAlive(path string, baud int, logger *log.Logger) bool {
	sl, err := Open(path, baud, logger)
	if err != nil {
		logger.Printf("serialio: autodetect: skipping %s: %v", path, err)
		return false
	}
	core := link.New(sl, link.WithLogger(logger))
	resp, ok := core.Send(codec.Heartbeat{}, probeTimeout)
	core.Shutdown()
	if !ok {
		return false
	}
	_, isHeartbeat := resp.(codec.HeartbeatResponse)
	return isHeartbeat
}
