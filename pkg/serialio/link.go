// Package serialio provides the concrete link.Link implementation backed by
// a real USB CDC serial port, plus the auto-detect logic used to find the
// right port when the caller doesn't already know its device path.
package serialio

import (
	"fmt"
	"log"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate matches the device firmware's fixed UART rate.
	DefaultBaudRate = 115200
	// DefaultReadTimeout governs how long a single Read call blocks
	// before returning (0, nil) when no bytes are available, so the
	// reader goroutine can still observe a closed port promptly. This is
	// also the timeout link.Core restores the port to once a bulk
	// transfer finishes.
	DefaultReadTimeout = 500 * time.Millisecond
)

// SerialLink wraps a go.bug.st/serial port as a link.Link. It additionally
// implements link.ReadTimeoutSetter so bulk transfers can request a longer
// per-chunk timeout for the duration of a download.
type SerialLink struct {
	port   serial.Port
	path   string
	logger *log.Logger

	mu       sync.Mutex
	isClosed bool
}

// Open opens devicePath at baudRate, 8N1, with no flow control, matching
// the framing the firmware expects.
func Open(devicePath string, baudRate int, logger *log.Logger) (*SerialLink, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(devicePath, mode)
	if err != nil {
		return nil, fmt.Errorf("serialio: open %s: %w", devicePath, err)
	}
	if err := port.SetReadTimeout(DefaultReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("serialio: set read timeout on %s: %w", devicePath, err)
	}
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("serialio: opened %s at %d baud", devicePath, baudRate)
	return &SerialLink{port: port, path: devicePath, logger: logger}, nil
}

func (s *SerialLink) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialLink) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// IsOpen reports whether the port has not yet been closed. go.bug.st/serial
// has no liveness query of its own, so this is tracked locally.
func (s *SerialLink) IsOpen() bool {
	return !s.closed()
}

func (s *SerialLink) closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isClosed
}

func (s *SerialLink) Close() error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()
	s.logger.Printf("serialio: closing %s", s.path)
	return s.port.Close()
}

// SetReadTimeout reconfigures the port's read deadline in place, used by
// bulk downloads to trade responsiveness for fewer wakeups while a large
// payload is expected.
func (s *SerialLink) SetReadTimeout(d time.Duration) error {
	return s.port.SetReadTimeout(d)
}

// Path returns the device path this link was opened on.
func (s *SerialLink) Path() string { return s.path }
