package codec

import "fmt"

// Heartbeat is the liveness probe request used both by ordinary callers and
// by the auto-detect heuristic in pkg/serialio to recognize an EmBody
// device on a candidate serial port.
type Heartbeat struct{}

func (Heartbeat) Type() byte              { return TypeHeartbeat }
func (Heartbeat) payload() ([]byte, error) { return nil, nil }

// HeartbeatResponse is the device's reply to Heartbeat.
type HeartbeatResponse struct{}

func (HeartbeatResponse) Type() byte              { return TypeHeartbeatResponse }
func (HeartbeatResponse) payload() ([]byte, error) { return nil, nil }

func init() {
	registerDecoder(TypeHeartbeat, func(body []byte) (Message, error) {
		return Heartbeat{}, nil
	})
	registerDecoder(TypeHeartbeatResponse, func(body []byte) (Message, error) {
		return HeartbeatResponse{}, nil
	})
}

// NackResponse is returned by the device when it rejects a request. It
// carries a response code whose meaning is device-specific; the link core
// never interprets it, only the facade does (see pkg/facade.NackError).
type NackResponse struct {
	ResponseCode byte
}

func (NackResponse) Type() byte { return TypeNackResponse }

func (m NackResponse) payload() ([]byte, error) {
	return []byte{m.ResponseCode}, nil
}

func init() {
	registerDecoder(TypeNackResponse, func(body []byte) (Message, error) {
		if len(body) < 1 {
			return nil, fmt.Errorf("codec: NackResponse: empty body")
		}
		return NackResponse{ResponseCode: body[0]}, nil
	})
}

// DeleteAllFiles requests that the device erase its entire file system.
type DeleteAllFiles struct{}

func (DeleteAllFiles) Type() byte              { return TypeDeleteAllFiles }
func (DeleteAllFiles) payload() ([]byte, error) { return nil, nil }

// DeleteAllFilesResponse acknowledges DeleteAllFiles.
type DeleteAllFilesResponse struct{}

func (DeleteAllFilesResponse) Type() byte              { return TypeDeleteAllFilesResponse }
func (DeleteAllFilesResponse) payload() ([]byte, error) { return nil, nil }

// ReformatDisk requests a low-level reformat of the device's storage.
type ReformatDisk struct{}

func (ReformatDisk) Type() byte              { return TypeReformatDisk }
func (ReformatDisk) payload() ([]byte, error) { return nil, nil }

// ReformatDiskResponse acknowledges ReformatDisk.
type ReformatDiskResponse struct{}

func (ReformatDiskResponse) Type() byte              { return TypeReformatDiskResponse }
func (ReformatDiskResponse) payload() ([]byte, error) { return nil, nil }

func init() {
	registerDecoder(TypeDeleteAllFiles, func(body []byte) (Message, error) {
		return DeleteAllFiles{}, nil
	})
	registerDecoder(TypeDeleteAllFilesResponse, func(body []byte) (Message, error) {
		return DeleteAllFilesResponse{}, nil
	})
	registerDecoder(TypeReformatDisk, func(body []byte) (Message, error) {
		return ReformatDisk{}, nil
	})
	registerDecoder(TypeReformatDiskResponse, func(body []byte) (Message, error) {
		return ReformatDiskResponse{}, nil
	})
}
