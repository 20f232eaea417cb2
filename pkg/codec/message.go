// Package codec implements the wire format spoken by the EmBody device:
// encoding and decoding of typed messages, the CRC-16/CCITT routine used
// both for message trailers and for the bulk file-transfer trailer, and the
// attribute/file record definitions carried in message payloads.
package codec

import (
	"encoding/binary"
	"fmt"
)

// Message types. The top bit distinguishes a response (>= 0x80) from a
// request or notification (< 0x80); this single bit is the core's dispatch
// key and must not be reassigned without touching pkg/link's dispatcher.
const (
	TypeHeartbeat         byte = 0x01
	TypeGetAttribute      byte = 0x02
	TypeSetAttribute      byte = 0x03
	TypeListFiles         byte = 0x04
	TypeDeleteFile        byte = 0x05
	TypeDeleteAllFiles    byte = 0x06
	TypeReformatDisk      byte = 0x07
	TypeGetFile           byte = 0x08

	TypeHeartbeatResponse      byte = 0x81
	TypeGetAttributeResponse   byte = 0x82
	TypeSetAttributeResponse   byte = 0x83
	TypeListFilesResponse      byte = 0x84
	TypeDeleteFileResponse     byte = 0x85
	TypeDeleteAllFilesResponse byte = 0x86
	TypeReformatDiskResponse   byte = 0x87
	TypeGetFileResponse        byte = 0x88
	TypeNackResponse           byte = 0xFF
)

// ResponseBit is the bit that separates responses from requests/notifications.
const ResponseBit byte = 0x80

// IsResponse reports whether a message type is a response (type >= 0x80).
func IsResponse(msgType byte) bool {
	return msgType&ResponseBit != 0
}

// headerLen is the 3-byte type+length header every frame starts with.
const headerLen = 3

// trailerLen is the 2-byte CRC trailer every frame ends with.
const trailerLen = 2

// Message is the tagged-union interface every protocol message satisfies.
// The codec owns wire details; callers only see Type() and the decoded
// struct fields of the concrete variant.
type Message interface {
	// Type returns the wire message type byte.
	Type() byte
	// payload returns the body bytes between the header and the trailing CRC.
	payload() ([]byte, error)
}

// Encode serializes msg to the wire format:
// type:u8 | length:u16-be | payload[length-3] | crc:u16-be, where length
// counts the header and the trailing CRC.
func Encode(msg Message) ([]byte, error) {
	body, err := msg.payload()
	if err != nil {
		return nil, fmt.Errorf("codec: encode %T: %w", msg, err)
	}
	length := headerLen + len(body) + trailerLen
	if length > 0xFFFF {
		return nil, fmt.Errorf("codec: encode %T: payload too large (%d bytes)", msg, len(body))
	}
	frame := make([]byte, 0, length)
	frame = append(frame, msg.Type())
	frame = appendUint16(frame, uint16(length))
	frame = append(frame, body...)
	crc := CRC16(frame)
	frame = appendUint16(frame, crc)
	return frame, nil
}

// Decode parses a complete frame (as produced by the frame reader: header
// plus length-3 additional bytes) into a typed Message. The trailing CRC is
// verified against the preceding bytes; a mismatch is a decode error, same
// as any other malformed frame. Unknown but structurally valid message
// types decode to a RawMessage rather than failing, so the dispatcher can
// still route on the response bit for message types this module does not
// know about.
func Decode(frame []byte) (Message, error) {
	if len(frame) < headerLen+trailerLen {
		return nil, fmt.Errorf("codec: decode: frame too short (%d bytes)", len(frame))
	}
	msgType := frame[0]
	length := binary.BigEndian.Uint16(frame[1:3])
	if int(length) != len(frame) {
		return nil, fmt.Errorf("codec: decode: length field %d does not match frame size %d", length, len(frame))
	}
	body := frame[headerLen : len(frame)-trailerLen]
	wantCRC := binary.BigEndian.Uint16(frame[len(frame)-trailerLen:])
	gotCRC := CRC16(frame[:len(frame)-trailerLen])
	if gotCRC != wantCRC {
		return nil, fmt.Errorf("codec: decode: crc mismatch for type 0x%02x: got 0x%04x, want 0x%04x", msgType, gotCRC, wantCRC)
	}
	if decodeFn, ok := payloadDecoders[msgType]; ok {
		return decodeFn(body)
	}
	return RawMessage{MsgType: msgType, Body: append([]byte(nil), body...)}, nil
}

func appendUint16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

// payloadDecoders maps a message type to the function that turns its body
// bytes into the typed Message. Registered by each message's own file via
// init(), mirroring how net/http registers content handlers.
var payloadDecoders = map[byte]func([]byte) (Message, error){}

func registerDecoder(msgType byte, fn func([]byte) (Message, error)) {
	payloadDecoders[msgType] = fn
}

// RawMessage is the fallback decode result for a structurally valid frame
// whose type this module does not have a typed variant for.
type RawMessage struct {
	MsgType byte
	Body    []byte
}

func (m RawMessage) Type() byte                { return m.MsgType }
func (m RawMessage) payload() ([]byte, error) { return m.Body, nil }
