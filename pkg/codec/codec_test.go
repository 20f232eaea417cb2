package codec

import (
	"bytes"
	"testing"
)

// TestHeartbeatResponseWireBytes mirrors scenario S1 from the spec:
// "81 00 05 90 53" is a valid encoded HeartbeatResponse.
func TestHeartbeatResponseWireBytes(t *testing.T) {
	encoded, err := Encode(HeartbeatResponse{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0x81, 0x00, 0x05, 0x90, 0x53}
	if !bytes.Equal(encoded, want) {
		t.Fatalf("HeartbeatResponse encoded to % x, want % x", encoded, want)
	}

	msg, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := msg.(HeartbeatResponse); !ok {
		t.Fatalf("Decode returned %T, want HeartbeatResponse", msg)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Message{
		Heartbeat{},
		HeartbeatResponse{},
		NackResponse{ResponseCode: 7},
		ListFiles{},
		ListFilesResponse{Files: []FileRecord{{Name: "a.bin", Size: 10}, {Name: "b.bin", Size: 2048}}},
		ListFilesResponse{},
		DeleteFile{File: File{Name: "a.bin"}},
		DeleteFileResponse{},
		DeleteAllFiles{},
		DeleteAllFilesResponse{},
		ReformatDisk{},
		ReformatDiskResponse{},
		GetFile{File: File{Name: "recording.dat"}},
		GetFileResponse{},
		GetAttribute{AttributeID: AttributeBatteryLevel},
		GetAttributeResponse{Value: BatteryLevelAttribute{Value: 42}},
		GetAttributeResponse{Value: SerialNoAttribute{Value: "SN-1234"}},
		GetAttributeResponse{Value: TemperatureAttribute{RawTenthsCelsius: 365}},
		SetAttribute{Value: TraceLevelAttribute{Value: 3}},
		SetAttributeResponse{AttributeID: AttributeTraceLevel},
	}

	for _, msg := range cases {
		encoded, err := Encode(msg)
		if err != nil {
			t.Fatalf("Encode(%#v): %v", msg, err)
		}
		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode(Encode(%#v)): %v", msg, err)
		}
		reencoded, err := Encode(decoded)
		if err != nil {
			t.Fatalf("Encode(Decode(...)) for %#v: %v", msg, err)
		}
		if !bytes.Equal(encoded, reencoded) {
			t.Fatalf("encode(decode(bytes)) != bytes for %#v:\n got % x\nwant % x", msg, reencoded, encoded)
		}
	}
}

func TestDecodeEmptyBodyFrame(t *testing.T) {
	// length == 3 means a zero-byte body: header + 2-byte CRC only.
	encoded, err := Encode(DeleteFileResponse{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(encoded) != 5 {
		t.Fatalf("expected a 5-byte frame (3 header + 2 crc), got %d bytes", len(encoded))
	}
	if _, err := Decode(encoded); err != nil {
		t.Fatalf("Decode zero-body frame: %v", err)
	}
}

func TestDecodeUnknownTypeYieldsRawMessage(t *testing.T) {
	frame := []byte{0x42, 0x00, 0x06, 0xAA, 0xBB}
	crc := CRC16(frame[:3+2])
	_ = crc
	// Build a frame for an unregistered type with a 2-byte body and correct CRC.
	body := []byte{0xAA, 0xBB}
	header := []byte{0x42, 0x00, byte(3 + len(body) + 2)}
	full := append(append([]byte(nil), header...), body...)
	c := CRC16(full)
	full = appendUint16(full, c)

	msg, err := Decode(full)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	raw, ok := msg.(RawMessage)
	if !ok {
		t.Fatalf("Decode returned %T, want RawMessage", msg)
	}
	if raw.MsgType != 0x42 || !bytes.Equal(raw.Body, body) {
		t.Fatalf("RawMessage = %+v, want type 0x42 body % x", raw, body)
	}
}

func TestDecodeCRCMismatch(t *testing.T) {
	encoded, err := Encode(Heartbeat{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	encoded[len(encoded)-1] ^= 0xFF
	if _, err := Decode(encoded); err == nil {
		t.Fatalf("Decode accepted a frame with a corrupted CRC")
	}
}

func TestIsResponse(t *testing.T) {
	if IsResponse(TypeHeartbeat) {
		t.Fatalf("TypeHeartbeat should not be classified as a response")
	}
	if !IsResponse(TypeHeartbeatResponse) {
		t.Fatalf("TypeHeartbeatResponse should be classified as a response")
	}
}

func TestBluetoothMACFormatting(t *testing.T) {
	attr := BluetoothMACAttribute{Value: [6]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01}}
	want := "DE:AD:BE:EF:00:01"
	if got := attr.FormattedValue(); got != want {
		t.Fatalf("FormattedValue() = %q, want %q", got, want)
	}
}
