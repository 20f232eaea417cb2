package codec

import (
	"encoding/binary"
	"fmt"
)

// Attribute IDs. Each identifies both the get/set target and the wire
// encoding of its value (fixed-width for numeric attributes, length-
// prefixed for strings).
const (
	AttributeSerialNo        byte = 0x01 // string, length-prefixed
	AttributeVendor          byte = 0x02 // string, length-prefixed
	AttributeModel           byte = 0x03 // string, length-prefixed
	AttributeBluetoothMAC    byte = 0x04 // 6 raw bytes
	AttributeBatteryLevel    byte = 0x05 // uint8, percent
	AttributeHeartrate       byte = 0x06 // uint16-be, bpm
	AttributeChargeState     byte = 0x07 // uint8, 0/1
	AttributeTemperature     byte = 0x08 // int16-be, tenths of a degree C
	AttributeFirmwareVersion byte = 0x09 // string, length-prefixed
	AttributeCurrentTime     byte = 0x0A // int64-be, epoch milliseconds
	AttributeTraceLevel      byte = 0x0B // uint8
)

// Attribute is a typed device attribute value, gettable and settable
// through GetAttribute/SetAttribute.
type Attribute interface {
	AttributeID() byte
	FormattedValue() string
	encode() ([]byte, error)
}

var attributeDecoders = map[byte]func([]byte) (Attribute, error){
	AttributeSerialNo:        decodeStringAttribute(func(s string) Attribute { return SerialNoAttribute{Value: s} }),
	AttributeVendor:          decodeStringAttribute(func(s string) Attribute { return VendorAttribute{Value: s} }),
	AttributeModel:           decodeStringAttribute(func(s string) Attribute { return ModelAttribute{Value: s} }),
	AttributeFirmwareVersion: decodeStringAttribute(func(s string) Attribute { return FirmwareVersionAttribute{Value: s} }),
	AttributeBluetoothMAC: func(body []byte) (Attribute, error) {
		if len(body) != 6 {
			return nil, fmt.Errorf("codec: BluetoothMACAttribute: want 6 bytes, got %d", len(body))
		}
		var mac [6]byte
		copy(mac[:], body)
		return BluetoothMACAttribute{Value: mac}, nil
	},
	AttributeBatteryLevel: func(body []byte) (Attribute, error) {
		if len(body) != 1 {
			return nil, fmt.Errorf("codec: BatteryLevelAttribute: want 1 byte, got %d", len(body))
		}
		return BatteryLevelAttribute{Value: body[0]}, nil
	},
	AttributeHeartrate: func(body []byte) (Attribute, error) {
		if len(body) != 2 {
			return nil, fmt.Errorf("codec: HeartrateAttribute: want 2 bytes, got %d", len(body))
		}
		return HeartrateAttribute{Value: binary.BigEndian.Uint16(body)}, nil
	},
	AttributeChargeState: func(body []byte) (Attribute, error) {
		if len(body) != 1 {
			return nil, fmt.Errorf("codec: ChargeStateAttribute: want 1 byte, got %d", len(body))
		}
		return ChargeStateAttribute{Value: body[0] != 0}, nil
	},
	AttributeTemperature: func(body []byte) (Attribute, error) {
		if len(body) != 2 {
			return nil, fmt.Errorf("codec: TemperatureAttribute: want 2 bytes, got %d", len(body))
		}
		return TemperatureAttribute{RawTenthsCelsius: int16(binary.BigEndian.Uint16(body))}, nil
	},
	AttributeCurrentTime: func(body []byte) (Attribute, error) {
		if len(body) != 8 {
			return nil, fmt.Errorf("codec: CurrentTimeAttribute: want 8 bytes, got %d", len(body))
		}
		return CurrentTimeAttribute{EpochMillis: int64(binary.BigEndian.Uint64(body))}, nil
	},
	AttributeTraceLevel: func(body []byte) (Attribute, error) {
		if len(body) != 1 {
			return nil, fmt.Errorf("codec: TraceLevelAttribute: want 1 byte, got %d", len(body))
		}
		return TraceLevelAttribute{Value: body[0]}, nil
	},
}

func decodeStringAttribute(build func(string) Attribute) func([]byte) (Attribute, error) {
	return func(body []byte) (Attribute, error) {
		if len(body) < 1 {
			return nil, fmt.Errorf("codec: string attribute: empty body")
		}
		n := int(body[0])
		if len(body) < 1+n {
			return nil, fmt.Errorf("codec: string attribute: truncated (want %d bytes)", n)
		}
		return build(string(body[1 : 1+n])), nil
	}
}

func encodeStringValue(s string) ([]byte, error) {
	if len(s) > 0xFF {
		return nil, fmt.Errorf("codec: attribute string too long (%d bytes)", len(s))
	}
	out := make([]byte, 0, 1+len(s))
	out = append(out, byte(len(s)))
	out = append(out, s...)
	return out, nil
}

// SerialNoAttribute is the device's factory-assigned serial number.
type SerialNoAttribute struct{ Value string }

func (SerialNoAttribute) AttributeID() byte           { return AttributeSerialNo }
func (a SerialNoAttribute) FormattedValue() string    { return a.Value }
func (a SerialNoAttribute) encode() ([]byte, error)   { return encodeStringValue(a.Value) }

// VendorAttribute identifies the device manufacturer.
type VendorAttribute struct{ Value string }

func (VendorAttribute) AttributeID() byte         { return AttributeVendor }
func (a VendorAttribute) FormattedValue() string  { return a.Value }
func (a VendorAttribute) encode() ([]byte, error) { return encodeStringValue(a.Value) }

// ModelAttribute identifies the device model.
type ModelAttribute struct{ Value string }

func (ModelAttribute) AttributeID() byte         { return AttributeModel }
func (a ModelAttribute) FormattedValue() string  { return a.Value }
func (a ModelAttribute) encode() ([]byte, error) { return encodeStringValue(a.Value) }

// FirmwareVersionAttribute is a free-form firmware version string.
type FirmwareVersionAttribute struct{ Value string }

func (FirmwareVersionAttribute) AttributeID() byte         { return AttributeFirmwareVersion }
func (a FirmwareVersionAttribute) FormattedValue() string  { return a.Value }
func (a FirmwareVersionAttribute) encode() ([]byte, error) { return encodeStringValue(a.Value) }

// BluetoothMACAttribute is the device's Bluetooth MAC address.
type BluetoothMACAttribute struct{ Value [6]byte }

func (BluetoothMACAttribute) AttributeID() byte { return AttributeBluetoothMAC }

func (a BluetoothMACAttribute) FormattedValue() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
		a.Value[0], a.Value[1], a.Value[2], a.Value[3], a.Value[4], a.Value[5])
}

func (a BluetoothMACAttribute) encode() ([]byte, error) {
	return append([]byte(nil), a.Value[:]...), nil
}

// BatteryLevelAttribute is the battery charge percentage, 0-100.
type BatteryLevelAttribute struct{ Value uint8 }

func (BatteryLevelAttribute) AttributeID() byte        { return AttributeBatteryLevel }
func (a BatteryLevelAttribute) FormattedValue() string { return fmt.Sprintf("%d%%", a.Value) }
func (a BatteryLevelAttribute) encode() ([]byte, error) { return []byte{a.Value}, nil }

// HeartrateAttribute is the most recently measured heart rate in bpm.
type HeartrateAttribute struct{ Value uint16 }

func (HeartrateAttribute) AttributeID() byte        { return AttributeHeartrate }
func (a HeartrateAttribute) FormattedValue() string { return fmt.Sprintf("%d bpm", a.Value) }

func (a HeartrateAttribute) encode() ([]byte, error) {
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, a.Value)
	return out, nil
}

// ChargeStateAttribute reports whether the device is currently charging.
type ChargeStateAttribute struct{ Value bool }

func (ChargeStateAttribute) AttributeID() byte        { return AttributeChargeState }
func (a ChargeStateAttribute) FormattedValue() string { return fmt.Sprintf("%v", a.Value) }

func (a ChargeStateAttribute) encode() ([]byte, error) {
	if a.Value {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

// TemperatureAttribute is skin/ambient temperature, in tenths of a degree
// Celsius as carried on the wire.
type TemperatureAttribute struct{ RawTenthsCelsius int16 }

func (TemperatureAttribute) AttributeID() byte { return AttributeTemperature }

// TempCelsius converts the raw wire value to degrees Celsius.
func (a TemperatureAttribute) TempCelsius() float64 {
	return float64(a.RawTenthsCelsius) / 10.0
}

func (a TemperatureAttribute) FormattedValue() string {
	return fmt.Sprintf("%.1f°C", a.TempCelsius())
}

func (a TemperatureAttribute) encode() ([]byte, error) {
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, uint16(a.RawTenthsCelsius))
	return out, nil
}

// CurrentTimeAttribute is the device clock, epoch milliseconds UTC.
type CurrentTimeAttribute struct{ EpochMillis int64 }

func (CurrentTimeAttribute) AttributeID() byte        { return AttributeCurrentTime }
func (a CurrentTimeAttribute) FormattedValue() string { return fmt.Sprintf("%d", a.EpochMillis) }

func (a CurrentTimeAttribute) encode() ([]byte, error) {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, uint64(a.EpochMillis))
	return out, nil
}

// TraceLevelAttribute controls the verbosity of on-device diagnostic
// logging; higher is more verbose.
type TraceLevelAttribute struct{ Value uint8 }

func (TraceLevelAttribute) AttributeID() byte        { return AttributeTraceLevel }
func (a TraceLevelAttribute) FormattedValue() string { return fmt.Sprintf("%d", a.Value) }
func (a TraceLevelAttribute) encode() ([]byte, error) { return []byte{a.Value}, nil }

// GetAttribute requests the current value of a single attribute.
type GetAttribute struct {
	AttributeID byte
}

func (m GetAttribute) Type() byte              { return TypeGetAttribute }
func (m GetAttribute) payload() ([]byte, error) { return []byte{m.AttributeID}, nil }

// GetAttributeResponse carries the requested attribute's current value.
type GetAttributeResponse struct {
	Value Attribute
}

func (m GetAttributeResponse) Type() byte { return TypeGetAttributeResponse }

func (m GetAttributeResponse) payload() ([]byte, error) {
	valueBytes, err := m.Value.encode()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+len(valueBytes))
	out = append(out, m.Value.AttributeID())
	return append(out, valueBytes...), nil
}

// SetAttribute requests that the device adopt a new attribute value.
type SetAttribute struct {
	Value Attribute
}

func (m SetAttribute) Type() byte { return TypeSetAttribute }

func (m SetAttribute) payload() ([]byte, error) {
	valueBytes, err := m.Value.encode()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+len(valueBytes))
	out = append(out, m.Value.AttributeID())
	return append(out, valueBytes...), nil
}

// SetAttributeResponse acknowledges SetAttribute, echoing the attribute ID.
type SetAttributeResponse struct {
	AttributeID byte
}

func (m SetAttributeResponse) Type() byte              { return TypeSetAttributeResponse }
func (m SetAttributeResponse) payload() ([]byte, error) { return []byte{m.AttributeID}, nil }

func init() {
	registerDecoder(TypeGetAttribute, func(body []byte) (Message, error) {
		if len(body) < 1 {
			return nil, fmt.Errorf("codec: GetAttribute: empty body")
		}
		return GetAttribute{AttributeID: body[0]}, nil
	})
	registerDecoder(TypeGetAttributeResponse, func(body []byte) (Message, error) {
		if len(body) < 1 {
			return nil, fmt.Errorf("codec: GetAttributeResponse: empty body")
		}
		decodeFn, ok := attributeDecoders[body[0]]
		if !ok {
			return nil, fmt.Errorf("codec: GetAttributeResponse: unknown attribute id 0x%02x", body[0])
		}
		attr, err := decodeFn(body[1:])
		if err != nil {
			return nil, err
		}
		return GetAttributeResponse{Value: attr}, nil
	})
	registerDecoder(TypeSetAttribute, func(body []byte) (Message, error) {
		if len(body) < 1 {
			return nil, fmt.Errorf("codec: SetAttribute: empty body")
		}
		decodeFn, ok := attributeDecoders[body[0]]
		if !ok {
			return nil, fmt.Errorf("codec: SetAttribute: unknown attribute id 0x%02x", body[0])
		}
		attr, err := decodeFn(body[1:])
		if err != nil {
			return nil, err
		}
		return SetAttribute{Value: attr}, nil
	})
	registerDecoder(TypeSetAttributeResponse, func(body []byte) (Message, error) {
		if len(body) < 1 {
			return nil, fmt.Errorf("codec: SetAttributeResponse: empty body")
		}
		return SetAttributeResponse{AttributeID: body[0]}, nil
	})
}
