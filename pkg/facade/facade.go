// Package facade exposes the device's request/response protocol as typed
// Go methods: get/set accessors for device attributes, file operations,
// and bounded-retry wrappers around the flakier of those. It never talks
// to a Link directly; all traffic goes through a *link.Core.
package facade

import (
	"time"

	"github.com/aidee-health/embody-serial-go/pkg/codec"
	"github.com/aidee-health/embody-serial-go/pkg/link"
)

// DefaultTimeout is used for every request unless overridden with
// WithTimeout.
const DefaultTimeout = 5 * time.Second

// Option configures a Facade at construction time.
type Option func(*Facade)

// WithTimeout overrides DefaultTimeout for every request this Facade makes.
func WithTimeout(d time.Duration) Option {
	return func(f *Facade) { f.timeout = d }
}

// Facade is the typed-request adapter over a link.Core.
type Facade struct {
	core    *link.Core
	timeout time.Duration
}

// New builds a Facade over an already-running Core.
func New(core *link.Core, opts ...Option) *Facade {
	f := &Facade{core: core, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Facade) send(request string, msg codec.Message) (codec.Message, error) {
	resp, ok := f.core.Send(msg, f.timeout)
	if !ok {
		return nil, &MissingResponseError{Request: request}
	}
	if nack, isNack := resp.(codec.NackResponse); isNack {
		return nil, &NackError{Request: request, ResponseCode: nack.ResponseCode}
	}
	return resp, nil
}

func (f *Facade) getAttribute(request string, id byte) (codec.Attribute, error) {
	resp, err := f.send(request, codec.GetAttribute{AttributeID: id})
	if err != nil {
		return nil, err
	}
	gar, ok := resp.(codec.GetAttributeResponse)
	if !ok {
		return nil, &UnexpectedResponseTypeError{Request: request, Got: resp}
	}
	return gar.Value, nil
}

func (f *Facade) setAttribute(request string, value codec.Attribute) error {
	resp, err := f.send(request, codec.SetAttribute{Value: value})
	if err != nil {
		return err
	}
	if _, ok := resp.(codec.SetAttributeResponse); !ok {
		return &UnexpectedResponseTypeError{Request: request, Got: resp}
	}
	return nil
}

// GetSerialNo returns the device's serial number.
func (f *Facade) GetSerialNo() (string, error) {
	attr, err := f.getAttribute("GetSerialNo", codec.AttributeSerialNo)
	if err != nil {
		return "", err
	}
	v, ok := attr.(codec.SerialNoAttribute)
	if !ok {
		return "", &UnexpectedResponseTypeError{Request: "GetSerialNo", Got: attr}
	}
	return v.Value, nil
}

// GetVendor returns the device manufacturer string.
func (f *Facade) GetVendor() (string, error) {
	attr, err := f.getAttribute("GetVendor", codec.AttributeVendor)
	if err != nil {
		return "", err
	}
	v, ok := attr.(codec.VendorAttribute)
	if !ok {
		return "", &UnexpectedResponseTypeError{Request: "GetVendor", Got: attr}
	}
	return v.Value, nil
}

// GetModel returns the device model string.
func (f *Facade) GetModel() (string, error) {
	attr, err := f.getAttribute("GetModel", codec.AttributeModel)
	if err != nil {
		return "", err
	}
	v, ok := attr.(codec.ModelAttribute)
	if !ok {
		return "", &UnexpectedResponseTypeError{Request: "GetModel", Got: attr}
	}
	return v.Value, nil
}

// GetFirmwareVersion returns the device's firmware version string.
func (f *Facade) GetFirmwareVersion() (string, error) {
	attr, err := f.getAttribute("GetFirmwareVersion", codec.AttributeFirmwareVersion)
	if err != nil {
		return "", err
	}
	v, ok := attr.(codec.FirmwareVersionAttribute)
	if !ok {
		return "", &UnexpectedResponseTypeError{Request: "GetFirmwareVersion", Got: attr}
	}
	return v.Value, nil
}

// GetBluetoothMAC returns the device's Bluetooth MAC address, formatted
// colon-separated (e.g. "DE:AD:BE:EF:00:01").
func (f *Facade) GetBluetoothMAC() (string, error) {
	attr, err := f.getAttribute("GetBluetoothMAC", codec.AttributeBluetoothMAC)
	if err != nil {
		return "", err
	}
	v, ok := attr.(codec.BluetoothMACAttribute)
	if !ok {
		return "", &UnexpectedResponseTypeError{Request: "GetBluetoothMAC", Got: attr}
	}
	return v.FormattedValue(), nil
}

// GetBatteryLevel returns the device's battery level as a percentage.
func (f *Facade) GetBatteryLevel() (uint8, error) {
	attr, err := f.getAttribute("GetBatteryLevel", codec.AttributeBatteryLevel)
	if err != nil {
		return 0, err
	}
	v, ok := attr.(codec.BatteryLevelAttribute)
	if !ok {
		return 0, &UnexpectedResponseTypeError{Request: "GetBatteryLevel", Got: attr}
	}
	return v.Value, nil
}

// GetHeartRate returns the most recent heart rate reading, in BPM.
func (f *Facade) GetHeartRate() (uint16, error) {
	attr, err := f.getAttribute("GetHeartRate", codec.AttributeHeartrate)
	if err != nil {
		return 0, err
	}
	v, ok := attr.(codec.HeartrateAttribute)
	if !ok {
		return 0, &UnexpectedResponseTypeError{Request: "GetHeartRate", Got: attr}
	}
	return v.Value, nil
}

// GetChargeState reports whether the device is currently charging.
func (f *Facade) GetChargeState() (bool, error) {
	attr, err := f.getAttribute("GetChargeState", codec.AttributeChargeState)
	if err != nil {
		return false, err
	}
	v, ok := attr.(codec.ChargeStateAttribute)
	if !ok {
		return false, &UnexpectedResponseTypeError{Request: "GetChargeState", Got: attr}
	}
	return v.Value, nil
}

// GetTemperature returns the device's skin temperature in degrees Celsius.
func (f *Facade) GetTemperature() (float64, error) {
	attr, err := f.getAttribute("GetTemperature", codec.AttributeTemperature)
	if err != nil {
		return 0, err
	}
	v, ok := attr.(codec.TemperatureAttribute)
	if !ok {
		return 0, &UnexpectedResponseTypeError{Request: "GetTemperature", Got: attr}
	}
	return v.TempCelsius(), nil
}

// GetCurrentTime returns the device's clock as a time.Time.
func (f *Facade) GetCurrentTime() (time.Time, error) {
	attr, err := f.getAttribute("GetCurrentTime", codec.AttributeCurrentTime)
	if err != nil {
		return time.Time{}, err
	}
	v, ok := attr.(codec.CurrentTimeAttribute)
	if !ok {
		return time.Time{}, &UnexpectedResponseTypeError{Request: "GetCurrentTime", Got: attr}
	}
	return time.UnixMilli(v.EpochMillis).UTC(), nil
}

// SetCurrentTimestamp sets the device's clock to the local time at the
// moment of the call.
func (f *Facade) SetCurrentTimestamp() error {
	return f.SetTimestamp(time.Now())
}

// SetTimestamp sets the device's clock to t.
func (f *Facade) SetTimestamp(t time.Time) error {
	return f.setAttribute("SetTimestamp", codec.CurrentTimeAttribute{EpochMillis: t.UnixMilli()})
}

// SetTraceLevel sets the device's on-board trace verbosity.
func (f *Facade) SetTraceLevel(level uint8) error {
	return f.setAttribute("SetTraceLevel", codec.TraceLevelAttribute{Value: level})
}

// ListFiles lists the files currently stored on the device.
func (f *Facade) ListFiles() ([]codec.FileRecord, error) {
	resp, err := f.send("ListFiles", codec.ListFiles{})
	if err != nil {
		return nil, err
	}
	lfr, ok := resp.(codec.ListFilesResponse)
	if !ok {
		return nil, &UnexpectedResponseTypeError{Request: "ListFiles", Got: resp}
	}
	return lfr.Files, nil
}

// DeleteFile deletes a single named file from the device.
func (f *Facade) DeleteFile(name string) error {
	resp, err := f.send("DeleteFile", codec.DeleteFile{File: codec.File{Name: name}})
	if err != nil {
		return err
	}
	if _, ok := resp.(codec.DeleteFileResponse); !ok {
		return &UnexpectedResponseTypeError{Request: "DeleteFile", Got: resp}
	}
	return nil
}

// DeleteAllFiles deletes every file stored on the device.
func (f *Facade) DeleteAllFiles() error {
	resp, err := f.send("DeleteAllFiles", codec.DeleteAllFiles{})
	if err != nil {
		return err
	}
	if _, ok := resp.(codec.DeleteAllFilesResponse); !ok {
		return &UnexpectedResponseTypeError{Request: "DeleteAllFiles", Got: resp}
	}
	return nil
}

// ReformatDisk reformats the device's onboard storage, destroying all
// stored files.
func (f *Facade) ReformatDisk() error {
	resp, err := f.send("ReformatDisk", codec.ReformatDisk{})
	if err != nil {
		return err
	}
	if _, ok := resp.(codec.ReformatDiskResponse); !ok {
		return &UnexpectedResponseTypeError{Request: "ReformatDisk", Got: resp}
	}
	return nil
}

// DownloadFile downloads a file of the given size from the device,
// reporting progress to progress if non-nil, and returns the path to a
// local temp file holding its bytes. Entering bulk mode happens before the
// GetFile request is sent, so the device never streams bytes the reader
// isn't yet ready to treat as payload.
func (f *Facade) DownloadFile(name string, size int, timeout time.Duration, progress link.ProgressListener) (string, error) {
	if size == 0 {
		return f.core.DownloadFile(name, 0, timeout, 0, progress)
	}

	session, err := f.core.BeginDownload(name, size, timeout, 0, progress)
	if err != nil {
		return "", err
	}
	f.core.SendAsync(codec.GetFile{File: codec.File{Name: name}})
	return session.Wait()
}
