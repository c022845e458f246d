package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const WAVHeaderSize = 44

var (
	// ErrNoDevices means the platform reported no capture sources at all.
	ErrNoDevices = errors.New("no capture devices found")
	// ErrAccessDenied means the audio server refused to list or open sources.
	ErrAccessDenied = errors.New("microphone access denied")
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

// amplify scales samples by gain, clamps to int16 and returns them as
// little-endian PCM16.
func amplify(samples []int16, gain int32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(s) * gain
		v = max(min(v, 32767), -32768)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// CheckAccess reports whether the process may record from ctx. It stands in
// for the runtime microphone permission prompt: enumeration failure counts
// as a denial.
func CheckAccess(ctx Context) error {
	if ctx == nil {
		return ErrAccessDenied
	}
	devices, err := ctx.Devices()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	if len(devices) == 0 {
		return ErrNoDevices
	}
	return nil
}

// FindDevice looks a device up by exact name, then by case-insensitive
// substring. An empty name selects the system default (nil).
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	lower := strings.ToLower(name)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), lower) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no capture device matches %q", name)
}
