//go:build !linux

package audio

import (
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

type malgoContext struct {
	ctx *malgo.AllocatedContext
}

// NewContext initializes miniaudio with the platform's default backend.
// Initialization failure is reported as ErrAccessDenied.
func NewContext() (Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	return &malgoContext{ctx: ctx}, nil
}

func (m *malgoContext) Devices() ([]DeviceInfo, error) {
	infos, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	devices := make([]DeviceInfo, 0, len(infos))
	for _, d := range infos {
		devices = append(devices, DeviceInfo{
			ID:   hex.EncodeToString(d.ID.Pointer()[:]),
			Name: d.Name(),
		})
	}
	return devices, nil
}

// malgoDeviceID reverses the hex encoding used by Devices.
func malgoDeviceID(info *DeviceInfo) (*malgo.DeviceID, error) {
	raw, err := hex.DecodeString(info.ID)
	if err != nil {
		return nil, fmt.Errorf("device %q: bad id: %w", info.Name, err)
	}
	var id malgo.DeviceID
	copy(id[:], raw)
	return &id, nil
}

func (m *malgoContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	dc := malgo.DefaultDeviceConfig(malgo.Capture)
	dc.Capture.Format = malgo.FormatS16
	dc.Capture.Channels = config.Channels
	dc.SampleRate = config.SampleRate
	if device != nil {
		id, err := malgoDeviceID(device)
		if err != nil {
			return nil, err
		}
		dc.Capture.DeviceID = id.Pointer()
	}

	c := &malgoCapture{info: device}
	dev, err := malgo.InitDevice(m.ctx.Context, dc, malgo.DeviceCallbacks{Data: c.data})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	c.device = dev
	return c, nil
}

func (m *malgoContext) Close() {
	m.ctx.Uninit()
	m.ctx.Free()
}

type malgoCapture struct {
	device *malgo.Device
	info   *DeviceInfo
	cb     atomic.Pointer[DataCallback]
}

func (c *malgoCapture) data(_, in []byte, frames uint32) {
	if cb := c.cb.Load(); cb != nil {
		(*cb)(in, frames)
	}
}

func (c *malgoCapture) Start() error { return c.device.Start() }

func (c *malgoCapture) Stop() { c.device.Stop() }

func (c *malgoCapture) Close() { c.device.Uninit() }

func (c *malgoCapture) SetCallback(cb DataCallback) { c.cb.Store(&cb) }

func (c *malgoCapture) ClearCallback() { c.cb.Store(nil) }

func (c *malgoCapture) DeviceName() string {
	if c.info != nil {
		return c.info.Name
	}
	return "system default"
}
