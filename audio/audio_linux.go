//go:build linux

package audio

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

const (
	pulseGain    = 8
	pulseLatency = 0.05 // seconds
)

type pulseContext struct {
	client *pulse.Client
}

// NewContext connects to the PulseAudio (or PipeWire-pulse) server. A
// refused connection is reported as ErrAccessDenied.
func NewContext() (Context, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("livescribe"))
	if err != nil {
		return nil, fmt.Errorf("%w: pulse: %v", ErrAccessDenied, err)
	}
	return &pulseContext{client: c}, nil
}

func (p *pulseContext) Devices() ([]DeviceInfo, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	devices := make([]DeviceInfo, 0, len(sources))
	for _, s := range sources {
		if strings.HasSuffix(s.ID(), ".monitor") {
			continue // playback loopback
		}
		devices = append(devices, DeviceInfo{ID: s.ID(), Name: s.Name()})
	}
	return devices, nil
}

func (p *pulseContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	return &pulseCapture{client: p.client, device: device, config: config}, nil
}

func (p *pulseContext) Close() { p.client.Close() }

type pulseCapture struct {
	client *pulse.Client
	device *DeviceInfo
	config CaptureConfig
	cb     atomic.Pointer[DataCallback]

	mu     sync.Mutex
	stream *pulse.RecordStream
}

func (c *pulseCapture) recordOptions() ([]pulse.RecordOption, error) {
	opts := []pulse.RecordOption{
		pulse.RecordSampleRate(int(c.config.SampleRate)),
		pulse.RecordLatency(pulseLatency),
		pulse.RecordRawOption(func(r *proto.CreateRecordStream) {
			r.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm) * 3}
		}),
	}
	if c.config.Channels == 2 {
		opts = append(opts, pulse.RecordStereo)
	} else {
		opts = append(opts, pulse.RecordMono)
	}
	if c.device == nil {
		return opts, nil
	}
	source, err := c.client.SourceByID(c.device.ID)
	if err != nil || source == nil {
		return nil, fmt.Errorf("pulse source %q: %w", c.device.Name, ErrNoDevices)
	}
	return append(opts, pulse.RecordSource(source)), nil
}

func (c *pulseCapture) write(buf []int16) (int, error) {
	if cb := c.cb.Load(); cb != nil && len(buf) > 0 {
		(*cb)(amplify(buf, pulseGain), uint32(len(buf)))
	}
	return len(buf), nil
}

func (c *pulseCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return nil
	}

	opts, err := c.recordOptions()
	if err != nil {
		return err
	}
	stream, err := c.client.NewRecord(pulse.Int16Writer(c.write), opts...)
	if err != nil {
		return fmt.Errorf("pulse record: %w", err)
	}
	stream.Start()
	c.stream = stream
	return nil
}

func (c *pulseCapture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return
	}
	c.stream.Stop()
	c.stream.Close()
	c.stream = nil
}

func (c *pulseCapture) Close() { c.Stop() }

func (c *pulseCapture) SetCallback(cb DataCallback) { c.cb.Store(&cb) }

func (c *pulseCapture) ClearCallback() { c.cb.Store(nil) }

func (c *pulseCapture) DeviceName() string {
	if c.device != nil {
		return c.device.Name
	}
	return "system default"
}
