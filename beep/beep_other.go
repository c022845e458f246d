//go:build !linux

package beep

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

func playSamples(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return err
	}
	defer func() {
		ctx.Uninit()
		ctx.Free()
	}()

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 2
	config.SampleRate = sampleRate

	var (
		pos      int
		doneOnce sync.Once
	)
	done := make(chan struct{})
	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			n := copy(out, data[pos:])
			pos += n
			clear(out[n:])
			if pos >= len(data) {
				doneOnce.Do(func() { close(done) })
			}
		},
	}
	device, err := malgo.InitDevice(ctx.Context, config, callbacks)
	if err != nil {
		return err
	}
	defer device.Uninit()
	if err := device.Start(); err != nil {
		return err
	}

	duration := time.Duration(len(samples)/2) * time.Second / sampleRate
	select {
	case <-done:
		// let the last buffer drain
		time.Sleep(100 * time.Millisecond)
	case <-time.After(duration + time.Second):
	}
	return device.Stop()
}
