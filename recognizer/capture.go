package recognizer

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"livescribe/audio"
	"livescribe/encoder"
)

// speechLevel is the RMS below which a session counts as silent.
const speechLevel = 0.02

// capture owns one audio.CaptureDevice for the life of a session.
type capture struct {
	dev  audio.CaptureDevice
	once sync.Once
}

func openCapture(cfg Config, feed func(pcm []byte, level float64)) (*capture, error) {
	dev, err := cfg.Audio.NewCapture(cfg.Device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAudio, err)
	}
	dev.SetCallback(func(data []byte, _ uint32) {
		if len(data) == 0 {
			return
		}
		pcm := make([]byte, len(data))
		copy(pcm, data)
		feed(pcm, rmsLevel(pcm))
	})
	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		dev.Close()
		return nil, fmt.Errorf("%w: %v", ErrAudio, err)
	}
	return &capture{dev: dev}, nil
}

func (c *capture) close() {
	if c == nil {
		return
	}
	c.once.Do(func() {
		c.dev.Stop()
		c.dev.ClearCallback()
		c.dev.Close()
	})
}

func rmsLevel(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}
	var sumSquares float64
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(pcm[i:]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(len(pcm)/2))
}
