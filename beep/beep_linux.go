//go:build linux

package beep

import (
	"fmt"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

// sliceReader hands interleaved stereo samples to pulse until exhausted.
type sliceReader struct {
	samples []int16
}

func (r *sliceReader) read(buf []int16) (int, error) {
	if len(r.samples) == 0 {
		return 0, pulse.EndOfData
	}
	n := copy(buf, r.samples)
	r.samples = r.samples[n:]
	return n, nil
}

// playSamples opens a short-lived pulse connection so a cue never holds
// the server between sessions.
func playSamples(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	client, err := pulse.NewClient(pulse.ClientApplicationName("livescribe"))
	if err != nil {
		return fmt.Errorf("pulse connect: %w", err)
	}
	defer client.Close()

	full := uint32(proto.VolumeNorm)
	src := &sliceReader{samples: samples}
	stream, err := client.NewPlayback(pulse.Int16Reader(src.read),
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{full, full}
		}),
	)
	if err != nil {
		return fmt.Errorf("pulse playback: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	stream.Stop()
	return stream.Error()
}
