package encoder

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

var errFinished = errors.New("flac: write after finish")

// Flac packs mono samples into an in-memory FLAC stream. Samples are
// buffered and written as BlockSize frames; Finish flushes the short tail.
// A Flac is not safe for concurrent use.
type Flac struct {
	buf     bytes.Buffer
	enc     *flac.Encoder
	pending []int16
	written uint64
	done    bool
}

func NewFlac() (*Flac, error) {
	f := &Flac{pending: make([]int16, 0, BlockSize)}
	enc, err := flac.NewEncoder(&f.buf, &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    SampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
	})
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	f.enc = enc
	return f, nil
}

// Write queues samples, emitting a frame each time a block fills.
func (f *Flac) Write(samples []int16) error {
	if f.done {
		return errFinished
	}
	for len(samples) > 0 {
		n := min(BlockSize-len(f.pending), len(samples))
		f.pending = append(f.pending, samples[:n]...)
		samples = samples[n:]
		if len(f.pending) == BlockSize {
			if err := f.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *Flac) flush() error {
	if len(f.pending) == 0 {
		return nil
	}
	wide := make([]int32, len(f.pending))
	for i, s := range f.pending {
		wide[i] = int32(s)
	}
	fr := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(wide)),
			SampleRate:    SampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   wide,
			NSamples:  len(wide),
		}},
	}
	if err := f.enc.WriteFrame(fr); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	f.written += uint64(len(wide))
	f.pending = f.pending[:0]
	return nil
}

// Samples reports how many samples have been written as frames.
func (f *Flac) Samples() uint64 { return f.written }

// Finish writes any buffered tail, closes the stream and returns it.
func (f *Flac) Finish() ([]byte, error) {
	if !f.done {
		f.done = true
		if err := f.flush(); err != nil {
			return nil, err
		}
		if err := f.enc.Close(); err != nil {
			return nil, fmt.Errorf("closing flac encoder: %w", err)
		}
	}
	return f.buf.Bytes(), nil
}

// EncodePCM encodes a whole utterance of 16 kHz mono samples.
func EncodePCM(samples []int16) ([]byte, error) {
	f, err := NewFlac()
	if err != nil {
		return nil, err
	}
	if err := f.Write(samples); err != nil {
		return nil, err
	}
	return f.Finish()
}
