// Package encoder holds the capture format shared by every backend and
// packs utterances as FLAC for upload.
package encoder

import "encoding/binary"

// Capture format: 16 kHz mono signed 16-bit little endian.
const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// BytesPerMs is the PCM byte rate per millisecond of audio.
const BytesPerMs = SampleRate * Channels * (BitsPerSample / 8) / 1000

// AppendSamples decodes little-endian PCM16 onto dst. A trailing odd byte
// is ignored.
func AppendSamples(dst []int16, pcm []byte) []int16 {
	for i := 0; i+1 < len(pcm); i += 2 {
		dst = append(dst, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	return dst
}
