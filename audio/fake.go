package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync"
	"time"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
	fakeSampleRate    = 16000
)

// FakeContext replays canned PCM as a single microphone. Set Denied to make
// it behave like a source the process may not open.
type FakeContext struct {
	Denied    bool
	NoDevices bool

	pcm      []byte
	realtime bool

	mu       sync.Mutex
	captures []*FakeCapture
}

func NewFakeContext(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

// LoadFakeContext replays the samples of a 16 kHz mono PCM16 WAV file.
// With realtime set, audio is delivered at the recording's own pace.
func LoadFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("reading wav: %w", err)
	}
	if len(data) < WAVHeaderSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%s: not a WAV file", wavPath)
	}
	return NewFakeContext(data[WAVHeaderSize:], realtime), nil
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	if f.Denied {
		return nil, ErrAccessDenied
	}
	if f.NoDevices {
		return nil, nil
	}
	return []DeviceInfo{{ID: "fake", Name: "Fake Microphone"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(device *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	if f.Denied {
		return nil, ErrAccessDenied
	}
	c := &FakeCapture{pcm: f.pcm, realtime: f.realtime, audioDone: make(chan struct{})}
	f.mu.Lock()
	f.captures = append(f.captures, c)
	f.mu.Unlock()
	return c, nil
}

// Captures returns every capture opened so far, oldest first.
func (f *FakeContext) Captures() []*FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeCapture(nil), f.captures...)
}

type FakeCapture struct {
	pcm       []byte
	realtime  bool
	audioDone chan struct{}

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
	started  bool
	stopped  bool
	closed   bool
}

// AudioDone is closed once all canned PCM has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "Fake Microphone" }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
	return end
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	f.started = true
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	f.mu.Unlock()

	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	interval := time.Duration(fakeFrameSize) * time.Second / fakeSampleRate
	if !f.realtime {
		interval = time.Millisecond
	}

	go func() {
		defer close(f.feedDone)
		pos := 0
		for {
			select {
			case <-f.stopCh:
				return
			default:
			}

			if pos < len(f.pcm) {
				if cb := f.callback(); cb != nil {
					pos = f.feedChunk(cb, pos, chunkBytes)
					if pos >= len(f.pcm) {
						close(f.audioDone)
					}
				}
			}

			select {
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	if f.stopped || f.stopCh == nil {
		f.stopped = true
		f.mu.Unlock()
		return
	}
	f.stopped = true
	close(f.stopCh)
	done := f.feedDone
	f.mu.Unlock()
	<-done
}

func (f *FakeCapture) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *FakeCapture) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func (f *FakeCapture) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Tone returns d of 16 kHz mono PCM: a 440 Hz sine at the given amplitude
// (0..1). Amplitude 0 yields silence.
func Tone(d time.Duration, amplitude float64) []byte {
	n := int(d.Seconds() * fakeSampleRate)
	out := make([]byte, n*fakeBytesPerFrame)
	for i := 0; i < n; i++ {
		v := amplitude * math.Sin(2*math.Pi*440*float64(i)/fakeSampleRate)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*32767)))
	}
	return out
}
