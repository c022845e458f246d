// Package beep plays short audible cues when listening starts, when a
// result lands and when a session fails.
package beep

import (
	"math"
	"sync"

	"livescribe/log"
	"livescribe/session"
)

type Cue int

const (
	CueStart Cue = iota
	CueEnd
	CueError
)

const (
	sampleRate = 44100

	// Start beep: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End beep: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error beep: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

var (
	cueOnce    sync.Once
	cueSamples [3][]int16
)

// Samples returns the interleaved stereo samples for c at 44.1 kHz.
func Samples(c Cue) []int16 {
	cueOnce.Do(func() {
		cueSamples[CueStart] = tick(startFreq, 0.2, startVolume, startDecay)
		cueSamples[CueEnd] = tick(endFreq, 0.2, endVolume, endDecay)
		cueSamples[CueError] = doubleBeep(errorFreq, 0.08, 0.05, errorVolume, errorDecay)
	})
	return cueSamples[c]
}

func tick(freq, duration, volume, decay float64) []int16 {
	n := int(sampleRate * duration)
	samples := make([]int16, n*2)
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRate
		s := int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * math.Exp(-t*decay))
		samples[i*2] = s
		samples[i*2+1] = s
	}
	return samples
}

func doubleBeep(freq, beepDur, gapDur, volume, decay float64) []int16 {
	b := tick(freq, beepDur, volume, decay)
	gap := make([]int16, int(sampleRate*gapDur)*2)
	out := make([]int16, 0, len(b)*2+len(gap))
	out = append(out, b...)
	out = append(out, gap...)
	return append(out, b...)
}

// Player turns transcript updates into cues. Playback runs on its own
// goroutine and one cue at a time; a cue arriving mid-playback is dropped.
type Player struct {
	play func([]int16) error

	mu   sync.Mutex
	busy bool
}

func NewPlayer() *Player {
	return &Player{play: playSamples}
}

func (p *Player) Observe(u session.Update) {
	switch u.Kind {
	case session.UpdateReady:
		p.Play(CueStart)
	case session.UpdateFinal:
		p.Play(CueEnd)
	case session.UpdateError:
		p.Play(CueError)
	}
}

func (p *Player) Play(c Cue) {
	p.mu.Lock()
	if p.busy {
		p.mu.Unlock()
		return
	}
	p.busy = true
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			p.busy = false
			p.mu.Unlock()
		}()
		if err := p.play(Samples(c)); err != nil {
			log.Warnf("beep: %v", err)
		}
	}()
}
