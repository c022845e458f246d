package recognizer

import (
	"context"
	"strings"
	"sync"
	"time"

	"livescribe/encoder"
	"livescribe/log"
)

const batchRequestTimeout = 45 * time.Second

type transcribeFunc func(ctx context.Context, flac []byte, locale string) (string, error)

// batchSession records until Stop, then uploads the whole utterance. With
// PartialEvery set it also uploads the audio so far on a timer and reports
// the result as a Partial.
type batchSession struct {
	id            string
	req           Request
	out           *emitter
	transcribe    transcribeFunc
	speechTimeout time.Duration
	maxDuration   time.Duration
	partialEvery  time.Duration

	mu       sync.Mutex
	cap      *capture
	samples  []int16
	peak     float64
	stopping bool
	opened   bool // capture published; Stop finishes from here on
	inflight bool

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func newBatchSession(ctx context.Context, id string, req Request, emit Listener, cfg Config, transcribe transcribeFunc) *batchSession {
	ctx, cancel := context.WithCancel(ctx)
	return &batchSession{
		id:            id,
		req:           req,
		out:           newEmitter(emit),
		transcribe:    transcribe,
		speechTimeout: cfg.speechTimeout(),
		maxDuration:   cfg.maxDuration(),
		partialEvery:  cfg.PartialEvery,
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (b *batchSession) run(open openFunc) {
	c, err := open(b.feed)
	if err != nil {
		b.fail(err)
		return
	}
	// Exactly one of run and Stop sees the other's flag under mu, so
	// exactly one of them calls finish.
	b.mu.Lock()
	b.cap = c
	b.opened = true
	stopping := b.stopping
	b.mu.Unlock()

	if !b.out.live(Ready(b.id)) {
		c.close()
		return
	}
	if stopping {
		b.finish()
		return
	}
	go b.watch()
}

func (b *batchSession) feed(pcm []byte, level float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopping {
		return
	}
	b.samples = encoder.AppendSamples(b.samples, pcm)
	if level > b.peak {
		b.peak = level
	}
}

func (b *batchSession) Stop() {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.stopping = true
		opened := b.opened
		b.mu.Unlock()
		if opened {
			go b.finish()
		}
	})
}

func (b *batchSession) abort() {
	if b.out.end(nil) {
		b.cleanup()
	}
}

func (b *batchSession) watch() {
	silence := time.NewTimer(b.speechTimeout)
	defer silence.Stop()
	limit := time.NewTimer(b.maxDuration)
	defer limit.Stop()

	var tick <-chan time.Time
	if b.partialEvery > 0 && b.req.PartialResults {
		t := time.NewTicker(b.partialEvery)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-b.out.done:
			return
		case <-silence.C:
			if b.peakLevel() < speechLevel {
				b.fail(ErrNoSpeech)
				return
			}
		case <-limit.C:
			b.Stop()
			return
		case <-tick:
			b.uploadPartial()
		}
	}
}

func (b *batchSession) uploadPartial() {
	b.mu.Lock()
	if b.inflight || b.stopping || b.peak < speechLevel || len(b.samples) == 0 {
		b.mu.Unlock()
		return
	}
	b.inflight = true
	snapshot := make([]int16, len(b.samples))
	copy(snapshot, b.samples)
	b.mu.Unlock()

	go func() {
		defer func() {
			b.mu.Lock()
			b.inflight = false
			b.mu.Unlock()
		}()
		text, err := b.upload(snapshot)
		if err != nil {
			log.Warnf("partial upload failed: %v", err)
			return
		}
		if text != "" {
			b.out.live(Partial(b.id, text))
		}
	}()
}

func (b *batchSession) finish() {
	b.mu.Lock()
	c := b.cap
	b.stopping = true
	b.mu.Unlock()
	c.close()

	b.mu.Lock()
	samples, peak := b.samples, b.peak
	b.mu.Unlock()

	if peak < speechLevel {
		b.fail(ErrNoSpeech)
		return
	}
	text, err := b.upload(samples)
	if err != nil {
		b.fail(err)
		return
	}
	if text == "" {
		b.fail(ErrNoMatch)
		return
	}
	ev := Final(b.id, text)
	if b.out.end(&ev) {
		b.cleanup()
	}
}

func (b *batchSession) upload(samples []int16) (string, error) {
	data, err := encoder.EncodePCM(samples)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(b.ctx, batchRequestTimeout)
	defer cancel()
	text, err := b.transcribe(ctx, data, b.req.Locale)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (b *batchSession) peakLevel() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peak
}

func (b *batchSession) fail(err error) {
	ev := Failure(b.id, Classify(err), err.Error())
	if b.out.end(&ev) {
		log.Warnf("batch session %s failed: %v", b.id, err)
		b.cleanup()
	}
}

func (b *batchSession) cleanup() {
	b.mu.Lock()
	c := b.cap
	b.stopping = true
	b.mu.Unlock()
	c.close()
	b.cancel()
}
