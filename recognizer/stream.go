package recognizer

import (
	"context"
	"strings"
	"sync"
	"time"

	"livescribe/encoder"
	"livescribe/log"
)

const (
	streamChunkMs     = 200
	streamChunkBytes  = encoder.BytesPerMs * streamChunkMs
	streamDialTimeout = 10 * time.Second
	streamFinalizeMax = 1500 * time.Millisecond
)

type rawStream interface {
	Send(pcm []byte) error
	CloseSend() error
	Recv() (streamUpdate, error)
	Close() error
}

type streamUpdate struct {
	Alternatives []string // best first
	IsFinal      bool
	SpeechFinal  bool
	FromFinalize bool
}

func (u streamUpdate) top() string {
	if len(u.Alternatives) == 0 {
		return ""
	}
	return u.Alternatives[0]
}

// dialFunc connects a stream whose lifetime is bounded by ctx. The dial
// itself should give up after streamDialTimeout.
type dialFunc func(ctx context.Context) (rawStream, error)
type openFunc func(feed func(pcm []byte, level float64)) (*capture, error)

// streamSession runs one utterance over a streaming backend: interim
// results become Partial events, and the session ends on the backend's
// endpoint (speech_final) or after Stop and the finalize round trip.
type streamSession struct {
	id            string
	req           Request
	out           *emitter
	speechTimeout time.Duration
	maxDuration   time.Duration

	mu        sync.Mutex
	ws        rawStream
	cap       *capture
	feedBuf   []byte
	audioCh   chan []byte
	sendOpen  bool
	stopping  bool
	prefix    string   // committed text before the last final segment
	lastAlts  []string // alternatives of the last final segment
	committed string

	stopOnce      sync.Once
	finalized     chan struct{}
	finalizedOnce sync.Once
	heardCh       chan struct{}
	heardOnce     sync.Once
}

func newStreamSession(id string, req Request, emit Listener, cfg Config) *streamSession {
	return &streamSession{
		id:            id,
		req:           req,
		out:           newEmitter(emit),
		speechTimeout: cfg.speechTimeout(),
		maxDuration:   cfg.maxDuration(),
		audioCh:       make(chan []byte, 128),
		finalized:     make(chan struct{}),
		heardCh:       make(chan struct{}),
	}
}

func (s *streamSession) run(ctx context.Context, dial dialFunc, open openFunc) {
	ws, err := dial(ctx)
	if err != nil {
		s.fail(err)
		return
	}

	s.mu.Lock()
	s.ws = ws
	s.mu.Unlock()
	if s.out.isEnded() {
		ws.Close()
		return
	}
	if !s.out.live(Ready(s.id)) {
		return
	}

	c, err := open(s.feed)
	if err != nil {
		s.fail(err)
		return
	}

	s.mu.Lock()
	s.cap = c
	s.sendOpen = true
	stopping := s.stopping
	s.mu.Unlock()

	go s.runSender(ws)
	go s.runReceiver(ws)
	go s.watch()

	if stopping {
		s.finish()
	}
}

func (s *streamSession) feed(pcm []byte, level float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sendOpen {
		return
	}
	s.feedBuf = append(s.feedBuf, pcm...)
	for len(s.feedBuf) >= streamChunkBytes {
		chunk := make([]byte, streamChunkBytes)
		copy(chunk, s.feedBuf[:streamChunkBytes])
		s.feedBuf = s.feedBuf[streamChunkBytes:]
		select {
		case s.audioCh <- chunk:
		default:
			log.Warn("stream audio backlog full, dropping chunk")
		}
	}
}

// Stop requests finalization. Safe to call before the connection is up.
func (s *streamSession) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopping = true
		connected := s.sendOpen
		s.mu.Unlock()
		if connected {
			go s.finish()
		}
	})
}

// abort ends the session without emitting anything.
func (s *streamSession) abort() {
	if s.out.end(nil) {
		s.cleanup()
	}
}

func (s *streamSession) finish() {
	s.mu.Lock()
	capDev := s.cap
	s.mu.Unlock()
	capDev.close()

	s.mu.Lock()
	if s.sendOpen {
		if len(s.feedBuf) > 0 {
			tail := s.feedBuf
			s.feedBuf = nil
			select {
			case s.audioCh <- tail:
			default:
			}
		}
		s.sendOpen = false
		close(s.audioCh)
	}
	s.mu.Unlock()

	select {
	case <-s.finalized:
	case <-time.After(streamFinalizeMax):
		log.Warn("stream finalize timeout")
	case <-s.out.done:
		return
	}
	s.complete()
}

func (s *streamSession) runSender(ws rawStream) {
	for chunk := range s.audioCh {
		if err := ws.Send(chunk); err != nil {
			s.fail(err)
			return
		}
	}
	if err := ws.CloseSend(); err != nil {
		s.fail(err)
	}
}

func (s *streamSession) runReceiver(ws rawStream) {
	for {
		u, err := ws.Recv()
		if err != nil {
			if !s.out.isEnded() {
				s.fail(err)
			}
			return
		}

		for i := range u.Alternatives {
			u.Alternatives[i] = strings.TrimSpace(u.Alternatives[i])
		}
		top := u.top()
		if top != "" {
			s.heardOnce.Do(func() { close(s.heardCh) })
		}

		if !u.IsFinal && !u.SpeechFinal && !u.FromFinalize {
			if top != "" && s.req.PartialResults {
				s.out.live(Partial(s.id, s.withCommitted(u.Alternatives)...))
			}
			continue
		}

		if top != "" {
			s.commit(u.Alternatives)
			if s.req.PartialResults && !u.SpeechFinal {
				s.out.live(Partial(s.id, s.committedText()))
			}
		}
		if u.FromFinalize {
			s.finalizedOnce.Do(func() { close(s.finalized) })
		}

		s.mu.Lock()
		stopping := s.stopping
		s.mu.Unlock()
		if u.SpeechFinal && !stopping {
			s.complete()
			return
		}
	}
}

func (s *streamSession) watch() {
	silence := time.NewTimer(s.speechTimeout)
	defer silence.Stop()
	limit := time.NewTimer(s.maxDuration)
	defer limit.Stop()

	select {
	case <-s.out.done:
		return
	case <-s.heardCh:
	case <-silence.C:
		s.fail(ErrNoSpeech)
		return
	}

	select {
	case <-s.out.done:
	case <-limit.C:
		s.Stop()
	}
}

func (s *streamSession) withCommitted(alts []string) []string {
	s.mu.Lock()
	prefix := s.committed
	s.mu.Unlock()
	out := make([]string, len(alts))
	for i, a := range alts {
		out[i] = joinText(prefix, a)
	}
	return out
}

func (s *streamSession) commit(alts []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefix = s.committed
	s.lastAlts = alts
	s.committed = joinText(s.committed, alts[0])
}

func (s *streamSession) committedText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// complete ends the session with whatever has been committed.
func (s *streamSession) complete() {
	s.mu.Lock()
	prefix, alts := s.prefix, s.lastAlts
	s.mu.Unlock()

	var ev Event
	if len(alts) == 0 {
		ev = Failure(s.id, CodeNoMatch, "no transcript")
	} else {
		candidates := make([]string, 0, len(alts))
		for _, a := range alts {
			if a != "" {
				candidates = append(candidates, joinText(prefix, a))
			}
		}
		ev = Final(s.id, candidates...)
	}
	if s.out.end(&ev) {
		s.cleanup()
	}
}

func (s *streamSession) fail(err error) {
	ev := Failure(s.id, Classify(err), err.Error())
	if s.out.end(&ev) {
		log.Warnf("stream session %s failed: %v", s.id, err)
		s.cleanup()
	}
}

func (s *streamSession) cleanup() {
	s.mu.Lock()
	capDev, ws := s.cap, s.ws
	if s.sendOpen {
		s.sendOpen = false
		close(s.audioCh)
	}
	s.mu.Unlock()
	capDev.close()
	if ws != nil {
		ws.Close()
	}
}

func joinText(prefix, text string) string {
	switch {
	case prefix == "":
		return text
	case text == "":
		return prefix
	default:
		return prefix + " " + text
	}
}
