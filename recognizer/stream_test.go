package recognizer

import (
	"context"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	"livescribe/audio"
)

type recorder struct {
	ch chan Event
}

func newRecorder() *recorder { return &recorder{ch: make(chan Event, 256)} }

func (r *recorder) listen(ev Event) { r.ch <- ev }

func (r *recorder) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-r.ch:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

// until skips events until one of kind arrives.
func (r *recorder) until(t *testing.T, kind Kind) Event {
	t.Helper()
	for {
		ev := r.next(t)
		if ev.Kind == kind {
			return ev
		}
		if ev.Kind == KindFinal || ev.Kind == KindError {
			t.Fatalf("got terminal %v while waiting for %v", ev, kind)
		}
	}
}

func (r *recorder) quiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case ev := <-r.ch:
		t.Fatalf("unexpected event %v", ev)
	case <-time.After(d):
	}
}

type scriptStream struct {
	updates    chan streamUpdate
	errs       chan error
	closed     chan struct{}
	closeOnce  sync.Once
	onFinalize func(*scriptStream)

	mu        sync.Mutex
	sent      int
	finalized bool
}

func newScriptStream() *scriptStream {
	return &scriptStream{
		updates: make(chan streamUpdate, 16),
		errs:    make(chan error, 1),
		closed:  make(chan struct{}),
	}
}

func (s *scriptStream) Send(pcm []byte) error {
	s.mu.Lock()
	s.sent += len(pcm)
	s.mu.Unlock()
	return nil
}

func (s *scriptStream) CloseSend() error {
	s.mu.Lock()
	s.finalized = true
	s.mu.Unlock()
	if s.onFinalize != nil {
		s.onFinalize(s)
	}
	return nil
}

func (s *scriptStream) Recv() (streamUpdate, error) {
	select {
	case u := <-s.updates:
		return u, nil
	case err := <-s.errs:
		return streamUpdate{}, err
	case <-s.closed:
		return streamUpdate{}, io.EOF
	}
}

func (s *scriptStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *scriptStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type streamFixture struct {
	sess   *streamSession
	stream *scriptStream
	audio  *audio.FakeContext
	rec    *recorder
}

func startStream(t *testing.T, req Request, cfg Config, dialErr error) *streamFixture {
	t.Helper()
	f := &streamFixture{
		stream: newScriptStream(),
		audio:  audio.NewFakeContext(audio.Tone(300*time.Millisecond, 0.5), true),
		rec:    newRecorder(),
	}
	if cfg.SpeechTimeout == 0 {
		cfg.SpeechTimeout = 5 * time.Second
	}
	cfg.Audio = f.audio
	f.sess = newStreamSession("s1", req, f.rec.listen, cfg)

	dial := func(context.Context) (rawStream, error) {
		if dialErr != nil {
			return nil, dialErr
		}
		return f.stream, nil
	}
	open := func(feed func([]byte, float64)) (*capture, error) { return openCapture(cfg, feed) }
	go f.sess.run(context.Background(), dial, open)
	t.Cleanup(f.sess.abort)
	return f
}

var dictation = Request{LanguageModel: LanguageModelFreeForm, Locale: "en", PartialResults: true}

func TestStreamInterimThenEndpoint(t *testing.T) {
	f := startStream(t, dictation, Config{}, nil)

	if ev := f.rec.next(t); ev.Kind != KindReady || ev.Session != "s1" {
		t.Fatalf("first event = %v, want ready", ev)
	}

	f.stream.updates <- streamUpdate{Alternatives: []string{"hel", "hell"}}
	ev := f.rec.until(t, KindPartial)
	if !reflect.DeepEqual(ev.Candidates, []string{"hel", "hell"}) {
		t.Errorf("partial = %v", ev.Candidates)
	}

	f.stream.updates <- streamUpdate{Alternatives: []string{" hello world ", "hello word"}, IsFinal: true, SpeechFinal: true}
	ev = f.rec.until(t, KindFinal)
	if !reflect.DeepEqual(ev.Candidates, []string{"hello world", "hello word"}) {
		t.Errorf("final = %v", ev.Candidates)
	}

	f.rec.quiet(t, 100*time.Millisecond)
	if !f.stream.isClosed() {
		t.Error("stream not closed after final")
	}
	for _, c := range f.audio.Captures() {
		if !c.Stopped() {
			t.Error("capture still running after final")
		}
	}
}

func TestStreamCommitsSegments(t *testing.T) {
	f := startStream(t, dictation, Config{}, nil)
	f.rec.until(t, KindReady)

	f.stream.updates <- streamUpdate{Alternatives: []string{"first part"}, IsFinal: true}
	if ev := f.rec.until(t, KindPartial); ev.Candidates[0] != "first part" {
		t.Errorf("committed partial = %v", ev.Candidates)
	}

	f.stream.updates <- streamUpdate{Alternatives: []string{"sec"}}
	if ev := f.rec.until(t, KindPartial); ev.Candidates[0] != "first part sec" {
		t.Errorf("interim partial = %v", ev.Candidates)
	}

	f.stream.updates <- streamUpdate{Alternatives: []string{"second", "seconds"}, IsFinal: true, SpeechFinal: true}
	ev := f.rec.until(t, KindFinal)
	want := []string{"first part second", "first part seconds"}
	if !reflect.DeepEqual(ev.Candidates, want) {
		t.Errorf("final = %v, want %v", ev.Candidates, want)
	}
}

func TestStreamNoPartialsWhenDisabled(t *testing.T) {
	req := dictation
	req.PartialResults = false
	f := startStream(t, req, Config{}, nil)
	f.rec.until(t, KindReady)

	f.stream.updates <- streamUpdate{Alternatives: []string{"hel"}}
	f.stream.updates <- streamUpdate{Alternatives: []string{"hello"}, IsFinal: true, SpeechFinal: true}
	if ev := f.rec.next(t); ev.Kind != KindFinal {
		t.Errorf("got %v, want final with no partials before it", ev)
	}
}

func TestStreamStopFinalizes(t *testing.T) {
	f := startStream(t, dictation, Config{}, nil)
	f.stream.onFinalize = func(s *scriptStream) {
		s.updates <- streamUpdate{Alternatives: []string{"stopped here"}, IsFinal: true, FromFinalize: true}
	}
	f.rec.until(t, KindReady)

	f.sess.Stop()
	ev := f.rec.until(t, KindFinal)
	if top, _ := ev.Top(); top != "stopped here" {
		t.Errorf("final = %v", ev.Candidates)
	}
	f.stream.mu.Lock()
	defer f.stream.mu.Unlock()
	if !f.stream.finalized {
		t.Error("finalize not sent")
	}
}

func TestStreamStopWithoutSpeechIsNoMatch(t *testing.T) {
	f := startStream(t, dictation, Config{}, nil)
	f.stream.onFinalize = func(s *scriptStream) {
		s.updates <- streamUpdate{IsFinal: true, FromFinalize: true}
	}
	f.rec.until(t, KindReady)

	f.sess.Stop()
	ev := f.rec.until(t, KindError)
	if ev.Code != CodeNoMatch {
		t.Errorf("code = %d, want %d", ev.Code, CodeNoMatch)
	}
}

func TestStreamSpeechTimeout(t *testing.T) {
	f := startStream(t, dictation, Config{SpeechTimeout: 50 * time.Millisecond}, nil)
	f.rec.until(t, KindReady)

	ev := f.rec.until(t, KindError)
	if ev.Code != CodeSpeechTimeout {
		t.Errorf("code = %d, want %d", ev.Code, CodeSpeechTimeout)
	}
	f.rec.quiet(t, 100*time.Millisecond)
}

func TestStreamDialFailure(t *testing.T) {
	f := startStream(t, dictation, Config{}, &StatusError{StatusCode: 401})
	ev := f.rec.next(t)
	if ev.Kind != KindError || ev.Code != CodeInsufficientPermissions {
		t.Errorf("got %v, want error(9)", ev)
	}
	f.rec.quiet(t, 50*time.Millisecond)
}

func TestStreamRecvFailure(t *testing.T) {
	f := startStream(t, dictation, Config{}, nil)
	f.rec.until(t, KindReady)

	f.stream.errs <- &StatusError{StatusCode: 503}
	ev := f.rec.until(t, KindError)
	if ev.Code != CodeServer {
		t.Errorf("code = %d, want %d", ev.Code, CodeServer)
	}
}

func TestStreamAudioFailure(t *testing.T) {
	f := &streamFixture{stream: newScriptStream(), rec: newRecorder()}
	cfg := Config{Audio: &audio.FakeContext{Denied: true}}
	f.sess = newStreamSession("s1", dictation, f.rec.listen, cfg)
	go f.sess.run(context.Background(),
		func(context.Context) (rawStream, error) { return f.stream, nil },
		func(feed func([]byte, float64)) (*capture, error) { return openCapture(cfg, feed) },
	)

	f.rec.until(t, KindReady)
	ev := f.rec.until(t, KindError)
	if ev.Code != CodeAudio {
		t.Errorf("code = %d, want %d", ev.Code, CodeAudio)
	}
	if ev.Detail == "" {
		t.Error("missing detail")
	}
}

func TestStreamAbortIsSilent(t *testing.T) {
	f := startStream(t, dictation, Config{}, nil)
	f.rec.until(t, KindReady)

	f.sess.abort()
	f.stream.updates <- streamUpdate{Alternatives: []string{"late"}, IsFinal: true, SpeechFinal: true}
	f.rec.quiet(t, 100*time.Millisecond)
	if !f.stream.isClosed() {
		t.Error("stream not closed on abort")
	}
}

func TestJoinText(t *testing.T) {
	for _, tt := range []struct{ prefix, text, want string }{
		{"", "a", "a"},
		{"a", "", "a"},
		{"a", "b", "a b"},
	} {
		if got := joinText(tt.prefix, tt.text); got != tt.want {
			t.Errorf("joinText(%q, %q) = %q, want %q", tt.prefix, tt.text, got, tt.want)
		}
	}
}
