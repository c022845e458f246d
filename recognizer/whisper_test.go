package recognizer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/openai/openai-go/v3/option"

	"livescribe/audio"
)

type whisperServer struct {
	mu        sync.Mutex
	languages []string
	models    []string
	status    int
	text      string
}

func (s *whisperServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/audio/transcriptions" {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.languages = append(s.languages, r.FormValue("language"))
	s.models = append(s.models, r.FormValue("model"))
	status, text := s.status, s.text
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
		return
	}
	w.Write([]byte(`{"text":` + quote(text) + `}`))
}

func quote(s string) string { return `"` + s + `"` }

func newTestWhisper(t *testing.T, srv *whisperServer, pcm []byte, cfg Config) *Whisper {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	cfg.Audio = audio.NewFakeContext(pcm, false)
	w := NewOpenAI("test-key", cfg, option.WithBaseURL(ts.URL+"/"), option.WithMaxRetries(0))
	t.Cleanup(func() { w.Close() })
	return w
}

func TestWhisperTranscribesOnStop(t *testing.T) {
	srv := &whisperServer{text: " नमस्ते "}
	w := newTestWhisper(t, srv, audio.Tone(500*time.Millisecond, 0.5), Config{})

	rec := newRecorder()
	id, err := w.Start(context.Background(), Request{Locale: "hi-IN", LanguageModel: LanguageModelFreeForm}, rec.listen)
	if err != nil {
		t.Fatal(err)
	}
	if ev := rec.next(t); ev.Kind != KindReady || ev.Session != id {
		t.Fatalf("first event = %v", ev)
	}

	time.Sleep(100 * time.Millisecond)
	w.Stop()
	ev := rec.until(t, KindFinal)
	if top, _ := ev.Top(); top != "नमस्ते" {
		t.Errorf("final = %v", ev.Candidates)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.languages) != 1 || srv.languages[0] != "hi" {
		t.Errorf("language sent = %v, want [hi]", srv.languages)
	}
	if srv.models[0] != "whisper-1" {
		t.Errorf("model = %q", srv.models[0])
	}
}

func TestWhisperEmptyTextIsNoMatch(t *testing.T) {
	w := newTestWhisper(t, &whisperServer{text: ""}, audio.Tone(300*time.Millisecond, 0.5), Config{})

	rec := newRecorder()
	if _, err := w.Start(context.Background(), dictation, rec.listen); err != nil {
		t.Fatal(err)
	}
	rec.until(t, KindReady)
	time.Sleep(50 * time.Millisecond)
	w.Stop()
	if ev := rec.until(t, KindError); ev.Code != CodeNoMatch {
		t.Errorf("code = %d, want %d", ev.Code, CodeNoMatch)
	}
}

func TestWhisperRateLimited(t *testing.T) {
	w := newTestWhisper(t, &whisperServer{status: http.StatusTooManyRequests}, audio.Tone(300*time.Millisecond, 0.5), Config{})

	rec := newRecorder()
	if _, err := w.Start(context.Background(), dictation, rec.listen); err != nil {
		t.Fatal(err)
	}
	rec.until(t, KindReady)
	time.Sleep(50 * time.Millisecond)
	w.Stop()
	if ev := rec.until(t, KindError); ev.Code != CodeRecognizerBusy {
		t.Errorf("code = %d, want %d", ev.Code, CodeRecognizerBusy)
	}
}

func TestWhisperSilenceTimesOut(t *testing.T) {
	srv := &whisperServer{text: "should not be asked"}
	w := newTestWhisper(t, srv, audio.Tone(300*time.Millisecond, 0), Config{SpeechTimeout: 50 * time.Millisecond})

	rec := newRecorder()
	if _, err := w.Start(context.Background(), dictation, rec.listen); err != nil {
		t.Fatal(err)
	}
	rec.until(t, KindReady)
	if ev := rec.until(t, KindError); ev.Code != CodeSpeechTimeout {
		t.Errorf("code = %d, want %d", ev.Code, CodeSpeechTimeout)
	}
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.languages) != 0 {
		t.Errorf("uploaded %d times for silence", len(srv.languages))
	}
}

func TestWhisperPartialUploads(t *testing.T) {
	srv := &whisperServer{text: "so far"}
	w := newTestWhisper(t, srv, audio.Tone(time.Second, 0.5), Config{PartialEvery: 30 * time.Millisecond})

	rec := newRecorder()
	if _, err := w.Start(context.Background(), dictation, rec.listen); err != nil {
		t.Fatal(err)
	}
	rec.until(t, KindReady)
	if ev := rec.until(t, KindPartial); ev.Candidates[0] != "so far" {
		t.Errorf("partial = %v", ev.Candidates)
	}
	w.Stop()
	rec.until(t, KindFinal)
}

func TestGroqUsesTurboModel(t *testing.T) {
	srv := &whisperServer{text: "hi"}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	g := NewGroq("k", Config{Audio: audio.NewFakeContext(audio.Tone(200*time.Millisecond, 0.5), false)},
		option.WithBaseURL(ts.URL+"/"), option.WithMaxRetries(0))
	t.Cleanup(func() { g.Close() })
	if g.Name() != "groq" {
		t.Errorf("Name = %q", g.Name())
	}

	rec := newRecorder()
	if _, err := g.Start(context.Background(), dictation, rec.listen); err != nil {
		t.Fatal(err)
	}
	rec.until(t, KindReady)
	time.Sleep(50 * time.Millisecond)
	g.Stop()
	rec.until(t, KindFinal)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.models[0] != "whisper-large-v3-turbo" {
		t.Errorf("model = %q", srv.models[0])
	}
}

func TestBaseLanguage(t *testing.T) {
	for _, tt := range []struct{ in, want string }{
		{"hi-IN", "hi"},
		{"en", "en"},
		{"pa-IN", "pa"},
		{"", ""},
		{"!!", ""},
	} {
		if got := baseLanguage(tt.in); got != tt.want {
			t.Errorf("baseLanguage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
