package recognizer

import (
	"context"
	"errors"
	"testing"

	"livescribe/audio"
)

func TestNewSelectsProvider(t *testing.T) {
	mic := audio.NewFakeContext(nil, false)
	for _, tt := range []struct {
		name string
		cfg  Config
		want string
	}{
		{"deepgram first", Config{DeepgramKey: "d", OpenAIKey: "o", Audio: mic}, "deepgram"},
		{"openai next", Config{OpenAIKey: "o", GroqKey: "g", Audio: mic}, "openai"},
		{"groq last", Config{GroqKey: "g", Audio: mic}, "groq"},
		{"explicit", Config{Provider: "groq", DeepgramKey: "d", GroqKey: "g", Audio: mic}, "groq"},
		{"fake", Config{Provider: "fake"}, "fake"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := New(tt.cfg)
			if err != nil {
				t.Fatal(err)
			}
			defer svc.Close()
			if svc.Name() != tt.want {
				t.Errorf("Name = %q, want %q", svc.Name(), tt.want)
			}
		})
	}
}

func TestNewUnavailable(t *testing.T) {
	mic := audio.NewFakeContext(nil, false)
	for _, tt := range []struct {
		name string
		cfg  Config
	}{
		{"no keys", Config{Audio: mic}},
		{"explicit without key", Config{Provider: "deepgram", Audio: mic}},
		{"no audio", Config{DeepgramKey: "d"}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, ErrNotAvailable) {
				t.Errorf("New = %v, want ErrNotAvailable", err)
			}
		})
	}

	if _, err := New(Config{Provider: "vosk", Audio: mic}); err == nil || errors.Is(err, ErrNotAvailable) {
		t.Errorf("unknown provider = %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	if c.speechTimeout() != defaultSpeechTimeout || c.maxDuration() != defaultMaxDuration {
		t.Errorf("defaults = %v, %v", c.speechTimeout(), c.maxDuration())
	}
}

func TestFakeStampsSession(t *testing.T) {
	f := NewFake()
	if f.Emit(Ready("")) {
		t.Error("Emit before Start = true")
	}

	rec := newRecorder()
	id, err := f.Start(context.Background(), dictation, rec.listen)
	if err != nil {
		t.Fatal(err)
	}
	f.Emit(Partial("", "a"))
	if ev := rec.next(t); ev.Session != id {
		t.Errorf("session = %q, want %q", ev.Session, id)
	}

	f.Emit(Final("stale", "b"))
	if ev := rec.next(t); ev.Session != "stale" {
		t.Errorf("explicit session overwritten: %q", ev.Session)
	}

	id2, _ := f.Start(context.Background(), dictation, rec.listen)
	if id2 == id {
		t.Error("session IDs repeat")
	}
	f.Stop()
	if f.Stops() != 1 || len(f.Requests()) != 2 {
		t.Errorf("stops = %d, requests = %d", f.Stops(), len(f.Requests()))
	}
	f.Close()
	if !f.Closed() {
		t.Error("not closed")
	}
}

func TestFakeStartError(t *testing.T) {
	f := NewFake()
	f.StartErr = ErrBusy
	if _, err := f.Start(context.Background(), dictation, func(Event) {}); !errors.Is(err, ErrBusy) {
		t.Errorf("Start = %v", err)
	}
	if req, ok := f.LastRequest(); !ok || req.Locale != "en" {
		t.Errorf("request not recorded: %+v", req)
	}
}
