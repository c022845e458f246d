package main

import (
	"os"
	"path/filepath"
	"testing"

	"livescribe/audio"
	"livescribe/config"
)

func TestOpenAudioWAV(t *testing.T) {
	hdr := make([]byte, audio.WAVHeaderSize)
	copy(hdr[0:], "RIFF")
	copy(hdr[8:], "WAVE")
	path := filepath.Join(t.TempDir(), "take.wav")
	if err := os.WriteFile(path, append(hdr, make([]byte, 640)...), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, test := range []bool{false, true} {
		ctx, err := openAudio(path, test)
		if err != nil {
			t.Fatalf("openAudio(test=%v): %v", test, err)
		}
		if _, ok := ctx.(*audio.FakeContext); !ok {
			t.Errorf("openAudio(test=%v) = %T, want the WAV replay", test, ctx)
		}
		if err := audio.CheckAccess(ctx); err != nil {
			t.Errorf("CheckAccess: %v", err)
		}
	}
}

func TestOpenAudioBadWAV(t *testing.T) {
	ctx, err := openAudio(filepath.Join(t.TempDir(), "missing.wav"), true)
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if ctx != nil {
		t.Errorf("ctx = %#v, want nil interface", ctx)
	}
}

func TestOpenAudioTestTone(t *testing.T) {
	ctx, err := openAudio("", true)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ctx.(*audio.FakeContext); !ok {
		t.Errorf("openAudio = %T, want the synthetic tone", ctx)
	}
}

func TestLangFlagOverridesBadFileLanguage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livescribe.yaml")
	if err := os.WriteFile(path, []byte("language: Klingon\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LIVESCRIBE_LANGUAGE", "")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	applyFlags(&cfg, "", "Hindi", "", "", "", "")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Language != "Hindi" {
		t.Errorf("language = %q", cfg.Language)
	}
}
