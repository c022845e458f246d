package recognizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"livescribe/audio"
)

// LanguageModelFreeForm asks the backend for dictation-style recognition.
const LanguageModelFreeForm = "free_form"

type Request struct {
	LanguageModel  string
	Locale         string // BCP-47
	PartialResults bool
	Prompt         string // shown by hosts while listening; backends ignore it
}

// Listener receives events from a running session. Backends call it from
// their own goroutines.
type Listener func(Event)

// Service is a handle to a speech recognition backend. One session runs at a
// time; Start on a busy service ends the previous session first.
type Service interface {
	Name() string
	// Start begins a session and returns its ID. Every event emitted for the
	// session carries that ID.
	Start(ctx context.Context, req Request, emit Listener) (string, error)
	// Stop asks the running session to finish. It does not wait; the outcome
	// arrives as a Final or Error event.
	Stop()
	Close() error
}

// ErrNotAvailable means no backend could be configured.
var ErrNotAvailable = errors.New("speech recognition not available")

type Config struct {
	Provider      string // auto, deepgram, openai, groq, azure, fake
	DeepgramKey   string
	OpenAIKey     string
	GroqKey       string
	AzureKey      string
	AzureRegion   string
	SpeechTimeout time.Duration
	MaxDuration   time.Duration
	PartialEvery  time.Duration // batch backends only; 0 disables interim uploads

	Audio  audio.Context
	Device *audio.DeviceInfo
}

const (
	defaultSpeechTimeout = 5 * time.Second
	defaultMaxDuration   = 60 * time.Second
)

func (c Config) speechTimeout() time.Duration {
	if c.SpeechTimeout > 0 {
		return c.SpeechTimeout
	}
	return defaultSpeechTimeout
}

func (c Config) maxDuration() time.Duration {
	if c.MaxDuration > 0 {
		return c.MaxDuration
	}
	return defaultMaxDuration
}

// New picks a backend. "auto" tries Deepgram, OpenAI, Groq, then Azure, in
// that order, by which credentials are present.
func New(cfg Config) (Service, error) {
	switch cfg.Provider {
	case "", "auto":
		switch {
		case cfg.DeepgramKey != "":
			cfg.Provider = "deepgram"
		case cfg.OpenAIKey != "":
			cfg.Provider = "openai"
		case cfg.GroqKey != "":
			cfg.Provider = "groq"
		case azureEnabled && cfg.AzureKey != "" && cfg.AzureRegion != "":
			cfg.Provider = "azure"
		default:
			return nil, ErrNotAvailable
		}
		return New(cfg)
	case "fake":
		return NewFake(), nil
	}

	if cfg.Audio == nil {
		return nil, fmt.Errorf("%w: no audio input", ErrNotAvailable)
	}

	switch cfg.Provider {
	case "deepgram":
		if cfg.DeepgramKey == "" {
			return nil, fmt.Errorf("%w: DEEPGRAM_API_KEY not set", ErrNotAvailable)
		}
		return NewDeepgram(cfg.DeepgramKey, cfg), nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", ErrNotAvailable)
		}
		return NewOpenAI(cfg.OpenAIKey, cfg), nil
	case "groq":
		if cfg.GroqKey == "" {
			return nil, fmt.Errorf("%w: GROQ_API_KEY not set", ErrNotAvailable)
		}
		return NewGroq(cfg.GroqKey, cfg), nil
	case "azure":
		return newAzure(cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
