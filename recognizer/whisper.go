package recognizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	xlang "golang.org/x/text/language"

	"livescribe/log"
)

const groqBaseURL = "https://api.groq.com/openai/v1/"

// Whisper records an utterance and sends it to an OpenAI-compatible
// transcription endpoint (OpenAI itself or Groq).
type Whisper struct {
	name   string
	client openai.Client
	model  openai.AudioModel
	cfg    Config

	mu     sync.Mutex
	active *batchSession
}

func NewOpenAI(apiKey string, cfg Config, opts ...option.RequestOption) *Whisper {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Whisper{
		name:   "openai",
		client: openai.NewClient(opts...),
		model:  openai.AudioModelWhisper1,
		cfg:    cfg,
	}
}

func NewGroq(apiKey string, cfg Config, opts ...option.RequestOption) *Whisper {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithBaseURL(groqBaseURL)}, opts...)
	return &Whisper{
		name:   "groq",
		client: openai.NewClient(opts...),
		model:  openai.AudioModel("whisper-large-v3-turbo"),
		cfg:    cfg,
	}
}

func (w *Whisper) Name() string { return w.name }

func (w *Whisper) Start(ctx context.Context, req Request, emit Listener) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active != nil {
		w.active.abort()
	}

	id := uuid.NewString()
	sess := newBatchSession(ctx, id, req, emit, w.cfg, w.transcribe)
	w.active = sess
	log.SessionStart(id, w.name, req.Locale)

	go sess.run(func(feed func([]byte, float64)) (*capture, error) { return openCapture(w.cfg, feed) })
	return id, nil
}

func (w *Whisper) Stop() {
	w.mu.Lock()
	sess := w.active
	w.mu.Unlock()
	if sess != nil {
		sess.Stop()
	}
}

func (w *Whisper) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active != nil {
		w.active.abort()
		w.active = nil
	}
	return nil
}

func (w *Whisper) transcribe(ctx context.Context, flac []byte, locale string) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(flac), "audio.flac", "audio/flac"),
		Model: w.model,
	}
	if lang := baseLanguage(locale); lang != "" {
		params.Language = openai.String(lang)
	}

	resp, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{StatusCode: apiErr.StatusCode, Body: apiErr.Message}
		}
		return "", fmt.Errorf("%s transcription: %w", w.name, err)
	}
	return resp.Text, nil
}

// baseLanguage reduces a locale to the ISO-639-1 code whisper expects
// ("hi-IN" -> "hi").
func baseLanguage(locale string) string {
	if locale == "" {
		return ""
	}
	tag, err := xlang.Parse(locale)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == xlang.No {
		return ""
	}
	return base.String()
}
