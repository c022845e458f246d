// Package session drives one speech recognition session at a time and
// renders its outcome into a single transcript view.
//
// A Controller is not safe for concurrent use. Hosts call every method from
// their UI loop and hand recognizer events back to that loop (through
// Config.Post) before they reach Handle.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"livescribe/audio"
	"livescribe/language"
	"livescribe/log"
	"livescribe/recognizer"
)

const (
	DefaultPrompt = "Speak now..."

	MsgRecognitionUnavailable = "Speech recognition not available"
	MsgRecognizerUnavailable  = "Speech recognizer not available"
	MsgPermissionDenied       = "Microphone permission denied"

	statusReady = "Listening..."
)

var (
	ErrUnavailable = errors.New("speech recognizer not available")
	ErrListening   = errors.New("already listening")
)

type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

// Notifier shows one-shot messages that are not part of the transcript.
type Notifier interface {
	Notify(msg string)
}

type NotifyFunc func(msg string)

func (f NotifyFunc) Notify(msg string) { f(msg) }

type Config struct {
	Languages []language.Entry // defaults to language.Entries
	Prompt    string

	// Audio is checked for microphone access before the recognizer is set
	// up.
	Audio audio.Context
	// NewService creates the recognizer handle. An error wrapping
	// recognizer.ErrNotAvailable leaves the controller without one.
	NewService func() (recognizer.Service, error)

	Notifier  Notifier
	Observers []Observer
	// Post marshals backend events onto the host loop, which then calls
	// Handle. When nil, events are handled on the emitting goroutine.
	Post func(recognizer.Event)
}

type Controller struct {
	cfg    Config
	picker *language.Picker
	svc    recognizer.Service
	state  State
	view   string

	session   string
	locale    string
	startedAt time.Time
	torn      bool
}

// Init builds the picker with its default selection, checks microphone
// access and sets up the recognizer.
func Init(cfg Config) *Controller {
	if cfg.Languages == nil {
		cfg.Languages = language.Entries
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	c := &Controller{cfg: cfg, picker: language.NewPicker(cfg.Languages)}
	c.SetupRecognizer()
	return c
}

// SetupRecognizer (re)creates the recognizer handle. It is a no-op when a
// handle already exists. The host is notified once per failed attempt.
func (c *Controller) SetupRecognizer() bool {
	c.alive()
	if c.svc != nil {
		return true
	}
	if err := audio.CheckAccess(c.cfg.Audio); err != nil {
		log.Warnf("microphone access: %v", err)
		c.notify(MsgPermissionDenied)
		return false
	}
	if c.cfg.NewService == nil {
		c.notify(MsgRecognitionUnavailable)
		return false
	}
	svc, err := c.cfg.NewService()
	if err != nil {
		log.Warnf("recognizer setup: %v", err)
		c.notify(MsgRecognitionUnavailable)
		return false
	}
	c.svc = svc
	log.Infof("recognizer ready: %s", svc.Name())
	return true
}

// Select makes entry i the language for the next Start and returns its tag.
func (c *Controller) Select(i int) string {
	c.alive()
	return c.picker.Select(i)
}

func (c *Controller) SelectName(name string) bool {
	c.alive()
	return c.picker.SelectName(name)
}

func (c *Controller) Start(ctx context.Context) error {
	c.alive()
	if c.svc == nil {
		c.notify(MsgRecognizerUnavailable)
		return ErrUnavailable
	}
	if c.state == Listening {
		return ErrListening
	}

	entry := c.picker.Selected()
	req := recognizer.Request{
		LanguageModel:  recognizer.LanguageModelFreeForm,
		Locale:         entry.Tag,
		PartialResults: true,
		Prompt:         c.cfg.Prompt,
	}

	c.state = Listening
	c.session = ""
	c.locale = entry.Tag
	c.startedAt = time.Now()
	c.show(UpdateStart, fmt.Sprintf("Listening in %s...", entry.Name), 0)

	id, err := c.svc.Start(ctx, req, c.listener)
	if err != nil {
		code := recognizer.Classify(err)
		log.Warnf("recognizer start: %v", err)
		c.finish("error", code)
		c.show(UpdateError, ErrorMessage(code), code)
		return nil
	}
	c.session = id
	return nil
}

// Stop asks the service to finish and returns to Idle at once. The final
// result or error, if any, still arrives through Handle.
func (c *Controller) Stop() {
	c.alive()
	if c.state != Listening {
		return
	}
	c.svc.Stop()
	c.state = Idle
	log.SessionEnd(c.session, "stopped", 0, time.Since(c.startedAt))
}

// Toggle stops a running session or starts a new one.
func (c *Controller) Toggle(ctx context.Context) error {
	c.alive()
	if c.state == Listening {
		c.Stop()
		return nil
	}
	return c.Start(ctx)
}

// Teardown stops any session and releases the recognizer. The controller
// must not be used afterwards.
func (c *Controller) Teardown() {
	c.alive()
	if c.state == Listening {
		c.Stop()
	}
	if c.svc != nil {
		if err := c.svc.Close(); err != nil {
			log.Warnf("recognizer close: %v", err)
		}
		c.svc = nil
	}
	c.torn = true
}

func (c *Controller) State() State                  { return c.state }
func (c *Controller) Listening() bool               { return c.state == Listening }
func (c *Controller) View() string                  { return c.view }
func (c *Controller) Session() string               { return c.session }
func (c *Controller) Available() bool               { return c.svc != nil }
func (c *Controller) Selected() language.Entry      { return c.picker.Selected() }
func (c *Controller) SelectedIndex() int            { return c.picker.SelectedIndex() }
func (c *Controller) Languages() []string           { return c.picker.Names() }
func (c *Controller) Language(i int) language.Entry { return c.picker.Entry(i) }
func (c *Controller) Prompt() string                { return c.cfg.Prompt }

func (c *Controller) ServiceName() string {
	if c.svc == nil {
		return ""
	}
	return c.svc.Name()
}

func (c *Controller) listener(ev recognizer.Event) {
	if c.cfg.Post != nil {
		c.cfg.Post(ev)
		return
	}
	c.Handle(ev)
}

func (c *Controller) finish(outcome string, code recognizer.ErrorCode) {
	c.state = Idle
	log.SessionEnd(c.session, outcome, int(code), time.Since(c.startedAt))
}

func (c *Controller) notify(msg string) {
	if c.cfg.Notifier != nil {
		c.cfg.Notifier.Notify(msg)
	}
}

func (c *Controller) alive() {
	if c.torn {
		panic("session: controller used after Teardown")
	}
}
