package main

import (
	"livescribe/audio"
	"livescribe/config"
	"livescribe/log"
	"livescribe/recognizer"
	"livescribe/session"
)

// host is a UI loop that owns one session controller. post must hand the
// event to the loop, which then calls Controller.Handle; notify shows a
// one-shot message. Both are only called for the host's own controller.
type host interface {
	post(recognizer.Event)
	notify(msg string)
}

// app carries what every host needs to build its controller.
type app struct {
	cfg        config.Config
	audio      audio.Context
	newService func() (recognizer.Service, error)
	observers  []session.Observer
}

// controller builds a controller bound to h, with the configured language
// preselected.
func (a *app) controller(h host, extra ...session.Observer) *session.Controller {
	observers := make([]session.Observer, 0, len(a.observers)+len(extra))
	observers = append(observers, a.observers...)
	observers = append(observers, extra...)

	c := session.Init(session.Config{
		Prompt:     a.cfg.Prompt,
		Audio:      a.audio,
		NewService: a.newService,
		Notifier:   session.NotifyFunc(h.notify),
		Observers:  observers,
		Post:       h.post,
	})
	if a.cfg.Language != "" && !c.SelectName(a.cfg.Language) {
		log.Warnf("unknown language %q, keeping %s", a.cfg.Language, c.Selected().Name)
	}
	return c
}

// serviceFactory returns the recognizer constructor for cfg. The audio
// context and device are resolved once by the caller.
func serviceFactory(cfg config.Config, ctx audio.Context, device *audio.DeviceInfo) func() (recognizer.Service, error) {
	return func() (recognizer.Service, error) {
		return recognizer.New(recognizer.Config{
			Provider:      cfg.Provider,
			DeepgramKey:   cfg.Keys.Deepgram,
			OpenAIKey:     cfg.Keys.OpenAI,
			GroqKey:       cfg.Keys.Groq,
			AzureKey:      cfg.Keys.AzureKey,
			AzureRegion:   cfg.Keys.AzureRegion,
			SpeechTimeout: ms(cfg.SpeechTimeoutMS),
			MaxDuration:   ms(cfg.MaxDurationMS),
			PartialEvery:  ms(cfg.PartialEveryMS),
			Audio:         ctx,
			Device:        device,
		})
	}
}
