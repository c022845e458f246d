package session

import (
	"fmt"
	"time"

	"livescribe/log"
	"livescribe/recognizer"
)

// Handle applies one recognizer event. Events from any session other than
// the current one are dropped.
func (c *Controller) Handle(ev recognizer.Event) {
	c.alive()
	if c.session == "" || ev.Session != c.session {
		log.StaleEvent(ev.Session, c.session, ev.Kind.String())
		return
	}
	log.SessionEvent(ev.Session, ev.Kind.String(), len(ev.Candidates))

	switch ev.Kind {
	case recognizer.KindReady:
		c.show(UpdateReady, statusReady, 0)
	case recognizer.KindPartial:
		if top, ok := ev.Top(); ok {
			c.show(UpdatePartial, top, 0)
		}
	case recognizer.KindFinal:
		if c.state == Listening {
			c.finish("final", 0)
		}
		if top, ok := ev.Top(); ok {
			c.show(UpdateFinal, top, 0)
		}
	case recognizer.KindError:
		if c.state == Listening {
			c.finish("error", ev.Code)
		}
		if ev.Detail != "" {
			log.Warnf("session %s: %s", ev.Session, ev.Detail)
		}
		c.show(UpdateError, ErrorMessage(ev.Code), ev.Code)
	default:
		// beginning/end of speech, levels, buffers, vendor events
	}
}

// ErrorMessage is the transcript text shown for a recognizer error code.
func ErrorMessage(code recognizer.ErrorCode) string {
	switch code {
	case recognizer.CodeNetworkTimeout:
		return "Network timeout"
	case recognizer.CodeNetwork:
		return "Network error"
	case recognizer.CodeAudio:
		return "Audio recording error"
	case recognizer.CodeServer:
		return "Server error"
	case recognizer.CodeClient:
		return "Client side error"
	case recognizer.CodeSpeechTimeout:
		return "No speech input"
	case recognizer.CodeNoMatch:
		return "No match"
	case recognizer.CodeRecognizerBusy:
		return "Recognizer busy"
	case recognizer.CodeInsufficientPermissions:
		return "Insufficient permissions"
	default:
		return fmt.Sprintf("Error code: %d", int(code))
	}
}

func (c *Controller) show(kind UpdateKind, text string, code recognizer.ErrorCode) {
	c.view = text
	u := Update{
		Session:   c.session,
		Locale:    c.locale,
		Kind:      kind,
		Text:      text,
		Code:      code,
		Listening: c.state == Listening,
		At:        time.Now(),
	}
	for _, o := range c.cfg.Observers {
		o.Observe(u)
	}
}
