package session

import (
	"time"

	"livescribe/recognizer"
)

type UpdateKind int

const (
	UpdateStart UpdateKind = iota
	UpdateReady
	UpdatePartial
	UpdateFinal
	UpdateError
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateStart:
		return "start"
	case UpdateReady:
		return "ready"
	case UpdatePartial:
		return "partial"
	case UpdateFinal:
		return "final"
	case UpdateError:
		return "error"
	default:
		return "unknown"
	}
}

// Update describes one change of the transcript view.
type Update struct {
	Session   string // empty for the start status, set before any event
	Locale    string
	Kind      UpdateKind
	Text      string
	Code      recognizer.ErrorCode // UpdateError only
	Listening bool
	At        time.Time
}

// Observer is told about every transcript view change, after it happened.
// Observers run on the host loop and must not block.
type Observer interface {
	Observe(Update)
}

type ObserverFunc func(Update)

func (f ObserverFunc) Observe(u Update) { f(u) }
