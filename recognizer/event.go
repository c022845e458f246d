package recognizer

import "fmt"

type Kind int

const (
	KindOther Kind = iota // beginning of speech, rms, buffers, vendor events
	KindReady
	KindPartial
	KindFinal
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindReady:
		return "ready"
	case KindPartial:
		return "partial"
	case KindFinal:
		return "final"
	case KindError:
		return "error"
	default:
		return "other"
	}
}

// Event is one recognition callback. Candidates are ordered best first.
type Event struct {
	Kind       Kind
	Session    string
	Candidates []string
	Code       ErrorCode
	Detail     string // backend description for diagnostics, never displayed
}

func Ready(session string) Event {
	return Event{Kind: KindReady, Session: session}
}

func Partial(session string, candidates ...string) Event {
	return Event{Kind: KindPartial, Session: session, Candidates: candidates}
}

func Final(session string, candidates ...string) Event {
	return Event{Kind: KindFinal, Session: session, Candidates: candidates}
}

func Failure(session string, code ErrorCode, detail string) Event {
	return Event{Kind: KindError, Session: session, Code: code, Detail: detail}
}

func Other(session string) Event {
	return Event{Kind: KindOther, Session: session}
}

// Top returns the highest ranked candidate.
func (e Event) Top() (string, bool) {
	if len(e.Candidates) == 0 {
		return "", false
	}
	return e.Candidates[0], true
}

func (e Event) String() string {
	switch e.Kind {
	case KindPartial, KindFinal:
		return fmt.Sprintf("%s(%d candidates)", e.Kind, len(e.Candidates))
	case KindError:
		return fmt.Sprintf("error(%d)", int(e.Code))
	default:
		return e.Kind.String()
	}
}
