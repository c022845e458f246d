package recognizer

import "sync"

// emitter serializes a session's events and drops everything after the
// terminal one.
type emitter struct {
	mu    sync.Mutex
	emit  Listener
	ended bool
	done  chan struct{}
}

func newEmitter(emit Listener) *emitter {
	return &emitter{emit: emit, done: make(chan struct{})}
}

// live emits a non-terminal event. It reports false once the session ended.
func (e *emitter) live(ev Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended {
		return false
	}
	e.emit(ev)
	return true
}

// end emits the terminal event. Only the first call has any effect; a nil
// event ends the session silently.
func (e *emitter) end(ev *Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended {
		return false
	}
	e.ended = true
	if ev != nil {
		e.emit(*ev)
	}
	close(e.done)
	return true
}

func (e *emitter) isEnded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ended
}
