package recognizer

import (
	"context"
	"fmt"
	"sync"
)

// Fake is a host-driven Service. Nothing happens until the test or harness
// calls Emit.
type Fake struct {
	StartErr error

	mu       sync.Mutex
	requests []Request
	stops    int
	closed   bool
	emit     Listener
	session  string
	seq      int
}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Start(_ context.Context, req Request, emit Listener) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.StartErr != nil {
		return "", f.StartErr
	}
	f.seq++
	f.session = fmt.Sprintf("fake-%d", f.seq)
	f.emit = emit
	return f.session, nil
}

func (f *Fake) Stop() {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
}

func (f *Fake) Close() error {
	f.mu.Lock()
	f.closed = true
	f.emit = nil
	f.mu.Unlock()
	return nil
}

// Emit delivers ev to the most recent listener. An empty Session is filled
// with the current session ID; set it explicitly to simulate a stale event.
// Reports false if no session was ever started.
func (f *Fake) Emit(ev Event) bool {
	f.mu.Lock()
	emit := f.emit
	if ev.Session == "" {
		ev.Session = f.session
	}
	f.mu.Unlock()
	if emit == nil {
		return false
	}
	emit(ev)
	return true
}

func (f *Fake) Session() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *Fake) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

func (f *Fake) LastRequest() (Request, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return Request{}, false
	}
	return f.requests[len(f.requests)-1], true
}

func (f *Fake) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
