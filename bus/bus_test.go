package bus

import (
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"livescribe/config"
	"livescribe/log"
	"livescribe/session"
)

type recordConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (r *recordConn) Publish(subject string, data []byte) error {
	r.subjects = append(r.subjects, subject)
	r.payloads = append(r.payloads, data)
	return r.err
}

func TestSubjectPerKind(t *testing.T) {
	p := &Publisher{subject: "livescribe.transcript"}
	tests := []struct {
		kind session.UpdateKind
		want string
	}{
		{session.UpdateStart, "livescribe.transcript.status"},
		{session.UpdateReady, "livescribe.transcript.status"},
		{session.UpdatePartial, "livescribe.transcript.partial"},
		{session.UpdateFinal, "livescribe.transcript.final"},
		{session.UpdateError, "livescribe.transcript.error"},
	}
	for _, tt := range tests {
		if got := p.Subject(tt.kind); got != tt.want {
			t.Errorf("Subject(%v) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestObservePayload(t *testing.T) {
	rec := &recordConn{}
	p := &Publisher{out: rec, subject: "dictation"}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	p.Observe(session.Update{
		Session:   "s-1",
		Locale:    "hi-IN",
		Kind:      session.UpdateFinal,
		Text:      "नमस्ते",
		Listening: false,
		At:        at,
	})

	if len(rec.subjects) != 1 || rec.subjects[0] != "dictation.final" {
		t.Fatalf("subjects = %v", rec.subjects)
	}
	var msg Message
	if err := json.Unmarshal(rec.payloads[0], &msg); err != nil {
		t.Fatal(err)
	}
	if !msg.At.Equal(at) {
		t.Errorf("at = %v, want %v", msg.At, at)
	}
	msg.At = time.Time{}
	want := Message{SessionID: "s-1", Locale: "hi-IN", Kind: "final", Text: "नमस्ते"}
	if msg != want {
		t.Errorf("message = %+v, want %+v", msg, want)
	}
}

func TestObservePublishErrorIgnored(t *testing.T) {
	log.InitWriter(io.Discard)
	rec := &recordConn{err: errors.New("connection closed")}
	p := &Publisher{out: rec, subject: "dictation"}
	p.Observe(session.Update{Kind: session.UpdatePartial, Text: "hello"})
	p.Observe(session.Update{Kind: session.UpdateFinal, Text: "hello world"})
	if len(rec.subjects) != 2 {
		t.Errorf("publishes = %d, want 2", len(rec.subjects))
	}
}

func TestConnectEmptyURL(t *testing.T) {
	if _, err := Connect(config.BusConfig{}); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestCloseNil(t *testing.T) {
	var p *Publisher
	p.Close()
}

func runServer(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: server.RANDOM_PORT, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatal(err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("nats server not ready")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns
}

func TestPublishThroughServer(t *testing.T) {
	log.InitWriter(io.Discard)
	ns := runServer(t)

	sub, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()
	msgs := make(chan *nats.Msg, 8)
	if _, err := sub.ChanSubscribe("livescribe.transcript.>", msgs); err != nil {
		t.Fatal(err)
	}
	if err := sub.Flush(); err != nil {
		t.Fatal(err)
	}

	p, err := Connect(config.BusConfig{URL: ns.ClientURL(), Subject: "livescribe.transcript", ConnectTimeout: 1000})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	p.Observe(session.Update{Session: "s-7", Locale: "en-US", Kind: session.UpdateStart, Text: "Listening in English...", Listening: true})
	p.Observe(session.Update{Session: "s-7", Locale: "en-US", Kind: session.UpdatePartial, Text: "hello", Listening: true})

	wantSubjects := []string{"livescribe.transcript.status", "livescribe.transcript.partial"}
	for i, want := range wantSubjects {
		select {
		case m := <-msgs:
			if m.Subject != want {
				t.Errorf("message %d subject = %q, want %q", i, m.Subject, want)
			}
			var msg Message
			if err := json.Unmarshal(m.Data, &msg); err != nil {
				t.Fatal(err)
			}
			if msg.SessionID != "s-7" || !msg.Listening {
				t.Errorf("message %d = %+v", i, msg)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}
