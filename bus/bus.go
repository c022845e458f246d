// Package bus mirrors transcript view changes onto NATS subjects so other
// processes can follow a dictation as it happens.
package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"livescribe/config"
	"livescribe/log"
	"livescribe/session"
)

// Message is the JSON payload published for every update.
type Message struct {
	SessionID string    `json:"session_id"`
	Locale    string    `json:"locale"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	Listening bool      `json:"listening"`
	At        time.Time `json:"at"`
}

type conn interface {
	Publish(subject string, data []byte) error
}

type Publisher struct {
	nc      *nats.Conn
	out     conn
	subject string
}

func Connect(cfg config.BusConfig) (*Publisher, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("bus url is empty")
	}
	timeout := time.Duration(cfg.ConnectTimeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name("livescribe"),
		nats.Timeout(timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("bus disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Infof("bus reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	log.Infof("bus connected to %s", nc.ConnectedUrl())
	return &Publisher{nc: nc, out: nc, subject: cfg.Subject}, nil
}

// Subject returns the subject an update of the given kind goes to.
func (p *Publisher) Subject(kind session.UpdateKind) string {
	return p.subject + "." + subjectKind(kind)
}

// Observe publishes u. Failures are logged and otherwise ignored.
func (p *Publisher) Observe(u session.Update) {
	data, err := json.Marshal(messageFor(u))
	if err != nil {
		log.Warnf("bus encode: %v", err)
		return
	}
	if err := p.out.Publish(p.Subject(u.Kind), data); err != nil {
		log.Warnf("bus publish: %v", err)
	}
}

func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}

func messageFor(u session.Update) Message {
	return Message{
		SessionID: u.Session,
		Locale:    u.Locale,
		Kind:      subjectKind(u.Kind),
		Text:      u.Text,
		Listening: u.Listening,
		At:        u.At.UTC(),
	}
}

func subjectKind(k session.UpdateKind) string {
	switch k {
	case session.UpdatePartial:
		return "partial"
	case session.UpdateFinal:
		return "final"
	case session.UpdateError:
		return "error"
	default:
		return "status"
	}
}
