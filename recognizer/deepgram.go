package recognizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"livescribe/encoder"
	"livescribe/log"
)

const deepgramListenURL = "wss://api.deepgram.com/v1/listen"

// Deepgram streams microphone audio to Deepgram's live endpoint.
type Deepgram struct {
	apiKey   string
	endpoint string
	model    string
	cfg      Config

	mu     sync.Mutex
	active *streamSession
	cancel context.CancelFunc
}

func NewDeepgram(apiKey string, cfg Config) *Deepgram {
	return &Deepgram{
		apiKey:   apiKey,
		endpoint: deepgramListenURL,
		model:    "nova-3",
		cfg:      cfg,
	}
}

func (d *Deepgram) Name() string { return "deepgram" }

func (d *Deepgram) Start(ctx context.Context, req Request, emit Listener) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.abortLocked()

	id := uuid.NewString()
	sess := newStreamSession(id, req, emit, d.cfg)
	sessCtx, cancel := context.WithCancel(ctx)
	d.active = sess
	d.cancel = cancel
	log.SessionStart(id, d.Name(), req.Locale)

	go sess.run(sessCtx,
		func(ctx context.Context) (rawStream, error) { return d.dial(ctx, req) },
		func(feed func([]byte, float64)) (*capture, error) { return openCapture(d.cfg, feed) },
	)
	return id, nil
}

func (d *Deepgram) Stop() {
	d.mu.Lock()
	sess := d.active
	d.mu.Unlock()
	if sess != nil {
		sess.Stop()
	}
}

func (d *Deepgram) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.abortLocked()
	return nil
}

func (d *Deepgram) abortLocked() {
	if d.active != nil {
		d.active.abort()
		d.active = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Deepgram) listenURL(req Request) (string, error) {
	endpoint, err := url.Parse(d.endpoint)
	if err != nil {
		return "", err
	}
	q := endpoint.Query()
	q.Set("model", d.model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(encoder.SampleRate))
	q.Set("channels", strconv.Itoa(encoder.Channels))
	if req.Locale != "" {
		q.Set("language", req.Locale)
	}
	if req.PartialResults {
		q.Set("interim_results", "true")
	}
	endpoint.RawQuery = q.Encode()
	return endpoint.String(), nil
}

func (d *Deepgram) dial(ctx context.Context, req Request) (rawStream, error) {
	u, err := d.listenURL(req)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.apiKey)

	streamCtx, cancel := context.WithCancel(ctx)
	dialCtx, dialCancel := context.WithTimeout(streamCtx, streamDialTimeout)
	defer dialCancel()
	conn, resp, err := websocket.Dial(dialCtx, u, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		cancel()
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, handshakeError(resp)
		}
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("deepgram dial: %w", context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("deepgram dial: %w", err)
	}
	return &deepgramStream{conn: conn, ctx: streamCtx, cancel: cancel}, nil
}

func handshakeError(resp *http.Response) error {
	var body string
	if resp.Body != nil {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		body = string(b)
	}
	return &StatusError{StatusCode: resp.StatusCode, Body: body}
}

type deepgramResponse struct {
	Type         string `json:"type"`
	IsFinal      bool   `json:"is_final"`
	SpeechFinal  bool   `json:"speech_final"`
	FromFinalize bool   `json:"from_finalize"`
	Channel      struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type deepgramStream struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *deepgramStream) Send(pcm []byte) error {
	return s.conn.Write(s.ctx, websocket.MessageBinary, pcm)
}

func (s *deepgramStream) CloseSend() error {
	return s.conn.Write(s.ctx, websocket.MessageText, []byte(`{"type":"Finalize"}`))
}

func (s *deepgramStream) Recv() (streamUpdate, error) {
	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			return streamUpdate{}, err
		}

		var resp deepgramResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return streamUpdate{}, fmt.Errorf("deepgram: bad message: %w", err)
		}
		// Metadata, SpeechStarted and UtteranceEnd carry no transcript.
		if resp.Type != "Results" {
			continue
		}

		alts := make([]string, 0, len(resp.Channel.Alternatives))
		for _, a := range resp.Channel.Alternatives {
			alts = append(alts, a.Transcript)
		}
		return streamUpdate{
			Alternatives: alts,
			IsFinal:      resp.IsFinal,
			SpeechFinal:  resp.SpeechFinal,
			FromFinalize: resp.FromFinalize,
		}, nil
	}
}

func (s *deepgramStream) Close() error {
	s.cancel()
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
