//go:build azure

package recognizer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sdkaudio "github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
	"github.com/google/uuid"

	"livescribe/encoder"
	"livescribe/log"
)

const azureEnabled = true

// Azure runs single-utterance recognition through the Speech SDK, pushing
// captured PCM into the recognizer.
type Azure struct {
	key    string
	region string
	cfg    Config

	mu     sync.Mutex
	active *azureSession
}

func newAzure(cfg Config) (Service, error) {
	if cfg.AzureKey == "" || cfg.AzureRegion == "" {
		return nil, fmt.Errorf("%w: AZURE_SPEECH_KEY and AZURE_SPEECH_REGION required", ErrNotAvailable)
	}
	return &Azure{key: cfg.AzureKey, region: cfg.AzureRegion, cfg: cfg}, nil
}

func (a *Azure) Name() string { return "azure" }

func (a *Azure) Start(ctx context.Context, req Request, emit Listener) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active != nil {
		a.active.abort()
		a.active = nil
	}

	id := uuid.NewString()
	sess := &azureSession{id: id, req: req, out: newEmitter(emit)}
	if err := sess.open(a.key, a.region, req); err != nil {
		sess.close()
		return "", err
	}
	a.active = sess
	log.SessionStart(id, a.Name(), req.Locale)

	go sess.run(ctx, a.cfg)
	return id, nil
}

func (a *Azure) Stop() {
	a.mu.Lock()
	sess := a.active
	a.mu.Unlock()
	if sess != nil {
		sess.stop()
	}
}

func (a *Azure) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active != nil {
		a.active.abort()
		a.active = nil
	}
	return nil
}

type azureSession struct {
	id  string
	req Request
	out *emitter

	config     *speech.SpeechConfig
	push       *sdkaudio.PushAudioInputStream
	audioCfg   *sdkaudio.AudioConfig
	recognizer *speech.SpeechRecognizer

	mu        sync.Mutex
	cap       *capture
	committed []string
	closeOnce sync.Once
}

func (s *azureSession) open(key, region string, req Request) error {
	var err error
	s.config, err = speech.NewSpeechConfigFromSubscription(key, region)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotAvailable, err)
	}
	if req.Locale != "" {
		if err := s.config.SetSpeechRecognitionLanguage(req.Locale); err != nil {
			return err
		}
	}

	format, err := sdkaudio.GetWaveFormatPCM(encoder.SampleRate, encoder.BitsPerSample, encoder.Channels)
	if err != nil {
		return fmt.Errorf("azure audio format: %w", err)
	}
	defer format.Close()
	s.push, err = sdkaudio.CreatePushAudioInputStreamFromFormat(format)
	if err != nil {
		return fmt.Errorf("azure push stream: %w", err)
	}
	s.audioCfg, err = sdkaudio.NewAudioConfigFromStreamInput(s.push)
	if err != nil {
		return fmt.Errorf("azure audio config: %w", err)
	}
	s.recognizer, err = speech.NewSpeechRecognizerFromConfig(s.config, s.audioCfg)
	if err != nil {
		return fmt.Errorf("azure recognizer: %w", err)
	}

	s.recognizer.SessionStarted(func(e speech.SessionEventArgs) {
		defer e.Close()
		s.out.live(Ready(s.id))
	})
	s.recognizer.SpeechStartDetected(func(e speech.RecognitionEventArgs) {
		defer e.Close()
		s.out.live(Other(s.id))
	})
	s.recognizer.Recognizing(func(e speech.SpeechRecognitionEventArgs) {
		defer e.Close()
		if !req.PartialResults || e.Result.Text == "" {
			return
		}
		s.out.live(Partial(s.id, s.withCommitted(e.Result.Text)))
	})
	s.recognizer.Recognized(func(e speech.SpeechRecognitionEventArgs) {
		defer e.Close()
		if e.Result.Reason == common.NoMatch || strings.TrimSpace(e.Result.Text) == "" {
			s.finish()
			return
		}
		s.mu.Lock()
		s.committed = append(s.committed, strings.TrimSpace(e.Result.Text))
		s.mu.Unlock()
		s.finish()
	})
	s.recognizer.Canceled(func(e speech.SpeechRecognitionCanceledEventArgs) {
		defer e.Close()
		if e.Reason != common.Error {
			s.finish()
			return
		}
		s.failWith(azureCode(e.ErrorCode), e.ErrorDetails)
	})
	return nil
}

func (s *azureSession) run(ctx context.Context, cfg Config) {
	c, err := openCapture(cfg, func(pcm []byte, _ float64) {
		s.push.Write(pcm)
	})
	if err != nil {
		s.failWith(Classify(err), err.Error())
		return
	}
	s.mu.Lock()
	s.cap = c
	s.mu.Unlock()
	if s.out.isEnded() {
		c.close()
		return
	}

	if err := <-s.recognizer.StartContinuousRecognitionAsync(); err != nil {
		s.failWith(CodeClient, err.Error())
		return
	}

	select {
	case <-ctx.Done():
		s.abort()
	case <-s.out.done:
	}
}

func (s *azureSession) withCommitted(text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return joinText(strings.Join(s.committed, " "), text)
}

// stop ends capture; the recognizer flushes what it has heard and reports
// it through Recognized or Canceled.
func (s *azureSession) stop() {
	s.mu.Lock()
	c := s.cap
	s.mu.Unlock()
	c.close()
	if s.push != nil {
		s.push.CloseStream()
	}
}

func (s *azureSession) finish() {
	s.mu.Lock()
	text := strings.Join(s.committed, " ")
	s.mu.Unlock()

	var ev Event
	if text == "" {
		ev = Failure(s.id, CodeNoMatch, "no match")
	} else {
		ev = Final(s.id, text)
	}
	if s.out.end(&ev) {
		go s.close()
	}
}

func (s *azureSession) failWith(code ErrorCode, detail string) {
	ev := Failure(s.id, code, detail)
	if s.out.end(&ev) {
		log.Warnf("azure session %s failed: %s", s.id, detail)
		go s.close()
	}
}

func (s *azureSession) abort() {
	if s.out.end(nil) {
		go s.close()
	}
}

func (s *azureSession) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		c := s.cap
		s.mu.Unlock()
		c.close()
		if s.recognizer != nil {
			<-s.recognizer.StopContinuousRecognitionAsync()
			s.recognizer.Close()
		}
		if s.push != nil {
			s.push.Close()
		}
		if s.audioCfg != nil {
			s.audioCfg.Close()
		}
		if s.config != nil {
			s.config.Close()
		}
	})
}

func azureCode(code common.CancellationErrorCode) ErrorCode {
	switch code {
	case common.AuthenticationFailure, common.Forbidden:
		return CodeInsufficientPermissions
	case common.TooManyRequests:
		return CodeRecognizerBusy
	case common.ConnectionFailure:
		return CodeNetwork
	case common.ServiceTimeout:
		return CodeNetworkTimeout
	case common.ServiceError, common.ServiceUnavailable:
		return CodeServer
	default:
		return CodeClient
	}
}
