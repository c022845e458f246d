package recognizer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorCode values match the platform recognizer's error numbering so that
// codes from any backend render the same way.
type ErrorCode int

const (
	CodeNetworkTimeout          ErrorCode = 1
	CodeNetwork                 ErrorCode = 2
	CodeAudio                   ErrorCode = 3
	CodeServer                  ErrorCode = 4
	CodeClient                  ErrorCode = 5
	CodeSpeechTimeout           ErrorCode = 6
	CodeNoMatch                 ErrorCode = 7
	CodeRecognizerBusy          ErrorCode = 8
	CodeInsufficientPermissions ErrorCode = 9
)

var (
	ErrAudio    = errors.New("audio capture failed")
	ErrNoSpeech = errors.New("no speech input")
	ErrNoMatch  = errors.New("no recognition match")
	ErrBusy     = errors.New("recognizer busy")
)

// StatusError carries an HTTP status from a backend handshake or request.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Body)
}

// Classify maps a backend error onto the recognizer error codes.
func Classify(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrAudio):
		return CodeAudio
	case errors.Is(err, ErrNoSpeech):
		return CodeSpeechTimeout
	case errors.Is(err, ErrNoMatch):
		return CodeNoMatch
	case errors.Is(err, ErrBusy):
		return CodeRecognizerBusy
	case errors.Is(err, context.DeadlineExceeded):
		return CodeNetworkTimeout
	}

	var se *StatusError
	if errors.As(err, &se) {
		return codeForStatus(se.StatusCode)
	}

	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return CodeNetworkTimeout
		}
		return CodeNetwork
	}
	return CodeClient
}

func codeForStatus(status int) ErrorCode {
	switch {
	case status == http.StatusTooManyRequests:
		return CodeRecognizerBusy
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return CodeInsufficientPermissions
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return CodeNetworkTimeout
	case status >= 500:
		return CodeServer
	default:
		return CodeClient
	}
}
