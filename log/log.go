package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	diagFileName  = "diagnostics_log.txt"
	crashFileName = "crash_log.txt"
)

var (
	diagLog  zerolog.Logger
	diagFile *os.File
	logMu    sync.Mutex
	logReady bool
	pid      int
	dir      string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: LIVESCRIBE_LOG_PATH environment variable
	if envPath := os.Getenv("LIVESCRIBE_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error
	diagFile, err = os.OpenFile(filepath.Join(dir, diagFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	diagLog = newLogger(diagFile)
	logReady = true
	return nil
}

// InitWriter sends diagnostics to w instead of a file.
func InitWriter(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	pid = os.Getpid()
	diagLog = newLogger(w)
	logReady = true
}

func newLogger(w io.Writer) zerolog.Logger {
	consoleWriter := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	return zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(session, provider, locale string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", session).
		Str("provider", provider).
		Str("locale", locale).
		Msg("session_start")
}

// SessionEvent records a recognition callback. Only the kind is logged,
// never the recognized text.
func SessionEvent(session, kind string, candidates int) {
	if !logReady {
		return
	}
	diagLog.Debug().
		Str("session", session).
		Str("kind", kind).
		Int("candidates", candidates).
		Msg("session_event")
}

// StaleEvent records an event dropped because its session is no longer
// current.
func StaleEvent(session, current, kind string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", session).
		Str("current", current).
		Str("kind", kind).
		Msg("stale_event")
}

func SessionEnd(session, outcome string, code int, elapsed time.Duration) {
	if !logReady {
		return
	}
	ev := diagLog.Info().
		Str("session", session).
		Str("outcome", outcome).
		Float64("elapsed_s", elapsed.Seconds())
	if code != 0 {
		ev = ev.Int("code", code)
	}
	ev.Msg("session_end")
}

// CrashPath is where main points debug.SetCrashOutput.
func CrashPath() string {
	return filepath.Join(dir, crashFileName)
}
