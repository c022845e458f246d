// Package clipboard copies the transcript to the system clipboard.
package clipboard

import (
	"errors"
	"strings"

	cb "github.com/atotto/clipboard"
)

var (
	ErrEmpty       = errors.New("nothing to copy")
	ErrUnsupported = errors.New("no clipboard utility available")
)

// Copy writes text to the clipboard. Blank text is refused so a stray key
// press does not wipe what the user copied earlier.
func Copy(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmpty
	}
	if cb.Unsupported {
		return ErrUnsupported
	}
	return cb.WriteAll(text)
}

func Read() (string, error) {
	if cb.Unsupported {
		return "", ErrUnsupported
	}
	return cb.ReadAll()
}

// Available reports whether a clipboard backend was found.
func Available() bool { return !cb.Unsupported }
