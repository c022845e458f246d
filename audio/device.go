package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ErrPickerCanceled is returned when the user leaves the picker with Ctrl+C.
var ErrPickerCanceled = errors.New("device selection canceled")

type pickerKey int

const (
	keyNone pickerKey = iota
	keyUp
	keyDown
	keyConfirm
	keyCancel
)

func decodeKey(b []byte) pickerKey {
	switch {
	case len(b) == 1 && (b[0] == '\r' || b[0] == '\n'):
		return keyConfirm
	case len(b) == 1 && (b[0] == 3 || b[0] == 'q'):
		return keyCancel
	case len(b) == 1 && b[0] == 'k':
		return keyUp
	case len(b) == 1 && b[0] == 'j':
		return keyDown
	case len(b) == 3 && b[0] == 0x1b && b[1] == '[' && b[2] == 'A':
		return keyUp
	case len(b) == 3 && b[0] == 0x1b && b[1] == '[' && b[2] == 'B':
		return keyDown
	}
	return keyNone
}

// SelectDevice asks on the terminal which capture source to use. A
// single source is returned without prompting.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, ErrNoDevices
	case 1:
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, old)

	i, err := pickDevice(devices, os.Stdin, os.Stdout)
	if err != nil {
		return nil, err
	}
	return &devices[i], nil
}

// pickDevice runs the arrow-key list over in/out and returns the chosen
// index. The cursor wraps at both ends.
func pickDevice(devices []DeviceInfo, in io.Reader, out io.Writer) (int, error) {
	cursor := 0
	draw := func() {
		fmt.Fprint(out, "\r\x1b[J")
		fmt.Fprint(out, "Microphone for dictation (↑/↓, Enter to confirm):\r\n\r\n")
		for i, d := range devices {
			note := ""
			if IsBluetooth(d.Name) {
				note = " \x1b[33m(bluetooth, lower quality)\x1b[0m"
			}
			if i == cursor {
				fmt.Fprintf(out, "  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, note)
			} else {
				fmt.Fprintf(out, "    %s%s\r\n", d.Name, note)
			}
		}
	}
	draw()

	buf := make([]byte, 3)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return 0, fmt.Errorf("reading input: %w", err)
		}
		switch decodeKey(buf[:n]) {
		case keyConfirm:
			fmt.Fprint(out, "\r\n")
			return cursor, nil
		case keyCancel:
			fmt.Fprint(out, "\r\n")
			return 0, ErrPickerCanceled
		case keyUp:
			cursor = (cursor + len(devices) - 1) % len(devices)
		case keyDown:
			cursor = (cursor + 1) % len(devices)
		default:
			continue
		}
		fmt.Fprintf(out, "\x1b[%dA", len(devices)+2)
		draw()
	}
}
