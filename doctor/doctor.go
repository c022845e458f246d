// Package doctor runs the -doctor diagnostics.
package doctor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"livescribe/audio"
	"livescribe/clipboard"
	"livescribe/language"
	"livescribe/recognizer"
	"livescribe/session"
)

type Options struct {
	Out io.Writer
	In  io.Reader // read only when Live is set

	Audio      audio.Context
	NewService func() (recognizer.Service, error)
	Languages  []language.Entry // defaults to language.Entries
	Locale     string           // for the live check; defaults to the picker default

	// Live records one short session and asks the user to confirm the text.
	Live        bool
	LiveTimeout time.Duration
}

// Run executes the checks in order and returns an exit code (0=all pass, 1=any fail).
func Run(opts Options) int {
	if opts.Languages == nil {
		opts.Languages = language.Entries
	}
	if opts.LiveTimeout <= 0 {
		opts.LiveTimeout = 15 * time.Second
	}
	d := &doctor{Options: opts}

	d.printf("livescribe doctor - system diagnostics\n")
	d.printf("======================================\n")

	allPass := d.checkMicrophone()
	svc, ok := d.checkRecognizer()
	allPass = allPass && ok
	if svc != nil {
		defer svc.Close()
	}
	if !d.checkLanguages() {
		allPass = false
	}
	d.checkClipboard()
	if opts.Live && svc != nil && allPass {
		if !d.checkLive(svc) {
			allPass = false
		}
	}

	d.printf("\n")
	if allPass {
		d.printf("All checks passed!\n")
		return 0
	}
	d.printf("Some checks failed. See details above.\n")
	return 1
}

type doctor struct {
	Options
	step int
}

func (d *doctor) printf(format string, args ...any) {
	fmt.Fprintf(d.Out, format, args...)
}

func (d *doctor) header(title string) {
	d.step++
	d.printf("\n[%d] %s\n", d.step, title)
}

func (d *doctor) checkMicrophone() bool {
	d.header("Microphone")
	if err := audio.CheckAccess(d.Audio); err != nil {
		d.printf("  FAIL: %v\n", err)
		return false
	}
	devices, _ := d.Audio.Devices()
	for _, dev := range devices {
		note := ""
		if audio.IsBluetooth(dev.Name) {
			note = " (bluetooth, may downgrade playback quality)"
		}
		d.printf("  %s%s\n", dev.Name, note)
	}
	d.printf("  PASS: %d capture device(s)\n", len(devices))
	return true
}

func (d *doctor) checkRecognizer() (recognizer.Service, bool) {
	d.header("Speech recognizer")
	if d.NewService == nil {
		d.printf("  FAIL: %s\n", session.MsgRecognitionUnavailable)
		return nil, false
	}
	svc, err := d.NewService()
	if err != nil {
		if errors.Is(err, recognizer.ErrNotAvailable) {
			d.printf("  FAIL: %v\n", err)
			d.printf("  Set DEEPGRAM_API_KEY, OPENAI_API_KEY or GROQ_API_KEY\n")
		} else {
			d.printf("  FAIL: %v\n", err)
		}
		return nil, false
	}
	d.printf("  PASS: using %s\n", svc.Name())
	return svc, true
}

func (d *doctor) checkLanguages() bool {
	d.header("Languages")
	if err := language.Validate(d.Languages); err != nil {
		d.printf("  FAIL: %v\n", err)
		return false
	}
	for _, e := range d.Languages {
		d.printf("  %-10s %-6s %s\n", e.Name, e.Tag, language.Native(e))
	}
	d.printf("  PASS: %d languages\n", len(d.Languages))
	return true
}

// Clipboard hooks; tests swap in an in-memory board.
var (
	clipboardAvailable = clipboard.Available
	clipboardCopy      = clipboard.Copy
	clipboardRead      = clipboard.Read
)

const clipboardTimeout = 3 * time.Second

// checkClipboard only warns; copying is a convenience. The round trip puts
// back whatever the user had copied before.
func (d *doctor) checkClipboard() {
	d.header("Clipboard")
	if !clipboardAvailable() {
		d.printf("  WARN: %v, ctrl+y will not work\n", clipboard.ErrUnsupported)
		return
	}

	type result struct {
		got   string
		phase string
		err   error
	}
	want := fmt.Sprintf("livescribe-doctor-%d", time.Now().UnixNano())
	ch := make(chan result, 1)
	go func() {
		prev, _ := clipboardRead()
		if err := clipboardCopy(want); err != nil {
			ch <- result{phase: "write", err: err}
			return
		}
		got, err := clipboardRead()
		if prev != "" {
			clipboardCopy(prev)
		}
		if err != nil {
			ch <- result{phase: "read", err: err}
			return
		}
		ch <- result{got: got}
	}()

	select {
	case r := <-ch:
		switch {
		case r.err != nil:
			d.printf("  WARN: clipboard %s failed: %v\n", r.phase, r.err)
		case r.got != want:
			d.printf("  WARN: clipboard mismatch: wrote %q, got %q\n", want, r.got)
		default:
			d.printf("  PASS: clipboard write/read verified\n")
		}
	case <-time.After(clipboardTimeout):
		d.printf("  WARN: clipboard timed out (clipboard tool hung?)\n")
	}
}

func (d *doctor) checkLive(svc recognizer.Service) bool {
	d.header("Live recognition")
	locale := d.Locale
	if locale == "" {
		locale = language.NewPicker(d.Languages).Selected().Tag
	}
	reader := bufio.NewReader(d.In)
	d.printf("Press Enter and speak a short sentence (%s)...", locale)
	reader.ReadString('\n')

	events := make(chan recognizer.Event, 64)
	ctx, cancel := context.WithTimeout(context.Background(), d.LiveTimeout)
	defer cancel()

	id, err := svc.Start(ctx, recognizer.Request{
		LanguageModel:  recognizer.LanguageModelFreeForm,
		Locale:         locale,
		PartialResults: true,
	}, func(ev recognizer.Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		d.printf("  FAIL: %s (%v)\n", session.ErrorMessage(recognizer.Classify(err)), err)
		return false
	}

	text, err := d.wait(ctx, svc, id, events)
	if err != nil {
		d.printf("  FAIL: %v\n", err)
		return false
	}
	d.printf("\n  Transcribed text: %s\n\n", text)
	d.printf("Is this correct? [y/n]: ")
	confirm, _ := reader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))
	if confirm == "y" || confirm == "yes" {
		d.printf("  PASS: transcription verified by user\n")
		return true
	}
	d.printf("  FAIL: transcription not confirmed\n")
	return false
}

func (d *doctor) wait(ctx context.Context, svc recognizer.Service, id string, events <-chan recognizer.Event) (string, error) {
	for {
		select {
		case ev := <-events:
			if ev.Session != id {
				continue
			}
			switch ev.Kind {
			case recognizer.KindReady:
				d.printf("  listening\n")
			case recognizer.KindPartial:
				if top, ok := ev.Top(); ok {
					d.printf("  ... %s\n", top)
				}
			case recognizer.KindFinal:
				top, _ := ev.Top()
				return top, nil
			case recognizer.KindError:
				return "", errors.New(session.ErrorMessage(ev.Code))
			}
		case <-ctx.Done():
			svc.Stop()
			return "", fmt.Errorf("no result within %s", d.LiveTimeout)
		}
	}
}
