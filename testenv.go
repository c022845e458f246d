package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"livescribe/log"
	"livescribe/recognizer"
	"livescribe/session"
)

// testHost drives a controller from line commands. The fake recognizer
// emits on the reading goroutine, so events are handled in place.
type testHost struct {
	out  io.Writer
	fake *recognizer.Fake
	ctl  *session.Controller
}

func (h *testHost) post(ev recognizer.Event) { h.ctl.Handle(ev) }

func (h *testHost) notify(msg string) { fmt.Fprintf(h.out, "notice: %s\n", msg) }

func (h *testHost) observe(u session.Update) {
	fmt.Fprintf(h.out, "update: %s %q\n", u.Kind, u.Text)
}

// runTestMode reads commands from in until QUIT or EOF:
//
//	SELECT <name|index>   START   STOP   TOGGLE   SETUP
//	READY   PARTIAL <text>   FINAL <text>   ERROR <code>   OTHER
//	STALE <text>          emits a final result for the previous session
//	SLEEP <ms>            QUIT
//
// After every command it prints the controller state and view.
func runTestMode(ctx context.Context, in io.Reader, out io.Writer, a *app, fake *recognizer.Fake) int {
	h := &testHost{out: out, fake: fake}
	h.ctl = a.controller(h, session.ObserverFunc(h.observe))
	defer h.ctl.Teardown()

	var previous string
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		switch strings.ToUpper(cmd) {
		case "QUIT":
			return 0
		case "SELECT":
			h.selectLanguage(arg)
		case "START":
			before := fake.Session()
			if err := h.ctl.Start(ctx); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			} else if before != "" {
				previous = before
			}
		case "STOP":
			h.ctl.Stop()
		case "TOGGLE":
			before := fake.Session()
			if err := h.ctl.Toggle(ctx); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			} else if fake.Session() != before {
				previous = before
			}
		case "SETUP":
			fmt.Fprintf(out, "setup: %v\n", h.ctl.SetupRecognizer())
		case "READY":
			h.emit(recognizer.Ready(""))
		case "PARTIAL":
			h.emit(recognizer.Partial("", candidates(arg)...))
		case "FINAL":
			h.emit(recognizer.Final("", candidates(arg)...))
		case "ERROR":
			code, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Fprintf(out, "error: bad code %q\n", arg)
				continue
			}
			h.emit(recognizer.Failure("", recognizer.ErrorCode(code), "injected"))
		case "OTHER":
			h.emit(recognizer.Other(""))
		case "STALE":
			if previous == "" {
				fmt.Fprintln(out, "error: no previous session")
				continue
			}
			h.emit(recognizer.Final(previous, candidates(arg)...))
		case "SLEEP":
			if ms, err := strconv.Atoi(arg); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
			continue
		default:
			fmt.Fprintf(out, "error: unknown command %q\n", cmd)
			continue
		}
		fmt.Fprintf(out, "state: %s view: %q\n", h.ctl.State(), h.ctl.View())
	}
	if err := scanner.Err(); err != nil {
		log.Errorf("test mode input: %v", err)
		return 1
	}
	return 0
}

func (h *testHost) emit(ev recognizer.Event) {
	if !h.fake.Emit(ev) {
		fmt.Fprintln(h.out, "error: no session")
	}
}

func (h *testHost) selectLanguage(arg string) {
	if i, err := strconv.Atoi(arg); err == nil {
		if i < 0 || i >= len(h.ctl.Languages()) {
			fmt.Fprintf(h.out, "error: index %d out of range\n", i)
			return
		}
		h.ctl.Select(i)
		return
	}
	if !h.ctl.SelectName(arg) {
		fmt.Fprintf(h.out, "error: unknown language %q\n", arg)
	}
}

// candidates splits "a | b" into ranked alternatives. An empty argument
// yields no candidates.
func candidates(arg string) []string {
	if arg == "" {
		return nil
	}
	parts := strings.Split(arg, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
