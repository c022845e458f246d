package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"livescribe/recognizer"
)

func runScript(t *testing.T, script string) string {
	t.Helper()
	fake := recognizer.NewFake()
	var out bytes.Buffer
	if code := runTestMode(context.Background(), strings.NewReader(script), &out, testApp(t, fake), fake); code != 0 {
		t.Fatalf("exit = %d, output:\n%s", code, out.String())
	}
	return out.String()
}

func TestHarnessDictation(t *testing.T) {
	out := runScript(t, `
SELECT Hindi
START
READY
PARTIAL नम
FINAL नमस्ते | नमस्ते जी
QUIT
`)
	for _, want := range []string{
		`update: start "Listening in Hindi..."`,
		`update: ready "Listening..."`,
		`update: partial "नम"`,
		`state: idle view: "नमस्ते"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestHarnessStaleAndErrors(t *testing.T) {
	out := runScript(t, `
START
TOGGLE
TOGGLE
STALE from the past
ERROR 9
ERROR nope
READY
`)
	if strings.Contains(out, `view: "from the past"`) {
		t.Errorf("stale result shown:\n%s", out)
	}
	if !strings.Contains(out, `state: idle view: "Insufficient permissions"`) {
		t.Errorf("output:\n%s", out)
	}
	if !strings.Contains(out, `error: bad code "nope"`) {
		t.Errorf("output:\n%s", out)
	}
}

func TestHarnessBadInput(t *testing.T) {
	out := runScript(t, `
READY
SELECT Klingon
SELECT 99
FROB
`)
	for _, want := range []string{
		"error: no session",
		`error: unknown language "Klingon"`,
		"error: index 99 out of range",
		`error: unknown command "FROB"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestHarnessStartWhileListening(t *testing.T) {
	out := runScript(t, "START\nSTART\n")
	if !strings.Contains(out, "error: already listening") {
		t.Errorf("output:\n%s", out)
	}
}
