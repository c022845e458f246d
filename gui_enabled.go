//go:build gui

package main

import (
	"context"
	"runtime"

	"livescribe/gui"
	"livescribe/recognizer"
	"livescribe/session"
)

// Fyne wants the main thread.
func init() {
	runtime.LockOSThread()
}

type guiHost struct {
	postFn   func(recognizer.Event)
	notifyFn func(string)
}

func (h guiHost) post(ev recognizer.Event) { h.postFn(ev) }
func (h guiHost) notify(msg string)        { h.notifyFn(msg) }

func runGUI(ctx context.Context, a *app) error {
	return gui.Run(ctx, func(post func(recognizer.Event), notify func(string), obs session.Observer) *session.Controller {
		return a.controller(guiHost{postFn: post, notifyFn: notify}, obs)
	})
}
