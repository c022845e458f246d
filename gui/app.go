//go:build gui

// Package gui is the single-window desktop host: a language dropdown, a
// start/stop button, a stop button and the transcript.
package gui

import (
	"context"
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"livescribe/log"
	"livescribe/recognizer"
	"livescribe/session"
)

// Binder builds the controller for the window. post and notify must be
// handed to the controller unchanged; obs must be one of its observers.
type Binder func(post func(recognizer.Event), notify func(string), obs session.Observer) *session.Controller

type App struct {
	ctx     context.Context
	fyneApp fyne.App
	window  fyne.Window
	ctl     *session.Controller

	picker     *widget.Select
	toggle     *widget.Button
	stop       *widget.Button
	status     *widget.Label
	transcript *widget.Label
	notice     string

	closed atomic.Bool
}

// Run shows the window and blocks until it is closed or ctx is done. The
// recognizer is released once the window has gone.
func Run(ctx context.Context, bind Binder) error {
	a := newApp(ctx, app.NewWithID("io.livescribe.gui"), bind)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			fyne.Do(a.fyneApp.Quit)
		case <-done:
		}
	}()

	a.window.ShowAndRun()
	close(done)
	a.shutdown()
	return nil
}

func newApp(ctx context.Context, fa fyne.App, bind Binder) *App {
	a := &App{ctx: ctx, fyneApp: fa}
	a.fyneApp.Settings().SetTheme(&livescribeTheme{})
	a.window = a.fyneApp.NewWindow("livescribe")

	a.ctl = bind(a.post, a.notify, session.ObserverFunc(a.observe))
	a.window.SetContent(a.build())
	a.window.Resize(fyne.NewSize(420, 320))
	a.refresh()
	return a
}

// shutdown tears the controller down exactly once. Events still queued on
// the UI loop are dropped afterwards.
func (a *App) shutdown() {
	if a.closed.Swap(true) {
		return
	}
	a.ctl.Teardown()
}

func (a *App) build() fyne.CanvasObject {
	a.picker = widget.NewSelect(a.ctl.Languages(), func(name string) {
		if !a.ctl.SelectName(name) {
			log.Warnf("gui: unknown language %q", name)
		}
	})
	a.picker.SetSelectedIndex(a.ctl.SelectedIndex())

	a.toggle = widget.NewButtonWithIcon("", theme.MediaRecordIcon(), func() {
		a.notice = ""
		if err := a.ctl.Toggle(a.ctx); err != nil {
			log.Warnf("gui toggle: %v", err)
		}
		a.refresh()
	})
	a.toggle.Importance = widget.HighImportance

	a.stop = widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), func() {
		a.ctl.Stop()
		a.refresh()
	})

	a.status = widget.NewLabel("")
	a.transcript = widget.NewLabel("")
	a.transcript.Wrapping = fyne.TextWrapWord

	top := container.NewBorder(nil, nil, widget.NewLabel("Language"), nil, a.picker)
	controls := container.NewHBox(a.toggle, a.stop, a.status)
	return container.NewBorder(top, controls, nil, nil, container.NewVScroll(a.transcript))
}

// post runs on recognizer goroutines.
func (a *App) post(ev recognizer.Event) {
	fyne.Do(func() { a.deliver(ev) })
}

func (a *App) deliver(ev recognizer.Event) {
	if a.closed.Load() {
		return
	}
	a.ctl.Handle(ev)
	a.refresh()
}

func (a *App) notify(msg string) {
	if a.closed.Load() {
		return
	}
	a.notice = msg
	a.fyneApp.SendNotification(fyne.NewNotification("livescribe", msg))
	if a.status != nil {
		a.refresh()
	}
}

func (a *App) observe(u session.Update) {
	if a.transcript != nil {
		a.transcript.SetText(u.Text)
	}
}

func (a *App) refresh() {
	if a.ctl.Listening() {
		a.toggle.SetIcon(theme.MediaPauseIcon())
		a.stop.Enable()
		a.picker.Disable()
	} else {
		a.toggle.SetIcon(theme.MediaRecordIcon())
		a.stop.Disable()
		a.picker.Enable()
	}
	switch {
	case a.notice != "":
		a.status.SetText(a.notice)
	case !a.ctl.Available():
		a.status.SetText(session.MsgRecognizerUnavailable)
	case a.ctl.Listening():
		a.status.SetText(a.ctl.Prompt())
	default:
		a.status.SetText(a.ctl.ServiceName())
	}
}
