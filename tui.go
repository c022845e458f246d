package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"livescribe/clipboard"
	"livescribe/language"
	"livescribe/log"
	"livescribe/recognizer"
	"livescribe/session"
)

// TUI message types
type eventMsg struct{ ev recognizer.Event }
type tickMsg time.Time

type tuiModel struct {
	ctx  context.Context
	ctl  *session.Controller
	send func(tea.Msg)

	cursor        int
	notice        string
	finals        int
	lastKind      session.UpdateKind
	frame         int
	width, height int
}

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	recStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	textStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// newTUIModel builds the model and its controller. The caller sets send
// before events can flow, usually to (*tea.Program).Send.
func newTUIModel(ctx context.Context, a *app) *tuiModel {
	m := &tuiModel{ctx: ctx}
	m.ctl = a.controller(m, session.ObserverFunc(m.observe))
	m.cursor = m.ctl.SelectedIndex()
	return m
}

func runTUI(ctx context.Context, a *app) error {
	m := newTUIModel(ctx, a)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.send = p.Send
	_, err := p.Run()
	m.ctl.Teardown()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *tuiModel) post(ev recognizer.Event) {
	if m.send != nil {
		m.send(eventMsg{ev})
	}
}

func (m *tuiModel) notify(msg string) { m.notice = msg }

func (m *tuiModel) observe(u session.Update) {
	m.lastKind = u.Kind
	if u.Kind == session.UpdateFinal {
		m.finals++
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(400*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case eventMsg:
		m.ctl.Handle(msg.ev)

	case tea.KeyMsg:
		return m, m.key(msg.String())
	}
	return m, nil
}

func (m *tuiModel) key(k string) tea.Cmd {
	switch k {
	case "ctrl+c", "q", "esc":
		return tea.Quit
	case "up", "k":
		m.move(-1)
	case "down", "j":
		m.move(1)
	case " ", "enter":
		m.notice = ""
		if err := m.ctl.Toggle(m.ctx); err != nil && !errors.Is(err, session.ErrUnavailable) {
			log.Warnf("toggle: %v", err)
		}
	case "s":
		m.ctl.Stop()
	case "r":
		if m.ctl.SetupRecognizer() {
			m.notice = "Recognizer ready: " + m.ctl.ServiceName()
		}
	case "ctrl+y":
		m.copyView()
	}
	return nil
}

func (m *tuiModel) move(delta int) {
	n := len(m.ctl.Languages())
	m.cursor = (m.cursor + delta + n) % n
	m.ctl.Select(m.cursor)
}

func (m *tuiModel) copyView() {
	err := clipboard.Copy(m.ctl.View())
	switch {
	case err == nil:
		m.notice = "Copied to clipboard"
	case errors.Is(err, clipboard.ErrEmpty):
		m.notice = "Nothing to copy"
	default:
		log.Warnf("clipboard: %v", err)
		m.notice = "Copy failed"
	}
}

func (m *tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const listWidth = 30
	var left strings.Builder
	left.WriteString(titleStyle.Render("Language") + "\n\n")
	selected := m.ctl.SelectedIndex()
	for i, name := range m.ctl.Languages() {
		marker := "  "
		if i == m.cursor {
			marker = cursorStyle.Render("> ")
		}
		line := name
		if native := language.Native(m.ctl.Language(i)); native != "" && native != name {
			line += " " + dimStyle.Render(native)
		}
		if i == selected {
			line = selectedStyle.Render("● ") + line
		} else {
			line = "  " + line
		}
		left.WriteString(marker + line + "\n")
	}

	rightWidth := m.width - listWidth - 1
	if rightWidth < 20 {
		rightWidth = 20
	}
	var right strings.Builder
	right.WriteString(m.statusLine() + "\n")
	if name := m.ctl.ServiceName(); name != "" {
		right.WriteString(dimStyle.Render("recognizer: "+name) + "\n")
	} else {
		right.WriteString(errorStyle.Render("recognizer: unavailable (r to retry)") + "\n")
	}
	right.WriteString("\n")

	view := m.ctl.View()
	switch {
	case view == "" && m.ctl.Listening():
		right.WriteString(dimStyle.Render(m.ctl.Prompt()))
	case view == "":
		right.WriteString(dimStyle.Render("Press space to dictate"))
	default:
		style := textStyle
		if m.lastKind == session.UpdateError {
			style = errorStyle
		}
		right.WriteString(style.Width(rightWidth - 2).Render(view))
	}
	right.WriteString("\n\n")

	if m.notice != "" {
		right.WriteString(noticeStyle.Render(m.notice) + "\n")
	}
	if m.finals > 0 {
		right.WriteString(dimStyle.Render(fmt.Sprintf("%d result(s) this run", m.finals)) + "\n")
	}
	right.WriteString("\n" + helpLine())

	leftPanel := lipgloss.NewStyle().Width(listWidth).Height(m.height).Render(left.String())
	rightPanel := lipgloss.NewStyle().Width(rightWidth).Height(m.height).PaddingLeft(1).Render(right.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
}

func (m *tuiModel) statusLine() string {
	if m.ctl.Listening() {
		dot := "●"
		if m.frame%2 == 1 {
			dot = "○"
		}
		return recStyle.Render(dot + " LISTENING " + m.ctl.Selected().Name)
	}
	return dimStyle.Render("○ IDLE")
}

func helpLine() string {
	keys := []struct{ key, desc string }{
		{"space", "start/stop"},
		{"s", "stop"},
		{"↑/↓", "language"},
		{"r", "retry"},
		{"ctrl+y", "copy"},
		{"q", "quit"},
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = helpKeyStyle.Render(k.key) + helpStyle.Render(" "+k.desc)
	}
	return strings.Join(parts, helpStyle.Render("  "))
}
