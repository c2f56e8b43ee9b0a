package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const toastTTL = 3 * time.Second

// SessionUI renders the live session view: current status, role badge and
// short-lived toasts, inline so previous terminal output stays visible.
type SessionUI struct {
	program    *tea.Program
	model      *sessionModel
	updateChan chan sessionUpdate
	quit       chan struct{}
	wg         sync.WaitGroup
}

type sessionUpdate struct {
	status string
	live   bool
	toast  string
	icon   string
}

type toast struct {
	icon    string
	message string
	expires time.Time
}

type sessionModel struct {
	roomID     string
	roleLabel  string
	status     string
	live       bool
	toasts     []toast
	spinner    spinner.Model
	updateChan chan sessionUpdate
	quit       chan struct{}
	mu         sync.RWMutex
	quitting   bool
}

type tickMsg time.Time

// NewSessionUI creates the live view for a room.
func NewSessionUI(roomID, roleLabel string) *SessionUI {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	updateChan := make(chan sessionUpdate, 32)
	quit := make(chan struct{})

	model := &sessionModel{
		roomID:     roomID,
		roleLabel:  roleLabel,
		status:     "Initializing",
		spinner:    s,
		updateChan: updateChan,
		quit:       quit,
	}

	return &SessionUI{
		model:      model,
		updateChan: updateChan,
		quit:       quit,
	}
}

// Start runs the UI in a goroutine.
func (ui *SessionUI) Start() {
	ui.wg.Add(1)
	go func() {
		defer ui.wg.Done()
		ui.program = tea.NewProgram(ui.model)
		ui.program.Run()
	}()
}

// SetStatus updates the status line. live marks the red on-air badge.
func (ui *SessionUI) SetStatus(status string, live bool) {
	select {
	case ui.updateChan <- sessionUpdate{status: status, live: live}:
	default:
	}
}

// Toast shows a short-lived notification.
func (ui *SessionUI) Toast(icon, message string) {
	select {
	case ui.updateChan <- sessionUpdate{toast: message, icon: icon}:
	default:
	}
}

// Quit returns a channel closed when the user asked to leave (q / ctrl+c).
func (ui *SessionUI) Quit() <-chan struct{} {
	return ui.quit
}

// Stop tears the UI down.
func (ui *SessionUI) Stop() {
	if ui.program != nil {
		ui.program.Quit()
	}
	ui.wg.Wait()
}

func (m *sessionModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.listenForUpdates(),
		tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) }),
	)
}

func (m *sessionModel) listenForUpdates() tea.Cmd {
	return func() tea.Msg {
		return <-m.updateChan
	}
}

func (m *sessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.mu.Lock()
			if !m.quitting {
				m.quitting = true
				close(m.quit)
			}
			m.mu.Unlock()
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		m.expireToasts()
		cmds = append(cmds, tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) }))

	case sessionUpdate:
		m.mu.Lock()
		if msg.status != "" {
			m.status = msg.status
			m.live = msg.live
		}
		if msg.toast != "" {
			m.toasts = append(m.toasts, toast{
				icon:    msg.icon,
				message: msg.toast,
				expires: time.Now().Add(toastTTL),
			})
		}
		m.mu.Unlock()
		cmds = append(cmds, m.listenForUpdates())
	}

	return m, tea.Batch(cmds...)
}

func (m *sessionModel) expireToasts() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	kept := m.toasts[:0]
	for _, t := range m.toasts {
		if t.expires.After(now) {
			kept = append(kept, t)
		}
	}
	m.toasts = kept
}

func (m *sessionModel) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(fmt.Sprintf("\n%s Room %s %s\n\n",
		IconRoom,
		BoldStyle.Render(m.roomID),
		MutedStyle.Render("("+m.roleLabel+")"),
	))

	if m.live {
		b.WriteString(fmt.Sprintf("%s %s\n", LiveStyle.Render(IconLive), m.status))
	} else {
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), m.status))
	}

	for _, t := range m.toasts {
		b.WriteString(fmt.Sprintf("  %s %s\n", t.icon, t.message))
	}

	b.WriteString("\n" + MutedStyle.Render("Press q to leave"))

	return b.String()
}
