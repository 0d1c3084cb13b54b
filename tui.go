package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"talkie/voice"
)

// TUI message types
type ModeMsg struct{ Mode voice.Mode }
type StateMsg struct{ State voice.State }
type TranscriptMsg struct{ Text string }
type LevelMsg struct{ Level float64 }
type SubmittedMsg struct{ Text string }
type ReplyMsg struct{ Text string }
type VoiceErrMsg struct{ Err error }
type AgentErrMsg struct{ Err error }
type QuietMsg struct{ Quiet bool }
type DeviceLineMsg struct{ Text string }
type tickMsg time.Time

// actions is what the UI may ask of the rest of the app.
type actions interface {
	SetMode(voice.Mode)
	SubmitTyped(text string)
	ClearHistory()
	InitialMode() voice.Mode
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

func sendTUI(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

var (
	styleBadgeListen = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	styleBadgeProc   = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	styleBadgeSpeak  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	styleBadgeErr    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleBadgeIdle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleMeterOn     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleMeterHot    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleMeterOff    = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	styleDim         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleFaint       = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleTranscript  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleReply       = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	styleWarn        = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleInput       = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
)

type tuiModel struct {
	acts actions

	mode       voice.Mode
	state      voice.State
	level      float64
	transcript string
	submitted  string
	reply      string
	lastErr    string
	quietWarn  bool
	deviceLine string
	input      string
	frame      int
	width      int
	height     int
}

func NewTUIProgram(acts actions) *tea.Program {
	m := tuiModel{acts: acts, mode: voice.Silent, state: voice.Idle}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(tuiTick(), func() tea.Msg {
		m.acts.SetMode(m.acts.InitialMode())
		return nil
	})
}

func nextMode(mode voice.Mode) voice.Mode {
	switch mode {
	case voice.Silent:
		return voice.ListenOnly
	case voice.ListenOnly:
		return voice.Conversational
	default:
		return voice.Silent
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case ModeMsg:
		m.mode = msg.Mode

	case StateMsg:
		m.state = msg.State
		if msg.State != voice.Errored {
			m.lastErr = ""
		}

	case TranscriptMsg:
		m.transcript = msg.Text

	case LevelMsg:
		m.level = m.level*0.6 + msg.Level*0.4

	case SubmittedMsg:
		m.submitted = msg.Text
		m.reply = ""

	case ReplyMsg:
		m.reply = msg.Text

	case VoiceErrMsg:
		m.lastErr = msg.Err.Error()

	case AgentErrMsg:
		m.lastErr = msg.Err.Error()

	case QuietMsg:
		m.quietWarn = msg.Quiet

	case DeviceLineMsg:
		m.deviceLine = msg.Text
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "tab":
		m.input = ""
		m.acts.SetMode(nextMode(m.mode))
		return m, nil
	case "ctrl+l":
		m.acts.ClearHistory()
		m.reply = ""
		m.submitted = ""
		return m, nil
	}

	// Typed messages only make sense while the microphone is off.
	if m.mode != voice.Silent {
		return m, nil
	}
	switch msg.Type {
	case tea.KeyEnter:
		text := strings.TrimSpace(m.input)
		m.input = ""
		if text != "" {
			m.acts.SubmitTyped(text)
		}
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			runes := []rune(m.input)
			m.input = string(runes[:len(runes)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
	return m, nil
}

func (m tuiModel) stateBadge() string {
	switch m.state {
	case voice.Listening:
		return styleBadgeListen.Render("● LISTENING")
	case voice.Processing:
		return styleBadgeProc.Render("◌ PROCESSING")
	case voice.Speaking:
		return styleBadgeSpeak.Render("♪ SPEAKING")
	case voice.Errored:
		return styleBadgeErr.Render("✗ ERROR")
	default:
		return styleBadgeIdle.Render("○ IDLE")
	}
}

const meterWidth = 30

func (m tuiModel) meter() string {
	level := m.level
	if m.state != voice.Listening && m.state != voice.Speaking {
		level = 0
	}
	lit := int(level * meterWidth)
	if lit > meterWidth {
		lit = meterWidth
	}
	var b strings.Builder
	for i := 0; i < meterWidth; i++ {
		switch {
		case i < lit && i >= meterWidth*3/4:
			b.WriteString(styleMeterHot.Render("█"))
		case i < lit:
			b.WriteString(styleMeterOn.Render("█"))
		default:
			b.WriteString(styleMeterOff.Render("░"))
		}
	}
	return b.String()
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	wrapWidth := m.width - 4
	if wrapWidth < 20 {
		wrapWidth = 20
	}

	var lines []string
	lines = append(lines, styleFaint.Render("talkie "+version))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("%s  %s", m.stateBadge(), styleDim.Render("mode: "+m.mode.String())))
	if m.deviceLine != "" {
		lines = append(lines, styleDim.Render(m.deviceLine))
	}
	lines = append(lines, "")
	lines = append(lines, m.meter())
	if m.quietWarn {
		lines = append(lines, styleWarn.Render("⚠ no speech detected"))
	}
	lines = append(lines, "")

	if m.transcript != "" {
		lines = append(lines, styleDim.Render("hearing:"))
		for _, l := range wrapText(m.transcript, wrapWidth) {
			lines = append(lines, "  "+styleTranscript.Render(l))
		}
		lines = append(lines, "")
	}
	if m.submitted != "" {
		lines = append(lines, styleDim.Render("you:"))
		for _, l := range wrapText(m.submitted, wrapWidth) {
			lines = append(lines, "  "+styleTranscript.Render(l))
		}
		if m.reply != "" {
			lines = append(lines, styleDim.Render("assistant:"))
			for _, l := range wrapText(m.reply, wrapWidth) {
				lines = append(lines, "  "+styleReply.Render(l))
			}
		} else if m.state == voice.Processing {
			dots := strings.Repeat(".", m.frame/8%4)
			lines = append(lines, styleDim.Render("assistant: "+dots))
		}
		lines = append(lines, "")
	}
	if m.lastErr != "" {
		for _, l := range wrapText(m.lastErr, wrapWidth) {
			lines = append(lines, styleBadgeErr.Render(l))
		}
		lines = append(lines, "")
	}

	if m.mode == voice.Silent {
		lines = append(lines, styleDim.Render("type a message:"))
		cursor := " "
		if m.frame/8%2 == 0 {
			cursor = "_"
		}
		lines = append(lines, "  "+styleInput.Render(m.input)+styleInput.Render(cursor))
		lines = append(lines, "")
	}

	help := styleFaint.Render("tab") + styleDim.Render(" mode  ") +
		styleFaint.Render("ctrl+l") + styleDim.Render(" clear  ") +
		styleFaint.Render("esc") + styleDim.Render(" quit")
	lines = append(lines, help)

	return strings.Join(lines, "\n")
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
