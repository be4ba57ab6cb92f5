package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"wellnav/internal/coach"
	"wellnav/internal/config"
	"wellnav/internal/session"
)

type tabID int

const (
	tabChat tabID = iota
	tabHelp
)

type field int

const (
	fieldName field = iota
	fieldGoal
	fieldActivity
	fieldMetric
	fieldMessage
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldName:     "Name",
	fieldGoal:     "Goal",
	fieldActivity: "Activity",
	fieldMetric:   "Metric",
	fieldMessage:  "Message",
}

var activityLevels = []string{"", "sedentary", "light", "moderate", "active"}

type model struct {
	cfg    config.Config
	ctrl   *session.Controller
	logger *zap.Logger

	state         session.State
	activeTab     tabID
	focus         field
	activityLevel string
	quitConfirm   bool

	// fieldActivity has no text input; it is cycled with Left/Right.
	inputs     [fieldCount]textinput.Model
	transcript viewport.Model
	guidance   viewport.Model
	spinner    spinner.Model

	renderer      *glamour.TermRenderer
	rendererWidth int

	width  int
	height int

	theme uiTheme
}

type coachDoneMsg struct {
	resp coach.CoachResponse
	err  error
}

type syncDoneMsg struct {
	err error
}

type healthDoneMsg struct {
	err error
}

func newModel(cfg config.Config, ctrl *session.Controller, logger *zap.Logger) model {
	if logger == nil {
		logger = zap.NewNop()
	}
	newInput := func(placeholder, value string, limit int) textinput.Model {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = placeholder
		in.CharLimit = limit
		in.SetValue(value)
		return in
	}

	var inputs [fieldCount]textinput.Model
	inputs[fieldName] = newInput("your name", cfg.Profile.Name, 80)
	inputs[fieldGoal] = newInput("e.g. sleep 7 hours a night", cfg.Profile.Goal, 200)
	inputs[fieldMetric] = newInput("e.g. steps, sleep hours", cfg.Profile.PrimaryMetric, 120)
	inputs[fieldMessage] = newInput("Tell the coach how you're doing. /help for commands.", "", 4000)
	inputs[fieldMessage].Prompt = "❯ "

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	transcript := viewport.New(0, 0)
	transcript.MouseWheelEnabled = true
	transcript.MouseWheelDelta = 4
	guidance := viewport.New(0, 0)

	m := model{
		cfg:           cfg,
		ctrl:          ctrl,
		logger:        logger,
		activeTab:     tabChat,
		activityLevel: strings.TrimSpace(cfg.Profile.ActivityLevel),
		inputs:        inputs,
		transcript:    transcript,
		guidance:      guidance,
		spinner:       sp,
		theme:         newTheme(),
	}
	if strings.TrimSpace(cfg.Profile.Name) == "" {
		m.setFocus(fieldName)
	} else {
		m.setFocus(fieldMessage)
	}
	ctrl.SetProfile(m.profile())
	m.state = ctrl.Snapshot()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		textinput.Blink,
		m.healthCmd(),
	)
}

func (m model) profile() session.Profile {
	return session.Profile{
		Name:          m.inputs[fieldName].Value(),
		Goal:          m.inputs[fieldGoal].Value(),
		ActivityLevel: m.activityLevel,
		PrimaryMetric: m.inputs[fieldMetric].Value(),
	}
}

// setFocus moves focus to f and returns the cursor blink command of the
// newly focused input, if any. fieldActivity has no input to focus.
func (m *model) setFocus(f field) tea.Cmd {
	m.focus = f
	var cmd tea.Cmd
	for i := range m.inputs {
		if field(i) == fieldActivity {
			continue
		}
		if field(i) == f {
			cmd = m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	return cmd
}

func (m *model) moveFocus(delta int) tea.Cmd {
	next := (int(m.focus) + delta) % int(fieldCount)
	if next < 0 {
		next += int(fieldCount)
	}
	return m.setFocus(field(next))
}

// refresh pulls the controller's state and re-renders the scrollable panes.
func (m *model) refresh() {
	m.state = m.ctrl.Snapshot()
	m.renderPanes()
}

func (m model) healthCmd() tea.Cmd {
	ctrl := m.ctrl
	timeout := m.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return healthDoneMsg{err: ctrl.CheckHealth(ctx)}
	}
}

func runCoachCmd(call *session.CoachCall) tea.Cmd {
	return func() tea.Msg {
		resp, err := call.Run(context.Background())
		return coachDoneMsg{resp: resp, err: err}
	}
}

func runSyncCmd(call *session.SyncCall) tea.Cmd {
	return func() tea.Msg {
		return syncDoneMsg{err: call.Run(context.Background())}
	}
}

// submit sends the message field to the coach. The user's line shows up
// immediately; the coach's reply arrives as a coachDoneMsg.
func (m *model) submit() tea.Cmd {
	raw := m.inputs[fieldMessage].Value()
	if strings.HasPrefix(strings.TrimSpace(raw), "/") {
		m.inputs[fieldMessage].SetValue("")
		return m.handleSlash(raw)
	}
	call, err := m.ctrl.BeginCoach(m.profile(), raw)
	m.refresh()
	if err != nil {
		m.logger.Debug("coach message not sent", zap.Error(err))
		if errors.Is(err, session.ErrValidation) && strings.TrimSpace(m.inputs[fieldName].Value()) == "" {
			return m.setFocus(fieldName)
		}
		return nil
	}
	req := call.Request()
	m.logger.Debug("sending coach message",
		zap.Int("message_chars", len([]rune(req.Message))),
		zap.Bool("has_focus_area", req.FocusArea != nil),
	)
	m.transcript.GotoBottom()
	return runCoachCmd(call)
}

func (m *model) sync() tea.Cmd {
	call, err := m.ctrl.BeginSync(m.profile())
	m.refresh()
	if err != nil {
		m.logger.Debug("sync not sent", zap.Error(err))
		return nil
	}
	req := call.Request()
	m.logger.Debug("syncing milestone", zap.String("focus_area", req.FocusArea), zap.String("timestamp", req.Timestamp))
	return runSyncCmd(call)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case coachDoneMsg:
		if msg.err == nil {
			m.inputs[fieldMessage].SetValue("")
		}
		m.refresh()
		m.transcript.GotoBottom()
	case syncDoneMsg:
		m.refresh()
	case healthDoneMsg:
		m.refresh()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderPanes()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.MouseMsg:
		if m.activeTab == tabChat && !m.quitConfirm {
			var cmd tea.Cmd
			m.transcript, cmd = m.transcript.Update(msg)
			cmds = append(cmds, cmd)
		}
	case tea.KeyMsg:
		cmd := m.handleKey(msg)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if key == "ctrl+c" {
		return tea.Quit
	}
	if m.quitConfirm {
		switch key {
		case "y", "Y", "enter":
			return tea.Quit
		case "n", "N", "esc":
			m.quitConfirm = false
			m.ctrl.SetStatus("quit canceled")
			m.refresh()
		}
		return nil
	}
	if m.activeTab == tabHelp {
		switch key {
		case "esc", "q", "enter":
			m.activeTab = tabChat
			cmd := m.setFocus(fieldMessage)
			m.renderPanes()
			return cmd
		}
		return nil
	}

	switch key {
	case "esc":
		m.quitConfirm = true
		return nil
	case "tab":
		return m.moveFocus(1)
	case "shift+tab":
		return m.moveFocus(-1)
	case "ctrl+s":
		return m.sync()
	case "pgup", "ctrl+b":
		m.transcript.LineUp(8)
		return nil
	case "pgdown", "ctrl+f":
		m.transcript.LineDown(8)
		return nil
	case "home":
		m.transcript.GotoTop()
		return nil
	case "end":
		m.transcript.GotoBottom()
		return nil
	case "enter":
		if m.focus == fieldMessage {
			return m.submit()
		}
		return m.moveFocus(1)
	}

	if m.focus == fieldActivity {
		switch key {
		case "left", "h":
			m.activityLevel = cycleString(activityLevels, m.activityLevel, -1)
		case "right", "l", " ":
			m.activityLevel = cycleString(activityLevels, m.activityLevel, 1)
		case "backspace", "delete":
			m.activityLevel = ""
		}
		m.ctrl.SetProfile(m.profile())
		m.refresh()
		return nil
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	if m.focus != fieldMessage {
		m.ctrl.SetProfile(m.profile())
		m.refresh()
	}
	return cmd
}

func (m *model) handleSlash(raw string) tea.Cmd {
	parts := strings.Fields(strings.TrimSpace(raw))
	if len(parts) == 0 {
		return nil
	}
	switch strings.ToLower(parts[0]) {
	case "/sync":
		return m.sync()
	case "/health":
		m.ctrl.SetStatus("checking coach service...")
		m.refresh()
		return m.healthCmd()
	case "/help":
		m.activeTab = tabHelp
		m.setFocus(fieldCount)
		m.renderPanes()
		return nil
	case "/quit", "/exit":
		m.quitConfirm = true
		return nil
	default:
		m.ctrl.SetStatus(fmt.Sprintf("unknown command %s · try /help", parts[0]))
		m.refresh()
		return nil
	}
}

func (m *model) resize() {
	formWidth, _, _ := m.columnWidths()
	for i := range m.inputs {
		if field(i) == fieldMessage {
			m.inputs[i].Width = maxInt(20, maxInt(40, m.width-4)-8)
			continue
		}
		m.inputs[i].Width = maxInt(10, formWidth-14)
	}
}

// markdownRenderer rebuilds the glamour renderer when the guidance column
// changes width.
func (m *model) markdownRenderer(width int) *glamour.TermRenderer {
	if m.renderer != nil && m.rendererWidth == width {
		return m.renderer
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		m.logger.Debug("markdown renderer unavailable", zap.Error(err))
		m.renderer = nil
		return nil
	}
	m.renderer = renderer
	m.rendererWidth = width
	return renderer
}

func (m *model) sinceSync() string {
	if m.state.LastSyncedAt.IsZero() {
		return "never"
	}
	return time.Since(m.state.LastSyncedAt).Round(time.Second).String() + " ago"
}
