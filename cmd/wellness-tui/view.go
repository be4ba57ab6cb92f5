package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"wellnav/internal/session"
	"wellnav/internal/textutil"
)

type uiTheme struct {
	root         lipgloss.Style
	header       lipgloss.Style
	tabActive    lipgloss.Style
	tabInactive  lipgloss.Style
	panel        lipgloss.Style
	panelTitle   lipgloss.Style
	footer       lipgloss.Style
	status       lipgloss.Style
	errorStatus  lipgloss.Style
	inputPanel   lipgloss.Style
	helpText     lipgloss.Style
	fieldLabel   lipgloss.Style
	fieldFocus   lipgloss.Style
	fieldValue   lipgloss.Style
	badgeReady   lipgloss.Style
	badgeWaiting lipgloss.Style
	safety       lipgloss.Style
	modalFrame   lipgloss.Style
	chatRole     map[session.Role]lipgloss.Style
}

func newTheme() uiTheme {
	pink := lipgloss.Color("#ff71ce")
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	amber := lipgloss.Color("#ffd166")
	bg := lipgloss.Color("#120924")
	panelBg := lipgloss.Color("#1b0f35")
	text := lipgloss.Color("#f3f3ff")
	muted := lipgloss.Color("#9ca3d8")

	return uiTheme{
		root: lipgloss.NewStyle().
			Background(bg).
			Foreground(text).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		tabActive: lipgloss.NewStyle().
			Background(pink).
			Foreground(lipgloss.Color("#22062f")).
			Bold(true).
			Padding(0, 1),
		tabInactive: lipgloss.NewStyle().
			Background(lipgloss.Color("#2a184a")).
			Foreground(muted).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		panelTitle: lipgloss.NewStyle().
			Foreground(mint).
			Bold(true),
		footer: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(muted).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(pink).
			Padding(0, 1),
		status:      lipgloss.NewStyle().Foreground(blue).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(pink).Bold(true),
		inputPanel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mint).
			Padding(0, 1),
		helpText:     lipgloss.NewStyle().Foreground(muted),
		fieldLabel:   lipgloss.NewStyle().Foreground(blue),
		fieldFocus:   lipgloss.NewStyle().Foreground(pink).Bold(true),
		fieldValue:   lipgloss.NewStyle().Foreground(text),
		badgeReady:   lipgloss.NewStyle().Background(mint).Foreground(lipgloss.Color("#22062f")).Bold(true).Padding(0, 1),
		badgeWaiting: lipgloss.NewStyle().Background(lipgloss.Color("#2a184a")).Foreground(muted).Padding(0, 1),
		safety: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#22062f")).
			Background(amber).
			Bold(true).
			Padding(0, 1),
		modalFrame: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(blue).
			Padding(1, 2),
		chatRole: map[session.Role]lipgloss.Style{
			session.RoleUser:  lipgloss.NewStyle().Foreground(mint).Bold(true),
			session.RoleCoach: lipgloss.NewStyle().Foreground(pink).Bold(true),
		},
	}
}

func (m model) View() string {
	var out string
	if m.quitConfirm {
		out = m.renderQuitModal()
	} else {
		out = lipgloss.JoinVertical(lipgloss.Left,
			m.renderHeader(),
			m.renderContent(),
			m.renderInput(),
			m.renderFooter(),
		)
	}
	return m.theme.root.Render(out)
}

// columnWidths splits the content area into form, transcript and guidance.
func (m *model) columnWidths() (form, transcript, guidance int) {
	contentWidth := maxInt(40, m.width-4)
	form = clampInt(int(float64(contentWidth)*0.28), 30, 48)
	guidance = clampInt(int(float64(contentWidth)*0.30), 28, 56)
	transcript = contentWidth - form - guidance - 2
	if transcript < 24 {
		transcript = 24
	}
	return form, transcript, guidance
}

func (m *model) renderHeader() string {
	tabs := []struct {
		id    tabID
		label string
	}{
		{tabChat, "Coach"},
		{tabHelp, "Help"},
	}
	segments := make([]string, 0, len(tabs)+1)
	for _, tab := range tabs {
		style := m.theme.tabInactive
		if tab.id == m.activeTab {
			style = m.theme.tabActive
		}
		segments = append(segments, style.Render(tab.label))
	}
	service := fmt.Sprintf(" Coach: %s · %s", m.cfg.APIBase, m.state.Reachability)
	segments = append(segments, m.theme.helpText.Render(service))
	joined := lipgloss.JoinHorizontal(lipgloss.Left, segments...)
	return m.theme.header.Width(maxInt(20, m.width-4)).Render(joined)
}

func (m *model) renderContent() string {
	contentHeight := maxInt(8, m.height-12)
	contentWidth := maxInt(40, m.width-4)

	if m.activeTab == tabHelp {
		panel := m.theme.panel.Width(contentWidth).Height(contentHeight)
		return panel.Render(m.theme.panelTitle.Render("Wellness Navigator Help") + "\n" + m.renderHelp())
	}

	formWidth, transcriptWidth, guidanceWidth := m.columnWidths()
	form := m.theme.panel.Width(formWidth).Height(contentHeight).Render(
		m.theme.panelTitle.Render("Profile") + "\n" + m.renderForm(),
	)
	transcript := m.theme.panel.Width(transcriptWidth).Height(contentHeight).Render(
		m.theme.panelTitle.Render("Conversation") + "\n" + m.transcript.View(),
	)
	guidance := m.theme.panel.Width(guidanceWidth).Height(contentHeight).Render(
		m.theme.panelTitle.Render("Guidance") + "\n" + m.guidance.View(),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, form, transcript, guidance)
}

func (m *model) renderForm() string {
	var b strings.Builder
	for _, f := range []field{fieldName, fieldGoal, fieldActivity, fieldMetric} {
		label := m.theme.fieldLabel.Render(fmt.Sprintf("%-9s", fieldLabels[f]))
		if m.focus == f {
			label = m.theme.fieldFocus.Render(fmt.Sprintf("%-9s", fieldLabels[f]))
		}
		var value string
		if f == fieldActivity {
			value = m.theme.fieldValue.Render("‹ " + nullCoalesce(m.activityLevel, "not set") + " ›")
		} else {
			value = m.inputs[f].View()
		}
		b.WriteString(label + " " + value + "\n\n")
	}
	b.WriteString(m.theme.helpText.Render("Tab moves between fields.\n←/→ picks an activity level."))
	return b.String()
}

func (m *model) renderTranscript() string {
	if len(m.state.Transcript) == 0 {
		return "No messages yet. Fill in your name and tell the coach how you're doing."
	}
	width := maxInt(20, m.transcript.Width-2)
	var b strings.Builder
	for _, entry := range m.state.Transcript {
		style, ok := m.theme.chatRole[entry.Role]
		if !ok {
			style = m.theme.helpText
		}
		label := string(entry.Role)
		if entry.Role == session.RoleUser {
			label = nullCoalesce(m.state.Profile.Name, label)
		}
		b.WriteString(style.Render(fmt.Sprintf("%s [%s]", shortTime(entry.At), label)))
		b.WriteString("\n")
		b.WriteString(wrapText(entry.Text, width))
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

// guidanceMarkdown is the coach result as markdown for glamour. The safety
// flag is rendered separately so it cannot be restyled away.
func (m *model) guidanceMarkdown() string {
	s := m.state
	var b strings.Builder
	fmt.Fprintf(&b, "**Focus area:** %s  \n", nullCoalesce(s.FocusArea, "_not identified yet_"))
	fmt.Fprintf(&b, "**Ready to sync:** %s  \n", yesNo(s.ReadyToSync))
	if s.MissingField != "" {
		fmt.Fprintf(&b, "**Still needed:** %s  \n", strings.ReplaceAll(s.MissingField, "_", " "))
	}
	fmt.Fprintf(&b, "**Last sync:** %s\n", m.sinceSync())
	if s.PendingQuestion != "" {
		fmt.Fprintf(&b, "\n**Next question**\n\n> %s\n", s.PendingQuestion)
	}
	if len(s.RecommendedActions) > 0 {
		b.WriteString("\n### Recommended actions\n\n")
		for i, action := range s.RecommendedActions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, action)
		}
	}
	return b.String()
}

func (m *model) renderGuidance() string {
	width := maxInt(20, m.guidance.Width-2)
	var sections []string
	if m.state.SafetyFlag != "" {
		sections = append(sections, m.theme.safety.Width(width).Render("⚠ "+m.state.SafetyFlag))
	}
	if m.state.ReadyToSync {
		sections = append(sections, m.theme.badgeReady.Render("READY · Ctrl+S to sync"))
	} else {
		sections = append(sections, m.theme.badgeWaiting.Render("collecting details"))
	}

	markdown := m.guidanceMarkdown()
	body := wrapText(markdown, width)
	if renderer := m.markdownRenderer(width); renderer != nil {
		if rendered, err := renderer.Render(markdown); err == nil {
			body = strings.Trim(rendered, "\n")
		}
	}
	sections = append(sections, body)
	return strings.Join(sections, "\n\n")
}

func (m *model) renderInput() string {
	contentWidth := maxInt(40, m.width-4)
	if m.activeTab != tabChat {
		return m.theme.inputPanel.Width(contentWidth).Render(m.theme.helpText.Render("Press Esc to return to the coach."))
	}
	inputView := m.inputs[fieldMessage].View()
	if m.state.Loading {
		inputView = m.spinner.View() + " waiting for the coach... " + inputView
	}
	return m.theme.inputPanel.Width(contentWidth).Render(inputView)
}

func (m *model) renderFooter() string {
	contentWidth := maxInt(40, m.width-4)
	statusStyle := m.theme.status
	if m.state.StatusIsError {
		statusStyle = m.theme.errorStatus
	}
	status := m.state.Status
	if strings.TrimSpace(status) == "" {
		status = "ready"
	}
	line := statusStyle.Render(textutil.CompactSingleLine(status, 180))
	hints := m.theme.helpText.Render("Keys: Tab next field · Enter send · Ctrl+S sync · PgUp/PgDn scroll · Esc quit prompt · Ctrl+C quit")
	return m.theme.footer.Width(contentWidth).Render(line + "\n" + hints)
}

func (m *model) renderQuitModal() string {
	canvasWidth := maxInt(40, m.width-4)
	canvasHeight := maxInt(12, m.height-4)
	modalWidth := clampInt(int(float64(canvasWidth)*0.56), 32, 78)
	if modalWidth > canvasWidth-2 {
		modalWidth = canvasWidth - 2
	}

	note := "Unsynced progress is not saved."
	if !m.state.LastSyncedAt.IsZero() && !m.state.ReadyToSync {
		note = "Your last milestone was synced."
	}
	body := strings.Join([]string{
		m.theme.errorStatus.Render("END SESSION?"),
		m.theme.helpText.Render("The conversation is cleared when the app exits."),
		"",
		m.theme.helpText.Render(note),
		"",
		m.theme.fieldFocus.Render("[Y / Enter] Quit") + "    " + m.theme.helpText.Render("[N / Esc] Return"),
	}, "\n")
	panel := m.theme.modalFrame.Width(modalWidth).Render(body)
	return lipgloss.Place(
		canvasWidth,
		canvasHeight,
		lipgloss.Center,
		lipgloss.Center,
		panel,
		lipgloss.WithWhitespaceBackground(lipgloss.Color("#120924")),
	)
}

func (m *model) renderHelp() string {
	lines := []string{
		"Keys",
		"- Tab / Shift+Tab: move between name, goal, activity, metric and message",
		"- Left/Right on Activity: pick an activity level (Backspace clears it)",
		"- Enter on Message: send to the coach",
		"- Ctrl+S: sync the current milestone (needs name, goal, metric and a focus area)",
		"- PgUp/PgDn, Home/End, mouse wheel: scroll the conversation",
		"- Esc: quit prompt · Ctrl+C: quit now",
		"",
		"Slash Commands",
		"- /sync",
		"- /health",
		"- /help",
		"- /quit",
		"",
		"Only one request runs at a time; wait for the spinner to stop before sending again.",
		"A safety notice from the coach replaces its normal reply and stays pinned in Guidance.",
	}
	return m.theme.helpText.Render(strings.Join(lines, "\n"))
}

func (m *model) renderPanes() {
	contentHeight := maxInt(8, m.height-12)
	_, transcriptWidth, guidanceWidth := m.columnWidths()

	prevAtBottom := m.transcript.AtBottom()
	prevOffset := m.transcript.YOffset
	m.transcript.Width = maxInt(20, transcriptWidth-4)
	m.transcript.Height = maxInt(5, contentHeight-3)
	m.guidance.Width = maxInt(20, guidanceWidth-4)
	m.guidance.Height = maxInt(5, contentHeight-3)

	m.transcript.SetContent(m.renderTranscript())
	if prevAtBottom {
		m.transcript.GotoBottom()
	} else {
		m.transcript.SetYOffset(prevOffset)
	}
	m.guidance.SetContent(m.renderGuidance())
	m.guidance.GotoTop()
}
