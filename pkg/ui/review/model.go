package review

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"wadigest/pkg/message"
)

type tab int

const (
	tabSummary tab = iota
	tabMessages
	tabRejected
)

var tabTitles = []string{"Summary", "Messages", "Filtered"}

type sendResultMsg struct {
	messageID string
	err       error
}

type model struct {
	ctx    context.Context
	input  Input
	sendFn SendFunc

	theme      theme
	spinner    spinner.Model
	viewport   viewport.Model
	tab        tab
	width      int
	height     int
	isReady    bool
	confirming bool
	sending    bool
	sentID     string
	lastErr    string
	now        func() time.Time
}

func newModel(ctx context.Context, input Input, sendFn SendFunc) *model {
	spin := spinner.New()
	spin.Spinner = spinner.Points
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	return &model{
		ctx:      ctx,
		input:    input,
		sendFn:   sendFn,
		theme:    defaultTheme(),
		spinner:  spin,
		viewport: viewport.New(80, 12),
		width:    100,
		height:   28,
		now:      time.Now,
	}
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeComponents()
		m.refreshViewport()
		m.isReady = true
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(typed)
	case spinner.TickMsg:
		if !m.sending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	case sendResultMsg:
		m.sending = false
		if typed.err != nil {
			m.lastErr = typed.err.Error()
			return m, nil
		}
		m.lastErr = ""
		m.sentID = typed.messageID
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	if m.confirming {
		switch key {
		case "y", "Y", "enter":
			m.confirming = false
			m.sending = true
			return m, tea.Batch(m.spinner.Tick, sendCmd(m.ctx, m.sendFn))
		case "n", "N", "esc":
			m.confirming = false
		}
		return m, nil
	}

	switch key {
	case "q", "esc":
		if m.sending {
			return m, nil
		}
		return m, tea.Quit
	case "tab", "right", "l":
		m.switchTab((m.tab + 1) % tab(len(tabTitles)))
		return m, nil
	case "shift+tab", "left", "h":
		m.switchTab((m.tab + tab(len(tabTitles)) - 1) % tab(len(tabTitles)))
		return m, nil
	case "s":
		if m.canSend() {
			m.confirming = true
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) canSend() bool {
	return m.sendFn != nil && !m.sending && m.sentID == "" && strings.TrimSpace(m.input.Summary) != ""
}

func (m *model) switchTab(next tab) {
	m.tab = next
	m.refreshViewport()
	m.viewport.GotoTop()
}

func (m *model) View() string {
	if !m.isReady {
		m.resizeComponents()
		m.refreshViewport()
	}

	header := m.theme.header.Width(m.width - 2).Render("WhatsApp digest review · " + m.input.ChatID)
	meta := m.theme.headerMeta.Render(m.metaLine())
	line := m.theme.divider.Render(strings.Repeat("═", max(8, m.width-2)))

	tabs := make([]string, 0, len(tabTitles))
	for i, title := range tabTitles {
		style := m.theme.tab
		if tab(i) == m.tab {
			style = m.theme.tabActive
		}
		tabs = append(tabs, style.Render(title))
	}

	parts := []string{
		header,
		meta,
		line,
		lipgloss.JoinHorizontal(lipgloss.Top, tabs...),
		m.theme.viewport.Width(m.width - 2).Render(m.viewport.View()),
	}
	if m.confirming {
		parts = append(parts, m.theme.confirmBox.Render(fmt.Sprintf("Send this summary to %s? [y/N]", m.input.ChatID)))
	}
	parts = append(parts, m.statusLine())

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *model) metaLine() string {
	result := m.input.Result
	parts := []string{
		fmt.Sprintf("processed:%s", humanize.Comma(int64(result.Processed))),
		fmt.Sprintf("kept:%s", humanize.Comma(int64(result.Accepted))),
		fmt.Sprintf("filtered:%s", humanize.Comma(int64(result.Rejected))),
	}
	if m.input.Provider != "" {
		parts = append(parts, "provider:"+m.input.Provider)
	}
	if m.input.Model != "" {
		parts = append(parts, "model:"+m.input.Model)
	}
	if m.input.InputTokens > 0 || m.input.OutputTokens > 0 {
		parts = append(parts, fmt.Sprintf("tokens(in/out):%d/%d", m.input.InputTokens, m.input.OutputTokens))
	}
	if !m.input.CreatedAt.IsZero() {
		parts = append(parts, "generated "+humanize.RelTime(m.input.CreatedAt, m.now(), "ago", "from now"))
	}
	return strings.Join(parts, " · ")
}

func (m *model) statusLine() string {
	switch {
	case m.sending:
		return m.theme.statusBusy.Render(fmt.Sprintf("%s sending summary...", m.spinner.View()))
	case m.lastErr != "":
		return m.theme.errorBox.Render("send failed: " + m.lastErr)
	case m.sentID != "":
		return m.theme.statusOK.Render("sent as " + m.sentID + " · q quit")
	case m.canSend():
		return m.theme.status.Render("Tab switch view · ↑/↓ scroll · s send to group · q quit")
	default:
		return m.theme.status.Render("Tab switch view · ↑/↓ scroll · q quit")
	}
}

func (m *model) resizeComponents() {
	m.viewport.Width = max(40, m.width-6)
	m.viewport.Height = max(6, m.height-10)
}

func (m *model) refreshViewport() {
	switch m.tab {
	case tabSummary:
		m.viewport.SetContent(m.renderSummary())
	case tabMessages:
		m.viewport.SetContent(m.renderMessages())
	case tabRejected:
		m.viewport.SetContent(m.renderRejected())
	}
}

func (m *model) renderSummary() string {
	text := strings.TrimSpace(m.input.Summary)
	if text == "" {
		return m.theme.hint.Render("No summary was generated.")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.theme.summaryTitle.Render("SUMMARY"),
		m.theme.summaryBox.Width(m.viewport.Width-2).Render(text),
	)
}

func (m *model) renderMessages() string {
	if len(m.input.Messages) == 0 {
		return m.theme.hint.Render("No messages passed the filter.")
	}

	lines := make([]string, 0, len(m.input.Messages))
	for _, msg := range m.input.Messages {
		lines = append(lines, m.renderMessage(msg))
	}
	return strings.Join(lines, "\n")
}

func (m *model) renderMessage(msg message.Canonical) string {
	prefix := m.theme.sender.Render(msg.SenderName)
	if msg.Timestamp > 0 {
		prefix += " " + m.theme.timestamp.Render(msg.Time().Local().Format("01-02 15:04"))
	}

	text := msg.Text
	if msg.Kind.IsPlaceholder() {
		text = m.theme.placeholder.Render(text)
	}
	return prefix + "  " + text
}

func (m *model) renderRejected() string {
	result := m.input.Result
	if result.Rejected == 0 {
		return m.theme.hint.Render("Nothing was filtered.")
	}

	lines := []string{m.theme.sender.Render("By reason")}
	lines = append(lines, histogram(result.RejectedByReason, message.Reason.String)...)
	lines = append(lines, "", m.theme.sender.Render("By kind"))
	lines = append(lines, histogram(result.RejectedByKind, message.Kind.String)...)
	if result.ExtractionFailures > 0 {
		lines = append(lines, "", fmt.Sprintf("Extraction failures salvaged: %d", result.ExtractionFailures))
	}
	return strings.Join(lines, "\n")
}

// histogram renders counts largest first, ties by label.
func histogram[K comparable](counts map[K]int, label func(K) string) []string {
	type row struct {
		label string
		count int
	}
	rows := make([]row, 0, len(counts))
	for key, count := range counts {
		rows = append(rows, row{label: label(key), count: count})
	}
	slices.SortFunc(rows, func(a, b row) int {
		if a.count != b.count {
			return b.count - a.count
		}
		return strings.Compare(a.label, b.label)
	})

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("  %-22s %s", r.label, humanize.Comma(int64(r.count))))
	}
	return lines
}

func sendCmd(ctx context.Context, sendFn SendFunc) tea.Cmd {
	return func() tea.Msg {
		id, err := sendFn(ctx)
		return sendResultMsg{messageID: id, err: err}
	}
}
