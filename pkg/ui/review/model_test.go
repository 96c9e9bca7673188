package review

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"wadigest/pkg/message"
)

func sampleInput() Input {
	return Input{
		ChatID: "120363@g.us",
		Messages: []message.Canonical{
			{SenderName: "Dana", Text: "lunch at noon?", Kind: message.KindText, Timestamp: 1_700_000_000},
			{SenderName: "Omer", Text: "[IMAGE] menu", Kind: message.KindImage},
		},
		Result: message.Result{
			Processed:        5,
			Accepted:         2,
			Rejected:         3,
			RejectedByReason: map[message.Reason]int{message.ReasonCommandMessage: 2, message.ReasonEmptyContent: 1},
			RejectedByKind:   map[message.Kind]int{message.KindText: 3},
		},
		Summary:   "Lunch plans were discussed.",
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		CreatedAt: time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC),
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTabsCycleThroughViews(t *testing.T) {
	t.Parallel()

	m := newModel(context.Background(), sampleInput(), nil)
	m.refreshViewport()
	if !strings.Contains(m.viewport.View(), "Lunch plans") {
		t.Fatalf("summary tab missing summary text: %q", m.viewport.View())
	}

	m.Update(key("tab"))
	if m.tab != tabMessages {
		t.Fatalf("tab = %d, want messages", m.tab)
	}
	content := m.renderMessages()
	if !strings.Contains(content, "Dana") || !strings.Contains(content, "[IMAGE] menu") {
		t.Fatalf("messages view = %q", content)
	}

	m.Update(key("tab"))
	rejected := m.renderRejected()
	if !strings.Contains(rejected, "command_message") {
		t.Fatalf("rejected view = %q", rejected)
	}
	if strings.Index(rejected, "command_message") > strings.Index(rejected, "empty_content") {
		t.Fatal("expected the larger reason first")
	}

	m.Update(key("tab"))
	if m.tab != tabSummary {
		t.Fatalf("tab = %d, want wrap to summary", m.tab)
	}
}

func TestSendRequiresConfirmation(t *testing.T) {
	t.Parallel()

	calls := 0
	send := func(context.Context) (string, error) {
		calls++
		return "OUT1", nil
	}
	m := newModel(context.Background(), sampleInput(), send)

	m.Update(key("s"))
	if !m.confirming {
		t.Fatal("expected confirmation prompt after s")
	}
	m.Update(key("n"))
	if m.confirming || m.sending {
		t.Fatal("expected n to cancel the send")
	}

	m.Update(key("s"))
	_, cmd := m.Update(key("y"))
	if !m.sending || cmd == nil {
		t.Fatal("expected y to start sending")
	}

	m.Update(sendCmd(context.Background(), send)())
	if calls != 1 {
		t.Fatalf("send calls = %d, want 1", calls)
	}
	if m.sentID != "OUT1" || m.sending {
		t.Fatalf("sentID = %q sending = %v", m.sentID, m.sending)
	}
	if m.canSend() {
		t.Fatal("summary must not be sent twice")
	}
}

func TestSendErrorIsShown(t *testing.T) {
	t.Parallel()

	m := newModel(context.Background(), sampleInput(), func(context.Context) (string, error) { return "", nil })
	m.sending = true
	m.Update(sendResultMsg{err: errors.New("message sending is disabled")})
	if m.lastErr == "" || m.sending {
		t.Fatal("expected send error to be recorded")
	}
	if !strings.Contains(m.statusLine(), "disabled") {
		t.Fatalf("status = %q", m.statusLine())
	}
}

func TestSendNotOfferedWithoutSender(t *testing.T) {
	t.Parallel()

	m := newModel(context.Background(), sampleInput(), nil)
	m.Update(key("s"))
	if m.confirming {
		t.Fatal("send must not be offered without a sender")
	}

	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("expected q to quit")
	}
}

func TestMetaLineUsesHumanizedCounts(t *testing.T) {
	t.Parallel()

	input := sampleInput()
	input.Result.Processed = 12_500
	m := newModel(context.Background(), input, nil)
	m.now = func() time.Time { return input.CreatedAt.Add(3 * time.Hour) }

	meta := m.metaLine()
	for _, want := range []string{"processed:12,500", "model:gpt-4o-mini", "generated 3 hours ago"} {
		if !strings.Contains(meta, want) {
			t.Fatalf("meta %q missing %q", meta, want)
		}
	}
}
