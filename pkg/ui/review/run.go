package review

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"wadigest/pkg/message"
)

// SendFunc delivers the reviewed summary and returns the platform message id.
type SendFunc func(ctx context.Context) (string, error)

// Input is everything the review screen shows.
type Input struct {
	ChatID       string
	Messages     []message.Canonical
	Result       message.Result
	Summary      string
	Provider     string
	Model        string
	InputTokens  int64
	OutputTokens int64
	CreatedAt    time.Time
}

// Outcome reports what happened in the review session.
type Outcome struct {
	Sent      bool
	MessageID string
	SendError string
}

// Run shows the review screen until the user quits. sendFn may be nil, in
// which case sending is not offered.
func Run(ctx context.Context, input Input, sendFn SendFunc) (Outcome, error) {
	program := tea.NewProgram(newModel(ctx, input, sendFn), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := program.Run()
	if err != nil {
		return Outcome{}, err
	}

	m, ok := final.(*model)
	if !ok {
		return Outcome{}, nil
	}
	return Outcome{Sent: m.sentID != "", MessageID: m.sentID, SendError: m.lastErr}, nil
}
