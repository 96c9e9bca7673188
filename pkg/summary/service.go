package summary

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"wadigest/pkg/bus"
	"wadigest/pkg/config"
	"wadigest/pkg/greenapi"
	"wadigest/pkg/message"
	providertypes "wadigest/pkg/provider/types"
	"wadigest/pkg/store"
)

var (
	ErrTooFewMessages = errors.New("not enough messages to summarize")
	ErrNotSummarized  = errors.New("run has no summary yet")
	// ErrDeliveryFailed marks a summary that was stored but not sent.
	ErrDeliveryFailed = errors.New("summary not delivered")
)

// History fetches raw chat records, newest first.
type History interface {
	ChatHistory(ctx context.Context, chatID string, count int) ([]any, error)
}

// Sender delivers a finished summary back to its chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID string, text string, isSummary bool) (greenapi.SendResult, error)
}

// Repository persists summaries.
type Repository interface {
	SaveSummary(ctx context.Context, summary *store.Summary) error
	MarkSent(ctx context.Context, id string, messageID string) error
}

// Archive keeps the normalized messages of each run.
type Archive interface {
	SaveMessages(ctx context.Context, chatID string, msgs []message.Canonical) (int, error)
}

// Summarizer is the LLM side of a run.
type Summarizer interface {
	Prompt(ctx context.Context, req providertypes.PromptRequest) (providertypes.PromptResult, error)
}

// Deps are the collaborators of a Service. Sender, Repository, Archive and
// Bus are optional.
type Deps struct {
	History    History
	Normalizer *message.Normalizer
	Summarizer Summarizer
	Sender     Sender
	Repository Repository
	Archive    Archive
	Bus        *bus.MessageBus
}

// Run is one summary pass over a chat.
type Run struct {
	ChatID      string
	Messages    []message.Canonical
	Result      message.Result
	WindowStart time.Time
	WindowEnd   time.Time
	Request     providertypes.PromptRequest
	Response    providertypes.PromptResult
	Summary     *store.Summary
}

// RunOptions tune a single Summarize call.
type RunOptions struct {
	// Send delivers the summary to the chat in addition to storing it.
	Send bool
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// Service fetches chat history, normalizes it and asks the provider for a
// summary. Runs for the same chat are serialized.
type Service struct {
	deps   Deps
	cfg    config.SummaryConfig
	system string
	now    func() time.Time
	loc    *time.Location
	log    *slog.Logger

	mu    sync.Mutex
	chats map[string]*sync.Mutex
}

func New(cfg config.SummaryConfig, deps Deps, opts ...Option) (*Service, error) {
	if deps.History == nil {
		return nil, errors.New("summary history source is required")
	}
	if deps.Normalizer == nil {
		return nil, errors.New("summary normalizer is required")
	}
	if deps.Summarizer == nil {
		return nil, errors.New("summary provider is required")
	}

	system, err := loadTemplate("system.md")
	if err != nil {
		return nil, err
	}

	s := &Service{
		deps:   deps,
		cfg:    cfg,
		system: system,
		now:    time.Now,
		loc:    time.UTC,
		log:    slog.Default().With("component", "summary"),
		chats:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Prepare fetches and normalizes the chat and renders the prompt without
// calling the provider.
func (s *Service) Prepare(ctx context.Context, chatID string) (*Run, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, errors.New("chat id is required")
	}

	records, err := s.deps.History.ChatHistory(ctx, chatID, s.cfg.HistoryCount)
	if err != nil {
		return nil, fmt.Errorf("fetch chat history: %w", err)
	}

	// Green API returns newest first.
	slices.Reverse(records)
	result := s.deps.Normalizer.Normalize(records)
	s.publish(ctx, bus.BatchEvent(chatID, result))

	now := s.now().UTC()
	run := &Run{ChatID: chatID, Result: result, WindowEnd: now}
	if s.cfg.LookbackHours > 0 {
		run.WindowStart = now.Add(-time.Duration(s.cfg.LookbackHours) * time.Hour)
	}
	run.Messages = s.window(result.Messages, run.WindowStart)
	s.archive(ctx, run)

	if len(run.Messages) == 0 || len(run.Messages) < s.cfg.MinMessages {
		return run, fmt.Errorf("%w: %d in window, need %d", ErrTooFewMessages, len(run.Messages), max(s.cfg.MinMessages, 1))
	}

	prompt, err := renderPrompt(run.Messages, s.deps.Normalizer.TargetLanguage(), s.cfg.PromptTemplate, s.loc)
	if err != nil {
		return run, err
	}
	run.Request = providertypes.PromptRequest{
		System: s.system,
		Prompt: prompt,
		Model:  s.cfg.Model,
		Title:  "wadigest:" + chatID,
	}
	return run, nil
}

// archive failures are logged only; a run never fails on them.
func (s *Service) archive(ctx context.Context, run *Run) {
	if s.deps.Archive == nil || len(run.Messages) == 0 {
		return
	}
	n, err := s.deps.Archive.SaveMessages(ctx, run.ChatID, run.Messages)
	if err != nil {
		s.log.Warn("Could not archive messages", "chat_id", run.ChatID, "error", err)
		return
	}
	s.log.Debug("Archived messages", "chat_id", run.ChatID, "count", n)
}

// Summarize runs Prepare, calls the provider and stores the result. When
// sending is requested or configured the summary is delivered too; a
// delivery error wraps ErrDeliveryFailed and is returned alongside the
// stored run. Run.Summary is only set once the record is stored.
func (s *Service) Summarize(ctx context.Context, chatID string, opts RunOptions) (*Run, error) {
	unlock := s.lockChat(chatID)
	defer unlock()

	startedAt := time.Now()
	log := s.log.With("chat_id", chatID)

	run, err := s.Prepare(ctx, chatID)
	if err != nil {
		s.fail(ctx, chatID, err)
		return run, err
	}

	log.Debug("Requesting summary", "messages", len(run.Messages), "prompt_length", len(run.Request.Prompt))
	response, err := s.deps.Summarizer.Prompt(ctx, run.Request)
	if err != nil {
		err = fmt.Errorf("generate summary: %w", err)
		s.fail(ctx, chatID, err)
		return run, err
	}
	run.Response = response

	record := s.record(run)
	if s.deps.Repository != nil {
		if err := s.deps.Repository.SaveSummary(ctx, record); err != nil {
			err = fmt.Errorf("store summary: %w", err)
			s.fail(ctx, chatID, err)
			return run, err
		}
	}
	run.Summary = record

	log.Info("Summary generated",
		"summary_id", run.Summary.ID,
		"messages", run.Summary.MessageCount,
		"rejected", run.Result.Rejected,
		"duration_ms", time.Since(startedAt).Milliseconds(),
	)
	s.publish(ctx, bus.Event{
		Type:      bus.EventSummaryCompleted,
		Channel:   "greenapi",
		ChatID:    chatID,
		SummaryID: run.Summary.ID,
		Payload:   map[string]string{"provider": run.Summary.Provider, "model": run.Summary.Model},
	})

	if opts.Send || s.cfg.SendToGroup {
		if err := s.deliver(ctx, run); err != nil {
			return run, err
		}
	}
	return run, nil
}

// Deliver sends an already generated summary to its chat.
func (s *Service) Deliver(ctx context.Context, run *Run) error {
	if run == nil || run.Summary == nil {
		return ErrNotSummarized
	}
	unlock := s.lockChat(run.ChatID)
	defer unlock()
	return s.deliver(ctx, run)
}

func (s *Service) deliver(ctx context.Context, run *Run) error {
	if s.deps.Sender == nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, greenapi.ErrSendingDisabled)
	}

	result, err := s.deps.Sender.SendMessage(ctx, run.ChatID, run.Summary.Text, true)
	if err != nil {
		s.log.Warn("Summary not delivered", "chat_id", run.ChatID, "summary_id", run.Summary.ID, "error", err)
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	sentAt := s.now().UTC()
	run.Summary.SentMessageID = result.IDMessage
	run.Summary.SentAt = &sentAt
	if s.deps.Repository != nil {
		if err := s.deps.Repository.MarkSent(ctx, run.Summary.ID, result.IDMessage); err != nil {
			return fmt.Errorf("mark summary sent: %w", err)
		}
	}

	s.log.Info("Summary delivered", "chat_id", run.ChatID, "summary_id", run.Summary.ID, "message_id", result.IDMessage)
	s.publish(ctx, bus.Event{
		Type:      bus.EventSummarySent,
		Channel:   "greenapi",
		ChatID:    run.ChatID,
		SummaryID: run.Summary.ID,
	})
	return nil
}

// window keeps messages at or after start. Records without a timestamp are
// kept since their age is unknown.
func (s *Service) window(messages []message.Canonical, start time.Time) []message.Canonical {
	kept := make([]message.Canonical, 0, len(messages))
	for _, msg := range messages {
		if msg.Timestamp > 0 && !start.IsZero() && msg.Time().Before(start) {
			continue
		}
		kept = append(kept, msg)
	}
	// Without a timestamp on every record the reversed history order stands.
	if slices.ContainsFunc(kept, func(msg message.Canonical) bool { return msg.Timestamp <= 0 }) {
		return kept
	}
	slices.SortStableFunc(kept, func(a, b message.Canonical) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return kept
}

func (s *Service) record(run *Run) *store.Summary {
	summary := &store.Summary{
		ChatID:       run.ChatID,
		Text:         run.Response.Text,
		Provider:     run.Response.Metadata.Provider,
		Model:        run.Response.Metadata.Model,
		Language:     s.deps.Normalizer.TargetLanguage(),
		MessageCount: len(run.Messages),
		Processed:    run.Result.Processed,
		Rejected:     run.Result.Rejected,
		WindowStart:  run.WindowStart,
		WindowEnd:    run.WindowEnd,
	}
	if summary.WindowStart.IsZero() && len(run.Messages) > 0 && run.Messages[0].Timestamp > 0 {
		summary.WindowStart = run.Messages[0].Time()
	}
	if usage := run.Response.Metadata.Usage; usage != nil {
		summary.InputTokens = usage.InputTokens
		summary.OutputTokens = usage.OutputTokens
	}
	return summary
}

func (s *Service) fail(ctx context.Context, chatID string, err error) {
	if errors.Is(err, ErrTooFewMessages) {
		s.log.Info("Skipping summary", "chat_id", chatID, "reason", err)
	} else {
		s.log.Error("Summary failed", "chat_id", chatID, "error", err)
	}
	s.publish(ctx, bus.Event{
		Type:    bus.EventSummaryFailed,
		Channel: "greenapi",
		ChatID:  chatID,
		Error:   err.Error(),
	})
}

func (s *Service) publish(ctx context.Context, event bus.Event) {
	if s.deps.Bus == nil {
		return
	}
	s.deps.Bus.PublishEvent(ctx, event)
}

// lockChat serializes runs per chat and returns the unlock func.
func (s *Service) lockChat(chatID string) func() {
	s.mu.Lock()
	lock, ok := s.chats[chatID]
	if !ok {
		lock = &sync.Mutex{}
		s.chats[chatID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
