package cmd

import (
	"context"
	"errors"
	"fmt"
	"testing"

	channelpkg "wadigest/pkg/channel"
	"wadigest/pkg/config"
	"wadigest/pkg/summary"
)

type testAdapter struct{ name string }

func (a testAdapter) Name() string { return a.name }

func (a testAdapter) Run(_ context.Context, _ channelpkg.Handler) error { return nil }

type stubSummarizer struct{ err error }

func (s stubSummarizer) Summarize(context.Context, string, summary.RunOptions) (*summary.Run, error) {
	return nil, s.err
}

func TestEnabledAdaptersAllowsNoChannels(t *testing.T) {
	t.Parallel()

	adapters, err := enabledAdapters(&config.Config{}, nil)
	if err != nil {
		t.Fatalf("enabledAdapters() error = %v", err)
	}
	if len(adapters) != 0 {
		t.Fatalf("len(adapters) = %d, want 0", len(adapters))
	}
	if got := enabledChannelNames(adapters); got != "none" {
		t.Fatalf("enabledChannelNames = %q, want none", got)
	}
}

func TestEnabledAdaptersRejectsTelegramWithoutToken(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Channels: config.ChannelsConfig{Telegram: config.TelegramConfig{Enabled: true}}}
	if _, err := enabledAdapters(cfg, nil); err == nil {
		t.Fatal("expected error for telegram without token")
	}
}

func TestEnabledChannelNames(t *testing.T) {
	t.Parallel()

	adapters := []channelpkg.Adapter{testAdapter{name: "telegram"}, testAdapter{name: "slack"}}
	if got := enabledChannelNames(adapters); got != "telegram,slack" {
		t.Fatalf("enabledChannelNames = %q, want %q", got, "telegram,slack")
	}
}

func TestNewSchedulerDisabled(t *testing.T) {
	t.Parallel()

	sched, err := newScheduler(config.Default(), stubSummarizer{})
	if err != nil || sched != nil {
		t.Fatalf("newScheduler() = %v, %v; want nil, nil", sched, err)
	}

	cfg := config.Default()
	cfg.Scheduler.Enabled = true
	if _, err := newScheduler(cfg, stubSummarizer{}); err == nil {
		t.Fatal("expected error when no chats are configured")
	}

	cfg.Summary.Groups = []string{"a@g.us"}
	sched, err = newScheduler(cfg, stubSummarizer{})
	if err != nil || sched == nil {
		t.Fatalf("newScheduler() = %v, %v", sched, err)
	}
}

func TestScheduledJobSkipsQuietChats(t *testing.T) {
	t.Parallel()

	quiet := scheduledJob(stubSummarizer{err: fmt.Errorf("%w: 1 in window", summary.ErrTooFewMessages)})
	if err := quiet(context.Background(), "a@g.us"); err != nil {
		t.Fatalf("quiet chat error = %v, want nil", err)
	}

	failing := scheduledJob(stubSummarizer{err: errors.New("provider down")})
	if err := failing(context.Background(), "a@g.us"); err == nil {
		t.Fatal("expected provider error to be returned")
	}
}
