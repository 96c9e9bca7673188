package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adhocore/gronx"

	"wadigest/pkg/config"
)

// Job summarizes one chat.
type Job func(ctx context.Context, chatID string) error

// Scheduler runs Job for every configured chat on a cron schedule.
type Scheduler struct {
	expr  string
	chats []string
	loc   *time.Location
	job   Job
	log   *slog.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func New(cfg config.SchedulerConfig, chats []string, job Job) (*Scheduler, error) {
	expr := strings.TrimSpace(cfg.Cron)
	if expr == "" {
		return nil, errors.New("scheduler.cron is required")
	}
	if !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("scheduler.cron %q is not a valid cron expression", expr)
	}
	if len(chats) == 0 {
		return nil, errors.New("scheduler needs at least one chat id")
	}
	if job == nil {
		return nil, errors.New("scheduler job is required")
	}

	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("scheduler.timezone: %w", err)
		}
	}

	return &Scheduler{
		expr:  expr,
		chats: chats,
		loc:   loc,
		job:   job,
		log:   slog.Default().With("component", "scheduler"),
		now:   time.Now,
		after: time.After,
	}, nil
}

// Next returns the first tick strictly after ref, in the scheduler's zone.
func (s *Scheduler) Next(ref time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.expr, ref.In(s.loc), false)
}

// Run blocks until ctx is done, running every chat at each tick.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("Scheduler started", "cron", s.expr, "timezone", s.loc.String(), "chats", len(s.chats))
	for {
		now := s.now()
		next, err := s.Next(now)
		if err != nil {
			return fmt.Errorf("compute next tick: %w", err)
		}
		wait := max(next.Sub(now), 0)
		s.log.Debug("Next scheduled run", "at", next, "in", wait.Round(time.Second).String())

		select {
		case <-ctx.Done():
			s.log.Info("Scheduler stopped")
			return nil
		case <-s.after(wait):
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs the job for each chat in order. Failures are logged and do
// not stop the remaining chats; the number of failed chats is returned.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	failed := 0
	for _, chatID := range s.chats {
		if ctx.Err() != nil {
			return failed
		}
		startedAt := time.Now()
		if err := s.job(ctx, chatID); err != nil {
			failed++
			s.log.Warn("Scheduled summary failed", "chat_id", chatID, "error", err)
			continue
		}
		s.log.Info("Scheduled summary completed", "chat_id", chatID, "duration_ms", time.Since(startedAt).Milliseconds())
	}
	return failed
}
