package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"wadigest/pkg/channel"
	"wadigest/pkg/channel/telegram"
	"wadigest/pkg/config"
	"wadigest/pkg/gateway"
	"wadigest/pkg/scheduler"
	"wadigest/pkg/summary"
)

const telegramChannelName = "telegram"

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the summary gateway",
	Long:  "Runs wadigest as a long-lived gateway: scheduled summaries, the Telegram command channel and the HTTP status API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg := appConfig
		log := slog.Default().With("component", "cmd.gateway")
		if err := cfg.Gateway.Validate(); err != nil {
			return fmt.Errorf("gateway config: %w", err)
		}

		adapters, err := enabledAdapters(cfg, log)
		if err != nil {
			return err
		}

		a, err := openApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		sched, err := newScheduler(cfg, a.summaries)
		if err != nil {
			return err
		}

		deps := gateway.Deps{
			Summaries: a.summaries,
			Store:     a.store,
			Groups:    a.greenAPI,
			Bus:       a.bus,
			Checks: map[string]gateway.HealthChecker{
				"greenapi": a.greenAPI,
				"provider": a.provider,
			},
		}
		if sched != nil {
			deps.Scheduler = sched
		}

		runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := gateway.NewService(cfg, deps, adapters, log)
		if err != nil {
			return fmt.Errorf("initialize gateway service: %w", err)
		}

		log.Info("Gateway started",
			"channels", enabledChannelNames(adapters),
			"provider", cfg.Summary.Provider,
			"model", cfg.Summary.Model,
			"scheduler", sched != nil,
			"sending_enabled", a.greenAPI.SendingEnabled(),
		)
		if err := svc.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("gateway runtime failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}

func enabledAdapters(cfg *config.Config, log *slog.Logger) ([]channel.Adapter, error) {
	adapters := make([]channel.Adapter, 0, 1)

	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, log)
		if err != nil {
			return nil, fmt.Errorf("configure %s channel: %w", telegramChannelName, err)
		}
		adapters = append(adapters, adapter)
	}

	return adapters, nil
}

func enabledChannelNames(adapters []channel.Adapter) string {
	if len(adapters) == 0 {
		return "none"
	}
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}

// newScheduler returns nil when scheduled summaries are disabled.
func newScheduler(cfg *config.Config, summaries gateway.Summarizer) (*scheduler.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	return scheduler.New(cfg.Scheduler, cfg.ScheduledChats(), scheduledJob(summaries))
}

// scheduledJob summarizes one chat; a quiet chat is not a failure.
func scheduledJob(summaries gateway.Summarizer) scheduler.Job {
	return func(ctx context.Context, chatID string) error {
		_, err := summaries.Summarize(ctx, chatID, summary.RunOptions{})
		if errors.Is(err, summary.ErrTooFewMessages) {
			slog.Default().Info("Scheduled summary skipped", "chat_id", chatID, "reason", err.Error())
			return nil
		}
		return err
	}
}
