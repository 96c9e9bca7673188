package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"wadigest/pkg/summary"
	"wadigest/pkg/ui/review"
)

var (
	summarizeSend   bool
	summarizeReview bool
	summarizeDryRun bool
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [chat id...]",
	Short: "Summarize WhatsApp group chats",
	Long: `Fetches recent history for each chat, normalizes it and asks the configured
provider for a digest. Without arguments every configured group is summarized.
Summaries are stored; --send also posts them to the group when sending is
enabled in config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		chats := resolveChats(args, appConfig.ScheduledChats())
		if len(chats) == 0 {
			return errors.New("no chat ids given and summary.groups is empty")
		}
		if summarizeReview && len(chats) != 1 {
			return errors.New("--review works on exactly one chat")
		}

		a, err := openApp(appConfig)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		var failed []string
		for _, chatID := range chats {
			if err := summarizeChat(ctx, a, chatID, out); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", chatID, err)
				failed = append(failed, chatID)
			}
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d of %d chats failed: %s", len(failed), len(chats), strings.Join(failed, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
	summarizeCmd.Flags().BoolVar(&summarizeSend, "send", false, "post the summary to the group")
	summarizeCmd.Flags().BoolVar(&summarizeReview, "review", false, "open the review screen before sending")
	summarizeCmd.Flags().BoolVar(&summarizeDryRun, "dry-run", false, "print the rendered prompt without calling the provider")
}

func summarizeChat(ctx context.Context, a *app, chatID string, out io.Writer) error {
	if summarizeDryRun {
		run, err := a.summaries.Prepare(ctx, chatID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n\n%s\n", run.Request.System, run.Request.Prompt)
		return nil
	}

	run, err := a.summaries.Summarize(ctx, chatID, summary.RunOptions{Send: summarizeSend && !summarizeReview})
	if errors.Is(err, summary.ErrTooFewMessages) {
		fmt.Fprintf(out, "%s: nothing to summarize (%v)\n", chatID, err)
		return nil
	}
	if err != nil && !errors.Is(err, summary.ErrDeliveryFailed) {
		return err
	}

	if summarizeReview {
		return reviewRun(ctx, a, run)
	}

	fmt.Fprintf(out, "%s\n\n%s\n", run.Summary.Text, runFooter(run))
	return err
}

func reviewRun(ctx context.Context, a *app, run *summary.Run) error {
	var sendFn review.SendFunc
	if a.greenAPI.SendingEnabled() {
		sendFn = func(ctx context.Context) (string, error) {
			if err := a.summaries.Deliver(ctx, run); err != nil {
				return "", err
			}
			return run.Summary.SentMessageID, nil
		}
	}

	outcome, err := review.Run(ctx, review.Input{
		ChatID:       run.ChatID,
		Messages:     run.Messages,
		Result:       run.Result,
		Summary:      run.Summary.Text,
		Provider:     run.Summary.Provider,
		Model:        run.Summary.Model,
		InputTokens:  run.Summary.InputTokens,
		OutputTokens: run.Summary.OutputTokens,
		CreatedAt:    run.Summary.CreatedAt,
	}, sendFn)
	if err != nil {
		return fmt.Errorf("review: %w", err)
	}
	if outcome.SendError != "" {
		return fmt.Errorf("deliver summary: %s", outcome.SendError)
	}
	return nil
}

func runFooter(run *summary.Run) string {
	parts := []string{
		fmt.Sprintf("%s messages", humanize.Comma(int64(run.Summary.MessageCount))),
		fmt.Sprintf("%s filtered", humanize.Comma(int64(run.Result.Rejected))),
		"id " + run.Summary.ID,
	}
	if run.Summary.Sent() {
		parts = append(parts, "sent as "+run.Summary.SentMessageID)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// resolveChats prefers explicit arguments over configured chats.
func resolveChats(args []string, configured []string) []string {
	chats := make([]string, 0, len(args))
	for _, arg := range args {
		if value := strings.TrimSpace(arg); value != "" {
			chats = append(chats, value)
		}
	}
	if len(chats) > 0 {
		return chats
	}
	return configured
}
