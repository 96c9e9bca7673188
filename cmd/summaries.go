package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"wadigest/pkg/store"
)

var (
	summariesLimit int
	summariesFull  bool
)

var summariesCmd = &cobra.Command{
	Use:   "summaries [chat id]",
	Short: "List stored summaries, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.Open(appConfig.Storage.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		chatID := ""
		if len(args) == 1 {
			chatID = strings.TrimSpace(args[0])
		}

		items, err := db.ListSummaries(cmd.Context(), chatID, summariesLimit)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No summaries stored yet.")
			return nil
		}
		writeSummaries(cmd.OutOrStdout(), items, summariesFull, time.Now())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summariesCmd)
	summariesCmd.Flags().IntVarP(&summariesLimit, "limit", "n", 10, "maximum summaries to list")
	summariesCmd.Flags().BoolVar(&summariesFull, "full", false, "print the full summary text")
}

func writeSummaries(w io.Writer, items []store.Summary, full bool, now time.Time) {
	for i, item := range items {
		if i > 0 {
			fmt.Fprintln(w)
		}
		status := "stored"
		if item.Sent() {
			status = "sent"
		}
		fmt.Fprintf(w, "%s  %s  %s  %s messages  %s\n",
			item.ID,
			item.ChatID,
			humanize.RelTime(item.CreatedAt, now, "ago", "from now"),
			humanize.Comma(int64(item.MessageCount)),
			status,
		)

		text := strings.TrimSpace(item.Text)
		if !full {
			text = firstLine(text, 100)
		}
		fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(text, "\n", "\n  "))
	}
}

func firstLine(text string, limit int) string {
	line, _, more := strings.Cut(text, "\n")
	runes := []rune(line)
	if len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	if more {
		return line + " ..."
	}
	return line
}
