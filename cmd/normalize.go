package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"wadigest/pkg/config"
	"wadigest/pkg/greenapi"
	"wadigest/pkg/message"
)

var (
	normalizeChatID  string
	normalizeCount   int
	normalizeFormat  string
	normalizeDebug   bool
	normalizeReduced bool
	normalizeStats   bool
)

// normalizeConfig applies the --debug and --reduced overrides to a copy of
// base so the loaded config stays untouched.
func normalizeConfig(base *config.Config, cmd *cobra.Command) *config.Config {
	cfg := *base
	flags := cmd.Flags()
	if flags.Changed("debug") {
		cfg.Normalizer.DebugMode = normalizeDebug
	}
	if flags.Changed("reduced") {
		cfg.Normalizer.ReducedFiltering = normalizeReduced
	}
	return &cfg
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize [file]",
	Short: "Normalize raw WhatsApp records into canonical messages",
	Long: `Reads a JSON array of raw Green API records (or a single webhook object) from
a file, from stdin when the file is "-" or omitted, or fetches it live with
--chat, and prints the canonical messages.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		normalizer, err := newNormalizer(normalizeConfig(appConfig, cmd))
		if err != nil {
			return err
		}

		batch, err := loadBatch(cmd.Context(), args)
		if err != nil {
			return err
		}

		result := normalizer.Normalize(batch)
		out := cmd.OutOrStdout()
		switch strings.ToLower(normalizeFormat) {
		case "text":
			writeTranscript(out, result.Messages)
		case "json", "":
			var payload any = result.Messages
			if normalizeStats {
				payload = result
			}
			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(payload); err != nil {
				return fmt.Errorf("encode output: %w", err)
			}
		default:
			return fmt.Errorf("unsupported format %q (use json or text)", normalizeFormat)
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "%s processed, %s kept, %s filtered\n",
			humanize.Comma(int64(result.Processed)),
			humanize.Comma(int64(result.Accepted)),
			humanize.Comma(int64(result.Rejected)),
		)
		if result.Processed > 0 && result.Accepted == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: all messages were rejected")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
	normalizeCmd.Flags().StringVar(&normalizeChatID, "chat", "", "fetch history for this chat id instead of reading a file")
	normalizeCmd.Flags().IntVar(&normalizeCount, "count", 0, "history records to fetch with --chat (default summary.history_count)")
	normalizeCmd.Flags().StringVarP(&normalizeFormat, "format", "f", "json", "output format: json or text")
	normalizeCmd.Flags().BoolVar(&normalizeDebug, "debug", false, "log per-record detection and rejection details")
	normalizeCmd.Flags().BoolVar(&normalizeReduced, "reduced", false, "admit unsupported kinds and empty text")
	normalizeCmd.Flags().BoolVar(&normalizeStats, "stats", false, "print the full batch result including rejection counts")
}

func loadBatch(ctx context.Context, args []string) ([]any, error) {
	if chatID := strings.TrimSpace(normalizeChatID); chatID != "" {
		if len(args) > 0 {
			return nil, errors.New("use either a file or --chat, not both")
		}
		client, err := greenapi.New(appConfig.GreenAPI)
		if err != nil {
			return nil, err
		}
		count := normalizeCount
		if count <= 0 {
			count = appConfig.Summary.HistoryCount
		}
		return client.ChatHistory(ctx, chatID, count)
	}

	if len(args) == 0 || args[0] == "-" {
		return decodeBatch(os.Stdin)
	}

	file, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()
	return decodeBatch(file)
}

// decodeBatch accepts a JSON array of records or a single record object.
// Numbers are kept as json.Number.
func decodeBatch(r io.Reader) ([]any, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	content = bytes.TrimSpace(content)
	if len(content) == 0 {
		return []any{}, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(content))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}

	switch typed := value.(type) {
	case []any:
		return typed, nil
	default:
		return []any{typed}, nil
	}
}

// writeTranscript prints one "sender (time): text" line per message.
func writeTranscript(w io.Writer, messages []message.Canonical) {
	for _, msg := range messages {
		if msg.Timestamp > 0 {
			fmt.Fprintf(w, "%s (%s): %s\n", msg.SenderName, msg.Time().Local().Format("2006-01-02 15:04:05"), msg.Text)
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", msg.SenderName, msg.Text)
	}
}
