package gateway

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"wadigest/pkg/bus"
	"wadigest/pkg/store"
	"wadigest/pkg/summary"
)

const (
	metaSummaryIDKey  = "summary_id"
	metaUsageInKey    = "usage_input_tokens"
	metaUsageOutKey   = "usage_output_tokens"
	metaUsageTotalKey = "usage_total_tokens"
)

const helpText = `Commands:
/summary <chat id>  summarize a WhatsApp group now
/last <chat id>     show the latest stored summary
/groups             list WhatsApp groups
/stats              show pipeline counters`

var errUnknownCommand = errors.New("unknown command")

// handleInbound answers one chat command from a channel adapter.
func (s *Service) handleInbound(ctx context.Context, inbound bus.InboundMessage) (bus.OutboundMessage, error) {
	out := bus.OutboundMessage{
		Channel:    inbound.Channel,
		ChatID:     inbound.ChatID,
		SessionKey: inbound.SessionKey,
	}

	name, args := parseCommand(inbound.Content)
	event := bus.Event{
		Channel:    inbound.Channel,
		ChatID:     inbound.ChatID,
		SessionKey: inbound.SessionKey,
		Payload:    map[string]string{"command": name},
	}
	event.Type = bus.EventCommandReceived
	s.deps.Bus.PublishEvent(ctx, event)

	var (
		text string
		err  error
	)
	switch name {
	case "summary":
		text, out.Metadata, err = s.commandSummary(ctx, args)
	case "last":
		text, err = s.commandLast(ctx, args)
	case "groups":
		text, err = s.commandGroups(ctx)
	case "stats":
		text, err = s.commandStats(ctx)
	case "help", "start":
		text = helpText
	default:
		err = fmt.Errorf("%w %q\n\n%s", errUnknownCommand, name, helpText)
	}

	if err != nil {
		event.Type = bus.EventCommandFailed
		event.Error = err.Error()
		s.deps.Bus.PublishEvent(ctx, event)
		out.Error = err.Error()
		return out, err
	}

	event.Type = bus.EventCommandCompleted
	s.deps.Bus.PublishEvent(ctx, event)
	out.Content = text
	return out, nil
}

func (s *Service) commandSummary(ctx context.Context, args []string) (string, map[string]string, error) {
	chatID, err := s.resolveChat(args)
	if err != nil {
		return "", nil, err
	}

	run, err := s.deps.Summaries.Summarize(ctx, chatID, summary.RunOptions{})
	if errors.Is(err, summary.ErrTooFewMessages) {
		count := 0
		if run != nil {
			count = len(run.Messages)
		}
		return fmt.Sprintf("Nothing to summarize for %s yet (%d messages in the window).", chatID, count), nil, nil
	}
	if err != nil && !errors.Is(err, summary.ErrDeliveryFailed) {
		return "", nil, err
	}

	footer := fmt.Sprintf("\n\n(%d messages, %d filtered)", run.Summary.MessageCount, run.Result.Rejected)
	return run.Summary.Text + footer, summaryMetadata(run), nil
}

func (s *Service) commandLast(ctx context.Context, args []string) (string, error) {
	if s.deps.Store == nil {
		return "", errors.New("summary storage is not configured")
	}
	chatID, err := s.resolveChat(args)
	if err != nil {
		return "", err
	}

	latest, err := s.deps.Store.LatestSummary(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("No summary stored for %s yet.", chatID), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\n\n(generated %s from %d messages)", latest.Text, humanize.Time(latest.CreatedAt), latest.MessageCount), nil
}

func (s *Service) commandGroups(ctx context.Context) (string, error) {
	if s.deps.Groups == nil {
		return "", errors.New("group listing is not available")
	}
	groups, err := s.deps.Groups.Groups(ctx)
	if err != nil {
		return "", err
	}
	if len(groups) == 0 {
		return "No groups found.", nil
	}

	lines := make([]string, 0, len(groups))
	for _, group := range groups {
		lines = append(lines, fmt.Sprintf("%s: %s", group.DisplayName(), group.ID))
	}
	return strings.Join(lines, "\n"), nil
}

func (s *Service) commandStats(ctx context.Context) (string, error) {
	stats := s.counters.Snapshot()
	lines := []string{
		fmt.Sprintf("Messages normalized: %s", humanize.Comma(stats.Normalized)),
		fmt.Sprintf("Messages filtered: %s", humanize.Comma(stats.Rejected)),
		fmt.Sprintf("Summaries generated: %s", humanize.Comma(stats.Events[bus.EventSummaryCompleted])),
		fmt.Sprintf("Summaries failed: %s", humanize.Comma(stats.Events[bus.EventSummaryFailed])),
	}
	if !stats.LastSummaryAt.IsZero() {
		lines = append(lines, "Last summary: "+humanize.Time(stats.LastSummaryAt))
	}
	if s.deps.Store != nil {
		if count, err := s.deps.Store.CountSummaries(ctx); err == nil {
			lines = append(lines, fmt.Sprintf("Summaries stored: %s", humanize.Comma(count)))
		}
	}
	return strings.Join(lines, "\n"), nil
}

// resolveChat picks the chat argument, falling back to the only configured
// chat when there is exactly one.
func (s *Service) resolveChat(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if chats := s.cfg.ScheduledChats(); len(chats) == 1 {
		return chats[0], nil
	}
	return "", errors.New("chat id is required, for example /summary 120363000000000000@g.us")
}

// parseCommand splits "/summary@bot arg" into ("summary", ["arg"]).
func parseCommand(content string) (string, []string) {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return "", nil
	}
	name := strings.TrimPrefix(fields[0], "/")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name), slices.Clip(fields[1:])
}

func summaryMetadata(run *summary.Run) map[string]string {
	metadata := map[string]string{metaSummaryIDKey: run.Summary.ID}
	if usage := run.Response.Metadata.Usage; usage != nil {
		metadata[metaUsageInKey] = strconv.FormatInt(usage.InputTokens, 10)
		metadata[metaUsageOutKey] = strconv.FormatInt(usage.OutputTokens, 10)
		metadata[metaUsageTotalKey] = strconv.FormatInt(usage.TotalTokens, 10)
	}
	return metadata
}
