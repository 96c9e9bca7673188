package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wadigest/pkg/config"
	"wadigest/pkg/greenapi"
	"wadigest/pkg/message"
	providertypes "wadigest/pkg/provider/types"
	"wadigest/pkg/store"
	"wadigest/pkg/summary"
)

type fakeSummarizer struct {
	mu    sync.Mutex
	chats []string
	sends []bool
	err   error
}

func (f *fakeSummarizer) Summarize(_ context.Context, chatID string, opts summary.RunOptions) (*summary.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, chatID)
	f.sends = append(f.sends, opts.Send)

	run := &summary.Run{
		ChatID:   chatID,
		Messages: []message.Canonical{{Text: "a"}, {Text: "b"}},
		Result:   message.Result{Processed: 3, Accepted: 2, Rejected: 1},
	}
	if errors.Is(f.err, summary.ErrTooFewMessages) {
		return run, f.err
	}
	if f.err != nil {
		return nil, f.err
	}
	run.Response = providertypes.PromptResult{
		Text:     "digest for " + chatID,
		Metadata: providertypes.PromptMetadata{Usage: &providertypes.TokenUsage{InputTokens: 10, OutputTokens: 11, TotalTokens: 21}},
	}
	run.Summary = &store.Summary{ID: "sum-1", ChatID: chatID, Text: run.Response.Text, MessageCount: 2, Rejected: 1}
	return run, nil
}

func (f *fakeSummarizer) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.chats...)
}

type fakeStore struct {
	summaries []store.Summary
}

func (f *fakeStore) LatestSummary(_ context.Context, chatID string) (store.Summary, error) {
	for _, s := range f.summaries {
		if s.ChatID == chatID {
			return s, nil
		}
	}
	return store.Summary{}, store.ErrNotFound
}

func (f *fakeStore) ListSummaries(_ context.Context, chatID string, limit int) ([]store.Summary, error) {
	out := make([]store.Summary, 0)
	for _, s := range f.summaries {
		if chatID == "" || s.ChatID == chatID {
			out = append(out, s)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) CountSummaries(context.Context) (int64, error) {
	return int64(len(f.summaries)), nil
}

type fakeGroups struct {
	groups []greenapi.Contact
	err    error
}

func (f fakeGroups) Groups(context.Context) ([]greenapi.Contact, error) {
	return f.groups, f.err
}

type toggledHealth struct {
	mu  sync.Mutex
	err error
}

func (h *toggledHealth) Health(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *toggledHealth) set(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

func sampleSummaries() []store.Summary {
	base := time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)
	return []store.Summary{
		{ID: "s3", ChatID: "a@g.us", Text: "newest a", MessageCount: 7, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "s2", ChatID: "b@g.us", Text: "b", MessageCount: 3, CreatedAt: base.Add(time.Hour)},
		{ID: "s1", ChatID: "a@g.us", Text: "older a", MessageCount: 5, CreatedAt: base},
	}
}

type staticHistory struct {
	records []any
}

func (h staticHistory) ChatHistory(context.Context, string, int) ([]any, error) {
	return h.records, nil
}

type cannedPrompt struct{}

func (cannedPrompt) Prompt(context.Context, providertypes.PromptRequest) (providertypes.PromptResult, error) {
	return providertypes.PromptResult{Text: "canned digest"}, nil
}

type brokenRepo struct {
	err error
}

func (r brokenRepo) SaveSummary(context.Context, *store.Summary) error { return r.err }

func (r brokenRepo) MarkSent(context.Context, string, string) error { return r.err }

// liveSummaries builds a real summary.Service over canned history so handler
// tests see its actual error values.
func liveSummaries(t testing.TB, repo summary.Repository) *summary.Service {
	t.Helper()
	now := time.Now()
	records := make([]any, 0, 3)
	for i, text := range []string{"first", "second", "third"} {
		records = append(records, map[string]any{
			"type":        "incoming",
			"typeMessage": "textMessage",
			"textMessage": text,
			"senderName":  "Dana",
			"idMessage":   fmt.Sprintf("m%d", i),
			"timestamp":   now.Add(-time.Duration(i+1) * time.Minute).Unix(),
		})
	}

	cfg := config.Default().Summary
	cfg.MinMessages = 1
	svc, err := summary.New(cfg, summary.Deps{
		History:    staticHistory{records: records},
		Normalizer: message.New(message.Options{}),
		Summarizer: cannedPrompt{},
		Repository: repo,
	})
	require.NoError(t, err)
	return svc
}
