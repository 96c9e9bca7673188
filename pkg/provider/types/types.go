package types

import "strings"

// PromptRequest is one stateless completion request. Summaries never carry
// conversation state between calls, so providers create whatever session
// they need per request.
type PromptRequest struct {
	System string
	Prompt string
	Model  string
	Title  string
}

// Normalized trims every field and reports whether a prompt is present.
func (r PromptRequest) Normalized() (PromptRequest, bool) {
	r.System = strings.TrimSpace(r.System)
	r.Prompt = strings.TrimSpace(r.Prompt)
	r.Model = strings.TrimSpace(r.Model)
	r.Title = strings.TrimSpace(r.Title)
	return r, r.Prompt != ""
}

// PromptResult is the normalized provider response payload.
type PromptResult struct {
	Text     string
	Metadata PromptMetadata
}

// PromptMetadata carries provider/model identity and optional usage accounting.
type PromptMetadata struct {
	Provider string
	Model    string
	Usage    *TokenUsage
}

// TokenUsage captures token accounting across providers.
type TokenUsage struct {
	InputTokens         int64
	OutputTokens        int64
	TotalTokens         int64
	ReasoningTokens     int64
	CacheCreationTokens int64
	CacheReadTokens     int64
}

// IsZero reports whether all token counters are unset/zero.
func (u TokenUsage) IsZero() bool {
	return u.InputTokens == 0 &&
		u.OutputTokens == 0 &&
		u.TotalTokens == 0 &&
		u.ReasoningTokens == 0 &&
		u.CacheCreationTokens == 0 &&
		u.CacheReadTokens == 0
}

// UsageOrNil returns nil for an all-zero usage record.
func UsageOrNil(u TokenUsage) *TokenUsage {
	if u.IsZero() {
		return nil
	}
	return &u
}
