package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wadigest/pkg/config"
	providertypes "wadigest/pkg/provider/types"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg := &config.Config{}
	_, err := New(cfg)
	if err == nil {
		t.Fatal("expected error when API key is missing")
	}
}

func TestNewUsesConfiguredAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg := &config.Config{}
	cfg.Providers.OpenAI.APIKey = "sk-test"

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if client == nil {
		t.Fatal("expected client")
	}
}

func TestNewFallsBackToEnvironmentAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-default")

	client, err := New(&config.Config{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if client == nil {
		t.Fatal("expected client")
	}
}

func TestNormalizeModel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain model", input: "gpt-4o-mini", want: "gpt-4o-mini"},
		{name: "openai prefix", input: "openai/gpt-4o-mini", want: "gpt-4o-mini"},
		{name: "other provider", input: "anthropic/claude", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeModel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("normalizeModel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("normalizeModel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPromptSendsInstructionsAndReadsUsage(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/responses") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "resp_1",
			"object": "response",
			"created_at": 1700000000,
			"status": "completed",
			"model": "gpt-4o-mini",
			"output": [{
				"type": "message",
				"id": "msg_1",
				"status": "completed",
				"role": "assistant",
				"content": [{"type": "output_text", "text": "  Busy day in the group.  ", "annotations": []}]
			}],
			"usage": {
				"input_tokens": 120,
				"input_tokens_details": {"cached_tokens": 20},
				"output_tokens": 30,
				"output_tokens_details": {"reasoning_tokens": 0},
				"total_tokens": 150
			}
		}`)
	}))
	defer server.Close()

	cfg := &config.Config{}
	cfg.Providers.OpenAI.APIKey = "sk-test"
	cfg.Providers.OpenAI.BaseURL = server.URL + "/v1/"
	cfg.Summary.Model = "openai/gpt-4o-mini"
	cfg.Summary.MaxTokens = 500

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	result, err := client.Prompt(context.Background(), providertypes.PromptRequest{
		System: "Summarize in english.",
		Prompt: "Alice: hello",
	})
	if err != nil {
		t.Fatalf("Prompt error: %v", err)
	}
	if result.Text != "Busy day in the group." {
		t.Fatalf("text = %q", result.Text)
	}
	if result.Metadata.Usage == nil || result.Metadata.Usage.TotalTokens != 150 || result.Metadata.Usage.CacheReadTokens != 20 {
		t.Fatalf("usage = %+v", result.Metadata.Usage)
	}
	if body["instructions"] != "Summarize in english." {
		t.Fatalf("instructions = %v", body["instructions"])
	}
	if body["model"] != "gpt-4o-mini" {
		t.Fatalf("model = %v", body["model"])
	}
	if body["max_output_tokens"] != float64(500) {
		t.Fatalf("max_output_tokens = %v", body["max_output_tokens"])
	}
}

func TestPromptRequiresText(t *testing.T) {
	cfg := &config.Config{}
	cfg.Providers.OpenAI.APIKey = "sk-test"
	cfg.Summary.Model = "gpt-4o-mini"

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, err := client.Prompt(context.Background(), providertypes.PromptRequest{Prompt: "   "}); err == nil {
		t.Fatal("expected error for blank prompt")
	}
}
