package provider

import (
	"testing"

	"wadigest/pkg/config"
	providerfantasy "wadigest/pkg/provider/fantasy"
	provideropenai "wadigest/pkg/provider/openai"
	provideropencode "wadigest/pkg/provider/opencode"
)

func TestNewDefaultsToOpenAIProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := &config.Config{}
	cfg.Summary.Model = "gpt-4o-mini"

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, ok := client.(*provideropenai.Client); !ok {
		t.Fatalf("expected *openai.Client, got %T", client)
	}
}

func TestNewReturnsErrorForUnsupportedProvider(t *testing.T) {
	cfg := &config.Config{}
	cfg.Summary.Provider = "unknown"

	_, err := New(cfg)
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestNewReturnsOpenCodeProvider(t *testing.T) {
	cfg := &config.Config{}
	cfg.Summary.Provider = "opencode"
	cfg.Providers.OpenCode.BaseURL = "http://127.0.0.1:4096"

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, ok := client.(*provideropencode.Client); !ok {
		t.Fatalf("expected *opencode.Client, got %T", client)
	}
}

func TestNewReturnsFantasyProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := &config.Config{}
	cfg.Summary.Provider = "fantasy"
	cfg.Summary.Model = "openai/gpt-4o-mini"

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, ok := client.(*providerfantasy.Client); !ok {
		t.Fatalf("expected *fantasy.Client, got %T", client)
	}
}
