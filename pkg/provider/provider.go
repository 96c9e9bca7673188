package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"wadigest/pkg/config"
	providerfantasy "wadigest/pkg/provider/fantasy"
	provideropenai "wadigest/pkg/provider/openai"
	"wadigest/pkg/provider/opencode"
	providertypes "wadigest/pkg/provider/types"
)

// Client turns a rendered summary prompt into text.
type Client interface {
	Health(ctx context.Context) error
	Prompt(ctx context.Context, req providertypes.PromptRequest) (providertypes.PromptResult, error)
}

func New(cfg *config.Config) (Client, error) {
	providerID := strings.TrimSpace(cfg.Summary.Provider)
	if providerID == "" {
		providerID = "openai"
	}

	slog.Default().With("component", "provider.factory").Debug("Resolving provider client", "provider", providerID)

	switch providerID {
	case "openai":
		return provideropenai.New(cfg)
	case "opencode":
		return opencode.New(cfg)
	case "fantasy":
		return providerfantasy.New(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", providerID)
	}
}
