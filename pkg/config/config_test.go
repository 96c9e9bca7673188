package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFromEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
	  "green_api": {"instance_id": "1101000001", "token": "secret"},
	  "normalizer": {"target_language": "hebrew", "supported_kinds": ["textMessage", "imageMessage"]},
	  "summary": {"model": "gpt-4.1-mini", "groups": ["120363@g.us", " "]},
	  "gateway": {"host": "0.0.0.0", "port": 18790},
	  "logging": {"format": "json", "level": "debug", "add_source": true}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv(envConfigPath, path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Logging.Format != "json" {
		t.Fatalf("logging.format = %q, want %q", cfg.Logging.Format, "json")
	}
	if !cfg.Logging.AddSource {
		t.Fatal("logging.add_source = false, want true")
	}
	if cfg.GreenAPI.InstanceID != "1101000001" {
		t.Fatalf("green_api.instance_id = %q", cfg.GreenAPI.InstanceID)
	}
	if cfg.GreenAPI.BaseURL != "https://api.green-api.com" {
		t.Fatalf("green_api.base_url default lost: %q", cfg.GreenAPI.BaseURL)
	}
	if !cfg.GreenAPI.SendingDisabled {
		t.Fatal("sending should stay disabled by default")
	}
	if len(cfg.Normalizer.SupportedKinds) != 2 {
		t.Fatalf("supported_kinds = %v", cfg.Normalizer.SupportedKinds)
	}
	if len(cfg.Summary.Groups) != 1 || cfg.Summary.Groups[0] != "120363@g.us" {
		t.Fatalf("summary.groups = %v", cfg.Summary.Groups)
	}
	if cfg.Summary.HistoryCount != 200 {
		t.Fatalf("summary.history_count default lost: %d", cfg.Summary.HistoryCount)
	}
}

func TestLoadConfigInvalidEnvPath(t *testing.T) {
	t.Setenv(envConfigPath, filepath.Join(t.TempDir(), "missing.json"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config path")
	}
}

func TestLoadConfigWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv(envConfigPath, "")
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Gateway.Port != 18790 {
		t.Fatalf("gateway.port = %d, want default", cfg.Gateway.Port)
	}
}

func TestEnvOverridesFileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"green_api": {"token": "from-file"}, "normalizer": {"debug_mode": false}}`), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv(envConfigPath, path)
	t.Setenv("GREEN_API_TOKEN", "from-env")
	t.Setenv("BOT_DEBUG_MODE", "true")
	t.Setenv("WHATSAPP_GROUP_IDS", "a@g.us, b@g.us,")
	t.Setenv("BOT_MESSAGE_SENDING_DISABLED", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.GreenAPI.Token != "from-env" {
		t.Fatalf("token = %q, want env value", cfg.GreenAPI.Token)
	}
	if !cfg.Normalizer.DebugMode {
		t.Fatal("debug_mode should be enabled from env")
	}
	if cfg.GreenAPI.SendingDisabled {
		t.Fatal("sending_disabled should be overridden to false")
	}
	want := []string{"a@g.us", "b@g.us"}
	if len(cfg.Summary.Groups) != len(want) {
		t.Fatalf("groups = %v, want %v", cfg.Summary.Groups, want)
	}
	for i := range want {
		if cfg.Summary.Groups[i] != want[i] {
			t.Fatalf("groups = %v, want %v", cfg.Summary.Groups, want)
		}
	}
}

func TestInvalidEnvValueFails(t *testing.T) {
	t.Setenv(envConfigPath, "")
	t.Chdir(t.TempDir())
	t.Setenv("BOT_MAX_RETRIES", "many")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for non-numeric BOT_MAX_RETRIES")
	}
}

func TestGreenAPIValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     GreenAPIConfig
		wantErr bool
	}{
		{name: "valid", cfg: GreenAPIConfig{BaseURL: "https://api.green-api.com", InstanceID: "1101", Token: "t"}},
		{name: "missing token", cfg: GreenAPIConfig{BaseURL: "https://api.green-api.com", InstanceID: "1101"}, wantErr: true},
		{name: "non numeric instance", cfg: GreenAPIConfig{BaseURL: "https://api.green-api.com", InstanceID: "abc", Token: "t"}, wantErr: true},
		{name: "bad url", cfg: GreenAPIConfig{BaseURL: "not a url", InstanceID: "1101", Token: "t"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSummaryValidateRejectsUnknownProvider(t *testing.T) {
	cfg := Default().Summary
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default summary config invalid: %v", err)
	}
	cfg.Provider = "anthropic"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestScheduledChatsFallsBackToGroups(t *testing.T) {
	cfg := Default()
	cfg.Summary.Groups = []string{"g1"}
	if got := cfg.ScheduledChats(); len(got) != 1 || got[0] != "g1" {
		t.Fatalf("ScheduledChats() = %v", got)
	}
	cfg.Scheduler.ChatIDs = []string{"s1", "s2"}
	if got := cfg.ScheduledChats(); len(got) != 2 {
		t.Fatalf("ScheduledChats() = %v", got)
	}
}
