package summary

import (
	"strings"
	"testing"
	"time"

	"wadigest/pkg/message"
)

func TestRenderPromptDefaultInstructions(t *testing.T) {
	msgs := []message.Canonical{
		{SenderName: "Dana", Text: "hello", Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Unix()},
		{SenderName: "Avi", Text: "no clock"},
	}

	prompt, err := renderPrompt(msgs, "", "", time.UTC)
	if err != nil {
		t.Fatalf("renderPrompt error: %v", err)
	}

	for _, want := range []string{
		"conversation in english.",
		"#### 1. Main topics discussed",
		"Dana (2026-01-02 03:04:05): hello\n",
		"Avi: no clock\n",
		"SUMMARY:",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestRenderPromptOverride(t *testing.T) {
	prompt, err := renderPrompt(nil, "hebrew", "Three bullet points only.", time.UTC)
	if err != nil {
		t.Fatalf("renderPrompt error: %v", err)
	}
	if !strings.Contains(prompt, "Three bullet points only.") {
		t.Fatalf("override missing:\n%s", prompt)
	}
	if strings.Contains(prompt, "Main topics") {
		t.Fatal("default instructions should be replaced")
	}
}

func TestFormatLineUsesLocation(t *testing.T) {
	loc := time.FixedZone("IST", 2*60*60)
	msg := message.Canonical{SenderName: "Dana", Text: "hi", Timestamp: time.Date(2026, 1, 2, 22, 30, 0, 0, time.UTC).Unix()}
	if got := formatLine(msg, loc); got != "Dana (2026-01-03 00:30:00): hi" {
		t.Fatalf("formatLine() = %q", got)
	}
}
