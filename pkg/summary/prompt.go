package summary

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"wadigest/pkg/message"
)

const timestampLayout = "2006-01-02 15:04:05"

//go:embed templates/*
var templatesFS embed.FS

var promptTemplate = template.Must(template.ParseFS(templatesFS, "templates/prompt.tmpl"))

type promptData struct {
	Language     string
	Instructions string
	Lines        []string
}

func loadTemplate(name string) (string, error) {
	content, err := templatesFS.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("load %s template: %w", name, err)
	}
	return strings.TrimSpace(string(content)), nil
}

// renderPrompt lays the conversation out as "sender (time): text" lines.
// A non-empty override replaces the default formatting instructions.
func renderPrompt(messages []message.Canonical, language string, override string, loc *time.Location) (string, error) {
	instructions := strings.TrimSpace(override)
	if instructions == "" {
		var err error
		if instructions, err = loadTemplate("instructions.md"); err != nil {
			return "", err
		}
	}
	if strings.TrimSpace(language) == "" {
		language = "english"
	}

	data := promptData{
		Language:     strings.TrimSpace(language),
		Instructions: instructions,
		Lines:        make([]string, 0, len(messages)),
	}
	for _, msg := range messages {
		data.Lines = append(data.Lines, formatLine(msg, loc))
	}

	var out strings.Builder
	if err := promptTemplate.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render summary prompt: %w", err)
	}
	return out.String(), nil
}

func formatLine(msg message.Canonical, loc *time.Location) string {
	if msg.Timestamp <= 0 {
		return fmt.Sprintf("%s: %s", msg.SenderName, msg.Text)
	}
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("%s (%s): %s", msg.SenderName, msg.Time().In(loc).Format(timestampLayout), msg.Text)
}
