package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	charmLog "github.com/charmbracelet/log"

	"wadigest/pkg/config"
)

const (
	envFormat    = "WADIGEST_LOG_FORMAT"
	envLevel     = "WADIGEST_LOG_LEVEL"
	envAddSource = "WADIGEST_LOG_ADD_SOURCE"
)

// options is the logging config after environment overrides.
type options struct {
	json      bool
	level     slog.Level
	addSource bool
}

func resolve(cfg config.LoggingConfig) (options, error) {
	opts := options{addSource: cfg.AddSource}

	format := firstNonEmpty(os.Getenv(envFormat), cfg.Format, "text")
	switch strings.ToLower(format) {
	case "json":
		opts.json = true
	case "text":
	default:
		return options{}, fmt.Errorf("unsupported log format %q", format)
	}

	levelText := strings.ToLower(firstNonEmpty(os.Getenv(envLevel), cfg.Level, "info"))
	if levelText == "warning" {
		levelText = "warn"
	}
	if err := opts.level.UnmarshalText([]byte(levelText)); err != nil {
		return options{}, fmt.Errorf("unsupported log level %q", levelText)
	}

	if env := strings.TrimSpace(os.Getenv(envAddSource)); env != "" {
		on, err := strconv.ParseBool(env)
		opts.addSource = err == nil && on
	}
	return opts, nil
}

// Setup builds the process logger, installs it as the slog default and
// returns a close func for the optional log file. Lines go to stderr and,
// when cfg.File is set, are appended to that file too.
func Setup(cfg config.LoggingConfig) (*slog.Logger, func() error, error) {
	opts, err := resolve(cfg)
	if err != nil {
		return nil, nil, err
	}

	writer := io.Writer(os.Stderr)
	closeFn := func() error { return nil }
	if path := strings.TrimSpace(cfg.File); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		writer = io.MultiWriter(os.Stderr, file)
		closeFn = file.Close
	}

	log := slog.New(newHandler(opts, writer))
	slog.SetDefault(log)
	return log, closeFn, nil
}

// newHandler picks the charm text handler or the JSON line handler and wraps
// either one so secrets never reach the output.
func newHandler(opts options, w io.Writer) slog.Handler {
	if opts.json {
		return redacting{next: newJSONHandler(w, opts.level, opts.addSource)}
	}

	pretty := charmLog.NewWithOptions(w, charmLog.Options{
		Level:           charmLevel(opts.level),
		ReportTimestamp: true,
		ReportCaller:    opts.addSource,
		Formatter:       charmLog.TextFormatter,
	})
	return redacting{next: pretty}
}

func charmLevel(level slog.Level) charmLog.Level {
	switch {
	case level <= slog.LevelDebug:
		return charmLog.DebugLevel
	case level <= slog.LevelInfo:
		return charmLog.InfoLevel
	case level <= slog.LevelWarn:
		return charmLog.WarnLevel
	default:
		return charmLog.ErrorLevel
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
