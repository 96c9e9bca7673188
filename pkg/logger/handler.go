package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Entry is the JSON shape of one log line. component and chat_id are lifted
// out of the attributes because almost every wadigest line carries them.
type Entry struct {
	Time      string         `json:"time"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	ChatID    string         `json:"chat_id,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
	Caller    string         `json:"caller,omitempty"`
}

const redactedValue = "[redacted]"

// secretKeys are attribute keys whose values are replaced before output.
var secretKeys = map[string]bool{
	"api_token":     true,
	"apitoken":      true,
	"token":         true,
	"api_key":       true,
	"authorization": true,
	"bot_token":     true,
}

type jsonHandler struct {
	out       io.Writer
	mu        *sync.Mutex
	level     slog.Level
	addSource bool
	prefix    string
	bound     []slog.Attr
}

func newJSONHandler(w io.Writer, level slog.Level, addSource bool) *jsonHandler {
	return &jsonHandler{out: w, mu: &sync.Mutex{}, level: level, addSource: addSource}
}

func (h *jsonHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *jsonHandler) Handle(_ context.Context, r slog.Record) error {
	at := r.Time
	if at.IsZero() {
		at = time.Now()
	}
	entry := Entry{
		Time:    at.UTC().Format(time.RFC3339Nano),
		Level:   strings.ToLower(r.Level.String()),
		Message: r.Message,
	}
	fields := map[string]any{}
	for _, a := range h.bound {
		entry.put(fields, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		entry.put(fields, h.qualify(a))
		return true
	})
	if len(fields) > 0 {
		entry.Fields = fields
	}
	if h.addSource && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		if frame.File != "" {
			entry.Caller = fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
		}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.out.Write(append(line, '\n'))
	return err
}

func (h *jsonHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.bound = append([]slog.Attr(nil), h.bound...)
	for _, a := range attrs {
		next.bound = append(next.bound, h.qualify(a))
	}
	return &next
}

func (h *jsonHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *jsonHandler) qualify(a slog.Attr) slog.Attr {
	if h.prefix != "" {
		a.Key = h.prefix + a.Key
	}
	return a
}

// put files an attribute under its top-level slot or into fields.
func (e *Entry) put(fields map[string]any, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if s, ok := a.Value.Any().(string); ok {
		switch a.Key {
		case "component":
			e.Component = s
			return
		case "chat_id":
			e.ChatID = s
			return
		}
	}
	fields[a.Key] = plain(a.Value)
}

func plain(v slog.Value) any {
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindGroup:
		group := make(map[string]any, len(v.Group()))
		for _, a := range v.Group() {
			group[a.Key] = plain(a.Value.Resolve())
		}
		return group
	default:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	}
}

// redacting masks secret attribute values before handing records on.
type redacting struct {
	next slog.Handler
}

func (h redacting) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h redacting) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(redact(a))
		return true
	})
	return h.next.Handle(ctx, clean)
}

func (h redacting) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = redact(a)
	}
	return redacting{next: h.next.WithAttrs(clean)}
}

func (h redacting) WithGroup(name string) slog.Handler {
	return redacting{next: h.next.WithGroup(name)}
}

func redact(a slog.Attr) slog.Attr {
	if secretKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redactedValue)
	}
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		clean := make([]any, len(group))
		for i, item := range group {
			clean[i] = redact(item)
		}
		return slog.Group(a.Key, clean...)
	}
	return a
}
