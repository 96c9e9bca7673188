package message

import (
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var ErrNotAMessageObject = errors.New("message is not a key-value object")

const (
	envelopeKey = "messageData"
	senderKey   = "senderData"
)

// Raw is one undecoded message record as delivered by the platform.
type Raw = map[string]any

// View exposes one record independent of its physical layout: direct
// top-level fields, a messageData envelope, or a kind-named sub-envelope,
// each with optional capitalized keys.
type View struct {
	raw      map[string]any
	envelope map[string]any
	sender   map[string]any
}

// NewView wraps a decoded record. Anything that is not a mapping yields
// ErrNotAMessageObject.
func NewView(raw any) (*View, error) {
	m, ok := asMap(raw)
	if !ok {
		return nil, ErrNotAMessageObject
	}
	v := &View{raw: m}
	v.envelope, _ = asMap(lookupKey(m, envelopeKey))
	v.sender, _ = asMap(lookupKey(m, senderKey))
	return v, nil
}

// Keys returns the sorted top-level keys plus messageData keys prefixed
// with "messageData.".
func (v *View) Keys() []string {
	if v == nil {
		return nil
	}
	keys := make([]string, 0, len(v.raw)+len(v.envelope))
	for k := range v.raw {
		keys = append(keys, k)
	}
	for k := range v.envelope {
		keys = append(keys, envelopeKey+"."+k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup resolves key across the top-level record and the messageData
// envelope, in that order.
func (v *View) Lookup(key string) (any, bool) {
	return v.Field(KindUnknown, key)
}

// Field resolves key across the top-level record, the messageData
// envelope and finally the sub-envelope named after kind.
func (v *View) Field(kind Kind, key string) (any, bool) {
	if v == nil {
		return nil, false
	}
	for _, layer := range v.layers(kind) {
		if value, ok := lookup(layer, key); ok {
			return value, true
		}
	}
	return nil, false
}

// String is Field narrowed to non-blank string values.
func (v *View) String(kind Kind, key string) (string, bool) {
	value, ok := v.Field(kind, key)
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// FirstString returns the first non-blank string among keys.
func (v *View) FirstString(kind Kind, keys ...string) string {
	for _, key := range keys {
		if s, ok := v.String(kind, key); ok {
			return s
		}
	}
	return ""
}

// Map is Field narrowed to nested objects.
func (v *View) Map(kind Kind, key string) (map[string]any, bool) {
	value, ok := v.Field(kind, key)
	if !ok {
		return nil, false
	}
	return asMap(value)
}

// Bool reports whether key holds a true boolean.
func (v *View) Bool(key string) bool {
	value, ok := v.Lookup(key)
	if !ok {
		return false
	}
	b, _ := value.(bool)
	return b
}

// Int resolves an integer field that may arrive as a JSON number or a
// numeric string.
func (v *View) Int(key string) (int64, bool) {
	value, ok := v.Lookup(key)
	if !ok {
		return 0, false
	}
	return toInt64(value)
}

// Sender resolves key in the record and then in the webhook senderData
// envelope.
func (v *View) Sender(key string) (string, bool) {
	if s, ok := v.String(KindUnknown, key); ok {
		return s, true
	}
	if v == nil || v.sender == nil {
		return "", false
	}
	value, ok := lookup(v.sender, key)
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// Has reports whether key exists at the top level or in messageData.
func (v *View) Has(key string) bool {
	_, ok := v.Lookup(key)
	return ok
}

// Envelope returns the kind-named sub-envelope value, which is usually an
// object but may be a bare string for text kinds.
func (v *View) Envelope(kind Kind) (any, bool) {
	if v == nil {
		return nil, false
	}
	for _, key := range kind.envelopeKeys() {
		for _, layer := range []map[string]any{v.envelope, v.raw} {
			if value, ok := lookup(layer, key); ok && value != nil {
				return value, true
			}
		}
	}
	return nil, false
}

func (v *View) layers(kind Kind) []map[string]any {
	out := make([]map[string]any, 0, 3)
	out = append(out, v.raw)
	if v.envelope != nil {
		out = append(out, v.envelope)
	}
	if kind == KindUnknown {
		return out
	}
	if value, ok := v.Envelope(kind); ok {
		if m, ok := asMap(value); ok {
			out = append(out, m)
		}
	}
	return out
}

// lookup tries the exact key, then the key with its first rune upper-cased.
func lookup(m map[string]any, key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	if value, ok := m[key]; ok {
		return value, true
	}
	if alt := capitalize(key); alt != key {
		if value, ok := m[alt]; ok {
			return value, true
		}
	}
	return nil, false
}

func lookupKey(m map[string]any, key string) any {
	value, _ := lookup(m, key)
	return value
}

func capitalize(key string) string {
	r, size := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return key
	}
	return string(unicode.ToUpper(r)) + key[size:]
}

func asMap(value any) (map[string]any, bool) {
	switch m := value.(type) {
	case map[string]any:
		if m == nil {
			return nil, false
		}
		return m, true
	case map[string]string:
		if m == nil {
			return nil, false
		}
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, true
	default:
		return nil, false
	}
}

func toInt64(value any) (int64, bool) {
	switch n := value.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}
