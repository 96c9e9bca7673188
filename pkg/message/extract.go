package message

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kyokomi/emoji/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrExtractionFailed  = errors.New("text extraction failed")
	ErrMalformedEnvelope = errors.New("message envelope has an unexpected shape")
)

const (
	defaultReaction    = "👍"
	unknownPlaceholder = "[UNKNOWN MESSAGE TYPE]"
	deletedPlaceholder = "[DELETED MESSAGE]"
	editedPrefix       = "[EDITED]"
)

var textKeys = []string{"textMessage", "text", "conversation"}

type extraction struct {
	Text    string
	ReplyTo string
}

type extractor func(v *View, kind Kind) (extraction, error)

// extractors is indexed by Kind; every kind has exactly one strategy.
var extractors = [...]extractor{
	KindUnknown:      extractUnknown,
	KindText:         extractText,
	KindExtendedText: extractText,
	KindImage:        extractMedia,
	KindVideo:        extractMedia,
	KindAudio:        extractMedia,
	KindDocument:     extractMedia,
	KindSticker:      extractTagOnly,
	KindLocation:     extractLocation,
	KindContact:      extractContact,
	KindReaction:     extractReaction,
	KindPoll:         extractPoll,
}

// Extract renders the human-readable text of a record of the given kind.
// Panics raised while reading the record are returned as
// ErrExtractionFailed.
func Extract(v *View, kind Kind) (string, error) {
	out, err := extract(v, kind)
	return out.Text, err
}

func extract(v *View, kind Kind) (out extraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = extraction{}
			err = fmt.Errorf("%w: %v", ErrExtractionFailed, r)
		}
	}()

	if v == nil {
		return extraction{}, ErrNotAMessageObject
	}
	if !kind.valid() {
		kind = KindUnknown
	}
	if err := checkEnvelope(v, kind); err != nil {
		return extraction{}, err
	}

	if v.Bool("isDeleted") {
		return extraction{Text: deletedPlaceholder}, nil
	}

	out, err = extractors[kind](v, kind)
	if err != nil {
		return extraction{}, err
	}
	if v.Bool("isEdited") {
		out.Text = editedPrefix + " " + out.Text
	}
	out.Text = cleanText(out.Text)
	return out, nil
}

// checkEnvelope rejects kind envelopes that are neither objects nor strings.
func checkEnvelope(v *View, kind Kind) error {
	value, ok := v.Envelope(kind)
	if !ok {
		return nil
	}
	switch value.(type) {
	case string:
		return nil
	default:
		if _, ok := asMap(value); ok {
			return nil
		}
		return fmt.Errorf("%w: %s is %T", ErrMalformedEnvelope, kind.TypeName(), value)
	}
}

func extractText(v *View, kind Kind) (extraction, error) {
	own := plainText(v, kind)

	quoted, ok := v.Map(kind, "quotedMessage")
	if !ok {
		return extraction{Text: own}, nil
	}
	quotedText, quotedID := renderQuoted(quoted)
	if quotedText == "" {
		return extraction{Text: own, ReplyTo: quotedID}, nil
	}
	return extraction{
		Text:    strings.TrimSpace("[QUOTE: " + quotedText + "] " + own),
		ReplyTo: quotedID,
	}, nil
}

// plainText reads the record's own text without looking at quotes.
func plainText(v *View, kind Kind) string {
	if s := v.FirstString(kind, textKeys...); s != "" {
		return s
	}
	if value, ok := v.Envelope(kind); ok {
		if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	if nested, ok := v.Map(KindUnknown, "textMessageData"); ok {
		if s, ok := nested["textMessage"].(string); ok {
			return s
		}
	}
	return ""
}

// renderQuoted produces the inline text of a quoted message, one level
// deep: a quote inside the quote is ignored.
func renderQuoted(quoted map[string]any) (string, string) {
	qv, err := NewView(quoted)
	if err != nil {
		return "", ""
	}
	id := qv.FirstString(KindUnknown, "stanzaId", "idMessage", "id")
	kind := Detect(qv)

	switch kind {
	case KindImage, KindVideo, KindAudio, KindDocument, KindSticker, KindLocation, KindContact:
		label := kind.String()
		if caption := qv.FirstString(kind, "caption"); caption != "" {
			return label + ": " + caption, id
		}
		return label, id
	case KindPoll:
		return "Poll", id
	default:
		if s := plainText(qv, kind); s != "" {
			return s, id
		}
		return qv.FirstString(kind, "caption"), id
	}
}

func extractMedia(v *View, kind Kind) (extraction, error) {
	tag := "[" + kinds[kind].tag + "]"
	caption := strings.TrimSpace(v.FirstString(kind, "caption"))
	if caption == "" {
		return extraction{Text: tag}, nil
	}
	return extraction{Text: tag + " " + caption}, nil
}

func extractTagOnly(_ *View, kind Kind) (extraction, error) {
	return extraction{Text: "[" + kinds[kind].tag + "]"}, nil
}

func extractLocation(v *View, kind Kind) (extraction, error) {
	name := v.FirstString(kind, "nameLocation", "name")
	address := v.FirstString(kind, "address")
	return extraction{Text: strings.TrimSpace("[LOCATION] " + name + " " + address)}, nil
}

func extractContact(v *View, kind Kind) (extraction, error) {
	name := v.FirstString(kind, "displayName", "contactName", "name")
	if name == "" {
		name = contactsArrayNames(v)
	}
	return extraction{Text: strings.TrimSpace("[CONTACT] " + name)}, nil
}

func contactsArrayNames(v *View) string {
	value, ok := v.Field(KindContact, "contacts")
	if !ok {
		return ""
	}
	list, ok := value.([]any)
	if !ok {
		return ""
	}
	names := make([]string, 0, len(list))
	for _, item := range list {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		if s, ok := m["displayName"].(string); ok && strings.TrimSpace(s) != "" {
			names = append(names, strings.TrimSpace(s))
		}
	}
	return strings.Join(names, ", ")
}

func extractReaction(v *View, kind Kind) (extraction, error) {
	reaction := v.FirstString(kind, "emoji", "reaction", "text")
	target := ""

	// Green API wraps reactions in extendedTextMessageData, or
	// extendedTextMessage in the history layout.
	if ext := nestedView(v.Envelope(KindExtendedText)); ext != nil {
		if reaction == "" {
			reaction = ext.FirstString(KindUnknown, "text", "emoji", "reaction")
		}
		target = ext.FirstString(KindUnknown, "stanzaId", "id")
	}
	if target == "" {
		target = nestedView(v.Field(kind, "key")).FirstString(KindUnknown, "id")
	}
	if target == "" {
		target = nestedView(v.Field(kind, "quotedMessage")).FirstString(KindUnknown, "stanzaId", "id")
	}

	reaction = strings.TrimSpace(reaction)
	if reaction == "" {
		reaction = defaultReaction
	}
	return extraction{Text: "[REACTION: " + reaction + "]", ReplyTo: target}, nil
}

// nestedView wraps a nested object so its fields resolve with the same
// capitalization fallback as the record itself. Non-objects yield nil.
func nestedView(value any, ok bool) *View {
	if !ok {
		return nil
	}
	nested, err := NewView(value)
	if err != nil {
		return nil
	}
	return nested
}

func extractPoll(v *View, kind Kind) (extraction, error) {
	if s := v.FirstString(KindUnknown, textKeys...); s != "" {
		return extraction{Text: s}, nil
	}
	return extractTagOnly(v, kind)
}

func extractUnknown(v *View, kind Kind) (extraction, error) {
	if s := plainText(v, kind); s != "" {
		return extraction{Text: s}, nil
	}
	if s := v.FirstString(kind, "caption", "body"); s != "" {
		return extraction{Text: s}, nil
	}
	return extraction{Text: unknownPlaceholder}, nil
}

// cleanText repairs encoding, decodes :shortcode: emoji and collapses
// whitespace.
func cleanText(s string) string {
	if s == "" {
		return ""
	}
	if out, _, err := transform.String(transform.Chain(runes.ReplaceIllFormed(), norm.NFC), s); err == nil {
		s = out
	}
	if strings.ContainsRune(s, ':') {
		s = emojize(s)
	}
	return strings.Join(strings.Fields(s), " ")
}

var shortcodePattern = regexp.MustCompile(`:[a-zA-Z0-9_+\-]+:`)

// emojize replaces known :shortcode: tokens with their glyph. Unlike
// emoji.Sprint it adds no padding after the glyph.
func emojize(s string) string {
	codes := emoji.CodeMap()
	return shortcodePattern.ReplaceAllStringFunc(s, func(code string) string {
		if glyph, ok := codes[code]; ok {
			return glyph
		}
		return code
	})
}
