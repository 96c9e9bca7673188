package message

import (
	"strings"
	"unicode"
)

// Reason explains a filter decision.
type Reason int

const (
	ReasonAccepted Reason = iota
	ReasonNotAMessageObject
	ReasonUnsupportedType
	ReasonCommandMessage
	ReasonEmptyContent
	// ReasonProcessingFailure marks a record whose processing panicked
	// outside text extraction.
	ReasonProcessingFailure
)

var reasonNames = [...]string{
	ReasonAccepted:          "accepted",
	ReasonNotAMessageObject: "not_a_message_object",
	ReasonUnsupportedType:   "unsupported_type",
	ReasonCommandMessage:    "command_message",
	ReasonEmptyContent:      "empty_content",
	ReasonProcessingFailure: "processing_failure",
}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return "unknown"
	}
	return reasonNames[r]
}

func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Decision is the keep/reject outcome for one record.
type Decision struct {
	Kept   bool   `json:"kept"`
	Reason Reason `json:"reason"`
}

func accept() Decision              { return Decision{Kept: true, Reason: ReasonAccepted} }
func reject(reason Reason) Decision { return Decision{Reason: reason} }

var (
	DefaultCommandPrefixes = []string{"!", "/", "."}
	DefaultCommandWords    = []string{"summary", "poll", "help"}
)

// Policy gates records after detection and extraction.
type Policy struct {
	supported map[Kind]bool
	prefixes  []string
	words     map[string]bool
	reduced   bool
}

// NewPolicy builds a policy. Nil slices fall back to the defaults; empty
// non-nil slices disable the corresponding rule input.
func NewPolicy(supported []Kind, prefixes, words []string, reduced bool) *Policy {
	if supported == nil {
		supported = DefaultSupportedKinds()
	}
	if prefixes == nil {
		prefixes = DefaultCommandPrefixes
	}
	if words == nil {
		words = DefaultCommandWords
	}

	p := &Policy{
		supported: make(map[Kind]bool, len(supported)),
		words:     make(map[string]bool, len(words)),
		reduced:   reduced,
	}
	for _, k := range supported {
		p.supported[k] = true
	}
	for _, prefix := range prefixes {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			p.prefixes = append(p.prefixes, prefix)
		}
	}
	for _, word := range words {
		if word = strings.ToLower(strings.TrimSpace(word)); word != "" {
			p.words[word] = true
		}
	}
	return p
}

// Supports reports whether kind is on the allow-list.
func (p *Policy) Supports(kind Kind) bool {
	return p.supported[kind]
}

// CheckKind applies the rules that do not need extracted text.
func (p *Policy) CheckKind(v *View, kind Kind) Decision {
	if v == nil {
		return reject(ReasonNotAMessageObject)
	}
	if !p.reduced && !p.supported[kind] {
		return reject(ReasonUnsupportedType)
	}
	return accept()
}

// Decide applies every rule in precedence order.
func (p *Policy) Decide(v *View, kind Kind, text string) Decision {
	if d := p.CheckKind(v, kind); !d.Kept {
		return d
	}
	if p.IsCommand(text) {
		return reject(ReasonCommandMessage)
	}
	if strings.TrimSpace(text) == "" && !kind.IsPlaceholder() && !p.reduced {
		return reject(ReasonEmptyContent)
	}
	return accept()
}

// IsCommand reports whether text is a bot control command such as
// "!summary" or "/help now".
func (p *Policy) IsCommand(text string) bool {
	text = strings.TrimSpace(text)
	for _, prefix := range p.prefixes {
		rest, ok := strings.CutPrefix(text, prefix)
		if !ok {
			continue
		}
		word := rest
		if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
			word = rest[:i]
		}
		if p.words[strings.ToLower(word)] {
			return true
		}
	}
	return false
}
