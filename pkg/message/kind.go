package message

import (
	"fmt"
	"strings"
)

// Kind is the closed classification of message content.
type Kind int

const (
	KindUnknown Kind = iota
	KindText
	KindExtendedText
	KindImage
	KindVideo
	KindAudio
	KindDocument
	KindSticker
	KindLocation
	KindContact
	KindReaction
	KindPoll
)

type kindInfo struct {
	name     string // enum name
	short    string
	platform string // Green API typeMessage value and envelope key prefix
	tag      string // placeholder tag for media kinds
}

var kinds = [...]kindInfo{
	KindUnknown:      {name: "Unknown", short: "unknown", platform: "unknownMessage"},
	KindText:         {name: "Text", short: "text", platform: "textMessage"},
	KindExtendedText: {name: "ExtendedText", short: "extendedText", platform: "extendedTextMessage"},
	KindImage:        {name: "Image", short: "image", platform: "imageMessage", tag: "IMAGE"},
	KindVideo:        {name: "Video", short: "video", platform: "videoMessage", tag: "VIDEO"},
	KindAudio:        {name: "Audio", short: "audio", platform: "audioMessage", tag: "AUDIO"},
	KindDocument:     {name: "Document", short: "document", platform: "documentMessage", tag: "DOCUMENT"},
	KindSticker:      {name: "Sticker", short: "sticker", platform: "stickerMessage", tag: "STICKER"},
	KindLocation:     {name: "Location", short: "location", platform: "locationMessage", tag: "LOCATION"},
	KindContact:      {name: "Contact", short: "contact", platform: "contactMessage", tag: "CONTACT"},
	KindReaction:     {name: "Reaction", short: "reaction", platform: "reactionMessage", tag: "REACTION"},
	KindPoll:         {name: "Poll", short: "poll", platform: "pollMessage", tag: "POLL"},
}

// kindAliases maps extra platform type names onto kinds.
var kindAliases = map[string]Kind{
	"quotedmessage":        KindExtendedText,
	"pollcreationmessage":  KindPoll,
	"pollmessagedata":      KindPoll,
	"voicemessage":         KindAudio,
	"contactsarraymessage": KindContact,
}

// AllKinds lists every kind in declaration order.
func AllKinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := range kinds {
		out = append(out, Kind(k))
	}
	return out
}

// DefaultSupportedKinds is every kind except Unknown.
func DefaultSupportedKinds() []Kind {
	out := make([]Kind, 0, len(kinds)-1)
	for _, k := range AllKinds() {
		if k != KindUnknown {
			out = append(out, k)
		}
	}
	return out
}

func (k Kind) valid() bool {
	return k >= 0 && int(k) < len(kinds)
}

func (k Kind) String() string {
	if !k.valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kinds[k].name
}

// TypeName returns the platform type name, for example "imageMessage".
func (k Kind) TypeName() string {
	if !k.valid() {
		return kinds[KindUnknown].platform
	}
	return kinds[k].platform
}

// IsPlaceholder reports whether the kind always renders a bracketed tag,
// which means its text is never considered empty.
func (k Kind) IsPlaceholder() bool {
	return k.valid() && kinds[k].tag != ""
}

func (k Kind) envelopeKeys() []string {
	p := k.TypeName()
	return []string{p + "Data", p}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.TypeName()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, ok := ParseKind(string(text))
	if !ok {
		return fmt.Errorf("unknown message kind %q", string(text))
	}
	*k = parsed
	return nil
}

// ParseKind resolves a platform type name, short name or enum name.
func ParseKind(value string) (Kind, bool) {
	needle := strings.ToLower(strings.TrimSpace(value))
	if needle == "" {
		return KindUnknown, false
	}
	for i, info := range kinds {
		if needle == strings.ToLower(info.platform) ||
			needle == strings.ToLower(info.short) ||
			needle == strings.ToLower(info.name) {
			return Kind(i), true
		}
	}
	if k, ok := kindAliases[needle]; ok {
		return k, true
	}
	return KindUnknown, false
}

// ParseKinds resolves a list of names and fails on the first unknown one.
func ParseKinds(values []string) ([]Kind, error) {
	out := make([]Kind, 0, len(values))
	for _, value := range values {
		k, ok := ParseKind(value)
		if !ok {
			return nil, fmt.Errorf("unknown message kind %q", value)
		}
		out = append(out, k)
	}
	return out, nil
}
