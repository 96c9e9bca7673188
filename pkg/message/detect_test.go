package message

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want Kind
	}{
		{name: "type field", raw: map[string]any{"type": "textMessage", "textMessage": "hello"}, want: KindText},
		{name: "direction type falls through to typeMessage", raw: map[string]any{"type": "incoming", "typeMessage": "videoMessage"}, want: KindVideo},
		{name: "typeMessage inside messageData", raw: map[string]any{"messageData": map[string]any{"typeMessage": "documentMessage"}}, want: KindDocument},
		{name: "capitalized type key", raw: map[string]any{"TypeMessage": "stickerMessage"}, want: KindSticker},
		{name: "quoted alias", raw: map[string]any{"typeMessage": "quotedMessage"}, want: KindExtendedText},
		{name: "kind named key", raw: map[string]any{"imageMessage": map[string]any{}}, want: KindImage},
		{name: "kind envelope key", raw: map[string]any{"messageData": map[string]any{"locationMessageData": map[string]any{}}}, want: KindLocation},
		{name: "extended wins over bare text", raw: map[string]any{"textMessage": "x", "extendedTextMessageData": map[string]any{"text": "x"}}, want: KindExtendedText},
		{name: "bare text", raw: map[string]any{"textMessage": "hi"}, want: KindText},
		{name: "conversation", raw: map[string]any{"conversation": "hi"}, want: KindText},
		{name: "poll data", raw: map[string]any{"pollMessageData": map[string]any{"name": "Lunch?"}}, want: KindPoll},
		{name: "poll creation", raw: map[string]any{"pollCreationMessage": map[string]any{}}, want: KindPoll},
		{name: "unknown type name", raw: map[string]any{"typeMessage": "buttonsMessage"}, want: KindUnknown},
		{name: "non string type", raw: map[string]any{"type": 5}, want: KindUnknown},
		{name: "empty", raw: map[string]any{}, want: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := NewView(tt.raw)
			require.NoError(t, err)
			require.Equal(t, tt.want, Detect(view))
		})
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	corpus := []map[string]any{
		{"type": "textMessage", "textMessage": "hello"},
		{"imageMessage": map[string]any{"caption": "x"}, "videoMessage": map[string]any{}, "textMessage": "y"},
		{"messageData": map[string]any{"reactionMessage": map[string]any{"text": "😂"}}},
		{"pollMessage": map[string]any{}, "Caption": "z"},
		{},
	}

	for _, raw := range corpus {
		view, err := NewView(raw)
		require.NoError(t, err)
		first := Detect(view)
		for range 20 {
			require.Equal(t, first, Detect(view))
		}
	}
}

func TestNewViewRejectsNonMappings(t *testing.T) {
	for _, raw := range []any{nil, 42, "textMessage", []any{map[string]any{}}, map[string]any(nil)} {
		_, err := NewView(raw)
		require.ErrorIs(t, err, ErrNotAMessageObject)
	}
}

func TestViewLayeredLookup(t *testing.T) {
	view, err := NewView(map[string]any{
		"caption": "top",
		"messageData": map[string]any{
			"caption":          "envelope",
			"address":          "from envelope",
			"Sender":           "capitalized",
			"imageMessageData": map[string]any{"caption": "kind", "width": 10},
		},
	})
	require.NoError(t, err)

	got, _ := view.String(KindImage, "caption")
	require.Equal(t, "top", got)

	got, _ = view.String(KindImage, "address")
	require.Equal(t, "from envelope", got)

	width, ok := view.Field(KindImage, "width")
	require.True(t, ok)
	require.Equal(t, 10, width)

	_, ok = view.Field(KindUnknown, "width")
	require.False(t, ok, "kind envelope must only be consulted for its kind")

	got, _ = view.String(KindUnknown, "sender")
	require.Equal(t, "capitalized", got)

	require.Equal(t, []string{"caption", "messageData", "messageData.Sender", "messageData.address", "messageData.caption", "messageData.imageMessageData"}, view.Keys())
}

func TestParseKind(t *testing.T) {
	for input, want := range map[string]Kind{
		"imageMessage":  KindImage,
		"IMAGE":         KindImage,
		"ExtendedText":  KindExtendedText,
		" pollMessage ": KindPoll,
		"voiceMessage":  KindAudio,
	} {
		got, ok := ParseKind(input)
		require.True(t, ok, input)
		require.Equal(t, want, got, input)
	}

	_, ok := ParseKind("incoming")
	require.False(t, ok)

	_, err := ParseKinds([]string{"textMessage", "carrierPigeon"})
	require.Error(t, err)
}
