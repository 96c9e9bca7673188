package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wadigest/pkg/message"
)

func TestSaveAndListMessages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	msgs := []message.Canonical{
		{MessageID: "2", SenderName: "Avi", Text: "[IMAGE] the venue", Kind: message.KindImage, Type: "incoming", Timestamp: base.Add(time.Hour).Unix()},
		{MessageID: "1", SenderName: "Dana", Text: "dinner tonight?", Kind: message.KindText, Type: "incoming", Timestamp: base.Unix()},
		{MessageID: "", SenderName: "Ghost", Text: "no id", Kind: message.KindText, Timestamp: base.Unix()},
		{MessageID: "3", SenderName: "Dana", Text: "[REACTION: 👍]", Kind: message.KindReaction, Type: "incoming", ReplyTo: "2", Timestamp: base.Add(2 * time.Hour).Unix()},
	}

	n, err := s.SaveMessages(ctx, "g@g.us", msgs)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	_, err = s.SaveMessages(ctx, "h@g.us", msgs[:1])
	require.NoError(t, err)

	all, err := s.ListMessages(ctx, "g@g.us", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "1", all[0].MessageID)
	require.Equal(t, "g@g.us", all[0].ChatID)
	require.Equal(t, message.KindImage, all[1].Kind)
	require.Equal(t, "2", all[2].ReplyTo)

	window, err := s.ListMessages(ctx, "g@g.us", base.Add(30*time.Minute), base.Add(90*time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, window, 1)
	require.Equal(t, "[IMAGE] the venue", window[0].Text)

	limited, err := s.ListMessages(ctx, "g@g.us", time.Time{}, time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)

	count, err := s.CountMessages(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(4), count)
}

func TestSaveMessagesUpdatesInPlace(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := []message.Canonical{{MessageID: "1", SenderName: "Dana", Text: "draft", Kind: message.KindText, Timestamp: 100}}
	_, err := s.SaveMessages(ctx, "g@g.us", first)
	require.NoError(t, err)

	first[0].Text = "edited"
	_, err = s.SaveMessages(ctx, "g@g.us", first)
	require.NoError(t, err)

	got, err := s.ListMessages(ctx, "g@g.us", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "edited", got[0].Text)
}

func TestSaveMessagesValidation(t *testing.T) {
	s := openTestStore(t)

	_, err := s.SaveMessages(context.Background(), " ", []message.Canonical{{MessageID: "1"}})
	require.ErrorContains(t, err, "chat id is required")

	n, err := s.SaveMessages(context.Background(), "g@g.us", nil)
	require.NoError(t, err)
	require.Zero(t, n)
}
