package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm/clause"

	"wadigest/pkg/message"
)

type messageModel struct {
	ChatID     string    `gorm:"primaryKey;column:chat_id"`
	MessageID  string    `gorm:"primaryKey;column:message_id"`
	SenderName string    `gorm:"column:sender_name"`
	Text       string    `gorm:"column:text;type:text;not null"`
	Kind       string    `gorm:"column:kind"`
	Type       string    `gorm:"column:type"`
	ReplyTo    string    `gorm:"column:reply_to"`
	Timestamp  int64     `gorm:"column:timestamp;index:idx_chat_timestamp"`
	StoredAt   time.Time `gorm:"column:stored_at;not null"`
}

func (messageModel) TableName() string { return "messages" }

// SaveMessages archives normalized messages of a chat. Messages are keyed by
// chat and message id, so saving the same window twice updates in place.
// Messages without an id are skipped. It returns the number of rows written.
func (s *Store) SaveMessages(ctx context.Context, chatID string, msgs []message.Canonical) (int, error) {
	if strings.TrimSpace(chatID) == "" {
		return 0, errors.New("message chat id is required")
	}

	storedAt := s.now()
	models := make([]messageModel, 0, len(msgs))
	for _, msg := range msgs {
		if msg.MessageID == "" {
			continue
		}
		models = append(models, messageModel{
			ChatID:     chatID,
			MessageID:  msg.MessageID,
			SenderName: msg.SenderName,
			Text:       msg.Text,
			Kind:       msg.Kind.TypeName(),
			Type:       msg.Type,
			ReplyTo:    msg.ReplyTo,
			Timestamp:  msg.Timestamp,
			StoredAt:   storedAt,
		})
	}
	if len(models) == 0 {
		return 0, nil
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "message_id"}},
		UpdateAll: true,
	}).CreateInBatches(&models, 100).Error
	if err != nil {
		return 0, fmt.Errorf("save messages: %w", err)
	}
	return len(models), nil
}

// ListMessages returns archived messages of a chat oldest first. Zero start
// or end leaves that side of the window open; a non-positive limit returns
// everything.
func (s *Store) ListMessages(ctx context.Context, chatID string, start, end time.Time, limit int) ([]message.Canonical, error) {
	query := s.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("timestamp ASC, message_id ASC")
	if !start.IsZero() {
		query = query.Where("timestamp >= ?", start.Unix())
	}
	if !end.IsZero() {
		query = query.Where("timestamp <= ?", end.Unix())
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []messageModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := make([]message.Canonical, 0, len(models))
	for _, m := range models {
		kind, _ := message.ParseKind(m.Kind)
		out = append(out, message.Canonical{
			MessageID:  m.MessageID,
			ChatID:     m.ChatID,
			SenderName: m.SenderName,
			Text:       m.Text,
			Kind:       kind,
			Type:       m.Type,
			ReplyTo:    m.ReplyTo,
			Timestamp:  m.Timestamp,
		})
	}
	return out, nil
}

// CountMessages returns the number of archived messages.
func (s *Store) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&messageModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}
