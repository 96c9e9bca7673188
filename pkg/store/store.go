package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("summary not found")

// Summary is one stored chat digest.
type Summary struct {
	ID            string
	ChatID        string
	Text          string
	Provider      string
	Model         string
	Language      string
	MessageCount  int
	Processed     int
	Rejected      int
	WindowStart   time.Time
	WindowEnd     time.Time
	InputTokens   int64
	OutputTokens  int64
	SentMessageID string
	SentAt        *time.Time
	CreatedAt     time.Time
}

func (s Summary) Sent() bool { return s.SentAt != nil }

type summaryModel struct {
	ID            string     `gorm:"primaryKey;column:id"`
	ChatID        string     `gorm:"column:chat_id;not null;index:idx_chat_created"`
	Text          string     `gorm:"column:text;type:text;not null"`
	Provider      string     `gorm:"column:provider"`
	Model         string     `gorm:"column:model"`
	Language      string     `gorm:"column:language"`
	MessageCount  int        `gorm:"column:message_count;default:0"`
	Processed     int        `gorm:"column:processed;default:0"`
	Rejected      int        `gorm:"column:rejected;default:0"`
	WindowStart   time.Time  `gorm:"column:window_start"`
	WindowEnd     time.Time  `gorm:"column:window_end"`
	InputTokens   int64      `gorm:"column:input_tokens;default:0"`
	OutputTokens  int64      `gorm:"column:output_tokens;default:0"`
	SentMessageID string     `gorm:"column:sent_message_id"`
	SentAt        *time.Time `gorm:"column:sent_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null;index:idx_chat_created"`
}

func (summaryModel) TableName() string { return "summaries" }

// Store persists summaries in a SQLite database.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open creates the database file and its parent directory when missing and
// migrates the schema. ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn, err := resolveDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.New(gormWriter{log: storeLogger()}, logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open database (%s): %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&summaryModel{}, &messageModel{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	storeLogger().Debug("Opened summary store", "path", path)
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveSummary inserts a summary, assigning an ID and creation time when unset.
func (s *Store) SaveSummary(ctx context.Context, summary *Summary) error {
	if strings.TrimSpace(summary.ChatID) == "" {
		return errors.New("summary chat id is required")
	}
	if summary.ID == "" {
		summary.ID = uuid.NewString()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = s.now()
	}

	model := toModel(*summary)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// MarkSent records delivery of a summary to its chat.
func (s *Store) MarkSent(ctx context.Context, id string, messageID string) error {
	res := s.db.WithContext(ctx).Model(&summaryModel{}).Where("id = ?", id).Updates(map[string]any{
		"sent_message_id": messageID,
		"sent_at":         s.now(),
	})
	if res.Error != nil {
		return fmt.Errorf("mark summary sent: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// LatestSummary returns the newest summary of a chat.
func (s *Store) LatestSummary(ctx context.Context, chatID string) (Summary, error) {
	var model summaryModel
	err := s.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("created_at DESC").First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Summary{}, ErrNotFound
	}
	if err != nil {
		return Summary{}, fmt.Errorf("load latest summary: %w", err)
	}
	return fromModel(model), nil
}

// ListSummaries returns summaries newest first. An empty chatID lists all
// chats; a non-positive limit returns everything.
func (s *Store) ListSummaries(ctx context.Context, chatID string, limit int) ([]Summary, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if chatID != "" {
		query = query.Where("chat_id = ?", chatID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []summaryModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}

	out := make([]Summary, 0, len(models))
	for _, model := range models {
		out = append(out, fromModel(model))
	}
	return out, nil
}

// CountSummaries returns the number of stored summaries.
func (s *Store) CountSummaries(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&summaryModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count summaries: %w", err)
	}
	return count, nil
}

func toModel(s Summary) summaryModel {
	return summaryModel{
		ID:            s.ID,
		ChatID:        s.ChatID,
		Text:          s.Text,
		Provider:      s.Provider,
		Model:         s.Model,
		Language:      s.Language,
		MessageCount:  s.MessageCount,
		Processed:     s.Processed,
		Rejected:      s.Rejected,
		WindowStart:   s.WindowStart,
		WindowEnd:     s.WindowEnd,
		InputTokens:   s.InputTokens,
		OutputTokens:  s.OutputTokens,
		SentMessageID: s.SentMessageID,
		SentAt:        s.SentAt,
		CreatedAt:     s.CreatedAt,
	}
}

func fromModel(m summaryModel) Summary {
	return Summary{
		ID:            m.ID,
		ChatID:        m.ChatID,
		Text:          m.Text,
		Provider:      m.Provider,
		Model:         m.Model,
		Language:      m.Language,
		MessageCount:  m.MessageCount,
		Processed:     m.Processed,
		Rejected:      m.Rejected,
		WindowStart:   m.WindowStart,
		WindowEnd:     m.WindowEnd,
		InputTokens:   m.InputTokens,
		OutputTokens:  m.OutputTokens,
		SentMessageID: m.SentMessageID,
		SentAt:        m.SentAt,
		CreatedAt:     m.CreatedAt,
	}
}

func resolveDSN(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("storage.path is required")
	}
	if path == ":memory:" {
		return "file::memory:", nil
	}

	expanded, err := expandHome(path)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve absolute database path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", fmt.Errorf("create database directory: %w", err)
	}

	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", absPath), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if path == "~" {
		return homeDir, nil
	}
	return filepath.Join(homeDir, path[2:]), nil
}

type gormWriter struct {
	log *slog.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.log.Warn(fmt.Sprintf(format, args...))
}

func storeLogger() *slog.Logger {
	return slog.Default().With("component", "store")
}
