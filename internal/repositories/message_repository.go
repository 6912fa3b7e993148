package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"messenger/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	ListByChatIDs(ctx context.Context, chatIDs []uuid.UUID) ([]models.MessageRow, error)
	ListByChat(ctx context.Context, chatID uuid.UUID) ([]models.MessageRow, error)
	GetWithSender(ctx context.Context, messageID uuid.UUID) (models.MessageRow, error)
	Create(ctx context.Context, chatID uuid.UUID, senderID uuid.UUID, content string) (models.MessageRecord, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func messagesWithSender() sq.SelectBuilder {
	return psql.
		Select(
			"m.id",
			"m.chat_id",
			"m.sender_id",
			"m.content",
			"m.created_at",
			"p.username",
			"COALESCE(p.full_name, '') AS full_name",
			"COALESCE(p.avatar_url, '') AS avatar_url",
		).
		From("messages m").
		Join("profiles p ON p.id = m.sender_id")
}

// ListByChatIDs returns the messages of all given chats, newest first.
func (r *MessageRepo) ListByChatIDs(ctx context.Context, chatIDs []uuid.UUID) ([]models.MessageRow, error) {
	query, args, err := messagesWithSender().
		Where(sq.Eq{"m.chat_id": chatIDs}).
		OrderBy("m.created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sql query: %w", err)
	}

	var msgs []models.MessageRow
	err = r.db.SelectContext(ctx, &msgs, query, args...)
	return msgs, err
}

// ListByChat returns the transcript of one chat, oldest first.
func (r *MessageRepo) ListByChat(ctx context.Context, chatID uuid.UUID) ([]models.MessageRow, error) {
	query, args, err := messagesWithSender().
		Where(sq.Eq{"m.chat_id": chatID.String()}).
		OrderBy("m.created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sql query: %w", err)
	}

	var msgs []models.MessageRow
	err = r.db.SelectContext(ctx, &msgs, query, args...)
	return msgs, err
}

// GetWithSender retrieves a single message joined with its sender.
func (r *MessageRepo) GetWithSender(ctx context.Context, messageID uuid.UUID) (models.MessageRow, error) {
	query, args, err := messagesWithSender().
		Where(sq.Eq{"m.id": messageID.String()}).
		ToSql()
	if err != nil {
		return models.MessageRow{}, fmt.Errorf("failed to build sql query: %w", err)
	}

	var msg models.MessageRow
	err = r.db.GetContext(ctx, &msg, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MessageRow{}, ErrMessageNotFound
	}
	return msg, err
}

// Create stores a message and returns the inserted row.
func (r *MessageRepo) Create(ctx context.Context, chatID uuid.UUID, senderID uuid.UUID, content string) (models.MessageRecord, error) {
	var rec models.MessageRecord
	err := r.db.GetContext(ctx, &rec, `INSERT INTO messages (chat_id, sender_id, content) VALUES ($1, $2, $3) RETURNING id, chat_id, sender_id, content, created_at`,
		chatID, senderID, content)
	return rec, err
}
