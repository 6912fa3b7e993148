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

var (
	ErrChatNotFound        = errors.New("chat not found")
	ErrParticipantNotFound = errors.New("participant not found")
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// ChatRepository abstracts chat and membership persistence.
type ChatRepository interface {
	ListChatIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	ListChatsByIDs(ctx context.Context, chatIDs []uuid.UUID) ([]models.ChatRow, error)
	ListParticipants(ctx context.Context, chatIDs []uuid.UUID) ([]models.ParticipantRow, error)
	GetChat(ctx context.Context, chatID uuid.UUID) (models.ChatRow, error)
	CreateChat(ctx context.Context, chat models.NewChat, participants []models.NewParticipant) (uuid.UUID, error)
	AddParticipants(ctx context.Context, chatID uuid.UUID, participants []models.NewParticipant) error
	RemoveParticipant(ctx context.Context, chatID uuid.UUID, userID uuid.UUID) error
	UpdateName(ctx context.Context, chatID uuid.UUID, name string) error
	IsParticipant(ctx context.Context, chatID uuid.UUID, userID uuid.UUID) (bool, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// ListChatIDsForUser returns the ids of every chat the user participates in,
// most recently joined first.
func (r *ChatRepo) ListChatIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `SELECT chat_id FROM chat_participants WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	return ids, err
}

// ListChatsByIDs fetches chat rows for the given ids, most recently updated first.
func (r *ChatRepo) ListChatsByIDs(ctx context.Context, chatIDs []uuid.UUID) ([]models.ChatRow, error) {
	query, args, err := psql.
		Select("id", "created_at", "updated_at", "is_group", "name", "created_by").
		From("chats").
		Where(sq.Eq{"id": chatIDs}).
		OrderBy("updated_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sql query: %w", err)
	}

	var chats []models.ChatRow
	err = r.db.SelectContext(ctx, &chats, query, args...)
	return chats, err
}

// ListParticipants fetches the participant links of all given chats joined
// with their profiles in a single query.
func (r *ChatRepo) ListParticipants(ctx context.Context, chatIDs []uuid.UUID) ([]models.ParticipantRow, error) {
	query, args, err := psql.
		Select(
			"cp.chat_id",
			"cp.user_id",
			"cp.is_admin",
			"cp.created_at",
			"p.username",
			"COALESCE(p.full_name, '') AS full_name",
			"COALESCE(p.avatar_url, '') AS avatar_url",
		).
		From("chat_participants cp").
		Join("profiles p ON p.id = cp.user_id").
		Where(sq.Eq{"cp.chat_id": chatIDs}).
		OrderBy("cp.created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sql query: %w", err)
	}

	var rows []models.ParticipantRow
	err = r.db.SelectContext(ctx, &rows, query, args...)
	return rows, err
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID uuid.UUID) (models.ChatRow, error) {
	var chat models.ChatRow
	err := r.db.GetContext(ctx, &chat, `SELECT id, created_at, updated_at, is_group, name, created_by FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatRow{}, ErrChatNotFound
	}
	return chat, err
}

// CreateChat inserts the chat row and its participant rows in one transaction.
func (r *ChatRepo) CreateChat(ctx context.Context, chat models.NewChat, participants []models.NewParticipant) (id uuid.UUID, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return uuid.Nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = tx.QueryRowxContext(ctx, `INSERT INTO chats (is_group, name, created_by) VALUES ($1, $2, $3) RETURNING id`,
		chat.IsGroup, chat.Name, chat.CreatedBy).Scan(&id); err != nil {
		return uuid.Nil, err
	}

	if err = insertParticipants(ctx, tx, id, participants); err != nil {
		return uuid.Nil, err
	}

	if err = tx.Commit(); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// AddParticipants inserts participant rows for an existing chat.
func (r *ChatRepo) AddParticipants(ctx context.Context, chatID uuid.UUID, participants []models.NewParticipant) error {
	return insertParticipants(ctx, r.db, chatID, participants)
}

func insertParticipants(ctx context.Context, exec sqlx.ExecerContext, chatID uuid.UUID, participants []models.NewParticipant) error {
	if len(participants) == 0 {
		return nil
	}

	builder := psql.Insert("chat_participants").Columns("chat_id", "user_id", "is_admin")
	for _, p := range participants {
		builder = builder.Values(chatID, p.UserID, p.IsAdmin)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build sql query: %w", err)
	}

	_, err = exec.ExecContext(ctx, query, args...)
	return err
}

// RemoveParticipant deletes a user's membership of a chat.
func (r *ChatRepo) RemoveParticipant(ctx context.Context, chatID uuid.UUID, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_participants WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

// UpdateName renames a chat.
func (r *ChatRepo) UpdateName(ctx context.Context, chatID uuid.UUID, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chats SET name=$1 WHERE id=$2`, name, chatID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrChatNotFound
	}
	return nil
}

// IsParticipant checks whether a user belongs to the chat.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID uuid.UUID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chat_participants WHERE chat_id=$1 AND user_id=$2)`, chatID, userID)
	return exists, err
}
