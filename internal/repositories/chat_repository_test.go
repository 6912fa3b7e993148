package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestListChatIDsForUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)
	userID := uuid.New()
	chatA, chatB := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT chat_id FROM chat_participants WHERE user_id=$1`)).
		WithArgs(userID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"chat_id"}).AddRow(chatA.String()).AddRow(chatB.String()))

	ids, err := repo.ListChatIDsForUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{chatA, chatB}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListChatsByIDsUsesSingleInQuery(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)
	chatA, chatB := uuid.New(), uuid.New()
	creator := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "created_at", "updated_at", "is_group", "name", "created_by"}).
		AddRow(chatB.String(), now, now, true, "Team", creator.String()).
		AddRow(chatA.String(), now, now.Add(-time.Hour), false, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM chats WHERE id IN ($1,$2) ORDER BY updated_at DESC`)).
		WithArgs(chatA.String(), chatB.String()).
		WillReturnRows(rows)

	chats, err := repo.ListChatsByIDs(context.Background(), []uuid.UUID{chatA, chatB})
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, chatB, chats[0].ID)
	require.NotNil(t, chats[0].Name)
	assert.Equal(t, "Team", *chats[0].Name)
	require.NotNil(t, chats[0].CreatedBy)
	assert.Equal(t, creator, *chats[0].CreatedBy)
	assert.Nil(t, chats[1].Name)
	assert.Nil(t, chats[1].CreatedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListParticipantsJoinsProfiles(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)
	chatID, userID := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM chat_participants cp JOIN profiles p ON p.id = cp.user_id WHERE cp.chat_id IN ($1)`)).
		WithArgs(chatID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"chat_id", "user_id", "is_admin", "created_at", "username", "full_name", "avatar_url"}).
			AddRow(chatID.String(), userID.String(), true, time.Now(), "alice", "Alice A", "avatars/alice.png"))

	rows, err := repo.ListParticipants(context.Background(), []uuid.UUID{chatID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.Profile{ID: userID, Username: "alice", FullName: "Alice A", AvatarURL: "avatars/alice.png"}, rows[0].Profile())
	assert.True(t, rows[0].IsAdmin)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetChatNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)
	chatID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM chats WHERE id=$1`)).
		WithArgs(chatID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetChat(context.Background(), chatID)
	require.ErrorIs(t, err, ErrChatNotFound)
}

func TestCreateChatCommitsChatAndParticipants(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)
	creator, peer, chatID := uuid.New(), uuid.New(), uuid.New()
	name := "Team"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO chats (is_group, name, created_by) VALUES ($1, $2, $3) RETURNING id`)).
		WithArgs(true, name, creator.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(chatID.String()))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO chat_participants (chat_id,user_id,is_admin) VALUES ($1,$2,$3),($4,$5,$6)`)).
		WithArgs(chatID.String(), creator.String(), true, chatID.String(), peer.String(), false).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	id, err := repo.CreateChat(context.Background(),
		models.NewChat{IsGroup: true, Name: &name, CreatedBy: creator},
		[]models.NewParticipant{{UserID: creator, IsAdmin: true}, {UserID: peer}},
	)
	require.NoError(t, err)
	assert.Equal(t, chatID, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateChatRollsBackWhenParticipantsFail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)
	creator, chatID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO chats`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(chatID.String()))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO chat_participants`)).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	id, err := repo.CreateChat(context.Background(),
		models.NewChat{CreatedBy: creator},
		[]models.NewParticipant{{UserID: creator}},
	)
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, uuid.Nil, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveParticipantNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)
	chatID, userID := uuid.New(), uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM chat_participants WHERE chat_id=$1 AND user_id=$2`)).
		WithArgs(chatID.String(), userID.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RemoveParticipant(context.Background(), chatID, userID)
	require.ErrorIs(t, err, ErrParticipantNotFound)
}

func TestUpdateName(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)
	chatID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE chats SET name=$1 WHERE id=$2`)).
		WithArgs("Renamed", chatID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateName(context.Background(), chatID, "Renamed"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsParticipant(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)
	chatID, userID := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM chat_participants WHERE chat_id=$1 AND user_id=$2)`)).
		WithArgs(chatID.String(), userID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.IsParticipant(context.Background(), chatID, userID)
	require.NoError(t, err)
	assert.True(t, ok)
}
