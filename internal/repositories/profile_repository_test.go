package repositories

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListProfilesExceptSkipsCaller(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepo(db)
	self, other := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM profiles WHERE id<>$1 ORDER BY username ASC`)).
		WithArgs(self.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "full_name", "avatar_url"}).
			AddRow(other.String(), "bob", "", ""))

	profiles, err := repo.ListProfilesExcept(context.Background(), self)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, other, profiles[0].ID)
	assert.Equal(t, "bob", profiles[0].Username)
	require.NoError(t, mock.ExpectationsWereMet())
}
