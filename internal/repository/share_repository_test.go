package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-cloud/storage-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func shareRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "file_id", "owner_id", "shared_with_user_id", "shared_with_email", "permissions", "status", "message", "access_count", "last_accessed_at", "expires_at", "created_at", "revoked_at"})
}

func TestShareRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewShareRepository(db)

	mock.ExpectExec("INSERT INTO shares").
		WithArgs(sqlmock.AnyArg(), "f-1", "u-owner", "u-grantee", "grantee@campus.edu", "read", "active", "", int64(0), nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	share := &models.Share{
		FileID:           "f-1",
		OwnerID:          "u-owner",
		SharedWithUserID: "u-grantee",
		SharedWithEmail:  "grantee@campus.edu",
		Permissions:      models.PermissionRead,
	}
	err := repo.Create(context.Background(), share)
	require.NoError(t, err)
	assert.NotEmpty(t, share.ID)
	assert.Equal(t, models.ShareStatusActive, share.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShareRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewShareRepository(db)

	mock.ExpectExec("INSERT INTO shares").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Share{
		FileID:           "f-1",
		OwnerID:          "u-owner",
		SharedWithUserID: "u-grantee",
		SharedWithEmail:  "grantee@campus.edu",
		Permissions:      models.PermissionRead,
	})
	assert.ErrorIs(t, err, ErrDuplicateShare)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShareRepositoryFindActiveByFileAndUser(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewShareRepository(db)
	now := time.Now().UTC()

	rows := shareRows().AddRow("s-1", "f-1", "u-owner", "u-grantee", "grantee@campus.edu", "read", "active", "", 3, nil, nil, now, nil)
	mock.ExpectQuery("SELECT .+ FROM shares").
		WithArgs("f-1", "u-grantee", "active", now).
		WillReturnRows(rows)

	share, err := repo.FindActiveByFileAndUser(context.Background(), "f-1", "u-grantee", now)
	require.NoError(t, err)
	require.NotNil(t, share)
	assert.Equal(t, "s-1", share.ID)
	assert.Equal(t, int64(3), share.AccessCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShareRepositoryFindActiveByFileAndUserNone(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewShareRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT .+ FROM shares").
		WithArgs("f-1", "u-grantee", "active", now).
		WillReturnRows(shareRows())

	share, err := repo.FindActiveByFileAndUser(context.Background(), "f-1", "u-grantee", now)
	require.NoError(t, err)
	assert.Nil(t, share)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShareRepositoryRevoke(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewShareRepository(db)
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE shares SET status").
		WithArgs("revoked", at, "s-1", "active").
		WillReturnResult(sqlmock.NewResult(0, 1))

	changed, err := repo.Revoke(context.Background(), "s-1", at)
	require.NoError(t, err)
	assert.True(t, changed)

	// Already revoked: zero rows, no error.
	mock.ExpectExec("UPDATE shares SET status").
		WithArgs("revoked", at, "s-1", "active").
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err = repo.Revoke(context.Background(), "s-1", at)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShareRepositoryListByGranteePagination(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewShareRepository(db)
	now := time.Now().UTC()

	rows := shareRows().
		AddRow("s-1", "f-1", "u-owner", "u-grantee", "g@campus.edu", "read", "active", "", 0, nil, nil, now, nil).
		AddRow("s-2", "f-2", "u-owner", "u-grantee", "g@campus.edu", "read", "active", "", 0, nil, nil, now.Add(-time.Minute), nil).
		AddRow("s-3", "f-3", "u-owner", "u-grantee", "g@campus.edu", "read", "active", "", 0, nil, nil, now.Add(-2*time.Minute), nil)
	mock.ExpectQuery("SELECT .+ FROM shares").
		WithArgs("u-grantee", "active", now).
		WillReturnRows(rows)

	shares, next, err := repo.ListByGrantee(context.Background(), "u-grantee", now, 2, "")
	require.NoError(t, err)
	assert.Len(t, shares, 2)
	assert.NotEmpty(t, next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShareRepositoryListByGranteeBadTokenRestarts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewShareRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT .+ FROM shares").
		WithArgs("u-grantee", "active", now).
		WillReturnRows(shareRows())

	shares, next, err := repo.ListByGrantee(context.Background(), "u-grantee", now, 10, "not-a-valid-token")
	require.NoError(t, err)
	assert.Empty(t, shares)
	assert.Empty(t, next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShareRepositoryRecordAccess(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewShareRepository(db)
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE shares SET access_count = access_count \\+ 1").
		WithArgs(at, "s-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordAccess(context.Background(), "s-1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}
