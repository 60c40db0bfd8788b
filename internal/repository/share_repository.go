package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campus-cloud/storage-api/internal/models"
)

const shareColumns = "id, file_id, owner_id, shared_with_user_id, shared_with_email, permissions, status, message, access_count, last_accessed_at, expires_at, created_at, revoked_at"

// ErrDuplicateShare is returned when the partial unique index on active
// (file, grantee) pairs rejects an insert that raced past the app-level
// duplicate check.
var ErrDuplicateShare = errors.New("active share already exists for this file and user")

// ShareRepository manages persistence for share grants.
type ShareRepository struct {
	db *sqlx.DB
}

// NewShareRepository constructs a ShareRepository.
func NewShareRepository(db *sqlx.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

// Create inserts a new share grant. The partial unique index on
// (file_id, shared_with_user_id) WHERE status = 'active' is the backstop
// against concurrent duplicate grants.
func (r *ShareRepository) Create(ctx context.Context, share *models.Share) error {
	if share.ID == "" {
		share.ID = uuid.NewString()
	}
	if share.CreatedAt.IsZero() {
		share.CreatedAt = time.Now().UTC()
	}
	if share.Status == "" {
		share.Status = models.ShareStatusActive
	}

	const query = `INSERT INTO shares (id, file_id, owner_id, shared_with_user_id, shared_with_email, permissions, status, message, access_count, expires_at, created_at)
		VALUES (:id, :file_id, :owner_id, :shared_with_user_id, :shared_with_email, :permissions, :status, :message, :access_count, :expires_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, share); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateShare
		}
		return fmt.Errorf("create share: %w", err)
	}
	return nil
}

// FindByID fetches a share by its unique id.
func (r *ShareRepository) FindByID(ctx context.Context, shareID string) (*models.Share, error) {
	query := fmt.Sprintf("SELECT %s FROM shares WHERE id = $1", shareColumns)
	var share models.Share
	if err := r.db.GetContext(ctx, &share, query, shareID); err != nil {
		return nil, err
	}
	return &share, nil
}

// FindActiveByFileAndUser returns the live share for a (file, grantee) pair,
// or nil when none exists. Expiry is evaluated here against the given time.
func (r *ShareRepository) FindActiveByFileAndUser(ctx context.Context, fileID, userID string, now time.Time) (*models.Share, error) {
	query := fmt.Sprintf(`SELECT %s FROM shares
		WHERE file_id = $1 AND shared_with_user_id = $2 AND status = $3
		AND (expires_at IS NULL OR expires_at > $4)
		LIMIT 1`, shareColumns)
	var share models.Share
	err := r.db.GetContext(ctx, &share, query, fileID, userID, models.ShareStatusActive, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active share: %w", err)
	}
	return &share, nil
}

// ListActiveByFile returns the live shares of one file, newest first.
func (r *ShareRepository) ListActiveByFile(ctx context.Context, fileID string, now time.Time) ([]models.Share, error) {
	query := fmt.Sprintf(`SELECT %s FROM shares
		WHERE file_id = $1 AND status = $2
		AND (expires_at IS NULL OR expires_at > $3)
		ORDER BY created_at DESC, id DESC`, shareColumns)
	var shares []models.Share
	if err := r.db.SelectContext(ctx, &shares, query, fileID, models.ShareStatusActive, now); err != nil {
		return nil, fmt.Errorf("list shares by file: %w", err)
	}
	return shares, nil
}

// ListByGrantee returns one raw keyset page of shares granted to a user.
// Expired rows are filtered out here, but revocations or deletions racing
// the query mean callers still re-check liveness before use.
func (r *ShareRepository) ListByGrantee(ctx context.Context, userID string, now time.Time, limit int, token string) ([]models.Share, string, error) {
	limit = clampLimit(limit)
	args := []interface{}{userID, models.ShareStatusActive, now}
	query := fmt.Sprintf(`SELECT %s FROM shares
		WHERE shared_with_user_id = $1 AND status = $2
		AND (expires_at IS NULL OR expires_at > $3)`, shareColumns)

	if cursor := decodeToken(token); cursor.ID != "" {
		query += " AND (created_at, id) < ($4, $5)"
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %d", limit+1)

	var shares []models.Share
	if err := r.db.SelectContext(ctx, &shares, query, args...); err != nil {
		return nil, "", fmt.Errorf("list shares by grantee: %w", err)
	}

	next := ""
	if len(shares) > limit {
		shares = shares[:limit]
		last := shares[len(shares)-1]
		next = encodeToken(pageCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return shares, next, nil
}

// Revoke transitions a share to revoked. The returned flag reports whether
// a row actually changed; revoking an already-revoked share affects nothing.
func (r *ShareRepository) Revoke(ctx context.Context, shareID string, at time.Time) (bool, error) {
	const query = `UPDATE shares SET status = $1, revoked_at = $2 WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, models.ShareStatusRevoked, at, shareID, models.ShareStatusActive)
	if err != nil {
		return false, fmt.Errorf("revoke share: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// RecordAccess bumps the access counter atomically and stamps the access
// time.
func (r *ShareRepository) RecordAccess(ctx context.Context, shareID string, at time.Time) error {
	const query = `UPDATE shares SET access_count = access_count + 1, last_accessed_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, at, shareID); err != nil {
		return fmt.Errorf("record share access: %w", err)
	}
	return nil
}

// CountActiveByFiles returns per-file live share counts for a set of files.
func (r *ShareRepository) CountActiveByFiles(ctx context.Context, fileIDs []string, now time.Time) (map[string]int64, error) {
	counts := make(map[string]int64, len(fileIDs))
	if len(fileIDs) == 0 {
		return counts, nil
	}

	const query = `SELECT file_id, COUNT(*) AS n FROM shares
		WHERE file_id = ANY($1) AND status = $2
		AND (expires_at IS NULL OR expires_at > $3)
		GROUP BY file_id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(fileIDs), models.ShareStatusActive, now)
	if err != nil {
		return nil, fmt.Errorf("count shares by file: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var fileID string
		var n int64
		if err := rows.Scan(&fileID, &n); err != nil {
			return nil, fmt.Errorf("scan share count: %w", err)
		}
		counts[fileID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate share counts: %w", err)
	}
	return counts, nil
}
