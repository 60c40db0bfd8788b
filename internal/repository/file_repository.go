package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campus-cloud/storage-api/internal/models"
	appErrors "github.com/campus-cloud/storage-api/pkg/errors"
)

const fileColumns = "id, owner_id, file_name, file_size, content_type, storage_key, status, checksum, scan_status, download_count, created_at, updated_at"

// FileRepository manages persistence for uploaded files.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository constructs a FileRepository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Create inserts a new file record, defaulting status to pending.
func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	file.UpdatedAt = now
	if file.Status == "" {
		file.Status = models.FileStatusPending
	}
	if file.ScanStatus == "" {
		file.ScanStatus = models.ScanStatusPending
	}

	const query = `INSERT INTO files (id, owner_id, file_name, file_size, content_type, storage_key, status, checksum, scan_status, download_count, created_at, updated_at)
		VALUES (:id, :owner_id, :file_name, :file_size, :content_type, :storage_key, :status, :checksum, :scan_status, :download_count, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

// FindByOwnerAndID fetches a file by its primary (owner, id) key.
func (r *FileRepository) FindByOwnerAndID(ctx context.Context, ownerID, fileID string) (*models.File, error) {
	query := fmt.Sprintf("SELECT %s FROM files WHERE owner_id = $1 AND id = $2", fileColumns)
	var file models.File
	if err := r.db.GetContext(ctx, &file, query, ownerID, fileID); err != nil {
		return nil, err
	}
	return &file, nil
}

// FindByID fetches a file by id alone, the secondary lookup used when the
// caller does not know the owner. Absent rows return sql.ErrNoRows.
func (r *FileRepository) FindByID(ctx context.Context, fileID string) (*models.File, error) {
	query := fmt.Sprintf("SELECT %s FROM files WHERE id = $1", fileColumns)
	var file models.File
	if err := r.db.GetContext(ctx, &file, query, fileID); err != nil {
		return nil, err
	}
	return &file, nil
}

// MarkActive transitions a pending file to active, reconciling the stored
// size and checksum against the object store. Already-active rows are left
// untouched and reported via ErrPreconditionFailed.
func (r *FileRepository) MarkActive(ctx context.Context, ownerID, fileID string, size int64, checksum string) error {
	const query = `UPDATE files
		SET status = $1, file_size = $2, checksum = $3, scan_status = $4, updated_at = $5
		WHERE owner_id = $6 AND id = $7 AND status = $8`
	res, err := r.db.ExecContext(ctx, query,
		models.FileStatusActive, size, checksum, models.ScanStatusPending, time.Now().UTC(),
		ownerID, fileID, models.FileStatusPending)
	if err != nil {
		return fmt.Errorf("mark file active: %w", err)
	}
	return requireRows(res)
}

// MarkFailed records a client-reported upload failure.
func (r *FileRepository) MarkFailed(ctx context.Context, ownerID, fileID string) error {
	const query = `UPDATE files SET status = $1, updated_at = $2 WHERE owner_id = $3 AND id = $4 AND status = $5`
	res, err := r.db.ExecContext(ctx, query,
		models.FileStatusFailed, time.Now().UTC(), ownerID, fileID, models.FileStatusPending)
	if err != nil {
		return fmt.Errorf("mark file failed: %w", err)
	}
	return requireRows(res)
}

// IncrementDownloadCount bumps the download counter atomically in SQL.
func (r *FileRepository) IncrementDownloadCount(ctx context.Context, fileID string) error {
	const query = `UPDATE files SET download_count = download_count + 1, updated_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), fileID); err != nil {
		return fmt.Errorf("increment download count: %w", err)
	}
	return nil
}

// ListByOwner returns one keyset page of the owner's active files, newest
// first, plus a token for the next page when more rows remain.
func (r *FileRepository) ListByOwner(ctx context.Context, ownerID, sortBy, sortOrder string, limit int, token string) ([]models.File, string, error) {
	allowedSorts := map[string]string{
		"uploadedAt": "created_at",
		"fileName":   "file_name",
		"fileSize":   "file_size",
	}
	column, ok := allowedSorts[sortBy]
	if sortBy != "" && !ok {
		return nil, "", appErrors.Clone(appErrors.ErrBadRequest, "Invalid sortBy value")
	}
	if column == "" {
		column = "created_at"
	}

	order := strings.ToUpper(sortOrder)
	if order != "ASC" && order != "DESC" {
		if sortOrder != "" {
			return nil, "", appErrors.Clone(appErrors.ErrBadRequest, "Invalid sortOrder value")
		}
		order = "DESC"
	}

	limit = clampLimit(limit)
	args := []interface{}{ownerID, models.FileStatusActive}
	query := fmt.Sprintf("SELECT %s FROM files WHERE owner_id = $1 AND status = $2", fileColumns)

	// Keyset tokens only apply to the default created_at ordering; other
	// sorts fall back to first-page-only listings.
	if cursor := decodeToken(token); column == "created_at" && cursor.ID != "" {
		cmp := "<"
		if order == "ASC" {
			cmp = ">"
		}
		query += fmt.Sprintf(" AND (created_at, id) %s ($3, $4)", cmp)
		args = append(args, cursor.CreatedAt, cursor.ID)
	}

	query += fmt.Sprintf(" ORDER BY %s %s, id %s LIMIT %d", column, order, order, limit+1)

	var files []models.File
	if err := r.db.SelectContext(ctx, &files, query, args...); err != nil {
		return nil, "", fmt.Errorf("list files by owner: %w", err)
	}

	next := ""
	if len(files) > limit {
		files = files[:limit]
		last := files[len(files)-1]
		if column == "created_at" {
			next = encodeToken(pageCursor{CreatedAt: last.CreatedAt, ID: last.ID})
		}
	}
	return files, next, nil
}

// requireRows maps a zero-row conditional update onto ErrPreconditionFailed.
func requireRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return appErrors.ErrPreconditionFailed
	}
	return nil
}

// IsNotFound reports whether a repository error means the row is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
