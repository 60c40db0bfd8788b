package service

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-cloud/storage-api/internal/access"
	"github.com/campus-cloud/storage-api/internal/models"
	"github.com/campus-cloud/storage-api/internal/repository"
	"github.com/campus-cloud/storage-api/pkg/config"
	appErrors "github.com/campus-cloud/storage-api/pkg/errors"
	"github.com/campus-cloud/storage-api/pkg/storage"
)

type fileRepo interface {
	fileReader
	Create(ctx context.Context, file *models.File) error
	MarkActive(ctx context.Context, ownerID, fileID string, size int64, checksum string) error
	MarkFailed(ctx context.Context, ownerID, fileID string) error
	IncrementDownloadCount(ctx context.Context, fileID string) error
	ListByOwner(ctx context.Context, ownerID, sortBy, sortOrder string, limit int, token string) ([]models.File, string, error)
}

type shareAccessRepo interface {
	FindActiveByFileAndUser(ctx context.Context, fileID, userID string, now time.Time) (*models.Share, error)
	ListByGrantee(ctx context.Context, userID string, now time.Time, limit int, token string) ([]models.Share, string, error)
	RecordAccess(ctx context.Context, shareID string, at time.Time) error
	CountActiveByFiles(ctx context.Context, fileIDs []string, now time.Time) (map[string]int64, error)
}

// FileService issues delegated upload and download credentials and tracks
// the file lifecycle around them. File bytes never pass through the API.
type FileService struct {
	files     fileRepo
	shares    shareAccessRepo
	store     storage.ObjectStore
	evaluator *access.Evaluator
	uploads   config.UploadConfig
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewFileService constructs FileService.
func NewFileService(files fileRepo, shares shareAccessRepo, store storage.ObjectStore, evaluator *access.Evaluator, uploads config.UploadConfig, validate *validator.Validate, logger *zap.Logger) *FileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if evaluator == nil {
		evaluator = access.NewEvaluator()
	}
	return &FileService{
		files:     files,
		shares:    shares,
		store:     store,
		evaluator: evaluator,
		uploads:   uploads,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// UploadURL validates the declared upload, records a pending file, and
// returns delegated upload credentials.
func (s *FileService) UploadURL(ctx context.Context, p models.Principal, req models.UploadURLRequest) (*models.UploadURLResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "fileName (1-255 chars), fileSize and contentType are required")
	}
	if s.uploads.MaxFileSizeBytes > 0 && req.FileSize > s.uploads.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge,
			fmt.Sprintf("File exceeds the maximum size of %d bytes", s.uploads.MaxFileSizeBytes))
	}
	if len(s.uploads.AllowedContentTypes) > 0 && !contains(s.uploads.AllowedContentTypes, req.ContentType) {
		return nil, appErrors.Clone(appErrors.ErrBadRequest,
			fmt.Sprintf("Content type %s is not allowed", req.ContentType))
	}

	fileID := uuid.NewString()
	// path.Base strips directory components a client may smuggle into the
	// filename; the storage key must stay under the owner's prefix.
	storageKey := fmt.Sprintf("files/%s/%s/%s", p.ID, fileID, path.Base(req.FileName))

	file := &models.File{
		ID:          fileID,
		OwnerID:     p.ID,
		FileName:    req.FileName,
		FileSize:    req.FileSize,
		ContentType: req.ContentType,
		StorageKey:  storageKey,
		Status:      models.FileStatusPending,
		ScanStatus:  models.ScanStatusPending,
		Tags:        req.Tags,
	}
	if err := s.files.Create(ctx, file); err != nil {
		return nil, appErrors.Database(err, "Failed to record file")
	}

	signed, err := s.store.PresignUpload(ctx, storageKey, req.ContentType, s.uploads.UploadURLTTL)
	if err != nil {
		return nil, appErrors.Storage(err, "Failed to issue upload credentials")
	}

	s.logger.Info("upload credentials issued",
		zap.String("file_id", fileID),
		zap.String("owner_id", p.ID),
		zap.Int64("declared_size", req.FileSize))
	return &models.UploadURLResponse{
		FileID:    fileID,
		UploadURL: signed.URL,
		Method:    signed.Method,
		Headers:   signed.Headers,
		ExpiresAt: signed.ExpiresAt,
	}, nil
}

// Complete reconciles a finished delegated upload. A failure report marks
// the file failed; success verifies the object in storage and activates the
// record. Completing an already-active file is a no-op success.
func (s *FileService) Complete(ctx context.Context, p models.Principal, fileID string, req models.CompleteUploadRequest) (*models.File, error) {
	file, err := s.files.FindByOwnerAndID(ctx, p.ID, fileID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "File not found")
		}
		return nil, appErrors.Database(err, "Failed to load file")
	}

	if file.Status == models.FileStatusActive {
		return file, nil
	}
	if file.Status == models.FileStatusFailed {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "Upload already marked as failed")
	}

	if !req.UploadSuccess {
		if err := s.files.MarkFailed(ctx, p.ID, file.ID); err != nil && err != appErrors.ErrPreconditionFailed {
			return nil, appErrors.Database(err, "Failed to update file")
		}
		file.Status = models.FileStatusFailed
		// Best effort: clear out whatever partial object the client left.
		if err := s.store.Delete(ctx, file.StorageKey); err != nil {
			s.logger.Warn("delete abandoned object",
				zap.String("file_id", file.ID),
				zap.Error(err))
		}
		s.logger.Info("upload failed by client report",
			zap.String("file_id", file.ID),
			zap.String("reason", req.ErrorMessage))
		return file, nil
	}

	info, err := s.store.Head(ctx, file.StorageKey)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "Uploaded object not found in storage")
	}

	checksum := req.Checksum
	if checksum == "" {
		checksum = info.ETag
	}
	if err := s.files.MarkActive(ctx, p.ID, file.ID, info.Size, checksum); err != nil {
		if err == appErrors.ErrPreconditionFailed {
			// Raced with another completion; the record is already settled.
			return s.reloadFile(ctx, p.ID, file.ID)
		}
		return nil, appErrors.Database(err, "Failed to activate file")
	}

	file.Status = models.FileStatusActive
	file.FileSize = info.Size
	file.Checksum = checksum
	file.ScanStatus = models.ScanStatusPending

	s.logger.Info("upload completed",
		zap.String("file_id", file.ID),
		zap.Int64("size", info.Size))
	return file, nil
}

func (s *FileService) reloadFile(ctx context.Context, ownerID, fileID string) (*models.File, error) {
	file, err := s.files.FindByOwnerAndID(ctx, ownerID, fileID)
	if err != nil {
		return nil, appErrors.Database(err, "Failed to load file")
	}
	return file, nil
}

// DownloadURL issues delegated download credentials to the owner or to a
// principal holding a live share. Each issue bumps the download counter,
// and share-based access also records the share access.
func (s *FileService) DownloadURL(ctx context.Context, p models.Principal, fileID string) (*models.DownloadURLResponse, error) {
	file, err := s.files.FindByID(ctx, fileID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "File not found")
		}
		return nil, appErrors.Database(err, "Failed to load file")
	}

	now := s.now().UTC()
	var share *models.Share
	if file.OwnerID != p.ID {
		share, err = s.shares.FindActiveByFileAndUser(ctx, file.ID, p.ID, now)
		if err != nil {
			return nil, appErrors.Database(err, "Failed to check file access")
		}
	}
	if d := s.evaluator.CanReadFile(p, file, share, now); !d.Allowed {
		// Denied and absent are indistinguishable on purpose.
		return nil, appErrors.Clone(appErrors.ErrNotFound, "File not found")
	}
	if file.Status != models.FileStatusActive {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "File is not available for download")
	}

	url, expiresAt, err := s.store.PresignDownload(ctx, file.StorageKey, file.FileName, s.uploads.DownloadURLTTL)
	if err != nil {
		return nil, appErrors.Storage(err, "Failed to issue download credentials")
	}

	if err := s.files.IncrementDownloadCount(ctx, file.ID); err != nil {
		s.logger.Warn("increment download count", zap.String("file_id", file.ID), zap.Error(err))
	}
	if share != nil {
		if err := s.shares.RecordAccess(ctx, share.ID, now); err != nil {
			s.logger.Warn("record share access", zap.String("share_id", share.ID), zap.Error(err))
		}
	}

	return &models.DownloadURLResponse{
		FileID:      file.ID,
		FileName:    file.FileName,
		DownloadURL: url,
		ExpiresAt:   expiresAt,
	}, nil
}

// List returns the caller's files. filter=owned pages through active owned
// files, filter=shared through live inbound shares; filter=all combines the
// first page of both and carries no continuation token.
func (s *FileService) List(ctx context.Context, p models.Principal, req models.FileListRequest) (*models.FileListResponse, error) {
	filter := req.Filter
	if filter == "" {
		filter = "all"
	}

	resp := &models.FileListResponse{Files: []models.FileListItem{}}

	switch filter {
	case "owned":
		items, next, err := s.listOwned(ctx, p, req)
		if err != nil {
			return nil, err
		}
		resp.Files = items
		resp.NextToken = next
	case "shared":
		items, next, err := s.listSharedIn(ctx, p, req.Limit, req.NextToken)
		if err != nil {
			return nil, err
		}
		resp.Files = items
		resp.NextToken = next
	case "all":
		owned, _, err := s.listOwned(ctx, p, req)
		if err != nil {
			return nil, err
		}
		shared, _, err := s.listSharedIn(ctx, p, req.Limit, "")
		if err != nil {
			return nil, err
		}
		resp.Files = append(owned, shared...)
	default:
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "Invalid filter value")
	}

	resp.Total = len(resp.Files)
	return resp, nil
}

func (s *FileService) listOwned(ctx context.Context, p models.Principal, req models.FileListRequest) ([]models.FileListItem, string, error) {
	files, next, err := s.files.ListByOwner(ctx, p.ID, req.SortBy, req.SortOrder, req.Limit, req.NextToken)
	if err != nil {
		if appErrors.FromError(err).Status == 400 {
			return nil, "", err
		}
		return nil, "", appErrors.Database(err, "Failed to list files")
	}

	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	counts, err := s.shares.CountActiveByFiles(ctx, ids, s.now().UTC())
	if err != nil {
		return nil, "", appErrors.Database(err, "Failed to count shares")
	}

	items := make([]models.FileListItem, len(files))
	for i, f := range files {
		items[i] = models.FileListItem{File: f, ShareCount: counts[f.ID]}
	}
	return items, next, nil
}

func (s *FileService) listSharedIn(ctx context.Context, p models.Principal, limit int, token string) ([]models.FileListItem, string, error) {
	now := s.now().UTC()
	shares, next, err := s.shares.ListByGrantee(ctx, p.ID, now, limit, token)
	if err != nil {
		return nil, "", appErrors.Database(err, "Failed to list shared files")
	}

	items := make([]models.FileListItem, 0, len(shares))
	for i := range shares {
		share := &shares[i]
		if !access.ShareLive(share, now) {
			continue
		}
		file, err := s.files.FindByID(ctx, share.FileID)
		if err != nil {
			if repository.IsNotFound(err) {
				continue
			}
			return nil, "", appErrors.Database(err, "Failed to load shared file")
		}
		if file.Status != models.FileStatusActive {
			continue
		}
		items = append(items, models.FileListItem{
			File:     *file,
			SharedBy: file.OwnerID,
			Access:   string(share.Permissions),
		})
	}
	return items, next, nil
}
