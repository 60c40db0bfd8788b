package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-cloud/storage-api/internal/access"
	"github.com/campus-cloud/storage-api/internal/models"
	"github.com/campus-cloud/storage-api/internal/repository"
	appErrors "github.com/campus-cloud/storage-api/pkg/errors"
)

type shareRepo interface {
	Create(ctx context.Context, share *models.Share) error
	FindByID(ctx context.Context, shareID string) (*models.Share, error)
	FindActiveByFileAndUser(ctx context.Context, fileID, userID string, now time.Time) (*models.Share, error)
	ListActiveByFile(ctx context.Context, fileID string, now time.Time) ([]models.Share, error)
	ListByGrantee(ctx context.Context, userID string, now time.Time, limit int, token string) ([]models.Share, string, error)
	Revoke(ctx context.Context, shareID string, at time.Time) (bool, error)
}

type fileReader interface {
	FindByID(ctx context.Context, fileID string) (*models.File, error)
	FindByOwnerAndID(ctx context.Context, ownerID, fileID string) (*models.File, error)
}

type userReader interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// ShareService owns the share grant lifecycle: batch creation, listing,
// revocation, and the inbound shared-with-me view.
type ShareService struct {
	shares    shareRepo
	files     fileReader
	users     userReader
	evaluator *access.Evaluator
	notifier  Notifier
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewShareService constructs ShareService.
func NewShareService(shares shareRepo, files fileReader, users userReader, evaluator *access.Evaluator, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *ShareService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if evaluator == nil {
		evaluator = access.NewEvaluator()
	}
	return &ShareService{
		shares:    shares,
		files:     files,
		users:     users,
		evaluator: evaluator,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// validEmail applies the platform's deliberately loose recipient rule: the
// address must contain both "@" and ".".
func validEmail(email string) bool {
	return strings.Contains(email, "@") && strings.Contains(email, ".")
}

// truncate trims s to at most max bytes without splitting a rune, so the
// stored value stays valid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// loadFileForOwner fetches a file and verifies the principal may manage its
// shares. Absence and lack of ownership both map to Not Found so callers
// cannot probe for foreign file ids.
func (s *ShareService) loadFileForOwner(ctx context.Context, p models.Principal, fileID string) (*models.File, error) {
	file, err := s.files.FindByID(ctx, fileID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "File not found")
		}
		return nil, appErrors.Database(err, "Failed to load file")
	}
	if d := s.evaluator.CanManageShares(p, file); !d.Allowed {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "File not found")
	}
	return file, nil
}

// Create grants the file to up to MaxShareRecipients recipients. Each
// recipient succeeds or fails on its own; one bad entry never aborts the
// batch.
func (s *ShareService) Create(ctx context.Context, p models.Principal, fileID string, req models.CreateSharesRequest) (*models.CreateSharesResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "At least one recipient is required")
	}
	if len(req.Recipients) > models.MaxShareRecipients {
		return nil, appErrors.Clone(appErrors.ErrBadRequest,
			fmt.Sprintf("Maximum %d recipients per request", models.MaxShareRecipients))
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "expiresAt must be in the future")
	}

	file, err := s.loadFileForOwner(ctx, p, fileID)
	if err != nil {
		return nil, err
	}
	if d := s.evaluator.CanCreateShares(p, file); !d.Allowed {
		if d.Reason == access.ReasonInactiveResource {
			return nil, appErrors.Clone(appErrors.ErrBadRequest, "File is not active")
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "File not found")
	}

	message := truncate(req.Message, models.ShareMessageMaxLen)
	now := s.now().UTC()
	resp := &models.CreateSharesResponse{
		Shared: []models.SharedEntry{},
		Failed: []models.FailedEntry{},
	}

	for _, recipient := range req.Recipients {
		email := strings.TrimSpace(recipient.Email)
		entry, reason := s.shareWithRecipient(ctx, p, file, email, recipient.Permissions, message, req.ExpiresAt, now)
		if entry != nil {
			resp.Shared = append(resp.Shared, *entry)
		} else {
			resp.Failed = append(resp.Failed, models.FailedEntry{Email: email, Reason: reason})
		}
	}

	resp.TotalShared = len(resp.Shared)
	resp.TotalFailed = len(resp.Failed)

	s.logger.Info("shares created",
		zap.String("file_id", file.ID),
		zap.String("owner_id", p.ID),
		zap.Int("shared", resp.TotalShared),
		zap.Int("failed", resp.TotalFailed))
	return resp, nil
}

// shareWithRecipient processes one recipient, returning either the created
// entry or a failure reason.
func (s *ShareService) shareWithRecipient(ctx context.Context, p models.Principal, file *models.File, email string, permissions models.SharePermission, message string, expiresAt *time.Time, now time.Time) (*models.SharedEntry, string) {
	fail := func(reason string) (*models.SharedEntry, string) {
		return nil, reason
	}

	if !validEmail(email) {
		return fail("Invalid email format")
	}
	if strings.EqualFold(email, p.Email) {
		return fail("Cannot share with yourself")
	}
	if permissions == "" {
		permissions = models.PermissionRead
	}
	if !permissions.Valid() {
		return fail("Invalid permission level")
	}

	granteeID, err := s.resolveGrantee(ctx, email)
	if err != nil {
		s.logger.Error("resolve grantee", zap.String("email", email), zap.Error(err))
		return fail("Failed to resolve recipient")
	}

	existing, err := s.shares.FindActiveByFileAndUser(ctx, file.ID, granteeID, now)
	if err != nil {
		s.logger.Error("check existing share", zap.String("file_id", file.ID), zap.Error(err))
		return fail("Failed to check existing shares")
	}
	if existing != nil {
		return fail("File already shared with this user")
	}

	share := &models.Share{
		FileID:           file.ID,
		OwnerID:          p.ID,
		SharedWithUserID: granteeID,
		SharedWithEmail:  email,
		Permissions:      permissions,
		Status:           models.ShareStatusActive,
		Message:          message,
		ExpiresAt:        expiresAt,
		CreatedAt:        now,
	}
	if err := s.shares.Create(ctx, share); err != nil {
		if err == repository.ErrDuplicateShare {
			return fail("File already shared with this user")
		}
		s.logger.Error("create share", zap.String("file_id", file.ID), zap.Error(err))
		return fail("Failed to create share")
	}

	s.notifier.Notify(NotifyFileShared, email, map[string]interface{}{
		"fileId":      file.ID,
		"fileName":    file.FileName,
		"ownerName":   p.Name,
		"permissions": string(permissions),
		"message":     message,
	})

	return &models.SharedEntry{
		ShareID:         share.ID,
		SharedWithEmail: email,
		Permissions:     permissions,
		ExpiresAt:       expiresAt,
	}, ""
}

// resolveGrantee maps an email to a registered user id, or synthesizes a
// placeholder id for emails that have not registered yet. Placeholder
// grantees never pass access checks until the identity registers.
func (s *ShareService) resolveGrantee(ctx context.Context, email string) (string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user != nil {
		return user.ID, nil
	}
	return "pending-" + uuid.NewString(), nil
}

// List returns the file's currently live shares for its owner.
func (s *ShareService) List(ctx context.Context, p models.Principal, fileID string) (*models.ListSharesResponse, error) {
	file, err := s.loadFileForOwner(ctx, p, fileID)
	if err != nil {
		return nil, err
	}

	shares, err := s.shares.ListActiveByFile(ctx, file.ID, s.now().UTC())
	if err != nil {
		return nil, appErrors.Database(err, "Failed to list shares")
	}

	return &models.ListSharesResponse{
		FileID:   file.ID,
		FileName: file.FileName,
		Shares:   shares,
		Total:    len(shares),
	}, nil
}

// Revoke transitions one share to revoked. Revoking an already-revoked
// share is an idempotent no-op success. A share id belonging to a different
// file is a bad request, never silently corrected.
func (s *ShareService) Revoke(ctx context.Context, p models.Principal, fileID, shareID string) (*models.RevokeShareResponse, error) {
	file, err := s.loadFileForOwner(ctx, p, fileID)
	if err != nil {
		return nil, err
	}

	share, err := s.shares.FindByID(ctx, shareID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Share not found")
		}
		return nil, appErrors.Database(err, "Failed to load share")
	}
	if share.FileID != file.ID {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "Share does not belong to this file")
	}

	if share.Status == models.ShareStatusRevoked {
		return &models.RevokeShareResponse{
			Success: true,
			Message: "Share already revoked",
			ShareID: share.ID,
		}, nil
	}

	if _, err := s.shares.Revoke(ctx, share.ID, s.now().UTC()); err != nil {
		return nil, appErrors.Database(err, "Failed to revoke share")
	}

	s.notifier.Notify(NotifyShareRevoked, share.SharedWithEmail, map[string]interface{}{
		"fileId":   file.ID,
		"fileName": file.FileName,
	})

	s.logger.Info("share revoked",
		zap.String("share_id", share.ID),
		zap.String("file_id", file.ID))
	return &models.RevokeShareResponse{
		Success: true,
		Message: "Share revoked successfully",
		ShareID: share.ID,
	}, nil
}

// SharedWithMe returns one page of live inbound shares enriched with file
// metadata. Entries whose file vanished or went inactive after the raw query
// are dropped, so a page may come back short of the requested limit.
func (s *ShareService) SharedWithMe(ctx context.Context, p models.Principal, limit int, token string) (*models.SharedWithMeResponse, error) {
	now := s.now().UTC()
	shares, next, err := s.shares.ListByGrantee(ctx, p.ID, now, limit, token)
	if err != nil {
		return nil, appErrors.Database(err, "Failed to list shared files")
	}

	files := make([]models.SharedFile, 0, len(shares))
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
			return nil, appErrors.Database(err, "Failed to load shared file")
		}
		if file.Status != models.FileStatusActive {
			continue
		}
		files = append(files, models.SharedFile{
			ShareID:     share.ID,
			FileID:      file.ID,
			FileName:    file.FileName,
			FileSize:    file.FileSize,
			ContentType: file.ContentType,
			OwnerID:     file.OwnerID,
			Permissions: share.Permissions,
			Message:     share.Message,
			SharedAt:    share.CreatedAt,
			ExpiresAt:   share.ExpiresAt,
		})
	}

	return &models.SharedWithMeResponse{
		Files:     files,
		Total:     len(files),
		NextToken: next,
	}, nil
}
