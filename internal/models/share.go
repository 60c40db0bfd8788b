package models

import "time"

// SharePermission is the access level granted by a share.
type SharePermission string

const (
	PermissionRead  SharePermission = "read"
	PermissionWrite SharePermission = "write"
)

// Valid reports whether the permission is one of the known levels.
func (p SharePermission) Valid() bool {
	return p == PermissionRead || p == PermissionWrite
}

// ShareStatus tracks the lifecycle of a share grant.
type ShareStatus string

const (
	ShareStatusActive  ShareStatus = "active"
	ShareStatusRevoked ShareStatus = "revoked"
)

// Share grants a non-owner principal access to a file. The grantee id may be
// a placeholder for a not-yet-registered email; such grants never resolve to
// an allowed access until the identity registers.
type Share struct {
	ID               string          `db:"id" json:"shareId"`
	FileID           string          `db:"file_id" json:"fileId"`
	OwnerID          string          `db:"owner_id" json:"ownerId"`
	SharedWithUserID string          `db:"shared_with_user_id" json:"sharedWithUserId"`
	SharedWithEmail  string          `db:"shared_with_email" json:"sharedWithEmail"`
	Permissions      SharePermission `db:"permissions" json:"permissions"`
	Status           ShareStatus     `db:"status" json:"status"`
	Message          string          `db:"message" json:"message,omitempty"`
	AccessCount      int64           `db:"access_count" json:"accessCount"`
	LastAccessedAt   *time.Time      `db:"last_accessed_at" json:"lastAccessedAt,omitempty"`
	ExpiresAt        *time.Time      `db:"expires_at" json:"expiresAt,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"sharedAt"`
	RevokedAt        *time.Time      `db:"revoked_at" json:"revokedAt,omitempty"`
}

// ShareRecipient is one target of a share-creation request.
type ShareRecipient struct {
	Email       string          `json:"email"`
	Permissions SharePermission `json:"permissions"`
}

// CreateSharesRequest shares one file with up to MaxShareRecipients people.
type CreateSharesRequest struct {
	Recipients []ShareRecipient `json:"recipients" validate:"required,min=1"`
	Message    string           `json:"message,omitempty"`
	ExpiresAt  *time.Time       `json:"expiresAt,omitempty"`
}

// MaxShareRecipients caps the batch size of one share-creation call.
const MaxShareRecipients = 50

// ShareMessageMaxLen bounds the free-text message stored with a share.
const ShareMessageMaxLen = 500

// SharedEntry reports one successful grant in a batch result.
type SharedEntry struct {
	ShareID         string          `json:"shareId"`
	SharedWithEmail string          `json:"sharedWithEmail"`
	Permissions     SharePermission `json:"permissions"`
	ExpiresAt       *time.Time      `json:"expiresAt,omitempty"`
}

// FailedEntry reports one rejected recipient in a batch result.
type FailedEntry struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// CreateSharesResponse is the batch outcome of a share-creation call.
type CreateSharesResponse struct {
	Shared      []SharedEntry `json:"shared"`
	Failed      []FailedEntry `json:"failed"`
	TotalShared int           `json:"totalShared"`
	TotalFailed int           `json:"totalFailed"`
}

// ListSharesResponse lists the live shares of one file for its owner.
type ListSharesResponse struct {
	FileID   string  `json:"fileId"`
	FileName string  `json:"filename"`
	Shares   []Share `json:"shares"`
	Total    int     `json:"total"`
}

// RevokeShareResponse acknowledges a revocation.
type RevokeShareResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ShareID string `json:"shareId"`
}

// SharedFile is a live inbound share enriched with file metadata.
type SharedFile struct {
	ShareID     string          `json:"shareId"`
	FileID      string          `json:"fileId"`
	FileName    string          `json:"fileName"`
	FileSize    int64           `json:"fileSize"`
	ContentType string          `json:"contentType"`
	OwnerID     string          `json:"ownerId"`
	Permissions SharePermission `json:"permissions"`
	Message     string          `json:"message,omitempty"`
	SharedAt    time.Time       `json:"sharedAt"`
	ExpiresAt   *time.Time      `json:"expiresAt,omitempty"`
}

// SharedWithMeResponse is the paginated inbound-shares payload.
type SharedWithMeResponse struct {
	Files     []SharedFile `json:"files"`
	Total     int          `json:"total"`
	NextToken string       `json:"nextToken,omitempty"`
}
