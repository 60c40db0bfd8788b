package models

import "time"

// FileStatus tracks the upload lifecycle of a stored object.
type FileStatus string

const (
	FileStatusPending FileStatus = "pending"
	FileStatusActive  FileStatus = "active"
	FileStatusFailed  FileStatus = "failed"
)

// ScanStatus tracks the external virus-scan verdict for an object.
type ScanStatus string

const (
	ScanStatusPending  ScanStatus = "pending"
	ScanStatusClean    ScanStatus = "clean"
	ScanStatusInfected ScanStatus = "infected"
)

// File represents one uploaded object owned by a single user.
type File struct {
	ID            string     `db:"id" json:"fileId"`
	OwnerID       string     `db:"owner_id" json:"ownerId"`
	FileName      string     `db:"file_name" json:"fileName"`
	FileSize      int64      `db:"file_size" json:"fileSize"`
	ContentType   string     `db:"content_type" json:"contentType"`
	StorageKey    string     `db:"storage_key" json:"-"`
	Status        FileStatus `db:"status" json:"status"`
	Checksum      string     `db:"checksum" json:"checksum,omitempty"`
	ScanStatus    ScanStatus `db:"scan_status" json:"virusScanStatus"`
	Tags          []string   `db:"-" json:"tags,omitempty"`
	DownloadCount int64      `db:"download_count" json:"downloadCount"`
	CreatedAt     time.Time  `db:"created_at" json:"uploadedAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"lastModified"`
}

// UploadURLRequest asks for delegated upload credentials.
type UploadURLRequest struct {
	FileName    string   `json:"fileName" validate:"required,min=1,max=255"`
	FileSize    int64    `json:"fileSize" validate:"required,gt=0"`
	ContentType string   `json:"contentType" validate:"required"`
	Tags        []string `json:"tags,omitempty"`
}

// UploadURLResponse carries the delegated upload credentials.
type UploadURLResponse struct {
	FileID    string            `json:"fileId"`
	UploadURL string            `json:"uploadUrl"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// CompleteUploadRequest reports the outcome of a delegated upload.
type CompleteUploadRequest struct {
	UploadSuccess bool   `json:"uploadSuccess"`
	Checksum      string `json:"checksum,omitempty"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
}

// DownloadURLResponse carries a delegated download credential.
type DownloadURLResponse struct {
	FileID      string    `json:"fileId"`
	FileName    string    `json:"fileName"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// FileListItem is a File enriched for listing responses.
type FileListItem struct {
	File
	ShareCount int64  `json:"shareCount,omitempty"`
	SharedBy   string `json:"sharedBy,omitempty"`
	Access     string `json:"access,omitempty"`
}

// FileListRequest captures the query parameters for listing files.
type FileListRequest struct {
	Filter    string `form:"filter"`
	SortBy    string `form:"sortBy"`
	SortOrder string `form:"sortOrder"`
	Limit     int    `form:"limit"`
	NextToken string `form:"nextToken"`
}

// FileListResponse is the paginated file listing payload.
type FileListResponse struct {
	Files     []FileListItem `json:"files"`
	Total     int            `json:"total"`
	NextToken string         `json:"nextToken,omitempty"`
}
