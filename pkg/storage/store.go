package storage

import (
	"context"
	"time"
)

// SignedUpload carries everything a client needs to push bytes straight to
// the object backend without routing them through the API.
type SignedUpload struct {
	URL       string
	Method    string
	Headers   map[string]string
	ExpiresAt time.Time
}

// ObjectInfo describes a stored object as reported by the backend.
type ObjectInfo struct {
	Size        int64
	ContentType string
	ETag        string
}

// ObjectStore abstracts the blob backend. Uploads and downloads happen via
// short-lived signed URLs so file bytes never pass through this service.
type ObjectStore interface {
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (*SignedUpload, error)
	PresignDownload(ctx context.Context, key, downloadName string, ttl time.Duration) (string, time.Time, error)
	Head(ctx context.Context, key string) (*ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}
