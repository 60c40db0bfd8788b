package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	opUpload   = "put"
	opDownload = "get"
)

// LocalStore implements ObjectStore on the local filesystem. It signs its
// own upload and download tokens, which the API serves from a /objects
// route. Meant for development and single-node deployments.
type LocalStore struct {
	baseDir string
	baseURL string
	signer  *URLSigner
}

// NewLocalStore ensures the base directory exists and returns a handle.
func NewLocalStore(baseDir, baseURL, secret string) (*LocalStore, error) {
	if baseDir == "" {
		baseDir = "./objects"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create objects directory: %w", err)
	}
	return &LocalStore{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  NewURLSigner(secret),
	}, nil
}

// PresignUpload returns a signed PUT URL served by this API.
func (s *LocalStore) PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (*SignedUpload, error) {
	token, expiresAt, err := s.signer.Sign(opUpload, key, ttl)
	if err != nil {
		return nil, err
	}
	return &SignedUpload{
		URL:       fmt.Sprintf("%s/objects?token=%s", s.baseURL, url.QueryEscape(token)),
		Method:    "PUT",
		Headers:   map[string]string{"Content-Type": contentType},
		ExpiresAt: expiresAt,
	}, nil
}

// PresignDownload returns a signed GET URL served by this API.
func (s *LocalStore) PresignDownload(ctx context.Context, key, downloadName string, ttl time.Duration) (string, time.Time, error) {
	token, expiresAt, err := s.signer.Sign(opDownload, key, ttl)
	if err != nil {
		return "", time.Time{}, err
	}
	u := fmt.Sprintf("%s/objects?token=%s", s.baseURL, url.QueryEscape(token))
	if downloadName != "" {
		u += "&name=" + url.QueryEscape(downloadName)
	}
	return u, expiresAt, nil
}

// Head stats the object on disk.
func (s *LocalStore) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat object %s: %w", key, err)
	}
	return &ObjectInfo{
		Size:        info.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(key)),
	}, nil
}

// Delete removes the object if present.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// VerifyToken validates a signed token for the given operation and returns
// the object key it authorises. Used by the /objects handler.
func (s *LocalStore) VerifyToken(token, wantOp string) (string, error) {
	op, key, _, err := s.signer.Verify(token)
	if err != nil {
		return "", err
	}
	if op != wantOp {
		return "", fmt.Errorf("token not valid for %s", wantOp)
	}
	return key, nil
}

// Write persists the object bytes for a verified upload token.
func (s *LocalStore) Write(key string, r io.Reader) (int64, error) {
	path, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("prepare object directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create object file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	n, err := io.Copy(file, r)
	if err != nil {
		return 0, fmt.Errorf("write object: %w", err)
	}
	return n, nil
}

// Open returns a read-only handle for a verified download token.
func (s *LocalStore) Open(key string) (*os.File, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open object file: %w", err)
	}
	return file, nil
}

// resolve maps an object key onto the base directory, rejecting traversal.
func (s *LocalStore) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("invalid object key")
	}
	return filepath.Join(s.baseDir, clean), nil
}
