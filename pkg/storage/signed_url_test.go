package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestURLSignerSignAndVerify(t *testing.T) {
	signer := NewURLSigner("secret")
	token, expiresAt, err := signer.Sign("get", "files/u1/f1.pdf", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	op, key, parsedExpiry, err := signer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "get", op)
	require.Equal(t, "files/u1/f1.pdf", key)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestURLSignerExpired(t *testing.T) {
	signer := NewURLSigner("secret")
	token, _, err := signer.Sign("put", "files/u1/f1.pdf", time.Millisecond*10)
	require.NoError(t, err)
	time.Sleep(time.Millisecond * 20)

	_, _, _, err = signer.Verify(token)
	require.Error(t, err)
}

func TestURLSignerTampered(t *testing.T) {
	signer := NewURLSigner("secret")
	token, _, err := signer.Sign("get", "files/u1/f1.pdf", time.Hour)
	require.NoError(t, err)

	_, _, _, err = NewURLSigner("other").Verify(token)
	require.Error(t, err)
}

func TestLocalStoreTokenRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost:8080", "secret")
	require.NoError(t, err)

	upload, err := store.PresignUpload(context.Background(), "files/u1/f1.pdf", "application/pdf", time.Hour)
	require.NoError(t, err)
	require.Equal(t, "PUT", upload.Method)
	require.Contains(t, upload.URL, "http://localhost:8080/objects?token=")

	downloadURL, _, err := store.PresignDownload(context.Background(), "files/u1/f1.pdf", "report.pdf", time.Hour)
	require.NoError(t, err)
	require.Contains(t, downloadURL, "name=report.pdf")
}
