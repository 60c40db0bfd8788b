package repository

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// pageCursor is the keyset position behind an opaque pagination token. Rows
// are ordered by (created_at, id) so the pair restarts a query exactly where
// the previous page ended.
type pageCursor struct {
	CreatedAt time.Time `json:"t"`
	ID        string    `json:"id"`
}

// encodeToken turns a cursor into the opaque token handed to clients.
func encodeToken(c pageCursor) string {
	raw, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// decodeToken parses a client-supplied token. Tokens that do not decode to
// the expected shape yield a zero cursor, restarting from the first page.
func decodeToken(token string) pageCursor {
	if token == "" {
		return pageCursor{}
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return pageCursor{}
	}
	var c pageCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return pageCursor{}
	}
	if c.CreatedAt.IsZero() || c.ID == "" {
		return pageCursor{}
	}
	return c
}

// clampLimit bounds a client-requested page size.
func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 50
	}
	return limit
}
