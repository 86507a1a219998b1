// Package pagination implements opaque keyset cursors for list endpoints.
package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// Cursor is a decoded page position: the last item seen and its timestamp.
// Keyset pagination on (timestamp, id) stays stable under concurrent inserts.
type Cursor struct {
	LastID    string
	Timestamp time.Time
}

// PageResult is one page of a listed collection.
type PageResult[T any] struct {
	Items   []T    `json:"items"`
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

var ErrInvalidCursor = errors.New("invalid cursor format")

// EncodeCursor serializes a page position into an opaque token.
func EncodeCursor(lastID string, timestamp time.Time) string {
	if lastID == "" {
		return ""
	}
	raw := lastID + "|" + timestamp.UTC().Format(time.RFC3339Nano)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a cursor token. An empty token decodes to nil, meaning
// first page.
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return nil, ErrInvalidCursor
	}

	timestamp, err := time.Parse(time.RFC3339Nano, parts[1])
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{LastID: parts[0], Timestamp: timestamp}, nil
}

// NextCursor derives the next-page token from a full page of items; a short
// page means there is nothing further and yields an empty token.
func NextCursor[T any](items []T, limit int, getID func(T) string, getTimestamp func(T) time.Time) string {
	if len(items) == 0 || len(items) < limit {
		return ""
	}
	last := items[len(items)-1]
	return EncodeCursor(getID(last), getTimestamp(last))
}
