// Package persistence contains helpers shared by repository implementations
// and transports.
package persistence

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"example.com/fitsocial/internal/domain"
)

// EncodeCursor serialises the feed cursor to an opaque token.
func EncodeCursor(c *domain.FeedCursor) string {
	if c == nil {
		return ""
	}
	raw := fmt.Sprintf("%s|%s", c.OccurredAt.UTC().Format(time.RFC3339Nano), c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token yields a
// nil cursor.
func DecodeCursor(token string) (*domain.FeedCursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", domain.ErrInvalidOperation)
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("%w: invalid cursor format", domain.ErrInvalidOperation)
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cursor time", domain.ErrInvalidOperation)
	}
	return &domain.FeedCursor{OccurredAt: ts, ID: parts[1]}, nil
}
