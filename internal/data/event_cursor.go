package data

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/popmap/popmap-api/internal/domain/model"
)

// EncodeEventCursor serializes a keyset position into an opaque token.
// Clients hand the token back verbatim via the cursor query parameter to
// resume a listing where the previous page left off.
func EncodeEventCursor(cur *model.EventCursor) (string, error) {
	if cur == nil {
		return "", errors.New("cursor is nil")
	}
	raw, err := json.Marshal(cur)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeEventCursor parses a token produced by EncodeEventCursor.
func DecodeEventCursor(token string) (*model.EventCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	var cur model.EventCursor
	if err := json.Unmarshal(raw, &cur); err != nil {
		return nil, fmt.Errorf("unmarshal cursor: %w", err)
	}
	if cur.ID == "" || cur.StartTime.IsZero() {
		return nil, errors.New("invalid cursor payload")
	}
	return &cur, nil
}
