package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/curbfleet/dispatch/internal/storage"
)

// DecodeHistoryCursor parses an opaque keyset cursor. An empty string means
// the first page.
func DecodeHistoryCursor(cursorStr string) (*storage.HistoryCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(string(decoded), "|")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var createdAt int64
	if _, err := fmt.Sscanf(parts[0], "%d", &createdAt); err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	var recordID int64
	if _, err := fmt.Sscanf(parts[1], "%d", &recordID); err != nil {
		return nil, fmt.Errorf("invalid recordID in cursor: %w", err)
	}

	return &storage.HistoryCursor{
		CreatedAt: time.Unix(0, createdAt),
		RecordID:  recordID,
	}, nil
}

// EncodeHistoryCursor renders the cursor for the next page request.
func EncodeHistoryCursor(cursor *storage.HistoryCursor) string {
	cs := fmt.Sprintf("%d|%d", cursor.CreatedAt.UnixNano(), cursor.RecordID)
	return base64.StdEncoding.EncodeToString([]byte(cs))
}
