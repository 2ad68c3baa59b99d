package dto

import (
	"time"

	"github.com/curbfleet/dispatch/internal/dispatch"
)

// TransitionRequest moves a job through the status graph.
type TransitionRequest struct {
	Status        dispatch.Status `json:"status" binding:"required"`
	RecipientName string          `json:"recipient_name,omitempty"`
	Latitude      *float64        `json:"latitude,omitempty"`
	Longitude     *float64        `json:"longitude,omitempty"`
}

// TransitionResponse reports the jobs a transition touched. Pickup
// confirmation batches across same-merchant ready jobs, so more than one id
// can come back.
type TransitionResponse struct {
	JobIDs []string        `json:"job_ids"`
	Status dispatch.Status `json:"status"`
}

// ReorderRequest swaps a queue entry with its neighbor.
type ReorderRequest struct {
	Sequences []SequenceEntry `json:"sequences" binding:"required"`
}

// SequenceEntry is one job's fresh 1-based position.
type SequenceEntry struct {
	JobID    string `json:"job_id" binding:"required"`
	Sequence int    `json:"sequence" binding:"required"`
}

// OnlineRequest toggles the courier's online flag.
type OnlineRequest struct {
	Online *bool `json:"online" binding:"required"`
}

// HistoryResponse is one page of position records plus the next cursor.
type HistoryResponse struct {
	Records    []HistoryRecord `json:"records"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// HistoryRecord mirrors one position history row.
type HistoryRecord struct {
	RecordID  int64     `json:"record_id"`
	JobID     *string   `json:"job_id,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CreatedAt time.Time `json:"created_at"`
}
