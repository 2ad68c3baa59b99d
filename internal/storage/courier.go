package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/curbfleet/dispatch/internal/dispatch"
)

// GetCourierProfile returns the courier's live record.
func (s *Store) GetCourierProfile(ctx context.Context, courierID string) (*dispatch.CourierProfile, error) {
	query := `
		SELECT courier_id, is_online, last_lat, last_lng,
		       battery_level, is_charging, connectivity, last_seen_at, current_job_id
		FROM courier_profiles
		WHERE courier_id = $1
	`

	var profile dispatch.CourierProfile
	err := s.db.GetContext(ctx, &profile, query, courierID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("courier %s not found", courierID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get courier profile: %w", err)
	}

	return &profile, nil
}

// Telemetry is the optional device snapshot collected alongside a position.
type Telemetry struct {
	BatteryLevel *int
	Charging     *bool
	Connectivity *string
}

// UpdateCourierPosition writes the courier's last known position plus any
// telemetry that was collected. Nil telemetry fields leave the stored values
// untouched.
func (s *Store) UpdateCourierPosition(ctx context.Context, courierID string, lat, lng float64, tel Telemetry) error {
	query := `
		UPDATE courier_profiles
		SET last_lat = $2,
		    last_lng = $3,
		    battery_level = COALESCE($4, battery_level),
		    is_charging = COALESCE($5, is_charging),
		    connectivity = COALESCE($6, connectivity),
		    last_seen_at = NOW()
		WHERE courier_id = $1
	`

	_, err := s.db.ExecContext(ctx, query, courierID, lat, lng,
		tel.BatteryLevel, tel.Charging, tel.Connectivity)
	if err != nil {
		return fmt.Errorf("failed to update courier position: %w", err)
	}

	return nil
}

// SetCourierOnline flips the courier's online flag.
func (s *Store) SetCourierOnline(ctx context.Context, courierID string, online bool) error {
	query := `UPDATE courier_profiles SET is_online = $2 WHERE courier_id = $1`

	if _, err := s.db.ExecContext(ctx, query, courierID, online); err != nil {
		return fmt.Errorf("failed to set courier online flag: %w", err)
	}

	return nil
}

// AppendHistory inserts one append-only position record.
func (s *Store) AppendHistory(ctx context.Context, courierID string, jobID *string, lat, lng float64) error {
	query := `
		INSERT INTO position_history (courier_id, job_id, latitude, longitude, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`

	if _, err := s.db.ExecContext(ctx, query, courierID, jobID, lat, lng); err != nil {
		return fmt.Errorf("failed to append position history: %w", err)
	}

	return nil
}

// HistoryCursor marks a position in the history listing for keyset pagination.
type HistoryCursor struct {
	CreatedAt time.Time
	RecordID  int64
}

// HistoryFilter bounds a history listing.
type HistoryFilter struct {
	CourierID string
	PageSize  int
	Cursor    *HistoryCursor
}

// ListHistory returns position records newest first. One extra row beyond
// PageSize is returned when more results exist.
func (s *Store) ListHistory(ctx context.Context, filter HistoryFilter) ([]dispatch.PositionRecord, error) {
	query := `
		SELECT record_id, courier_id, job_id, latitude, longitude, created_at
		FROM position_history
		WHERE courier_id = $1
	`
	args := []interface{}{filter.CourierID}
	argIdx := 2

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, record_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.RecordID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, record_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var records []dispatch.PositionRecord
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list position history: %w", err)
	}

	return records, nil
}
