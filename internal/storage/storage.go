package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/curbfleet/dispatch/internal/dispatch"
	"github.com/curbfleet/dispatch/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

// Store persists jobs, courier profiles and position history. Field ownership
// is split by caller: only the telemetry path writes positions, only the
// queue reorder path writes sequences, only the route synchronizer writes the
// route cache.
type Store struct {
	db *sqlx.DB
}

func NewStore(pg *postgresql.Client) *Store {
	return &Store{db: pg.GetDB()}
}

// NewStoreFromDB wraps an existing connection; used by tests.
func NewStoreFromDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const jobColumns = `
		job_id, status, courier_id, merchant_id,
		pickup_lat, pickup_lng, pickup_address,
		dropoff_lat, dropoff_lng, dropoff_address,
		sequence, fee, payment_method, recipient_name,
		route_path, route_distance_text, route_duration_text,
		near_destination, created_at, picked_up_at, delivered_at`

// ActiveQueue returns the courier's ordered active set: jobs already assigned
// to the courier plus the recruitable pool, non-terminal only, ordered by
// manual sequence then creation time.
func (s *Store) ActiveQueue(ctx context.Context, courierID string) ([]dispatch.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE (courier_id = $1 OR status = $2)
		  AND status NOT IN ($3, $4)
		ORDER BY sequence ASC, created_at ASC
	`

	var jobs []dispatch.Job
	err := s.db.SelectContext(ctx, &jobs, query,
		courierID,
		dispatch.StatusAwaitingCourier,
		dispatch.StatusDelivered,
		dispatch.StatusCanceled,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active queue: %w", err)
	}

	return jobs, nil
}

// GetJob returns a single job by id.
func (s *Store) GetJob(ctx context.Context, jobID string) (*dispatch.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1`

	var job dispatch.Job
	err := s.db.GetContext(ctx, &job, query, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dispatch.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// UpdateJobStatus writes the new status plus the stage timestamps and, for
// delivery, the recipient name.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status dispatch.Status, recipientName string) error {
	query := `
		UPDATE jobs
		SET status = $2,
		    recipient_name = COALESCE(NULLIF($3, ''), recipient_name),
		    picked_up_at = CASE WHEN $2 = $4 THEN NOW() ELSE picked_up_at END,
		    delivered_at = CASE WHEN $2 = $5 THEN NOW() ELSE delivered_at END
		WHERE job_id = $1
	`

	res, err := s.db.ExecContext(ctx, query, jobID, status, recipientName,
		dispatch.StatusPickedUp, dispatch.StatusDelivered)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return dispatch.ErrJobNotFound
	}

	return nil
}

// AssignCourier binds a courier to a job. The WHERE clause keeps the
// at-most-one-courier invariant: an already bound job is left untouched.
func (s *Store) AssignCourier(ctx context.Context, jobID, courierID string) error {
	query := `
		UPDATE jobs
		SET courier_id = $2
		WHERE job_id = $1 AND (courier_id IS NULL OR courier_id = $2)
	`

	res, err := s.db.ExecContext(ctx, query, jobID, courierID)
	if err != nil {
		return fmt.Errorf("failed to assign courier: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %s already has a courier", jobID)
	}

	return nil
}

// BatchPickup marks all of the courier's ready jobs from the same merchant as
// picked up and returns the affected job ids.
func (s *Store) BatchPickup(ctx context.Context, courierID, merchantID string) ([]string, error) {
	query := `
		UPDATE jobs
		SET status = $3, picked_up_at = NOW()
		WHERE courier_id = $1 AND merchant_id = $2 AND status IN ($4, $5)
		RETURNING job_id
	`

	var ids []string
	err := s.db.SelectContext(ctx, &ids, query,
		courierID, merchantID,
		dispatch.StatusPickedUp,
		dispatch.StatusReadyForPickup,
		dispatch.StatusAwaitingPickup,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to batch pickup: %w", err)
	}

	return ids, nil
}

// UpdateSequence persists one job's manual position. Reordering writes a
// fresh sequence to every job in the new ordering, one row at a time.
func (s *Store) UpdateSequence(ctx context.Context, jobID string, sequence int) error {
	query := `UPDATE jobs SET sequence = $2 WHERE job_id = $1`

	if _, err := s.db.ExecContext(ctx, query, jobID, sequence); err != nil {
		return fmt.Errorf("failed to update sequence: %w", err)
	}

	return nil
}

// CacheRoutePlan writes the route read-through cache onto the job record.
func (s *Store) CacheRoutePlan(ctx context.Context, jobID, encodedPath, distanceText, durationText string) error {
	query := `
		UPDATE jobs
		SET route_path = $2, route_distance_text = $3, route_duration_text = $4
		WHERE job_id = $1
	`

	if _, err := s.db.ExecContext(ctx, query, jobID, encodedPath, distanceText, durationText); err != nil {
		return fmt.Errorf("failed to cache route plan: %w", err)
	}

	return nil
}

// MarkNearDestination flags a job whose courier has entered the arrival
// geofence.
func (s *Store) MarkNearDestination(ctx context.Context, jobID string) error {
	query := `UPDATE jobs SET near_destination = TRUE WHERE job_id = $1`

	if _, err := s.db.ExecContext(ctx, query, jobID); err != nil {
		return fmt.Errorf("failed to mark near destination: %w", err)
	}

	return nil
}

// DailyStats sums fees and counts delivered jobs since the given instant.
func (s *Store) DailyStats(ctx context.Context, courierID string, since time.Time) (dispatch.DailyStats, error) {
	query := `
		SELECT COALESCE(SUM(fee), 0) AS earnings, COUNT(*) AS deliveries
		FROM jobs
		WHERE courier_id = $1 AND status = $2 AND delivered_at >= $3
	`

	var stats dispatch.DailyStats
	err := s.db.GetContext(ctx, &stats, query, courierID, dispatch.StatusDelivered, since)
	if err != nil {
		return dispatch.DailyStats{}, fmt.Errorf("failed to compute daily stats: %w", err)
	}

	return stats, nil
}
