package dispatch

import "time"

// CourierProfile is the courier's live record. Position and telemetry fields
// are written only by the telemetry path; the online flag only by the
// courier's own status actions.
type CourierProfile struct {
	ID           string     `db:"courier_id" json:"courier_id"`
	Online       bool       `db:"is_online" json:"is_online"`
	LastLat      *float64   `db:"last_lat" json:"last_lat,omitempty"`
	LastLng      *float64   `db:"last_lng" json:"last_lng,omitempty"`
	BatteryLevel *int       `db:"battery_level" json:"battery_level,omitempty"`
	Charging     *bool      `db:"is_charging" json:"is_charging,omitempty"`
	Connectivity *string    `db:"connectivity" json:"connectivity,omitempty"`
	LastSeenAt   *time.Time `db:"last_seen_at" json:"last_seen_at,omitempty"`
	CurrentJobID *string    `db:"current_job_id" json:"current_job_id,omitempty"`
}

// PositionRecord is one append-only entry of the courier's position history.
type PositionRecord struct {
	ID        int64     `db:"record_id" json:"record_id"`
	CourierID string    `db:"courier_id" json:"courier_id"`
	JobID     *string   `db:"job_id" json:"job_id,omitempty"`
	Lat       float64   `db:"latitude" json:"latitude"`
	Lng       float64   `db:"longitude" json:"longitude"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DailyStats summarizes the courier's delivered jobs since local midnight.
type DailyStats struct {
	Earnings   float64 `db:"earnings" json:"earnings"`
	Deliveries int     `db:"deliveries" json:"deliveries"`
}
