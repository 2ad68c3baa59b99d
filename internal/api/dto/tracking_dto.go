package dto

// TrackingRequest is the body of the tracking ingestion endpoint. Latitude
// and longitude are pointers so a missing field is distinguishable from zero.
type TrackingRequest struct {
	CourierID    string   `json:"courier_id"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	JobID        *string  `json:"job_id,omitempty"`
	BatteryLevel *int     `json:"battery_level,omitempty"`
	IsCharging   *bool    `json:"is_charging,omitempty"`
}

// TrackingResponse acknowledges an accepted tracking report.
type TrackingResponse struct {
	CourierID       string `json:"courier_id"`
	NearDestination bool   `json:"near_destination"`
}
