package dispatch

import (
	"time"

	"github.com/curbfleet/dispatch/internal/geo"
)

// Job is a single delivery task. Sequence numbers are contiguous and unique
// among a courier's non-terminal jobs; a job has at most one courier once
// assigned.
type Job struct {
	ID              string     `db:"job_id" json:"job_id"`
	Status          Status     `db:"status" json:"status"`
	CourierID       *string    `db:"courier_id" json:"courier_id,omitempty"`
	MerchantID      string     `db:"merchant_id" json:"merchant_id"`
	PickupLat       *float64   `db:"pickup_lat" json:"pickup_lat,omitempty"`
	PickupLng       *float64   `db:"pickup_lng" json:"pickup_lng,omitempty"`
	PickupAddress   string     `db:"pickup_address" json:"pickup_address"`
	DropoffLat      *float64   `db:"dropoff_lat" json:"dropoff_lat,omitempty"`
	DropoffLng      *float64   `db:"dropoff_lng" json:"dropoff_lng,omitempty"`
	DropoffAddress  string     `db:"dropoff_address" json:"dropoff_address"`
	Sequence        int        `db:"sequence" json:"sequence"`
	Fee             float64    `db:"fee" json:"fee"`
	PaymentMethod   string     `db:"payment_method" json:"payment_method"`
	RecipientName   *string    `db:"recipient_name" json:"recipient_name,omitempty"`
	RoutePath       *string    `db:"route_path" json:"route_path,omitempty"`
	RouteDistance   *string    `db:"route_distance_text" json:"route_distance_text,omitempty"`
	RouteDuration   *string    `db:"route_duration_text" json:"route_duration_text,omitempty"`
	NearDestination bool       `db:"near_destination" json:"near_destination"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	PickedUpAt      *time.Time `db:"picked_up_at" json:"picked_up_at,omitempty"`
	DeliveredAt     *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
}

// Pickup returns the merchant coordinates, if both are present.
func (j *Job) Pickup() (geo.Point, bool) {
	if j.PickupLat == nil || j.PickupLng == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *j.PickupLat, Lng: *j.PickupLng}, true
}

// Dropoff returns the customer coordinates, if both are present.
func (j *Job) Dropoff() (geo.Point, bool) {
	if j.DropoffLat == nil || j.DropoffLng == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *j.DropoffLat, Lng: *j.DropoffLng}, true
}

// DeliveryProximityMeters is the maximum distance from the dropoff at which a
// courier may confirm delivery, when dropoff coordinates are known.
const DeliveryProximityMeters = 100.0

// ValidateDelivery checks the client-side preconditions for confirming a
// delivery: a recorded recipient name, and proximity to the dropoff when its
// coordinates exist. courierPos may be nil when no fix is available; the
// proximity rule then only applies if the job has no dropoff coordinates
// either, in which case it is skipped entirely.
func ValidateDelivery(j *Job, recipientName string, courierPos *geo.Point) error {
	if recipientName == "" {
		return ErrRecipientRequired
	}

	dropoff, ok := j.Dropoff()
	if !ok {
		return nil
	}

	if courierPos == nil {
		return ErrTooFarFromDropoff
	}

	if geo.Haversine(*courierPos, dropoff) > DeliveryProximityMeters {
		return ErrTooFarFromDropoff
	}

	return nil
}
