package dispatch

import (
	"testing"

	"github.com/curbfleet/dispatch/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		actor   Actor
		wantErr bool
	}{
		{"courier accepts", StatusAwaitingCourier, StatusAccepted, ActorCourier, false},
		{"merchant starts preparing", StatusAccepted, StatusPreparing, ActorMerchant, false},
		{"merchant marks ready", StatusPreparing, StatusReadyForPickup, ActorMerchant, false},
		{"dispatch recruits", StatusReadyForPickup, StatusAwaitingCourier, ActorDispatch, false},
		{"courier confirms pickup from ready", StatusReadyForPickup, StatusPickedUp, ActorCourier, false},
		{"courier confirms pickup from awaiting", StatusAwaitingPickup, StatusPickedUp, ActorCourier, false},
		{"courier starts route", StatusPickedUp, StatusEnRoute, ActorCourier, false},
		{"courier confirms delivery", StatusEnRoute, StatusDelivered, ActorCourier, false},
		{"cancel from awaiting courier", StatusAwaitingCourier, StatusCanceled, ActorDispatch, false},
		{"cancel from en route", StatusEnRoute, StatusCanceled, ActorMerchant, false},

		{"skip straight to delivered", StatusAwaitingCourier, StatusDelivered, ActorCourier, true},
		{"merchant cannot accept for courier", StatusAwaitingCourier, StatusAccepted, ActorMerchant, true},
		{"courier cannot mark preparing", StatusAccepted, StatusPreparing, ActorCourier, true},
		{"backwards transition", StatusEnRoute, StatusPickedUp, ActorCourier, true},
		{"delivered is terminal", StatusDelivered, StatusCanceled, ActorDispatch, true},
		{"canceled is terminal", StatusCanceled, StatusAccepted, ActorCourier, true},
		{"unknown status", Status("LOST"), StatusAccepted, ActorCourier, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanTransition(tt.from, tt.to, tt.actor)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCanceled.Terminal())
	assert.False(t, StatusEnRoute.Terminal())

	assert.True(t, StatusAwaitingCourier.Recruitment())
	assert.True(t, StatusReadyForPickup.Recruitment())
	assert.True(t, StatusAwaitingPickup.Recruitment())
	assert.False(t, StatusEnRoute.Recruitment())

	assert.True(t, StatusAccepted.PickupPhase())
	assert.True(t, StatusReadyForPickup.PickupPhase())
	assert.False(t, StatusPickedUp.PickupPhase())
	assert.False(t, StatusEnRoute.PickupPhase())

	assert.True(t, StatusPickedUp.CourierCaused())
	assert.False(t, StatusAwaitingCourier.CourierCaused())
}

func floatPtr(f float64) *float64 { return &f }

func TestValidateDelivery(t *testing.T) {
	dropoff := geo.Point{Lat: -22.900000, Lng: -43.100000}

	job := &Job{
		ID:         "j1",
		Status:     StatusEnRoute,
		DropoffLat: floatPtr(dropoff.Lat),
		DropoffLng: floatPtr(dropoff.Lng),
	}

	t.Run("missing recipient name", func(t *testing.T) {
		err := ValidateDelivery(job, "", &dropoff)
		assert.ErrorIs(t, err, ErrRecipientRequired)
	})

	t.Run("too far from dropoff", func(t *testing.T) {
		// ~250m north of the dropoff
		pos := geo.Point{Lat: dropoff.Lat + 0.00225, Lng: dropoff.Lng}
		require.Greater(t, geo.Haversine(pos, dropoff), 200.0)

		err := ValidateDelivery(job, "Maria", &pos)
		assert.ErrorIs(t, err, ErrTooFarFromDropoff)
	})

	t.Run("within proximity", func(t *testing.T) {
		// ~80m north of the dropoff
		pos := geo.Point{Lat: dropoff.Lat + 0.00072, Lng: dropoff.Lng}
		require.Less(t, geo.Haversine(pos, dropoff), 100.0)

		err := ValidateDelivery(job, "Maria", &pos)
		assert.NoError(t, err)
	})

	t.Run("no dropoff coordinates skips proximity", func(t *testing.T) {
		bare := &Job{ID: "j2", Status: StatusEnRoute}
		err := ValidateDelivery(bare, "Maria", nil)
		assert.NoError(t, err)
	})

	t.Run("no fix with known dropoff is rejected", func(t *testing.T) {
		err := ValidateDelivery(job, "Maria", nil)
		assert.ErrorIs(t, err, ErrTooFarFromDropoff)
	})
}
