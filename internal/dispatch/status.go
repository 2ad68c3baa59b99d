package dispatch

// Status is the lifecycle state of a delivery job.
type Status string

const (
	StatusAwaitingCourier Status = "AWAITING_COURIER"
	StatusAccepted        Status = "ACCEPTED"
	StatusPreparing       Status = "PREPARING"
	StatusReadyForPickup  Status = "READY_FOR_PICKUP"
	StatusAwaitingPickup  Status = "AWAITING_PICKUP"
	StatusPickedUp        Status = "PICKED_UP"
	StatusEnRoute         Status = "EN_ROUTE"
	StatusDelivered       Status = "DELIVERED"
	StatusCanceled        Status = "CANCELED"
)

// Actor identifies who is requesting a status transition.
type Actor string

const (
	ActorMerchant Actor = "merchant"
	ActorCourier  Actor = "courier"
	ActorDispatch Actor = "dispatch"
)

// Terminal reports whether the status is final. Terminal jobs never re-enter
// a courier's active queue.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCanceled
}

// Recruitment reports whether the status means the job needs a courier to act,
// as opposed to a state the current courier's own action produced.
func (s Status) Recruitment() bool {
	switch s {
	case StatusAwaitingCourier, StatusReadyForPickup, StatusAwaitingPickup:
		return true
	}
	return false
}

// PickupPhase reports whether the courier's active target is still the
// merchant's pickup location.
func (s Status) PickupPhase() bool {
	switch s {
	case StatusAccepted, StatusReadyForPickup, StatusAwaitingPickup:
		return true
	}
	return false
}

// CourierCaused reports whether the status is one the current courier's own
// action produces. Alerts must never fire for these.
func (s Status) CourierCaused() bool {
	switch s {
	case StatusAccepted, StatusPickedUp, StatusEnRoute, StatusDelivered:
		return true
	}
	return false
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusAwaitingCourier, StatusAccepted, StatusPreparing,
		StatusReadyForPickup, StatusAwaitingPickup, StatusPickedUp,
		StatusEnRoute, StatusDelivered, StatusCanceled:
		return true
	}
	return false
}

type edge struct {
	to    Status
	actor Actor
}

// transitions is the closed status graph. CANCELED is handled separately:
// it is reachable from any non-terminal state.
var transitions = map[Status][]edge{
	StatusAwaitingCourier: {
		{StatusAccepted, ActorCourier},
	},
	StatusAccepted: {
		{StatusPreparing, ActorMerchant},
	},
	StatusPreparing: {
		{StatusReadyForPickup, ActorMerchant},
	},
	StatusReadyForPickup: {
		{StatusAwaitingCourier, ActorDispatch},
		{StatusPickedUp, ActorCourier},
	},
	StatusAwaitingPickup: {
		{StatusPickedUp, ActorCourier},
	},
	StatusPickedUp: {
		{StatusEnRoute, ActorCourier},
	},
	StatusEnRoute: {
		{StatusDelivered, ActorCourier},
	},
}

// CanTransition validates the from -> to edge for the given actor.
func CanTransition(from, to Status, actor Actor) error {
	if !from.Valid() || !to.Valid() {
		return ErrInvalidTransition
	}

	if from.Terminal() {
		return ErrInvalidTransition
	}

	if to == StatusCanceled {
		return nil
	}

	for _, e := range transitions[from] {
		if e.to == to && e.actor == actor {
			return nil
		}
	}

	return ErrInvalidTransition
}
