package booking

import "github.com/example/provider-matching/internal/models"

// AllowedTransitions is the full lifecycle graph. Completed and cancelled
// are terminal; the one-time rating on a completed booking is handled
// separately and does not change status.
var AllowedTransitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingPending:   {models.BookingConfirmed, models.BookingCancelled},
	models.BookingConfirmed: {models.BookingCompleted, models.BookingCancelled},
	models.BookingCompleted: {},
	models.BookingCancelled: {},
}

func CanTransition(from, to models.BookingStatus) bool {
	for _, t := range AllowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
