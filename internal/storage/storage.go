package storage

import (
	"errors"
	"time"

	"github.com/example/provider-matching/internal/models"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicatePayment = errors.New("payment already recorded for booking")
	ErrSlotConflict     = errors.New("provider already booked for slot")
)

// CatalogStore reads categories, offerings, and provider profiles.
type CatalogStore interface {
	GetCategory(id string) (*models.ServiceCategory, error)
	ListCategories() ([]models.ServiceCategory, error)
	GetOfferingsByCategory(categoryID string) ([]models.Offering, error)
	GetOffering(providerID, categoryID string) (*models.Offering, error)
	GetProvider(id string) (*models.ProviderProfile, error)
	// GetEligibleProviders returns the subset of ids that exist and are
	// both available and verified.
	GetEligibleProviders(ids []string) ([]models.ProviderProfile, error)
	SetProviderAvailability(id string, available bool) error
}

// BookingStore persists bookings and drives their lifecycle.
type BookingStore interface {
	CreateBooking(b *models.Booking) error
	GetBooking(id string) (*models.Booking, error)
	// UpdateBookingStatus flips status only when the stored value still
	// equals expected; it reports whether the update applied.
	UpdateBookingStatus(id string, expected, next models.BookingStatus) (bool, error)
	// ConfirmBooking atomically moves a pending booking to confirmed and
	// records its payment. Exactly one concurrent caller can win.
	ConfirmBooking(id string, p *models.Payment) (bool, error)
	// RecordRating writes a one-time rating on a completed booking and
	// recomputes the provider's average in the same transaction. applied
	// is false when the booking is not completed or already rated.
	RecordRating(bookingID string, rating int, comment string) (avg float64, applied bool, err error)
	ListCompletedRated(providerID string) ([]models.Booking, error)
	// HasBookingInSlot reports an active (pending or confirmed) booking
	// for the provider on the given date and slot.
	HasBookingInSlot(providerID string, date time.Time, slot string) (bool, error)
}

// PaymentStore reads and writes the payment ledger.
type PaymentStore interface {
	// CreatePayment is idempotent per booking: a second write for the
	// same booking fails with ErrDuplicatePayment.
	CreatePayment(p *models.Payment) error
	GetPaymentByBooking(bookingID string) (*models.Payment, error)
}

// Store is the full persistence surface the API wires together.
type Store interface {
	CatalogStore
	BookingStore
	PaymentStore
}
