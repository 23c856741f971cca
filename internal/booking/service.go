package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/provider-matching/internal/models"
	"github.com/example/provider-matching/internal/observability"
	"github.com/example/provider-matching/internal/storage"
)

// Store is the persistence slice the lifecycle drives.
type Store interface {
	CreateBooking(b *models.Booking) error
	GetBooking(id string) (*models.Booking, error)
	UpdateBookingStatus(id string, expected, next models.BookingStatus) (bool, error)
	ConfirmBooking(id string, p *models.Payment) (bool, error)
	RecordRating(bookingID string, rating int, comment string) (float64, bool, error)
	HasBookingInSlot(providerID string, date time.Time, slot string) (bool, error)
	GetPaymentByBooking(bookingID string) (*models.Payment, error)
}

// Catalog is the read side used for validating references.
type Catalog interface {
	GetCategory(id string) (*models.ServiceCategory, error)
	GetProvider(id string) (*models.ProviderProfile, error)
	GetOffering(providerID, categoryID string) (*models.Offering, error)
}

// Notifier pushes booking events to the owning provider.
type Notifier interface {
	BookingChanged(e models.BookingEvent) error
}

type Service struct {
	Store   Store
	Catalog Catalog
	Notify  Notifier // optional
}

type CreateRequest struct {
	CustomerID string
	ProviderID string
	CategoryID string
	AddressID  string
	Date       time.Time
	TimeSlot   string
}

// Create opens a pending booking for a future date. The caller must be the
// customer named in the request.
func (s *Service) Create(caller models.Caller, req CreateRequest) (*models.Booking, error) {
	switch {
	case req.CustomerID == "":
		return nil, badRequest("customer required")
	case req.ProviderID == "":
		return nil, badRequest("provider required")
	case req.CategoryID == "":
		return nil, badRequest("category required")
	case req.AddressID == "":
		return nil, badRequest("address required")
	case req.TimeSlot == "":
		return nil, badRequest("time slot required")
	}
	if !req.Date.After(time.Now()) {
		return nil, badRequest("date must be in the future")
	}
	if caller.Role != models.RoleCustomer || caller.ID != req.CustomerID {
		return nil, refused("create", ErrNotAuthorized, "only the named customer can create")
	}
	if _, err := s.Catalog.GetCategory(req.CategoryID); err != nil {
		return nil, lookupErr("category", req.CategoryID, err)
	}
	if _, err := s.Catalog.GetProvider(req.ProviderID); err != nil {
		return nil, lookupErr("provider", req.ProviderID, err)
	}
	taken, err := s.Store.HasBookingInSlot(req.ProviderID, req.Date, req.TimeSlot)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, refused("create", ErrSlotTaken, "")
	}

	now := time.Now()
	b := &models.Booking{
		ID:         uuid.NewString(),
		CustomerID: req.CustomerID,
		ProviderID: req.ProviderID,
		CategoryID: req.CategoryID,
		AddressID:  req.AddressID,
		Date:       req.Date,
		TimeSlot:   req.TimeSlot,
		Status:     models.BookingPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Store.CreateBooking(b); err != nil {
		// the store's slot guard closes the check-then-create window
		if errors.Is(err, storage.ErrSlotConflict) {
			return nil, refused("create", ErrSlotTaken, "")
		}
		return nil, err
	}
	mark("create", "ok")
	s.notify(b)
	return b, nil
}

// Confirm moves a pending booking to confirmed and records its payment at
// the provider's offered rate. Exactly one payment can exist per booking.
func (s *Service) Confirm(caller models.Caller, bookingID, paymentMethod string) (*models.Payment, error) {
	if paymentMethod == "" {
		return nil, badRequest("payment method required")
	}
	b, err := s.get(bookingID)
	if err != nil {
		return nil, err
	}
	if caller.Role != models.RoleCustomer || caller.ID != b.CustomerID {
		return nil, refused("confirm", ErrNotAuthorized, "only the booking customer can confirm")
	}
	if !CanTransition(b.Status, models.BookingConfirmed) {
		return nil, refused("confirm", ErrWrongState, fmt.Sprintf("booking is %s", b.Status))
	}
	off, err := s.Catalog.GetOffering(b.ProviderID, b.CategoryID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, refused("confirm", ErrNoOffering, "")
		}
		return nil, err
	}

	pay := &models.Payment{
		ID:            uuid.NewString(),
		BookingID:     b.ID,
		Amount:        off.PriceRate,
		Method:        paymentMethod,
		TransactionID: uuid.NewString(),
		Status:        models.PaymentSuccessful,
		CreatedAt:     time.Now(),
	}
	ok, err := s.Store.ConfirmBooking(b.ID, pay)
	if err != nil {
		return nil, err
	}
	if !ok {
		mark("confirm", "conflict")
		return nil, refused("confirm", ErrWrongState, "booking is no longer pending")
	}
	mark("confirm", "ok")
	b.Status = models.BookingConfirmed
	s.notify(b)
	return pay, nil
}

// Cancel aborts a pending or confirmed booking. Either side may cancel.
func (s *Service) Cancel(caller models.Caller, bookingID string) (*models.Booking, error) {
	b, err := s.get(bookingID)
	if err != nil {
		return nil, err
	}
	if !callerOwnsBooking(caller, b) {
		return nil, refused("cancel", ErrNotAuthorized, "only the booking customer or provider can cancel")
	}
	if !CanTransition(b.Status, models.BookingCancelled) {
		return nil, refused("cancel", ErrWrongState, fmt.Sprintf("booking is %s", b.Status))
	}
	ok, err := s.Store.UpdateBookingStatus(b.ID, b.Status, models.BookingCancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		mark("cancel", "conflict")
		return nil, refused("cancel", ErrWrongState, "booking state changed concurrently")
	}
	mark("cancel", "ok")
	b.Status = models.BookingCancelled
	s.notify(b)
	return b, nil
}

// Complete marks a confirmed booking as done. Only the provider may do this.
func (s *Service) Complete(caller models.Caller, bookingID string) (*models.Booking, error) {
	b, err := s.get(bookingID)
	if err != nil {
		return nil, err
	}
	if caller.Role != models.RoleProvider || caller.ID != b.ProviderID {
		return nil, refused("complete", ErrNotAuthorized, "only the booking provider can complete")
	}
	if !CanTransition(b.Status, models.BookingCompleted) {
		return nil, refused("complete", ErrWrongState, fmt.Sprintf("booking is %s", b.Status))
	}
	ok, err := s.Store.UpdateBookingStatus(b.ID, models.BookingConfirmed, models.BookingCompleted)
	if err != nil {
		return nil, err
	}
	if !ok {
		mark("complete", "conflict")
		return nil, refused("complete", ErrWrongState, "booking state changed concurrently")
	}
	mark("complete", "ok")
	b.Status = models.BookingCompleted
	s.notify(b)
	return b, nil
}

// Rate records the one-time rating on a completed booking and returns the
// provider's recomputed average.
func (s *Service) Rate(caller models.Caller, bookingID string, rating int, comment string) (float64, error) {
	if rating < 1 || rating > 5 {
		return 0, badRequest("rating must be between 1 and 5")
	}
	b, err := s.get(bookingID)
	if err != nil {
		return 0, err
	}
	if caller.Role != models.RoleCustomer || caller.ID != b.CustomerID {
		return 0, refused("rate", ErrNotAuthorized, "only the booking customer can rate")
	}
	if b.Status != models.BookingCompleted {
		return 0, refused("rate", ErrWrongState, fmt.Sprintf("booking is %s", b.Status))
	}
	if b.Rating != nil {
		return 0, refused("rate", ErrAlreadyRated, "")
	}
	avg, applied, err := s.Store.RecordRating(b.ID, rating, comment)
	if err != nil {
		return 0, err
	}
	if !applied {
		mark("rate", "conflict")
		return 0, refused("rate", ErrAlreadyRated, "rating raced another write")
	}
	mark("rate", "ok")
	observability.RatingsRecorded.Inc()
	return avg, nil
}

// Get returns a booking to one of its two parties.
func (s *Service) Get(caller models.Caller, bookingID string) (*models.Booking, error) {
	b, err := s.get(bookingID)
	if err != nil {
		return nil, err
	}
	if !callerOwnsBooking(caller, b) {
		return nil, fmt.Errorf("%w: booking belongs to another customer and provider", ErrNotAuthorized)
	}
	return b, nil
}

// Payment returns the payment recorded when the booking was confirmed.
func (s *Service) Payment(caller models.Caller, bookingID string) (*models.Payment, error) {
	b, err := s.Get(caller, bookingID)
	if err != nil {
		return nil, err
	}
	p, err := s.Store.GetPaymentByBooking(b.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("payment for booking %s: %w", b.ID, ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) get(id string) (*models.Booking, error) {
	if id == "" {
		return nil, badRequest("booking id required")
	}
	b, err := s.Store.GetBooking(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("booking %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return b, nil
}

func (s *Service) notify(b *models.Booking) {
	if s.Notify == nil {
		return
	}
	// best effort; a provider without an open socket just misses the push
	_ = s.Notify.BookingChanged(models.BookingEvent{
		BookingID:  b.ID,
		CustomerID: b.CustomerID,
		ProviderID: b.ProviderID,
		CategoryID: b.CategoryID,
		Status:     b.Status,
		Date:       b.Date,
		TimeSlot:   b.TimeSlot,
	})
}

func callerOwnsBooking(c models.Caller, b *models.Booking) bool {
	switch c.Role {
	case models.RoleCustomer:
		return c.ID == b.CustomerID
	case models.RoleProvider:
		return c.ID == b.ProviderID
	}
	return false
}

func lookupErr(what, id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return err
}

func mark(transition, outcome string) {
	observability.BookingTransitions.WithLabelValues(transition, outcome).Inc()
}
