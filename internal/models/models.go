package models

import (
	"fmt"
	"math"
	"time"
)

// Coordinate is a point in signed decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks that the coordinate lies within geographic range.
func (c Coordinate) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", c.Lon)
	}
	return nil
}

type ServiceCategory struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Offering lists one category a provider serves and at what rate.
// At most one offering exists per (provider, category) pair.
type Offering struct {
	ProviderID string  `json:"provider_id"`
	CategoryID string  `json:"category_id"`
	PriceRate  float64 `json:"price_rate"`
}

type ProviderProfile struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	ExperienceYears int         `json:"experience_years"`
	Available       bool        `json:"available"`
	Verified        bool        `json:"verified"`
	AvgRating       *float64    `json:"avg_rating,omitempty"` // nil until first rating lands
	Location        *Coordinate `json:"location,omitempty"`
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

type Booking struct {
	ID            string        `json:"id"`
	CustomerID    string        `json:"customer_id"`
	ProviderID    string        `json:"provider_id"`
	CategoryID    string        `json:"category_id"`
	AddressID     string        `json:"address_id"`
	Date          time.Time     `json:"date"`
	TimeSlot      string        `json:"time_slot"`
	Status        BookingStatus `json:"status"`
	Rating        *int          `json:"rating,omitempty"` // 1..5, written once after completion
	RatingComment string        `json:"rating_comment,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentSuccessful PaymentStatus = "successful"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

// Payment is the ledger entry recorded when a booking is confirmed.
type Payment struct {
	ID            string        `json:"id"`
	BookingID     string        `json:"booking_id"`
	Amount        float64       `json:"amount"`
	Method        string        `json:"method"`
	TransactionID string        `json:"transaction_id"`
	Status        PaymentStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
}

type CallerRole string

const (
	RoleCustomer CallerRole = "customer"
	RoleProvider CallerRole = "provider"
)

// Caller identifies who is invoking an operation. Authorization is decided
// from this value alone, never from ambient session state.
type Caller struct {
	Role CallerRole `json:"role"`
	ID   string     `json:"id"`
}

// ProviderStatus is the ingest message carrying a provider's live
// availability and position.
type ProviderStatus struct {
	ProviderID string      `json:"provider_id"`
	Location   *Coordinate `json:"location,omitempty"`
	Available  bool        `json:"available"`
	Updated    time.Time   `json:"updated"`
}

// BookingEvent is pushed to the owning provider when a booking changes state.
type BookingEvent struct {
	BookingID  string        `json:"booking_id"`
	CustomerID string        `json:"customer_id"`
	ProviderID string        `json:"provider_id"`
	CategoryID string        `json:"category_id"`
	Status     BookingStatus `json:"status"`
	Date       time.Time     `json:"date"`
	TimeSlot   string        `json:"time_slot"`
}

// MeanRating averages ratings and rounds to two decimals.
// ok is false for an empty slice.
func MeanRating(ratings []int) (avg float64, ok bool) {
	if len(ratings) == 0 {
		return 0, false
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	avg = float64(sum) / float64(len(ratings))
	return math.Round(avg*100) / 100, true
}
