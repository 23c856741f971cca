package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/example/provider-matching/internal/models"
)

// MemoryStore keeps everything in process memory. It backs local runs and
// tests; production deployments use PostgresStore.
type MemoryStore struct {
	mu         sync.RWMutex
	categories map[string]models.ServiceCategory
	providers  map[string]models.ProviderProfile
	offerings  map[string]models.Offering // keyed by provider/category
	bookings   map[string]*models.Booking
	payments   map[string]models.Payment // keyed by booking id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		categories: make(map[string]models.ServiceCategory),
		providers:  make(map[string]models.ProviderProfile),
		offerings:  make(map[string]models.Offering),
		bookings:   make(map[string]*models.Booking),
		payments:   make(map[string]models.Payment),
	}
}

func offeringKey(providerID, categoryID string) string { return providerID + "/" + categoryID }

// SeedCategories loads the standard category set for local runs.
func (m *MemoryStore) SeedCategories() {
	for _, c := range []models.ServiceCategory{
		{ID: "plumbing", Name: "Plumbing", Description: "Pipes, fittings, and water systems"},
		{ID: "electrical", Name: "Electrical", Description: "Wiring, fixtures, and repairs"},
		{ID: "cleaning", Name: "Cleaning", Description: "Home and office cleaning"},
		{ID: "carpentry", Name: "Carpentry", Description: "Furniture and woodwork"},
		{ID: "painting", Name: "Painting", Description: "Interior and exterior painting"},
		{ID: "landscaping", Name: "Landscaping", Description: "Garden and lawn care"},
		{ID: "hvac", Name: "HVAC", Description: "Heating and cooling systems"},
	} {
		m.AddCategory(c)
	}
}

func (m *MemoryStore) AddCategory(c models.ServiceCategory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[c.ID] = c
}

func (m *MemoryStore) AddProvider(p models.ProviderProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.ID] = p
}

func (m *MemoryStore) AddOffering(o models.Offering) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offerings[offeringKey(o.ProviderID, o.CategoryID)] = o
}

func (m *MemoryStore) GetCategory(id string) (*models.ServiceCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryStore) ListCategories() ([]models.ServiceCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ServiceCategory, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) GetOfferingsByCategory(categoryID string) ([]models.Offering, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Offering, 0)
	for _, o := range m.offerings {
		if o.CategoryID == categoryID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderID < out[j].ProviderID })
	return out, nil
}

func (m *MemoryStore) GetOffering(providerID, categoryID string) (*models.Offering, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.offerings[offeringKey(providerID, categoryID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *MemoryStore) GetProvider(id string) (*models.ProviderProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneProvider(p)
	return &cp, nil
}

func (m *MemoryStore) GetEligibleProviders(ids []string) ([]models.ProviderProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ProviderProfile, 0, len(ids))
	for _, id := range ids {
		p, ok := m.providers[id]
		if !ok || !p.Available || !p.Verified {
			continue
		}
		out = append(out, cloneProvider(p))
	}
	return out, nil
}

func (m *MemoryStore) SetProviderAvailability(id string, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return ErrNotFound
	}
	p.Available = available
	m.providers[id] = p
	return nil
}

func (m *MemoryStore) CreateBooking(b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.bookings {
		if ex.ProviderID == b.ProviderID && ex.TimeSlot == b.TimeSlot && sameDay(ex.Date, b.Date) && isActive(ex.Status) {
			return ErrSlotConflict
		}
	}
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *MemoryStore) GetBooking(id string) (*models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBooking(b), nil
}

func (m *MemoryStore) UpdateBookingStatus(id string, expected, next models.BookingStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != expected {
		return false, nil
	}
	b.Status = next
	b.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) ConfirmBooking(id string, p *models.Payment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != models.BookingPending {
		return false, nil
	}
	if _, dup := m.payments[id]; dup {
		return false, ErrDuplicatePayment
	}
	b.Status = models.BookingConfirmed
	b.UpdatedAt = time.Now()
	m.payments[id] = *p
	return true, nil
}

func (m *MemoryStore) RecordRating(bookingID string, rating int, comment string) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return 0, false, ErrNotFound
	}
	if b.Status != models.BookingCompleted || b.Rating != nil {
		return 0, false, nil
	}
	r := rating
	b.Rating = &r
	b.RatingComment = comment
	b.UpdatedAt = time.Now()

	ratings := make([]int, 0)
	for _, ex := range m.bookings {
		if ex.ProviderID == b.ProviderID && ex.Status == models.BookingCompleted && ex.Rating != nil {
			ratings = append(ratings, *ex.Rating)
		}
	}
	avg, _ := models.MeanRating(ratings)
	if p, ok := m.providers[b.ProviderID]; ok {
		v := avg
		p.AvgRating = &v
		m.providers[b.ProviderID] = p
	}
	return avg, true, nil
}

func (m *MemoryStore) ListCompletedRated(providerID string) ([]models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Booking, 0)
	for _, b := range m.bookings {
		if b.ProviderID == providerID && b.Status == models.BookingCompleted && b.Rating != nil {
			out = append(out, *cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) HasBookingInSlot(providerID string, date time.Time, slot string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.bookings {
		if b.ProviderID == providerID && b.TimeSlot == slot && sameDay(b.Date, date) && isActive(b.Status) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) CreatePayment(p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.payments[p.BookingID]; dup {
		return ErrDuplicatePayment
	}
	m.payments[p.BookingID] = *p
	return nil
}

func (m *MemoryStore) GetPaymentByBooking(bookingID string) (*models.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pay, ok := m.payments[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	return &pay, nil
}

func isActive(s models.BookingStatus) bool {
	return s == models.BookingPending || s == models.BookingConfirmed
}

func sameDay(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}

func cloneProvider(p models.ProviderProfile) models.ProviderProfile {
	if p.AvgRating != nil {
		v := *p.AvgRating
		p.AvgRating = &v
	}
	if p.Location != nil {
		l := *p.Location
		p.Location = &l
	}
	return p
}

func cloneBooking(b *models.Booking) *models.Booking {
	cp := *b
	if b.Rating != nil {
		v := *b.Rating
		cp.Rating = &v
	}
	return &cp
}
