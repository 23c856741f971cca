package storage

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/provider-matching/internal/models"
)

func testBooking(id string) *models.Booking {
	return &models.Booking{
		ID:         id,
		CustomerID: "c1",
		ProviderID: "p1",
		CategoryID: "plumbing",
		AddressID:  "a1",
		Date:       time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		TimeSlot:   "09:00-11:00",
		Status:     models.BookingPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
}

func TestUpdateBookingStatusCAS(t *testing.T) {
	m := NewMemoryStore()
	if err := m.CreateBooking(testBooking("b1")); err != nil {
		t.Fatal(err)
	}

	ok, err := m.UpdateBookingStatus("b1", models.BookingConfirmed, models.BookingCompleted)
	if err != nil || ok {
		t.Fatalf("expected no-op on mismatched state, ok=%v err=%v", ok, err)
	}

	ok, err = m.UpdateBookingStatus("b1", models.BookingPending, models.BookingCancelled)
	if err != nil || !ok {
		t.Fatalf("expected update, ok=%v err=%v", ok, err)
	}

	b, err := m.GetBooking("b1")
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != models.BookingCancelled {
		t.Fatalf("status %s", b.Status)
	}
}

func TestConfirmBookingSingleWinner(t *testing.T) {
	m := NewMemoryStore()
	if err := m.CreateBooking(testBooking("b1")); err != nil {
		t.Fatal(err)
	}

	const n = 8
	start := make(chan struct{})
	wins := make(chan bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			pay := &models.Payment{
				ID:            fmt.Sprintf("pay%d", i),
				BookingID:     "b1",
				Amount:        50,
				Method:        "credit_card",
				TransactionID: fmt.Sprintf("txn%d", i),
				Status:        models.PaymentSuccessful,
				CreatedAt:     time.Now(),
			}
			ok, err := m.ConfirmBooking("b1", pay)
			if err != nil {
				t.Errorf("confirm error: %v", err)
			}
			wins <- ok
		}(i)
	}
	close(start)
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("expected exactly one winner, got %d", won)
	}
	if _, err := m.GetPaymentByBooking("b1"); err != nil {
		t.Fatalf("expected payment recorded: %v", err)
	}
	b, _ := m.GetBooking("b1")
	if b.Status != models.BookingConfirmed {
		t.Fatalf("status %s", b.Status)
	}
}

func TestRecordRatingRecomputesAverage(t *testing.T) {
	m := NewMemoryStore()
	m.AddProvider(models.ProviderProfile{ID: "p1", Available: true, Verified: true})
	for _, id := range []string{"b1", "b2", "b3"} {
		b := testBooking(id)
		b.Status = models.BookingCompleted
		if err := m.CreateBooking(b); err != nil {
			t.Fatal(err)
		}
	}

	avg, applied, err := m.RecordRating("b1", 5, "great work")
	if err != nil || !applied {
		t.Fatalf("applied=%v err=%v", applied, err)
	}
	if avg != 5 {
		t.Fatalf("avg %f", avg)
	}
	if avg, _, _ = m.RecordRating("b2", 4, ""); avg != 4.5 {
		t.Fatalf("avg %f", avg)
	}
	if avg, _, _ = m.RecordRating("b3", 4, ""); avg != 4.33 {
		t.Fatalf("expected 4.33, got %f", avg)
	}

	p, err := m.GetProvider("p1")
	if err != nil {
		t.Fatal(err)
	}
	if p.AvgRating == nil || *p.AvgRating != 4.33 {
		t.Fatalf("provider average not updated: %v", p.AvgRating)
	}

	rated, err := m.ListCompletedRated("p1")
	if err != nil || len(rated) != 3 {
		t.Fatalf("expected 3 rated bookings, got %d err=%v", len(rated), err)
	}
}

func TestRecordRatingWriteOnce(t *testing.T) {
	m := NewMemoryStore()
	m.AddProvider(models.ProviderProfile{ID: "p1"})
	b := testBooking("b1")
	b.Status = models.BookingCompleted
	if err := m.CreateBooking(b); err != nil {
		t.Fatal(err)
	}
	if _, applied, err := m.RecordRating("b1", 5, ""); err != nil || !applied {
		t.Fatalf("applied=%v err=%v", applied, err)
	}

	_, applied, err := m.RecordRating("b1", 1, "changed my mind")
	if err != nil {
		t.Fatal(err)
	}
	if applied {
		t.Fatal("expected second rating rejected")
	}
	got, _ := m.GetBooking("b1")
	if got.Rating == nil || *got.Rating != 5 {
		t.Fatalf("rating overwritten: %v", got.Rating)
	}
}

func TestRecordRatingRequiresCompleted(t *testing.T) {
	m := NewMemoryStore()
	if err := m.CreateBooking(testBooking("b1")); err != nil {
		t.Fatal(err)
	}
	if _, applied, err := m.RecordRating("b1", 4, ""); err != nil || applied {
		t.Fatalf("expected rejection on pending booking, applied=%v err=%v", applied, err)
	}
	if _, _, err := m.RecordRating("nope", 4, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreatePaymentIdempotent(t *testing.T) {
	m := NewMemoryStore()
	if err := m.CreatePayment(&models.Payment{ID: "pay1", BookingID: "b1", Amount: 10}); err != nil {
		t.Fatal(err)
	}
	err := m.CreatePayment(&models.Payment{ID: "pay2", BookingID: "b1", Amount: 10})
	if !errors.Is(err, ErrDuplicatePayment) {
		t.Fatalf("expected ErrDuplicatePayment, got %v", err)
	}
}

func TestCreateBookingSlotGuard(t *testing.T) {
	m := NewMemoryStore()
	if err := m.CreateBooking(testBooking("b1")); err != nil {
		t.Fatal(err)
	}

	if taken, err := m.HasBookingInSlot("p1", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), "09:00-11:00"); err != nil || !taken {
		t.Fatalf("expected slot taken, got %v err=%v", taken, err)
	}

	dup := testBooking("b2")
	if err := m.CreateBooking(dup); !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict, got %v", err)
	}

	// a cancelled booking frees the slot
	if ok, _ := m.UpdateBookingStatus("b1", models.BookingPending, models.BookingCancelled); !ok {
		t.Fatal("cancel failed")
	}
	if err := m.CreateBooking(dup); err != nil {
		t.Fatalf("slot should be free: %v", err)
	}
}

func TestGetEligibleProvidersFilters(t *testing.T) {
	m := NewMemoryStore()
	m.AddProvider(models.ProviderProfile{ID: "p1", Available: true, Verified: true})
	m.AddProvider(models.ProviderProfile{ID: "p2", Available: false, Verified: true})
	m.AddProvider(models.ProviderProfile{ID: "p3", Available: true, Verified: false})

	got, err := m.GetEligibleProviders([]string{"p1", "p2", "p3", "p4"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "p1" {
		t.Fatalf("unexpected providers %v", got)
	}
}
