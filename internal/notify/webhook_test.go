package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/provider-matching/internal/models"
)

func TestWebhookNotifierFallsBackToHTTP(t *testing.T) {
	got := make(chan models.BookingEvent, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e models.BookingEvent
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			t.Errorf("decode: %v", err)
		}
		got <- e
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, NewRegistry())
	evt := models.BookingEvent{BookingID: "b1", ProviderID: "p1", Status: models.BookingConfirmed}
	if err := n.BookingChanged(evt); err != nil {
		t.Fatalf("notify: %v", err)
	}
	e := <-got
	if e.BookingID != "b1" || e.Status != models.BookingConfirmed {
		t.Fatalf("unexpected event %+v", e)
	}
}

func TestWebhookNotifierNoTargets(t *testing.T) {
	n := NewWebhookNotifier("", NewRegistry())
	if err := n.BookingChanged(models.BookingEvent{ProviderID: "p1"}); err != ErrNoSession {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}
