package geocode

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/provider-matching/internal/models"
)

func TestNominatimClientParsesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "" {
			t.Error("missing q parameter")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"lat":"52.52","lon":"13.405"}]`))
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.URL)
	got, err := c.Geocode("Alexanderplatz, Berlin")
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	if got == nil || got.Lat != 52.52 || got.Lon != 13.405 {
		t.Fatalf("unexpected coordinate %+v", got)
	}
}

func TestNominatimClientNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.URL)
	got, err := c.Geocode("nowhere in particular")
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil coordinate for unresolved address, got %+v", got)
	}
}

func TestCachedClientRemembersResults(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`[{"lat":"1.5","lon":"2.5"}]`))
	}))
	defer srv.Close()

	c := NewCachedClient(NewNominatimClient(srv.URL), time.Minute)
	for i := 0; i < 3; i++ {
		got, err := c.Geocode("Some  Street 5")
		if err != nil || got == nil || got.Lat != 1.5 {
			t.Fatalf("lookup %d: got %+v err %v", i, got, err)
		}
	}
	// normalization folds case and spacing into the same key
	if _, err := c.Geocode("some street 5"); err != nil {
		t.Fatalf("normalized lookup: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected a single upstream call, got %d", n)
	}
}

func TestCacheExpiry(t *testing.T) {
	cache := NewCache(10 * time.Millisecond)
	cache.Set("main street 1", &models.Coordinate{Lat: 1, Lon: 2})
	if got, ok := cache.Get("main street 1"); !ok || got == nil {
		t.Fatal("expected a fresh entry")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := cache.Get("main street 1"); ok {
		t.Fatal("expected the entry to expire")
	}
}

func TestCacheRemembersMisses(t *testing.T) {
	cache := NewCache(time.Minute)
	cache.Set("unknown place", nil)
	got, ok := cache.Get("unknown place")
	if !ok {
		t.Fatal("expected a cached miss to be present")
	}
	if got != nil {
		t.Fatalf("expected nil coordinate, got %+v", got)
	}
}
