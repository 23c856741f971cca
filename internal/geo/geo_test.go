package geo

import (
	"math"
	"testing"

	"github.com/example/provider-matching/internal/models"
)

func TestDistanceKmZero(t *testing.T) {
	d := DistanceKm(models.Coordinate{}, models.Coordinate{})
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestDistanceKmOneDegreeLon(t *testing.T) {
	a := models.Coordinate{Lat: 0, Lon: 0}
	b := models.Coordinate{Lat: 0, Lon: 1}
	d := DistanceKm(a, b)
	if math.Abs(d-111.19) > 0.5 {
		t.Fatalf("expected ~111.19 km, got %f", d)
	}
}

func TestDistanceKmSymmetric(t *testing.T) {
	a := models.Coordinate{Lat: 40.7, Lon: -74.0}
	b := models.Coordinate{Lat: 34.05, Lon: -118.24}
	if d1, d2 := DistanceKm(a, b), DistanceKm(b, a); math.Abs(d1-d2) > 1e-9 {
		t.Fatalf("asymmetric: %f vs %f", d1, d2)
	}
}

func TestIndexUpsertAndLookup(t *testing.T) {
	idx := NewIndex()
	loc := models.Coordinate{Lat: 1, Lon: 2}
	idx.Upsert(models.ProviderStatus{ProviderID: "p1", Location: &loc, Available: true})

	got, ok := idx.Location("p1")
	if !ok || got != loc {
		t.Fatalf("expected %v, got %v ok=%v", loc, got, ok)
	}
	st, ok := idx.Status("p1")
	if !ok || !st.Available || st.Updated.IsZero() {
		t.Fatalf("unexpected status %+v ok=%v", st, ok)
	}
	if _, ok := idx.Location("missing"); ok {
		t.Fatal("expected miss for unknown provider")
	}
}
