package matcher

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/example/provider-matching/internal/models"
)

type fakeCatalog struct {
	offers []models.Offering
	provs  []models.ProviderProfile
}

func (f *fakeCatalog) GetOfferingsByCategory(categoryID string) ([]models.Offering, error) {
	out := []models.Offering{}
	for _, o := range f.offers {
		if o.CategoryID == categoryID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetEligibleProviders(ids []string) ([]models.ProviderProfile, error) {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := []models.ProviderProfile{}
	for _, p := range f.provs {
		if want[p.ID] && p.Available && p.Verified {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeLocs map[string]models.Coordinate

func (f fakeLocs) Location(id string) (models.Coordinate, bool) {
	c, ok := f[id]
	return c, ok
}

func eligible(id string, years int) models.ProviderProfile {
	return models.ProviderProfile{ID: id, ExperienceYears: years, Available: true, Verified: true}
}

func TestFindMatchesRanksByScore(t *testing.T) {
	cat := &fakeCatalog{
		offers: []models.Offering{
			{ProviderID: "a", CategoryID: "plumbing", PriceRate: 100},
			{ProviderID: "b", CategoryID: "plumbing", PriceRate: 100},
		},
		provs: []models.ProviderProfile{eligible("a", 0), eligible("b", 5)},
	}
	s := &Service{Catalog: cat}
	got, err := s.FindMatches(Request{CategoryID: "plumbing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Provider.ID != "b" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].Score <= got[1].Score {
		t.Fatalf("scores not descending: %f vs %f", got[0].Score, got[1].Score)
	}
}

func TestFindMatchesTieBreaksByID(t *testing.T) {
	cat := &fakeCatalog{
		offers: []models.Offering{
			{ProviderID: "c", CategoryID: "cleaning", PriceRate: 60},
			{ProviderID: "a", CategoryID: "cleaning", PriceRate: 60},
			{ProviderID: "b", CategoryID: "cleaning", PriceRate: 60},
		},
		provs: []models.ProviderProfile{eligible("c", 2), eligible("a", 2), eligible("b", 2)},
	}
	s := &Service{Catalog: cat}
	for i := 0; i < 5; i++ {
		got, err := s.FindMatches(Request{CategoryID: "cleaning"})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 3 || got[0].Provider.ID != "a" || got[1].Provider.ID != "b" || got[2].Provider.ID != "c" {
			t.Fatalf("run %d: unexpected tie order %+v", i, got)
		}
	}
}

func TestFindMatchesLimit(t *testing.T) {
	cat := &fakeCatalog{}
	for i := 0; i < 7; i++ {
		id := fmt.Sprintf("p%d", i)
		cat.offers = append(cat.offers, models.Offering{ProviderID: id, CategoryID: "hvac", PriceRate: 90})
		cat.provs = append(cat.provs, eligible(id, 1))
	}
	s := &Service{Catalog: cat}

	got, err := s.FindMatches(Request{CategoryID: "hvac"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != DefaultLimit {
		t.Fatalf("expected default limit %d, got %d", DefaultLimit, len(got))
	}

	got, err = s.FindMatches(Request{CategoryID: "hvac", Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2, got %d", len(got))
	}
}

func TestFindMatchesEmptyOutcomes(t *testing.T) {
	s := &Service{Catalog: &fakeCatalog{}}
	got, err := s.FindMatches(Request{CategoryID: "painting"})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty slice, got %v", got)
	}

	// offerings exist but no provider passes the eligibility filter
	s = &Service{Catalog: &fakeCatalog{
		offers: []models.Offering{{ProviderID: "a", CategoryID: "painting", PriceRate: 40}},
		provs:  []models.ProviderProfile{{ID: "a", Available: false, Verified: true}},
	}}
	got, err = s.FindMatches(Request{CategoryID: "painting"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %v", got)
	}
}

func TestFindMatchesAverageSpansIneligibleProviders(t *testing.T) {
	// b never makes the result but its 150 still lifts the average to 100,
	// so a's 50 scores as half the category average
	cat := &fakeCatalog{
		offers: []models.Offering{
			{ProviderID: "a", CategoryID: "carpentry", PriceRate: 50},
			{ProviderID: "b", CategoryID: "carpentry", PriceRate: 150},
		},
		provs: []models.ProviderProfile{eligible("a", 0), {ID: "b", Available: false, Verified: false}},
	}
	s := &Service{Catalog: cat}
	got, err := s.FindMatches(Request{CategoryID: "carpentry"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected single match, got %d", len(got))
	}
	// 20 rating default + 22.5 price component
	if math.Abs(got[0].Score-42.5) > 1e-9 {
		t.Fatalf("expected 42.5, got %f", got[0].Score)
	}
}

func TestFindMatchesUsesLiveLocation(t *testing.T) {
	cat := &fakeCatalog{
		offers: []models.Offering{{ProviderID: "a", CategoryID: "electrical", PriceRate: 100}},
		provs:  []models.ProviderProfile{eligible("a", 0)},
	}
	locs := fakeLocs{"a": {Lat: 0, Lon: 0}}
	cust := &models.Coordinate{Lat: 0, Lon: 0.01}

	s := &Service{Catalog: cat, Locs: locs}
	got, err := s.FindMatches(Request{CategoryID: "electrical", CustomerLocation: cust})
	if err != nil {
		t.Fatal(err)
	}
	// 20 rating + 30 price (rate at average) + 15 proximity
	if math.Abs(got[0].Score-65) > 1e-9 {
		t.Fatalf("expected 65, got %f", got[0].Score)
	}
	if got[0].Provider.Location == nil {
		t.Fatal("expected resolved location on the match")
	}
}

func TestFindMatchesInvalidRequest(t *testing.T) {
	s := &Service{Catalog: &fakeCatalog{}}
	if _, err := s.FindMatches(Request{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	bad := &models.Coordinate{Lat: 91, Lon: 0}
	if _, err := s.FindMatches(Request{CategoryID: "x", CustomerLocation: bad}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for out-of-range latitude, got %v", err)
	}
}
