package scoring

import (
	"math"
	"testing"

	"github.com/example/provider-matching/internal/models"
)

func fptr(v float64) *float64 { return &v }

func TestScorePerfectNearbyProvider(t *testing.T) {
	loc := models.Coordinate{Lat: 0, Lon: 0}
	p := models.ProviderProfile{ID: "p1", ExperienceYears: 12, AvgRating: fptr(5), Location: &loc}
	ctx := Context{CategoryAvgPrice: 100, CustomerLocation: &models.Coordinate{Lat: 0, Lon: 0.01}}
	got := Score(p, fptr(0), ctx)
	if math.Abs(got-115) > 1e-9 {
		t.Fatalf("expected 115, got %f", got)
	}
}

func TestScoreUnratedDefault(t *testing.T) {
	got := Score(models.ProviderProfile{ID: "p1"}, nil, Context{})
	if got != 20 {
		t.Fatalf("expected default rating component 20, got %f", got)
	}
}

func TestScorePriceAtAverageFullComponent(t *testing.T) {
	// a rate exactly at the category average takes the r >= 1 branch
	p := models.ProviderProfile{ID: "p1"}
	base := Score(p, nil, Context{CategoryAvgPrice: 80})
	got := Score(p, fptr(80), Context{CategoryAvgPrice: 80})
	if diff := got - base; math.Abs(diff-30) > 1e-9 {
		t.Fatalf("expected price component 30 at the average, got %f", diff)
	}
}

func TestScorePriceCurve(t *testing.T) {
	p := models.ProviderProfile{ID: "p1"}
	ctx := Context{CategoryAvgPrice: 100}
	base := Score(p, nil, ctx)
	cases := []struct {
		price float64
		want  float64
	}{
		{0, 30},
		{50, 22.5},
		{99, 15.15},
		{100, 30},
		{150, 15},
		{200, 0},
		{300, 0},
	}
	for _, c := range cases {
		if got := Score(p, fptr(c.price), ctx) - base; math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("price %f: expected component %f, got %f", c.price, c.want, got)
		}
	}
}

func TestScoreExperienceCapped(t *testing.T) {
	ten := Score(models.ProviderProfile{ExperienceYears: 10}, nil, Context{})
	twenty := Score(models.ProviderProfile{ExperienceYears: 20}, nil, Context{})
	if ten != twenty {
		t.Fatalf("expected cap at 10 years: %f vs %f", ten, twenty)
	}
	three := Score(models.ProviderProfile{ExperienceYears: 3}, nil, Context{})
	if d := ten - three; math.Abs(d-21) > 1e-9 {
		t.Fatalf("expected 21 more points for 7 extra years, got %f", d)
	}
}

func TestProximityBonusSteps(t *testing.T) {
	cases := []struct {
		dist float64
		want float64
	}{
		{0, 15},
		{4.99, 15},
		{5, 10},
		{9.99, 10},
		{10, 5},
		{19.99, 5},
		{20, 0},
		{100, 0},
	}
	for _, c := range cases {
		if got := proximityBonus(c.dist); got != c.want {
			t.Fatalf("dist %f: expected %f, got %f", c.dist, c.want, got)
		}
	}
}

func TestScoreNoLocationNoBonus(t *testing.T) {
	p := models.ProviderProfile{ID: "p1"}
	got := Score(p, nil, Context{CustomerLocation: &models.Coordinate{Lat: 1, Lon: 1}})
	if got != 20 {
		t.Fatalf("expected no bonus without provider location, got %f", got)
	}
}
