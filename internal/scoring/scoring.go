package scoring

import (
	"math"

	"github.com/example/provider-matching/internal/geo"
	"github.com/example/provider-matching/internal/models"
)

// Component weights. Rating, experience, and price top out at 40/30/30 and
// the proximity bonus comes on top, so a perfect nearby provider scores 115.
const (
	ratingWeight  = 40.0
	unratedScore  = 20.0
	experienceCap = 30.0
	perYear       = 3.0
	priceWeight   = 30.0
)

// Context carries the request-level inputs shared by every candidate.
type Context struct {
	// CategoryAvgPrice is the mean rate across all offerings in the
	// requested category. Zero disables the price component.
	CategoryAvgPrice float64
	// CustomerLocation, when known, enables the proximity bonus.
	CustomerLocation *models.Coordinate
}

// Score rates how well one provider fits a request. priceRate is the
// provider's offered rate for the category, nil when unknown. Higher is
// better; the scale is open-ended.
func Score(p models.ProviderProfile, priceRate *float64, ctx Context) float64 {
	s := unratedScore
	if p.AvgRating != nil {
		s = *p.AvgRating / 5 * ratingWeight
	}

	s += math.Min(experienceCap, float64(p.ExperienceYears)*perYear)

	if priceRate != nil && ctx.CategoryAvgPrice > 0 {
		r := *priceRate / ctx.CategoryAvgPrice
		if r < 1 {
			s += priceWeight * (1 - r/2)
		} else {
			// r == 1 lands here and scores the full 30, twice what
			// the cheaper branch approaches from its side
			s += math.Max(0, priceWeight*(2-r))
		}
	}

	if ctx.CustomerLocation != nil && p.Location != nil {
		s += proximityBonus(geo.DistanceKm(*ctx.CustomerLocation, *p.Location))
	}
	return s
}

func proximityBonus(distKm float64) float64 {
	switch {
	case distKm < 5:
		return 15
	case distKm < 10:
		return 10
	case distKm < 20:
		return 5
	default:
		return 0
	}
}
