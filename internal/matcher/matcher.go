package matcher

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/example/provider-matching/internal/models"
	"github.com/example/provider-matching/internal/observability"
	"github.com/example/provider-matching/internal/scoring"
)

// DefaultLimit caps results when neither the request nor the service asks
// for a count.
const DefaultLimit = 5

var ErrInvalidRequest = errors.New("invalid match request")

// Catalog is the slice of the store the matcher needs.
type Catalog interface {
	GetOfferingsByCategory(categoryID string) ([]models.Offering, error)
	GetEligibleProviders(ids []string) ([]models.ProviderProfile, error)
}

// Locations resolves a provider's live position, usually fed by the
// status ingest pipeline.
type Locations interface {
	Location(providerID string) (models.Coordinate, bool)
}

type Service struct {
	Catalog Catalog
	Locs    Locations // optional; profile locations are used as fallback
	Limit   int
}

type Request struct {
	CategoryID       string
	CustomerLocation *models.Coordinate
	Limit            int
}

// Match is one ranked result.
type Match struct {
	Provider  models.ProviderProfile `json:"provider"`
	Score     float64                `json:"score"`
	PriceRate *float64               `json:"price_rate,omitempty"`
}

// FindMatches ranks eligible providers for a category. An empty result is
// a normal outcome, not an error.
func (s *Service) FindMatches(req Request) ([]Match, error) {
	if req.CategoryID == "" {
		return nil, fmt.Errorf("%w: category required", ErrInvalidRequest)
	}
	if req.CustomerLocation != nil {
		if err := req.CustomerLocation.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	observability.MatchRequestsTotal.Inc()
	start := time.Now()
	defer func() { observability.MatchLatency.Observe(time.Since(start).Seconds()) }()

	offers, err := s.Catalog.GetOfferingsByCategory(req.CategoryID)
	if err != nil {
		return nil, err
	}
	if len(offers) == 0 {
		return []Match{}, nil
	}

	// the category average spans every offering in the category, from
	// eligible and ineligible providers alike
	var sum float64
	prices := make(map[string]float64, len(offers))
	ids := make([]string, 0, len(offers))
	for _, o := range offers {
		sum += o.PriceRate
		if _, seen := prices[o.ProviderID]; !seen {
			ids = append(ids, o.ProviderID)
		}
		prices[o.ProviderID] = o.PriceRate
	}
	avgPrice := sum / float64(len(offers))

	cands, err := s.Catalog.GetEligibleProviders(ids)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return []Match{}, nil
	}

	sctx := scoring.Context{CategoryAvgPrice: avgPrice, CustomerLocation: req.CustomerLocation}
	out := make([]Match, 0, len(cands))
	for _, p := range cands {
		// the live index wins over whatever the profile carries
		if s.Locs != nil {
			if loc, ok := s.Locs.Location(p.ID); ok {
				l := loc
				p.Location = &l
			}
		}
		var rate *float64
		if v, ok := prices[p.ID]; ok {
			rv := v
			rate = &rv
		}
		out = append(out, Match{Provider: p, Score: scoring.Score(p, rate, sctx), PriceRate: rate})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].Provider.ID < out[j].Provider.ID
		}
		return out[i].Score > out[j].Score
	})

	limit := req.Limit
	if limit <= 0 {
		limit = s.Limit
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
