package geo

import (
	"math"
	"sync"
	"time"

	"github.com/example/provider-matching/internal/models"
)

// Locations tracks the last known position and availability of providers.
type Locations interface {
	Upsert(s models.ProviderStatus)
	Location(providerID string) (models.Coordinate, bool)
	Status(providerID string) (models.ProviderStatus, bool)
}

type Index struct {
	mu        sync.RWMutex
	providers map[string]models.ProviderStatus
}

func NewIndex() *Index {
	return &Index{providers: make(map[string]models.ProviderStatus)}
}

func (g *Index) Upsert(s models.ProviderStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s.Updated = time.Now()
	g.providers[s.ProviderID] = s
}

func (g *Index) Location(providerID string) (models.Coordinate, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.providers[providerID]
	if !ok || s.Location == nil {
		return models.Coordinate{}, false
	}
	return *s.Location, true
}

func (g *Index) Status(providerID string) (models.ProviderStatus, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.providers[providerID]
	return s, ok
}

// DistanceKm is the haversine great-circle distance in kilometers.
func DistanceKm(a, b models.Coordinate) float64 {
	const R = 6371.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return R * c
}
