package geo

import (
	"context"
	"strconv"
	"time"

	"github.com/example/provider-matching/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisLocations implements Locations on Redis GEO commands so several
// API replicas can share one live provider index.
type RedisLocations struct {
	client *redis.Client
	key    string
	ctx    context.Context
}

func NewRedisLocations(addr, password, key string) *RedisLocations {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisLocations{client: c, key: key, ctx: context.Background()}
}

func (r *RedisLocations) Upsert(s models.ProviderStatus) {
	// position goes to the GEO set, flags to a meta hash
	if s.Location != nil {
		_, _ = r.client.GeoAdd(r.ctx, r.key, &redis.GeoLocation{Longitude: s.Location.Lon, Latitude: s.Location.Lat, Name: s.ProviderID}).Result()
	}
	_ = r.client.HSet(r.ctx, metaKey(s.ProviderID), map[string]interface{}{
		"available": strconv.FormatBool(s.Available),
		"updated":   time.Now().Format(time.RFC3339),
	}).Err()
}

func (r *RedisLocations) Location(providerID string) (models.Coordinate, bool) {
	pos, err := r.client.GeoPos(r.ctx, r.key, providerID).Result()
	if err != nil || len(pos) == 0 || pos[0] == nil {
		return models.Coordinate{}, false
	}
	return models.Coordinate{Lat: pos[0].Latitude, Lon: pos[0].Longitude}, true
}

func (r *RedisLocations) Status(providerID string) (models.ProviderStatus, bool) {
	m, err := r.client.HGetAll(r.ctx, metaKey(providerID)).Result()
	if err != nil || len(m) == 0 {
		return models.ProviderStatus{}, false
	}
	s := models.ProviderStatus{ProviderID: providerID}
	if v, ok := m["available"]; ok {
		s.Available = v == "true"
	}
	if v, ok := m["updated"]; ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			s.Updated = ts
		}
	}
	if loc, ok := r.Location(providerID); ok {
		s.Location = &loc
	}
	return s, true
}

func metaKey(id string) string { return "provider:meta:" + id }
