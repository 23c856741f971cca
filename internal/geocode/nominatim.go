package geocode

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/provider-matching/internal/models"
)

// NominatimClient queries a Nominatim-compatible search endpoint.
type NominatimClient struct {
	Endpoint string
	Client   *http.Client
}

func NewNominatimClient(endpoint string) *NominatimClient {
	return &NominatimClient{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Client:   &http.Client{Timeout: 2 * time.Second},
	}
}

// Geocode resolves an address through /search?format=json&limit=1. Nominatim
// carries lat and lon as strings in its JSON payload.
func (n *NominatimClient) Geocode(address string) (*models.Coordinate, error) {
	u := fmt.Sprintf("%s/search?format=json&limit=1&q=%s", n.Endpoint, url.QueryEscape(address))
	resp, err := n.Client.Get(u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode request failed with status %d", resp.StatusCode)
	}
	var out []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	lat, err := strconv.ParseFloat(out[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode returned bad lat %q: %w", out[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(out[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode returned bad lon %q: %w", out[0].Lon, err)
	}
	c := models.Coordinate{Lat: lat, Lon: lon}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
