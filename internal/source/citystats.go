// Package source provides the concrete city data sources.
// This file implements the city statistics source backed by the
// nominatim OSM geocoding API.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/dreamware/cityinfo/internal/fetch"
)

// KindCityStats is the fetcher kind produced by the city-stats source.
const KindCityStats fetch.Kind = "city_stats"

// DefaultCityStatsURL is the production nominatim endpoint.
// See https://nominatim.org/release-docs/latest/api/Search/ for the API.
const DefaultCityStatsURL = "https://nominatim.openstreetmap.org"

// CityStats fetches geographic details for a city from nominatim and
// formats them as a one-line fragment.
type CityStats struct {
	client  *Client
	baseURL string
}

// NewCityStats returns a city-stats source using client. baseURL
// overrides the nominatim endpoint; pass "" outside of tests.
func NewCityStats(client *Client, baseURL string) *CityStats {
	if baseURL == "" {
		baseURL = DefaultCityStatsURL
	}
	return &CityStats{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// Kind implements fetch.Source.
func (s *CityStats) Kind() fetch.Kind { return KindCityStats }

// Fetch implements fetch.Source. It searches nominatim for the city and
// formats the first match.
func (s *CityStats) Fetch(ctx context.Context, city string) (string, error) {
	// nominatim wants spaces replaced with '+'.
	url := fmt.Sprintf("%s/search?q=%s&format=json&limit=1",
		s.baseURL, strings.ReplaceAll(city, " ", "+"))

	var resp []cityStatsEntry
	if err := s.client.GetJSON(ctx, url, &resp); err != nil {
		return "", fmt.Errorf("query city stats: %w", err)
	}
	if len(resp) == 0 {
		return "", fmt.Errorf("no city found for %q", city)
	}
	return resp[0].String(), nil
}

// cityStatsEntry models one nominatim search result; only the display
// name is used.
type cityStatsEntry struct {
	DisplayName string `json:"display_name"`
}

func (e cityStatsEntry) String() string {
	return fmt.Sprintf("Stats for %s:", e.DisplayName)
}
