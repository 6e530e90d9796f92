// Package source provides the concrete city data sources.
// This file implements the weather source backed by wttr.in.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/dreamware/cityinfo/internal/fetch"
)

// KindWeather is the fetcher kind produced by the weather source.
const KindWeather fetch.Kind = "weather"

// DefaultWeatherURL is the production wttr.in endpoint.
// See https://github.com/chubin/wttr.in for the API.
const DefaultWeatherURL = "http://wttr.in"

// Weather fetches current conditions for a city from wttr.in and
// formats them as a one-line fragment.
type Weather struct {
	client  *Client
	baseURL string
}

// NewWeather returns a weather source using client. baseURL overrides
// the wttr.in endpoint; pass "" outside of tests.
func NewWeather(client *Client, baseURL string) *Weather {
	if baseURL == "" {
		baseURL = DefaultWeatherURL
	}
	return &Weather{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// Kind implements fetch.Source.
func (w *Weather) Kind() fetch.Kind { return KindWeather }

// Fetch implements fetch.Source. It queries wttr.in's JSON format and
// formats the first current-condition entry.
func (w *Weather) Fetch(ctx context.Context, city string) (string, error) {
	// wttr.in wants spaces dropped from the city name.
	url := fmt.Sprintf("%s/%s?format=j1", w.baseURL, strings.ReplaceAll(city, " ", ""))

	var resp weatherResponse
	if err := w.client.GetJSON(ctx, url, &resp); err != nil {
		return "", fmt.Errorf("query weather: %w", err)
	}
	if len(resp.CurrentCondition) == 0 {
		return "", fmt.Errorf("no weather data for city %q", city)
	}
	return resp.CurrentCondition[0].String(), nil
}

// weatherResponse models the slice of the wttr.in JSON response we care
// about; the API returns far more, and the decoder ignores the rest.
type weatherResponse struct {
	CurrentCondition []weatherEntry `json:"current_condition"`
}

type weatherEntry struct {
	ObservationTime string        `json:"observation_time"`
	TempC           string        `json:"temp_C"`
	FeelsLikeC      string        `json:"FeelsLikeC"`
	WindDir16Point  string        `json:"winddir16Point"`
	WindSpeedKmph   string        `json:"windspeedKmph"`
	WeatherDesc     []weatherDesc `json:"weatherDesc"`
}

type weatherDesc struct {
	Value string `json:"value"`
}

// String formats the entry as the fragment returned to callers.
func (e weatherEntry) String() string {
	desc := "none"
	if len(e.WeatherDesc) > 0 {
		desc = e.WeatherDesc[0].Value
	}
	return fmt.Sprintf("Weather at %s: %sC (feels like %sC) and %s with winds from %s at %skph",
		e.ObservationTime, e.TempC, e.FeelsLikeC, desc, e.WindDir16Point, e.WindSpeedKmph)
}
