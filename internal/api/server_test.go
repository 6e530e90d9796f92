// Package api exposes the city-info service over HTTP.
// This file contains tests for routing and status-code mapping, run
// against a real dispatcher wired to stub sources.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/cityinfo/internal/dispatch"
	"github.com/dreamware/cityinfo/internal/fetch"
	"github.com/dreamware/cityinfo/internal/monitor"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubSource is a minimal fetch.Source for API tests.
type stubSource struct {
	kind  fetch.Kind
	err   error
	delay time.Duration
}

func (s stubSource) Kind() fetch.Kind { return s.kind }

func (s stubSource) Fetch(ctx context.Context, city string) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.err != nil {
		return "", s.err
	}
	return string(s.kind) + " for " + city, nil
}

// newTestServer wires stub sources through a real dispatcher and
// monitor into a Server, returning the router and the monitor.
func newTestServer(t *testing.T, apiTimeout time.Duration, sources ...fetch.Source) (*gin.Engine, *monitor.Monitor) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	handles := make([]fetch.Handle, 0, len(sources))
	kinds := make([]fetch.Kind, 0, len(sources))
	for _, src := range sources {
		handles = append(handles, fetch.Spawn(ctx, src, 8, 5*time.Second))
		kinds = append(kinds, src.Kind())
	}
	mon := monitor.New(kinds, 3)

	h, err := dispatch.Spawn(ctx, handles, dispatch.Options{
		Timeout:   time.Second,
		QueueSize: 8,
		Observer:  mon,
	})
	require.NoError(t, err)

	return New(h, mon, apiTimeout).Router(), mon
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

// TestCityInfoOK verifies the happy path returns the full composite.
func TestCityInfoOK(t *testing.T) {
	router, _ := newTestServer(t, 5*time.Second,
		stubSource{kind: "weather"},
		stubSource{kind: "city_stats"},
	)

	w := get(router, "/city/Chicago")
	require.Equal(t, http.StatusOK, w.Code)

	var info dispatch.CityInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "Chicago", info.City)
	assert.Equal(t, "weather for Chicago", info.Fragments["weather"])
	assert.Equal(t, "city_stats for Chicago", info.Fragments["city_stats"])
	assert.Empty(t, info.Missing)
}

// TestCityInfoPartial verifies a partial composite is still a 200 and
// carries the missing kinds.
func TestCityInfoPartial(t *testing.T) {
	router, _ := newTestServer(t, 5*time.Second,
		stubSource{kind: "weather"},
		stubSource{kind: "city_stats", err: errors.New("source down")},
	)

	w := get(router, "/city/Chicago")
	require.Equal(t, http.StatusOK, w.Code)

	var info dispatch.CityInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Len(t, info.Fragments, 1)
	assert.Equal(t, []string{"city_stats"}, info.Missing)
}

// TestCityInfoNotFound verifies that total fetch failure maps to 404.
func TestCityInfoNotFound(t *testing.T) {
	router, _ := newTestServer(t, 5*time.Second,
		stubSource{kind: "weather", err: errors.New("source down")},
	)

	w := get(router, "/city/Nowhereville")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no data source")
}

// TestCityInfoTimeout verifies that the HTTP-layer timeout maps to 408.
func TestCityInfoTimeout(t *testing.T) {
	// The API gives up after 50ms while the dispatcher would happily
	// wait a full second for the slow source.
	router, _ := newTestServer(t, 50*time.Millisecond,
		stubSource{kind: "weather", delay: 500 * time.Millisecond},
	)

	w := get(router, "/city/Chicago")
	assert.Equal(t, http.StatusRequestTimeout, w.Code)
	assert.Contains(t, w.Body.String(), "timed out")
}

// TestHealth verifies the health payload reflects fetcher state.
func TestHealth(t *testing.T) {
	router, mon := newTestServer(t, 5*time.Second, stubSource{kind: "weather"})

	w := get(router, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	// Degrade the fetcher and check the status flips.
	for i := 0; i < 3; i++ {
		mon.ReportOutcome(fetch.Outcome{Kind: "weather", Err: errors.New("down")})
	}
	w = get(router, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}

// TestStatus verifies the status endpoint returns a populated snapshot.
func TestStatus(t *testing.T) {
	router, _ := newTestServer(t, 5*time.Second, stubSource{kind: "weather"})

	// Generate a little traffic so latency stats are non-empty.
	get(router, "/city/Chicago")
	get(router, "/city/Boston")

	w := get(router, "/status")
	require.Equal(t, http.StatusOK, w.Code)

	var snap monitor.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, uint64(2), snap.Latency.Requests)
	assert.Len(t, snap.Fetchers, 1)
	assert.Greater(t, snap.System.NumGoroutine, 0)
}
