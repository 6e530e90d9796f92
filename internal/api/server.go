// Package api exposes the city-info service over HTTP. It owns the
// mapping from dispatcher results to status codes and the JSON shape of
// responses; the aggregation logic itself lives in internal/dispatch.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/dreamware/cityinfo/internal/dispatch"
	"github.com/dreamware/cityinfo/internal/monitor"
)

// Server wires the HTTP routes to the dispatcher handle and monitor.
type Server struct {
	dispatcher dispatch.Handle
	monitor    *monitor.Monitor
	timeout    time.Duration
}

// New returns a Server. timeout bounds each HTTP request end to end; it
// should exceed the dispatcher's own collection timeout so that the
// dispatcher, not the HTTP layer, normally decides when to give up.
func New(dispatcher dispatch.Handle, mon *monitor.Monitor, timeout time.Duration) *Server {
	return &Server{dispatcher: dispatcher, monitor: mon, timeout: timeout}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/city/:name", s.handleCityInfo)
	r.GET("/health", s.handleHealth)
	r.GET("/status", s.handleStatus)
	return r
}

// handleCityInfo serves GET /city/:name.
//
// Status codes: 200 for a full or partial composite, 400 for a blank
// city name, 404 when no source produced data, 408 when the request
// timed out before the dispatcher replied, 503 when the dispatcher has
// shut down, 500 otherwise.
func (s *Server) handleCityInfo(c *gin.Context) {
	city := c.Param("name")

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()

	info, err := s.dispatcher.CityInfo(ctx, city)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, info)
	case errors.Is(err, dispatch.ErrEmptyCity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, dispatch.ErrNoData):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "city": city})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "request timed out"})
	case errors.Is(err, dispatch.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service shutting down"})
	default:
		log.WithField("city", city).Errorf("city info request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// handleHealth serves GET /health. The process is considered up as long
// as it can answer; degraded fetchers are reported but do not fail the
// check, since partial results are still served.
func (s *Server) handleHealth(c *gin.Context) {
	status := "ok"
	if s.monitor.Degraded() {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"fetchers": s.monitor.FetcherStates(),
	})
}

// handleStatus serves GET /status with latency and system statistics.
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.monitor.Snapshot())
}
