// Command cityinfo runs the city-info aggregation service: an HTTP API
// backed by a dispatcher that fans each lookup out to a set of data
// fetcher workers and merges their replies.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dreamware/cityinfo/internal/api"
	"github.com/dreamware/cityinfo/internal/config"
	"github.com/dreamware/cityinfo/internal/dispatch"
	"github.com/dreamware/cityinfo/internal/fetch"
	"github.com/dreamware/cityinfo/internal/monitor"
	"github.com/dreamware/cityinfo/internal/source"
)

// degradedAfter is how many consecutive failures mark a fetcher
// degraded on /health.
const degradedAfter = 3

func main() {
	cfg, err := config.Load(getenv("CITYINFO_CONFIG", ""))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	setupLogging(cfg.LogLevel)
	log.Info("cityinfo starting up")

	// Root context: canceling it shuts down the workers and dispatcher.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handles := spawnFetchers(ctx, cfg)
	kinds := make([]fetch.Kind, 0, len(handles))
	for _, h := range handles {
		kinds = append(kinds, h.Kind())
	}
	mon := monitor.New(kinds, degradedAfter)

	dispatcher, err := dispatch.Spawn(ctx, handles, dispatch.Options{
		Timeout:   cfg.RequestTimeout.Std(),
		QueueSize: cfg.QueueSize,
		Observer:  mon,
	})
	if err != nil {
		log.Fatalf("dispatcher: %v", err)
	}

	srv := api.New(dispatcher, mon, cfg.RequestTimeout.Std()+time.Second)
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infof("cityinfo listening on %s", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	cancel()
	log.Info("cityinfo stopped")
}

// spawnFetchers starts a worker for every enabled source and returns
// their handles. The worker set is fixed for the process lifetime.
func spawnFetchers(ctx context.Context, cfg config.Config) []fetch.Handle {
	client := source.NewClient(cfg.UserAgent)
	timeout := cfg.FetchTimeout.Std()

	var handles []fetch.Handle
	if cfg.Sources.Weather.Enabled {
		src := source.NewWeather(client, cfg.Sources.Weather.BaseURL)
		handles = append(handles, fetch.Spawn(ctx, src, cfg.FetcherQueueSize, timeout))
	}
	if cfg.Sources.CityStats.Enabled {
		src := source.NewCityStats(client, cfg.Sources.CityStats.BaseURL)
		handles = append(handles, fetch.Spawn(ctx, src, cfg.FetcherQueueSize, timeout))
	}
	return handles
}

// setupLogging configures logrus with the configured level.
func setupLogging(level string) {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
