// Package observability provides the Prometheus endpoint for the audiobatch application.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/audiobatch/audiobatch-go/internal/conf"
	metricspkg "github.com/audiobatch/audiobatch-go/internal/observability/metrics"
)

// Endpoint serves the Prometheus-compatible metrics over HTTP.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
}

// NewEndpoint creates a new metrics Endpoint from the provided settings and
// metrics instance. It returns an error if metrics are not enabled.
func NewEndpoint(settings *conf.Settings, metrics *Metrics) (*Endpoint, error) {
	if !settings.Metrics.Enabled {
		return nil, fmt.Errorf("metrics not enabled in settings")
	}

	return &Endpoint{
		listenAddress: settings.Metrics.Listen,
		metrics:       metrics,
	}, nil
}

// Start runs the HTTP server for the metrics endpoint in a goroutine tracked
// by wg and shuts it down gracefully when quitChan closes.
func (e *Endpoint) Start(wg *sync.WaitGroup, quitChan <-chan struct{}) {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)

	e.server = &http.Server{
		Addr:    e.listenAddress,
		Handler: mux,
	}

	wg.Go(func() {
		slog.Info("Metrics endpoint starting", "address", e.listenAddress)
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics HTTP server error", "error", err)
		}
	})

	go e.gracefulShutdown(quitChan)
}

// gracefulShutdown waits for the quit signal and shuts down the server gracefully.
func (e *Endpoint) gracefulShutdown(quitChan <-chan struct{}) {
	<-quitChan
	slog.Info("Stopping metrics server")
	ctx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		slog.Error("Metrics server shutdown error", "error", err)
	}
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}

// StartIfEnabled starts a metrics endpoint when one is enabled in settings.
// It returns the metrics instance and a stop function that shuts the
// endpoint down and waits for it; when metrics are disabled it returns nil
// metrics and a no-op stop.
func StartIfEnabled(settings *conf.Settings) (*Metrics, func(), error) {
	if !settings.Metrics.Enabled {
		return nil, func() {}, nil
	}

	m, err := NewMetrics()
	if err != nil {
		return nil, nil, err
	}

	endpoint, err := NewEndpoint(settings, m)
	if err != nil {
		return nil, nil, err
	}

	var wg sync.WaitGroup
	quit := make(chan struct{})
	endpoint.Start(&wg, quit)

	stop := func() {
		close(quit)
		wg.Wait()
	}
	return m, stop, nil
}
