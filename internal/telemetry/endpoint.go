// endpoint.go: Prometheus compatible telemetry endpoint
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tphakala/voicebot-go/internal/conf"
	"github.com/tphakala/voicebot-go/internal/logging"
)

// Endpoint serves the /metrics endpoint for Prometheus scrapes.
type Endpoint struct {
	server        *http.Server
	ListenAddress string
	logger        *slog.Logger
}

// NewEndpoint creates a new telemetry endpoint from the settings.
func NewEndpoint(settings *conf.Settings) (*Endpoint, error) {
	if !settings.Realtime.Telemetry.Enabled {
		return nil, errors.New("telemetry not enabled")
	}

	logger := logging.ForService("telemetry")
	if logger == nil {
		logger = slog.Default()
	}

	return &Endpoint{
		ListenAddress: settings.Realtime.Telemetry.Listen,
		logger:        logger,
	}, nil
}

// Start the HTTP server for the telemetry endpoint and listen for the quit
// signal to shut down.
func (e *Endpoint) Start(metrics *Metrics, wg *sync.WaitGroup, quitChan <-chan struct{}) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	e.server = &http.Server{
		Addr:              e.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.logger.Info("telemetry endpoint starting", "listen", e.ListenAddress)
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("telemetry endpoint failed", "listen", e.ListenAddress, "error", err)
		}
	}()

	go func() {
		<-quitChan
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.server.Shutdown(ctx); err != nil {
			e.logger.Error("failed to shutdown telemetry server gracefully", "error", err)
		}
	}()
}
