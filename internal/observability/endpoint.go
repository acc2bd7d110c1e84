package observability

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Endpoint serves the Prometheus-compatible /metrics endpoint.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
	logger        *slog.Logger
}

// NewEndpoint creates a metrics endpoint bound to listenAddress.
func NewEndpoint(listenAddress string, metrics *Metrics, logger *slog.Logger) *Endpoint {
	return &Endpoint{
		listenAddress: listenAddress,
		metrics:       metrics,
		logger:        logger,
	}
}

// Start begins serving metrics in a background goroutine.
func (e *Endpoint) Start() {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)

	e.server = &http.Server{
		Addr:              e.listenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		e.logger.Info("metrics endpoint listening", "address", e.listenAddress)
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.logger.Error("metrics endpoint failed", "error", err)
		}
	}()
}

// Stop shuts the endpoint down gracefully.
func (e *Endpoint) Stop(ctx context.Context) error {
	if e.server == nil {
		return nil
	}
	return e.server.Shutdown(ctx)
}

func processPID() int {
	return os.Getpid()
}
