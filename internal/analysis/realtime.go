// Package analysis wires the pipeline components into runnable services:
// the realtime analysis loop and the synthetic stream feeder.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scaqms/aqms-go/internal/alerting"
	"github.com/scaqms/aqms-go/internal/classifier"
	"github.com/scaqms/aqms-go/internal/conf"
	"github.com/scaqms/aqms-go/internal/datastore"
	"github.com/scaqms/aqms-go/internal/detector"
	"github.com/scaqms/aqms-go/internal/observability"
	"github.com/scaqms/aqms-go/internal/scheduler"
)

// shutdownGrace bounds how long the metrics endpoint gets to drain on exit.
const shutdownGrace = 5 * time.Second

// RealtimeAnalysis starts the detector and classifier cycles against the
// configured store and blocks until a termination signal or a fatal error.
func RealtimeAnalysis(settings *conf.Settings) error {
	logger, closeLogger := serviceLogger(settings, "realtime")
	defer func() { _ = closeLogger() }()
	logger.Info("starting realtime analysis",
		"node", settings.Main.Name,
		"detector_interval", settings.Detector.Interval,
		"classifier_interval", settings.Classifier.Interval)

	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer closeDataStore(store, logger)

	m, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("error initializing metrics: %w", err)
	}

	var endpoint *observability.Endpoint
	if settings.Metrics.Enabled {
		endpoint = observability.NewEndpoint(settings.Metrics.Listen, m, logger)
		endpoint.Start()
	}

	recorder := observability.NewRecorder(store, settings.Metrics.RecordInterval, logger)

	alerts := alerting.NewManager(store, settings.Alerting.Cooldown, logger)
	det := detector.New(store, alerts, settings.Detector, m.Detector, recorder, logger)
	clf, err := classifier.New(store, settings.Classifier, m.Classifier, recorder, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize classifier: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scheduler.NewTask("detector", settings.Detector.Interval,
			settings.Detector.CycleTimeout, det.Cycle, logger).Run(gctx)
		return nil
	})
	g.Go(func() error {
		scheduler.NewTask("classifier", settings.Classifier.Interval,
			settings.Classifier.CycleTimeout, clf.Cycle, logger).Run(gctx)
		return nil
	})
	g.Go(func() error {
		recorder.Run(gctx)
		return nil
	})

	err = g.Wait()

	if endpoint != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if stopErr := endpoint.Stop(shutdownCtx); stopErr != nil {
			logger.Warn("metrics endpoint shutdown failed", "error", stopErr)
		}
	}

	logger.Info("realtime analysis stopped")
	return err
}

func closeDataStore(store datastore.Interface, logger *slog.Logger) {
	if err := store.Close(); err != nil {
		logger.Warn("failed to close datastore", "error", err)
	}
}
