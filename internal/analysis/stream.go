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
	"golang.org/x/time/rate"

	"github.com/scaqms/aqms-go/internal/conf"
	"github.com/scaqms/aqms-go/internal/datastore"
	"github.com/scaqms/aqms-go/internal/ingest"
	"github.com/scaqms/aqms-go/internal/observability"
	"github.com/scaqms/aqms-go/internal/simulator"
)

// defaultFleet is created on first run so the feeder has stations to report
// for. Zones mirror a small three-district deployment.
var defaultFleet = []datastore.Station{
	{Code: "ST-001", Name: "Harbor North", Zone: "harbor", Latitude: 60.168, Longitude: 24.952, Status: datastore.StationActive},
	{Code: "ST-002", Name: "Harbor South", Zone: "harbor", Latitude: 60.154, Longitude: 24.961, Status: datastore.StationActive},
	{Code: "ST-003", Name: "Center Plaza", Zone: "center", Latitude: 60.170, Longitude: 24.941, Status: datastore.StationActive},
	{Code: "ST-004", Name: "Center Station", Zone: "center", Latitude: 60.172, Longitude: 24.933, Status: datastore.StationActive},
	{Code: "ST-005", Name: "Industrial East", Zone: "industrial", Latitude: 60.209, Longitude: 25.078, Status: datastore.StationActive},
	{Code: "ST-006", Name: "Industrial Yard", Zone: "industrial", Latitude: 60.213, Longitude: 25.051, Status: datastore.StationActive},
}

// StreamFeed generates synthetic readings at the configured target rate and
// submits them through the ingestion path in micro-batches. The feeder
// carries its own recorder and metrics endpoint since it is the process that
// owns the ingest-side counters. Blocks until a termination signal.
func StreamFeed(settings *conf.Settings, seed int64) error {
	logger, closeLogger := serviceLogger(settings, "stream")
	defer func() { _ = closeLogger() }()
	logger.Info("starting stream feeder",
		"target_rate", settings.Ingest.TargetRate,
		"batch_size", settings.Ingest.BatchSize,
		"seed", seed)

	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer closeDataStore(store, logger)

	stationIDs, err := activeStations(store, logger)
	if err != nil {
		return err
	}

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

	sim := simulator.New(stationIDs, seed)
	ing := ingest.New(store, settings.Ingest, m.Ingest, recorder, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recorder.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return feed(gctx, sim, ing, settings.Ingest, logger)
	})

	err = g.Wait()

	if endpoint != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if stopErr := endpoint.Stop(shutdownCtx); stopErr != nil {
			logger.Warn("metrics endpoint shutdown failed", "error", stopErr)
		}
	}

	return err
}

// activeStations returns the IDs of the non-retired stations, creating the
// default fleet when the store holds none.
func activeStations(store datastore.Interface, logger *slog.Logger) ([]uint, error) {
	stations, err := store.GetAllStations()
	if err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}
	if len(stations) == 0 {
		logger.Info("no stations registered, creating default fleet", "stations", len(defaultFleet))
		for i := range defaultFleet {
			st := defaultFleet[i]
			if err := store.SaveStation(&st); err != nil {
				return nil, fmt.Errorf("failed to create station %s: %w", st.Code, err)
			}
			stations = append(stations, st)
		}
	}

	stationIDs := make([]uint, 0, len(stations))
	for _, st := range stations {
		if st.Status != datastore.StationRetired {
			stationIDs = append(stationIDs, st.ID)
		}
	}
	if len(stationIDs) == 0 {
		return nil, fmt.Errorf("no active stations to feed")
	}
	return stationIDs, nil
}

// feed submits micro-batches through the ingestor at the target rate until
// ctx is cancelled. Batch-level ingestion failures are logged and the feed
// continues; cancellation is a clean stop, not an error.
func feed(ctx context.Context, sim *simulator.Simulator, ing *ingest.Ingestor, settings conf.IngestSettings, logger *slog.Logger) error {
	// TargetRate is readings per minute; the limiter meters out whole
	// micro-batches so store round-trips stay amortized.
	limiter := rate.NewLimiter(rate.Limit(float64(settings.TargetRate)/60.0), settings.BatchSize)

	var total, rejected int
	for {
		if err := limiter.WaitN(ctx, settings.BatchSize); err != nil {
			logger.Info("stream feeder stopped", "accepted", total, "rejected", rejected)
			return nil
		}

		batch := sim.Batch(time.Now(), settings.BatchSize)
		result, err := ing.Ingest(ctx, batch)
		if err != nil {
			logger.Error("batch ingestion failed", "error", err)
			continue
		}
		total += result.Accepted
		rejected += result.Rejected

		logger.Debug("batch ingested",
			"accepted", result.Accepted, "rejected", result.Rejected, "total", total)
	}
}
