// Package window computes the set of new-since-last-cycle readings for each
// consumer. One watermark per (consumer, station) pair keeps the analytical
// passes independent: they never reprocess a reading for the same purpose.
package window

import (
	"context"
	"fmt"
	"time"

	"github.com/scaqms/aqms-go/internal/datastore"
)

// Reader serves trailing windows of unprocessed readings to one consumer.
type Reader struct {
	ds       datastore.Interface
	consumer string
	trailing time.Duration
	now      func() time.Time
}

// NewReader creates a window reader for the named consumer with the given
// trailing window duration.
func NewReader(ds datastore.Interface, consumer string, trailing time.Duration) *Reader {
	return &Reader{
		ds:       ds,
		consumer: consumer,
		trailing: trailing,
		now:      time.Now,
	}
}

// Next returns the readings of one station with timestamp strictly greater
// than the consumer's watermark, bounded to the trailing window, ordered by
// timestamp. An empty result means nothing to do this cycle, not a fault.
func (r *Reader) Next(ctx context.Context, stationID uint) ([]datastore.Reading, error) {
	watermark, err := r.ds.GetWatermark(r.consumer, stationID)
	if err != nil {
		return nil, fmt.Errorf("reading watermark: %w", err)
	}

	notBefore := r.now().Add(-r.trailing)
	readings, err := r.ds.GetReadingsAfter(ctx, stationID, watermark, notBefore)
	if err != nil {
		return nil, fmt.Errorf("reading window: %w", err)
	}
	return readings, nil
}

// Commit advances the consumer's watermark for a station to the timestamp of
// the last processed reading. The store refuses to move watermarks backwards.
func (r *Reader) Commit(stationID uint, lastTS time.Time) error {
	if err := r.ds.AdvanceWatermark(r.consumer, stationID, lastTS); err != nil {
		return fmt.Errorf("advancing watermark: %w", err)
	}
	return nil
}

// Consumer returns the consumer name this reader progresses under.
func (r *Reader) Consumer() string {
	return r.consumer
}
