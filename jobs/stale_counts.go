package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-wms/internal/counts"
	jobmetrics "github.com/odyssey-erp/odyssey-wms/internal/jobs"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// CountLister is the part of counts.Service the stale scan needs.
type CountLister interface {
	List(ctx context.Context, filter counts.ListFilter) ([]counts.Count, shared.Pagination, error)
}

// StaleCountScanJob reports IN_PROGRESS counts untouched for StaleAfter.
// Their locations stay locked, so they are surfaced rather than closed.
type StaleCountScanJob struct {
	Counts     CountLister
	StaleAfter time.Duration
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

// NewStaleCountScanJob constructs the job handler.
func NewStaleCountScanJob(lister CountLister, staleAfter time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *StaleCountScanJob {
	return &StaleCountScanJob{
		Counts:     lister,
		StaleAfter: staleAfter,
		Logger:     logger,
		Metrics:    metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the scan.
func (j *StaleCountScanJob) Handle(ctx context.Context, _ *asynq.Task) error {
	_, err := j.Run(ctx)
	return err
}

// Run returns every stale count, walking all pages.
func (j *StaleCountScanJob) Run(ctx context.Context) (stale []counts.Count, err error) {
	if j == nil || j.Counts == nil {
		return nil, errors.New("stale count scan: handler not configured")
	}
	if j.StaleAfter <= 0 {
		return nil, errors.New("stale count scan: stale-after must be positive")
	}
	tracker := j.metrics().Track(TaskCountsStaleScan)
	defer func() {
		err = tracker.End(err)
	}()

	cutoff := j.now().Add(-j.StaleAfter)
	logger := j.logger().With(slog.Time("cutoff", cutoff))
	for page := 1; ; page++ {
		items, pg, err := j.Counts.List(ctx, counts.ListFilter{
			Status:        counts.StatusInProgress,
			UpdatedBefore: cutoff,
			Page:          page,
			PerPage:       100,
		})
		if err != nil {
			logger.Error("list counts failed", slog.Any("error", err))
			return stale, err
		}
		for _, c := range items {
			logger.Warn("inventory count is stale",
				slog.Int64("count_id", c.ID),
				slog.Int64("warehouse_id", c.WarehouseID),
				slog.String("name", c.Name),
				slog.Int("locations", len(c.LocationIDs)),
				slog.Time("updated_at", c.UpdatedAt))
		}
		stale = append(stale, items...)
		if page >= pg.TotalPages {
			break
		}
	}
	j.metrics().AddFindings(TaskCountsStaleScan, "stale_count", len(stale))
	logger.Info("completed stale count scan", slog.Int("stale", len(stale)))
	return stale, nil
}

func (j *StaleCountScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCountsStaleScan))
	}
	return slog.Default().With(slog.String("job", TaskCountsStaleScan))
}

func (j *StaleCountScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *StaleCountScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
