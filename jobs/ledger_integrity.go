package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/odyssey-erp/odyssey-wms/internal/jobs"
	"github.com/odyssey-erp/odyssey-wms/internal/ledger"
)

// IntegritySource provides the queries behind the ledger integrity scan.
type IntegritySource interface {
	// MisplacedContainerRows returns container rows whose container is parked
	// at a different location than the row.
	MisplacedContainerRows(ctx context.Context) ([]ledger.StockRow, error)
	// OrphanLocks returns COUNTING locations no IN_PROGRESS count holds.
	OrphanLocks(ctx context.Context) ([]int64, error)
	// ReleaseOrphanLock sets the location ACTIVE if it is still an orphan.
	ReleaseOrphanLock(ctx context.Context, locationID int64) (bool, error)
}

// IntegrityReport summarises one scan.
type IntegrityReport struct {
	Misplaced []ledger.StockRow `json:"misplaced"`
	Orphans   []int64           `json:"orphans"`
	Released  []int64           `json:"released"`
}

// LedgerIntegrityJob checks ledger and lock consistency.
type LedgerIntegrityJob struct {
	Source  IntegritySource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerIntegrityJob initialises the integrity scan handler.
func NewLedgerIntegrityJob(source IntegritySource, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Source: source, Logger: logger, Metrics: metrics}
}

// Handle executes the integrity scan.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Source == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	_, err := j.Run(ctx, payload.Repair)
	return err
}

// Run performs the scan and, when repair is set, releases orphaned locks.
func (j *LedgerIntegrityJob) Run(ctx context.Context, repair bool) (report IntegrityReport, err error) {
	start := time.Now()
	tracker := j.metrics().Track(TaskLedgerIntegrity)
	defer func() {
		err = tracker.End(err)
	}()
	logger := j.logger().With(slog.Bool("repair", repair))
	logger.Info("starting ledger integrity scan")

	report.Misplaced, err = j.Source.MisplacedContainerRows(ctx)
	if err != nil {
		logger.Error("misplaced container query failed", slog.Any("error", err))
		return report, err
	}
	for _, row := range report.Misplaced {
		logger.Warn("container stock booked at wrong location",
			slog.Int64("row_id", row.ID),
			slog.Int64("product_id", row.ProductID),
			slog.Int64("location_id", row.LocationID),
			slog.Int64("container_id", *row.ContainerID),
			slog.Int64("qty", row.Qty))
	}
	j.metrics().AddFindings(TaskLedgerIntegrity, "container_mismatch", len(report.Misplaced))

	report.Orphans, err = j.Source.OrphanLocks(ctx)
	if err != nil {
		logger.Error("orphan lock query failed", slog.Any("error", err))
		return report, err
	}
	j.metrics().AddFindings(TaskLedgerIntegrity, "orphan_lock", len(report.Orphans))
	for _, id := range report.Orphans {
		if !repair {
			logger.Warn("location locked without an open count", slog.Int64("location_id", id))
			continue
		}
		released, err := j.Source.ReleaseOrphanLock(ctx, id)
		if err != nil {
			logger.Error("release orphan lock failed", slog.Int64("location_id", id), slog.Any("error", err))
			return report, err
		}
		if released {
			report.Released = append(report.Released, id)
			logger.Info("released orphan lock", slog.Int64("location_id", id))
		}
	}

	logger.Info("completed ledger integrity scan",
		slog.Int("misplaced", len(report.Misplaced)),
		slog.Int("orphans", len(report.Orphans)),
		slog.Int("released", len(report.Released)),
		slog.Duration("duration", time.Since(start)))
	return report, nil
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *LedgerIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

// PGIntegritySource runs the integrity queries against PostgreSQL.
type PGIntegritySource struct {
	Pool *pgxpool.Pool
}

// NewPGIntegritySource constructs PGIntegritySource.
func NewPGIntegritySource(pool *pgxpool.Pool) *PGIntegritySource {
	return &PGIntegritySource{Pool: pool}
}

func (s *PGIntegritySource) MisplacedContainerRows(ctx context.Context) ([]ledger.StockRow, error) {
	rows, err := s.Pool.Query(ctx, `SELECT sr.id, sr.product_id, sr.location_id, sr.container_id, sr.qty, sr.updated_at
		FROM stock_rows sr
		JOIN containers c ON c.id = sr.container_id
		WHERE sr.qty > 0 AND c.location_id <> sr.location_id
		ORDER BY sr.id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.StockRow, error) {
		var r ledger.StockRow
		err := row.Scan(&r.ID, &r.ProductID, &r.LocationID, &r.ContainerID, &r.Qty, &r.UpdatedAt)
		return r, err
	})
}

const orphanLockCondition = `l.status = 'COUNTING' AND NOT EXISTS (
		SELECT 1 FROM inventory_count_locations icl
		JOIN inventory_counts ic ON ic.id = icl.inventory_count_id
		WHERE icl.location_id = l.id AND ic.status = 'IN_PROGRESS'
	)`

func (s *PGIntegritySource) OrphanLocks(ctx context.Context) ([]int64, error) {
	rows, err := s.Pool.Query(ctx, `SELECT l.id FROM locations l WHERE `+orphanLockCondition+` ORDER BY l.id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (s *PGIntegritySource) ReleaseOrphanLock(ctx context.Context, locationID int64) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `UPDATE locations l SET status = 'ACTIVE' WHERE l.id = $1 AND `+orphanLockCondition, locationID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
