package counts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-wms/internal/audit"
	"github.com/odyssey-erp/odyssey-wms/internal/ledger"
	"github.com/odyssey-erp/odyssey-wms/internal/masterdata"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// Repository abstracts count persistence for the service.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Count, error)
	List(ctx context.Context, filter ListFilter) ([]Count, int, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	Stock() ledger.Store
	Directory() masterdata.Directory
	Audit() audit.Writer
	Insert(ctx context.Context, c Count) (Count, error)
	AddLocations(ctx context.Context, countID int64, locationIDs []int64) error
	// GetForUpdate loads the count with its locations and lines and locks it.
	GetForUpdate(ctx context.Context, id int64) (Count, error)
	// UpsertLine inserts line or, when (count, location, product) exists,
	// replaces only its counted quantity and counter. created reports which.
	UpsertLine(ctx context.Context, line Line) (saved Line, created bool, err error)
	UpdateStatus(ctx context.Context, id int64, status Status, actorID int64, at time.Time) error
	// HeldByOtherCount reports whether another IN_PROGRESS count locks locationID.
	HeldByOtherCount(ctx context.Context, countID, locationID int64) (bool, error)
}

// StockNotifier is told after stock changed in a committed transaction.
type StockNotifier interface {
	Invalidate(ctx context.Context)
}

// Metrics receives count outcomes.
type Metrics interface {
	CountCompleted(adjustments int)
	CountCancelled()
}

// Options groups optional collaborators.
type Options struct {
	Stock    StockNotifier
	Metrics  Metrics
	Recorder audit.Recorder
	Now      func() time.Time
}

// Service coordinates inventory counts.
type Service struct {
	repo     Repository
	stock    StockNotifier
	metrics  Metrics
	recorder audit.Recorder
	now      func() time.Time
	logger   *slog.Logger
}

// NewService builds Service.
func NewService(repo Repository, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     repo,
		stock:    opts.Stock,
		metrics:  opts.Metrics,
		recorder: opts.Recorder,
		now:      now,
		logger:   logger,
	}
}

func actorFrom(ctx context.Context) (int64, error) {
	actorID := shared.ActorFromContext(ctx)
	if actorID == 0 {
		return 0, shared.ErrActorRequired
	}
	return actorID, nil
}

func notInProgress(c Count) error {
	return fmt.Errorf("%w: count %d is %s", ErrInventoryNotInProgress, c.ID, c.Status)
}

// Create starts a count and sets each listed location to COUNTING, which
// blocks it as a document source until the count is closed.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Count, error) {
	actorID, err := actorFrom(ctx)
	if err != nil {
		return Count{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Count{}, ErrNameRequired
	}
	locationIDs := dedupe(req.LocationIDs)

	var created Count
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		dir := tx.Directory()
		if _, err := dir.GetWarehouse(ctx, req.WarehouseID); err != nil {
			return err
		}
		for _, id := range locationIDs {
			loc, err := dir.GetLocation(ctx, id)
			if err != nil {
				return err
			}
			if loc.WarehouseID != req.WarehouseID {
				return fmt.Errorf("%w: %s", ErrWarehouseMismatch, loc.Barcode)
			}
			if err := masterdata.CheckSource(loc); err != nil {
				return err
			}
		}
		c, err := tx.Insert(ctx, Count{WarehouseID: req.WarehouseID, Name: name, Status: StatusInProgress, CreatedBy: actorID})
		if err != nil {
			return err
		}
		if err := tx.AddLocations(ctx, c.ID, locationIDs); err != nil {
			return err
		}
		if err := lock(ctx, dir, locationIDs); err != nil {
			return err
		}
		c.LocationIDs = locationIDs
		rec := s.recorder.Record(audit.Event{
			Action:  audit.ActionInvStart,
			ActorID: actorID,
			CountID: audit.Int64(c.ID),
			Meta:    map[string]any{"name": c.Name, "warehouse_id": c.WarehouseID, "location_ids": locationIDs},
		})
		if err := tx.Audit().Append(ctx, rec); err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		return Count{}, err
	}
	s.logger.Info("inventory started",
		slog.Int64("count_id", created.ID),
		slog.Int("locations", len(created.LocationIDs)),
		slog.Int64("actor_id", actorID))
	return created, nil
}

// Get returns a count with its locations and lines.
func (s *Service) Get(ctx context.Context, id int64) (Count, error) {
	return s.repo.Get(ctx, id)
}

// List returns one page of counts, newest first, without lines.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Count, shared.Pagination, error) {
	page := shared.NewPageRequest(filter.Page, filter.PerPage)
	filter.Page, filter.PerPage = page.Page, page.PerPage
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if items == nil {
		items = []Count{}
	}
	return items, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// SubmitCount records a counted quantity. The first submission for a
// (location, product) freezes the ledger quantity as SystemQty; later ones
// only replace CountedQty.
func (s *Service) SubmitCount(ctx context.Context, countID int64, req SubmitRequest) (SubmitResult, error) {
	actorID, err := actorFrom(ctx)
	if err != nil {
		return SubmitResult{}, err
	}
	if req.CountedQty < 0 {
		return SubmitResult{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, req.CountedQty)
	}
	var result SubmitResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetForUpdate(ctx, countID)
		if err != nil {
			return err
		}
		if !c.Status.Open() {
			return notInProgress(c)
		}
		dir := tx.Directory()
		loc, err := dir.FindLocationByBarcode(ctx, req.LocationBarcode)
		if err != nil {
			return err
		}
		if loc.WarehouseID != c.WarehouseID {
			return fmt.Errorf("%w: %s", ErrWarehouseMismatch, loc.Barcode)
		}
		product, err := dir.FindActiveProductByCode(ctx, req.ProductCode)
		if err != nil {
			return err
		}
		systemQty, err := ledger.New(tx.Stock()).QuantityOnHand(ctx, product.ID, loc.ID, nil)
		if err != nil {
			return err
		}
		line, created, err := tx.UpsertLine(ctx, Line{
			CountID:    c.ID,
			LocationID: loc.ID,
			ProductID:  product.ID,
			SystemQty:  systemQty,
			CountedQty: req.CountedQty,
			CountedBy:  actorID,
		})
		if err != nil {
			return err
		}
		rec := s.recorder.Record(audit.Event{
			Action:         audit.ActionInvLine,
			ActorID:        actorID,
			ProductID:      audit.Int64(product.ID),
			FromLocationID: audit.Int64(loc.ID),
			CountID:        audit.Int64(c.ID),
			Qty:            audit.Int64(line.CountedQty),
			Meta: map[string]any{
				"system_qty":  line.SystemQty,
				"counted_qty": line.CountedQty,
				"difference":  line.Difference(),
				"created":     created,
			},
		})
		if err := tx.Audit().Append(ctx, rec); err != nil {
			return err
		}
		result = SubmitResult{Line: line, Difference: line.Difference(), Created: created}
		return nil
	})
	if err != nil {
		return SubmitResult{}, err
	}
	return result, nil
}

// Complete reconciles the ledger to every line whose counted quantity
// differs from the frozen system quantity, releases the count's locations
// and closes it. The (product, location) total becomes CountedQty: a
// shortfall is added to the unassigned row, a surplus is deducted with
// unassigned stock drained first.
func (s *Service) Complete(ctx context.Context, id int64) (CompleteResult, error) {
	actorID, err := actorFrom(ctx)
	if err != nil {
		return CompleteResult{}, err
	}
	var result CompleteResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !c.Status.Open() {
			return notInProgress(c)
		}
		if len(c.Lines) == 0 {
			return fmt.Errorf("%w: count %d", ErrInventoryEmpty, c.ID)
		}

		led := ledger.New(tx.Stock())
		adjustments := make([]Adjustment, 0)
		for _, line := range c.Lines {
			diff := line.Difference()
			if diff == 0 {
				continue
			}
			rec, err := led.Reconcile(ctx, line.ProductID, line.LocationID, line.CountedQty)
			if err != nil {
				return fmt.Errorf("line %d: %w", line.ID, err)
			}
			ev := s.recorder.Record(audit.Event{
				Action:         audit.ActionStockAdj,
				ActorID:        actorID,
				ProductID:      audit.Int64(line.ProductID),
				FromLocationID: audit.Int64(line.LocationID),
				ToLocationID:   audit.Int64(line.LocationID),
				CountID:        audit.Int64(c.ID),
				Qty:            audit.Int64(diff),
				Meta: map[string]any{
					"line_id":       line.ID,
					"system_qty":    line.SystemQty,
					"counted_qty":   line.CountedQty,
					"ledger_before": rec.Before,
					"ledger_delta":  rec.Delta,
				},
			})
			if err := tx.Audit().Append(ctx, ev); err != nil {
				return err
			}
			adjustments = append(adjustments, Adjustment{
				LineID:     line.ID,
				ProductID:  line.ProductID,
				LocationID: line.LocationID,
				SystemQty:  line.SystemQty,
				CountedQty: line.CountedQty,
				Difference: diff,
				Ledger:     rec,
			})
		}

		if err := s.release(ctx, tx, c); err != nil {
			return err
		}
		now := s.now().UTC()
		if err := tx.UpdateStatus(ctx, c.ID, StatusCompleted, actorID, now); err != nil {
			return fmt.Errorf("counts: update status: %w", err)
		}
		ev := s.recorder.Record(audit.Event{
			Action:  audit.ActionInvComplete,
			ActorID: actorID,
			CountID: audit.Int64(c.ID),
			Meta:    map[string]any{"adjustments": len(adjustments), "lines": len(c.Lines)},
		})
		if err := tx.Audit().Append(ctx, ev); err != nil {
			return err
		}
		c.Status = StatusCompleted
		c.CompletedBy = &actorID
		c.CompletedAt = &now
		c.UpdatedAt = now
		result = CompleteResult{Count: c, Adjustments: adjustments}
		return nil
	})
	if err != nil {
		return CompleteResult{}, err
	}

	if s.stock != nil && len(result.Adjustments) > 0 {
		s.stock.Invalidate(ctx)
	}
	if s.metrics != nil {
		s.metrics.CountCompleted(len(result.Adjustments))
	}
	s.logger.Info("inventory completed",
		slog.Int64("count_id", result.Count.ID),
		slog.Int("lines", len(result.Count.Lines)),
		slog.Int("adjustments", len(result.Adjustments)),
		slog.Int64("actor_id", actorID))
	return result, nil
}

// Cancel closes an open count without touching the ledger.
func (s *Service) Cancel(ctx context.Context, id int64) (Count, error) {
	actorID, err := actorFrom(ctx)
	if err != nil {
		return Count{}, err
	}
	var cancelled Count
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !c.Status.Open() {
			return notInProgress(c)
		}
		if err := s.release(ctx, tx, c); err != nil {
			return err
		}
		now := s.now().UTC()
		if err := tx.UpdateStatus(ctx, c.ID, StatusCancelled, actorID, now); err != nil {
			return fmt.Errorf("counts: update status: %w", err)
		}
		ev := s.recorder.Record(audit.Event{
			Action:  audit.ActionInvCancel,
			ActorID: actorID,
			CountID: audit.Int64(c.ID),
			Meta:    map[string]any{"lines": len(c.Lines)},
		})
		if err := tx.Audit().Append(ctx, ev); err != nil {
			return err
		}
		c.Status = StatusCancelled
		c.UpdatedAt = now
		cancelled = c
		return nil
	})
	if err != nil {
		return Count{}, err
	}
	if s.metrics != nil {
		s.metrics.CountCancelled()
	}
	s.logger.Info("inventory cancelled", slog.Int64("count_id", cancelled.ID), slog.Int64("actor_id", actorID))
	return cancelled, nil
}

// Reopen moves a completed or cancelled count back to IN_PROGRESS and locks
// its locations again. Ledger adjustments made by an earlier completion stay.
func (s *Service) Reopen(ctx context.Context, id int64) (Count, error) {
	actorID, err := actorFrom(ctx)
	if err != nil {
		return Count{}, err
	}
	var reopened Count
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if c.Status.Open() {
			return fmt.Errorf("%w: count %d", ErrInventoryAlreadyInProgress, c.ID)
		}
		previous := c.Status
		if err := lock(ctx, tx.Directory(), c.TouchedLocations()); err != nil {
			return err
		}
		now := s.now().UTC()
		if err := tx.UpdateStatus(ctx, c.ID, StatusInProgress, actorID, now); err != nil {
			return fmt.Errorf("counts: update status: %w", err)
		}
		ev := s.recorder.Record(audit.Event{
			Action:  audit.ActionInvReopen,
			ActorID: actorID,
			CountID: audit.Int64(c.ID),
			Meta:    map[string]any{"previous_status": string(previous)},
		})
		if err := tx.Audit().Append(ctx, ev); err != nil {
			return err
		}
		c.Status = StatusInProgress
		c.CompletedBy = nil
		c.CompletedAt = nil
		c.UpdatedAt = now
		reopened = c
		return nil
	})
	if err != nil {
		return Count{}, err
	}
	s.logger.Info("inventory reopened", slog.Int64("count_id", reopened.ID), slog.Int64("actor_id", actorID))
	return reopened, nil
}

// release returns the count's COUNTING locations to ACTIVE unless another
// open count still holds them.
func (s *Service) release(ctx context.Context, tx TxRepository, c Count) error {
	dir := tx.Directory()
	for _, id := range c.TouchedLocations() {
		status, err := dir.LocationStatus(ctx, id)
		if err != nil {
			return err
		}
		if status != masterdata.LocationCounting {
			continue
		}
		held, err := tx.HeldByOtherCount(ctx, c.ID, id)
		if err != nil {
			return err
		}
		if held {
			continue
		}
		if err := dir.SetLocationStatus(ctx, id, masterdata.LocationActive); err != nil {
			return err
		}
	}
	return nil
}

func lock(ctx context.Context, dir masterdata.Directory, locationIDs []int64) error {
	for _, id := range locationIDs {
		if err := dir.SetLocationStatus(ctx, id, masterdata.LocationCounting); err != nil {
			return err
		}
	}
	return nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sortIDs(out)
	return out
}
