package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/odyssey-wms/internal/audit"
	"github.com/odyssey-erp/odyssey-wms/internal/masterdata"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// Repository is the ledger's persistence port.
type Repository interface {
	Reader
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the transactional collaborators of a stock mutation.
type TxRepository interface {
	Stock() Store
	Directory() masterdata.Directory
	Audit() audit.Writer
}

// Balance is the on-hand picture of one (product, location).
type Balance struct {
	ProductID  int64      `json:"product_id"`
	LocationID int64      `json:"location_id"`
	Total      int64      `json:"total"`
	Rows       []StockRow `json:"rows"`
}

// Service serves stock queries and container splits.
type Service struct {
	repo     Repository
	cache    *StockCache
	recorder audit.Recorder
	logger   *slog.Logger
}

// NewService builds Service. cache may be nil.
func NewService(repo Repository, cache *StockCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, recorder: audit.NewRecorder(), logger: logger}
}

// WithRecorder overrides the audit recorder.
func (s *Service) WithRecorder(r audit.Recorder) *Service {
	s.recorder = r
	return s
}

// OnHand returns the cached quantity on hand.
func (s *Service) OnHand(ctx context.Context, productID, locationID int64, containerID *int64) (int64, error) {
	return s.cache.FetchOnHand(ctx, productID, locationID, containerID, func(ctx context.Context) (int64, error) {
		rows, err := s.repo.ListRows(ctx, productID, locationID)
		if err != nil {
			return 0, err
		}
		var total int64
		for _, r := range rows {
			if containerID == nil || sameContainer(r.ContainerID, containerID) {
				total += r.Qty
			}
		}
		return total, nil
	})
}

// Balance lists the rows of (product, location) in deduction order.
func (s *Service) Balance(ctx context.Context, productID, locationID int64) (Balance, error) {
	rows, err := s.repo.ListRows(ctx, productID, locationID)
	if err != nil {
		return Balance{}, err
	}
	SortRows(rows)
	if rows == nil {
		rows = []StockRow{}
	}
	return Balance{ProductID: productID, LocationID: locationID, Total: sumRows(rows), Rows: rows}, nil
}

func (s *Service) ByLocation(ctx context.Context, locationID int64) ([]StockRow, error) {
	rows, err := s.repo.ListByLocation(ctx, locationID)
	if rows == nil && err == nil {
		rows = []StockRow{}
	}
	return rows, err
}

func (s *Service) ByProduct(ctx context.Context, productID int64) ([]StockRow, error) {
	rows, err := s.repo.ListByProduct(ctx, productID)
	if rows == nil && err == nil {
		rows = []StockRow{}
	}
	return rows, err
}

// Split moves quantity between the unassigned row and container rows of one
// location. The location must be able to give stock away.
func (s *Service) Split(ctx context.Context, in SplitRequest) (SplitResult, error) {
	actorID := shared.ActorFromContext(ctx)
	if actorID == 0 {
		return SplitResult{}, shared.ErrActorRequired
	}
	var result SplitResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		dir := tx.Directory()
		loc, err := dir.GetLocation(ctx, in.LocationID)
		if err != nil {
			return err
		}
		if err := masterdata.CheckSource(loc); err != nil {
			return err
		}
		for _, id := range []*int64{in.FromContainerID, in.ToContainerID} {
			if id == nil {
				continue
			}
			c, err := dir.GetContainer(ctx, *id)
			if err != nil {
				return err
			}
			if c.LocationID != loc.ID {
				return fmt.Errorf("%w: container %s", ErrContainerMismatch, c.Barcode)
			}
		}
		res, err := New(tx.Stock()).Split(ctx, in.ProductID, loc.ID, in.FromContainerID, in.ToContainerID, in.Qty)
		if err != nil {
			return err
		}
		meta := map[string]any{"from_balance": res.FromBalance, "to_balance": res.ToBalance}
		if in.FromContainerID != nil {
			meta["from_container_id"] = *in.FromContainerID
		}
		if in.ToContainerID != nil {
			meta["to_container_id"] = *in.ToContainerID
		}
		rec := s.recorder.Record(audit.Event{
			Action:         audit.ActionStockSplit,
			ActorID:        actorID,
			ProductID:      audit.Int64(in.ProductID),
			FromLocationID: audit.Int64(loc.ID),
			ToLocationID:   audit.Int64(loc.ID),
			Qty:            audit.Int64(in.Qty),
			Meta:           meta,
		})
		if err := tx.Audit().Append(ctx, rec); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return SplitResult{}, err
	}
	s.Invalidate(ctx)
	return result, nil
}

// Invalidate bumps the cache version after a committed movement. Failures
// are logged; stale entries expire with the TTL.
func (s *Service) Invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("stock cache bump failed", slog.Any("error", err))
	}
}
