package documents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-wms/internal/audit"
	"github.com/odyssey-erp/odyssey-wms/internal/ledger"
	"github.com/odyssey-erp/odyssey-wms/internal/masterdata"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

const idempotencyModule = "documents"

// Repository abstracts document persistence for the service.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Document, error)
	List(ctx context.Context, filter ListFilter) ([]Document, int, error)
	// Directory and Stock serve the optimistic checks made outside a transaction.
	Directory() masterdata.Directory
	Stock() ledger.Store
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	Stock() ledger.Store
	Directory() masterdata.Directory
	Audit() audit.Writer
	NextSequence(ctx context.Context, t Type, year int) (int64, error)
	Insert(ctx context.Context, doc Document) (Document, error)
	// GetForUpdate loads the document with its lines and locks it.
	GetForUpdate(ctx context.Context, id int64) (Document, error)
	InsertLine(ctx context.Context, line Line) (Line, error)
	DeleteLine(ctx context.Context, documentID, lineID int64) error
	UpdateStatus(ctx context.Context, id int64, status Status, actorID int64, at time.Time) error
}

// IdempotencyGuard records processed request keys.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// StockNotifier is told after stock changed in a committed transaction.
type StockNotifier interface {
	Invalidate(ctx context.Context)
}

// Metrics receives document outcomes.
type Metrics interface {
	DocumentConfirmed(docType string, units int64)
	DocumentCancelled(docType string)
}

// Options groups optional collaborators.
type Options struct {
	Idempotency IdempotencyGuard
	Stock       StockNotifier
	Metrics     Metrics
	Recorder    audit.Recorder
	Now         func() time.Time
}

// Service coordinates document operations.
type Service struct {
	repo     Repository
	idem     IdempotencyGuard
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
		idem:     opts.Idempotency,
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

// Create opens a DRAFT document and allocates its number. A non-empty
// idempotencyKey makes a repeated request fail with
// shared.ErrIdempotencyConflict instead of creating a second document.
func (s *Service) Create(ctx context.Context, req CreateRequest, idempotencyKey string) (Document, error) {
	actorID, err := actorFrom(ctx)
	if err != nil {
		return Document{}, err
	}
	if !req.Type.IsValid() {
		return Document{}, fmt.Errorf("%w: %s", ErrInvalidType, req.Type)
	}
	keyed := idempotencyKey != "" && s.idem != nil
	if keyed {
		if err := s.idem.CheckAndInsert(ctx, idempotencyKey, idempotencyModule); err != nil {
			return Document{}, err
		}
	}

	now := s.now().UTC()
	var created Document
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.Directory().GetWarehouse(ctx, req.WarehouseID); err != nil {
			return err
		}
		seq, err := tx.NextSequence(ctx, req.Type, now.Year())
		if err != nil {
			return fmt.Errorf("documents: allocate number: %w", err)
		}
		doc, err := tx.Insert(ctx, Document{
			Number:      FormatNumber(req.Type, now.Year(), seq),
			Type:        req.Type,
			Status:      StatusDraft,
			WarehouseID: req.WarehouseID,
			Reference:   req.Reference,
			Notes:       req.Notes,
			CreatedBy:   actorID,
		})
		if err != nil {
			return err
		}
		rec := s.recorder.Record(audit.Event{
			Action:     audit.ActionDocCreate,
			ActorID:    actorID,
			DocumentID: audit.Int64(doc.ID),
			Meta:       map[string]any{"number": doc.Number, "type": string(doc.Type), "warehouse_id": doc.WarehouseID},
		})
		if err := tx.Audit().Append(ctx, rec); err != nil {
			return err
		}
		created = doc
		return nil
	})
	if err != nil {
		if keyed {
			if derr := s.idem.Delete(ctx, idempotencyKey, idempotencyModule); derr != nil {
				s.logger.Warn("idempotency key release failed",
					slog.String("key", idempotencyKey), slog.Any("error", derr))
			}
		}
		return Document{}, err
	}
	return created, nil
}

// Get returns a document with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Document, error) {
	return s.repo.Get(ctx, id)
}

// List returns one page of documents, newest first, without lines.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Document, shared.Pagination, error) {
	page := shared.NewPageRequest(filter.Page, filter.PerPage)
	filter.Page, filter.PerPage = page.Page, page.PerPage
	docs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// AddLine validates a line against master data and current stock and stores
// it. The ledger is not touched; Confirm repeats the stock checks.
func (s *Service) AddLine(ctx context.Context, documentID int64, req AddLineRequest) (Line, error) {
	if _, err := actorFrom(ctx); err != nil {
		return Line{}, err
	}
	if req.Qty <= 0 {
		return Line{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, req.Qty)
	}
	if req.UnitPrice != nil && req.UnitPrice.IsNegative() {
		return Line{}, ErrInvalidPrice
	}
	doc, err := s.repo.Get(ctx, documentID)
	if err != nil {
		return Line{}, err
	}
	if !doc.Status.CanEdit() {
		return Line{}, fmt.Errorf("%w: %s is %s", ErrDocumentNotDraft, doc.Number, doc.Status)
	}

	dir := s.repo.Directory()
	product, err := dir.FindActiveProductByCode(ctx, req.ProductCode)
	if err != nil {
		return Line{}, err
	}
	from, err := resolveLocation(ctx, dir, doc, req.FromLocation)
	if err != nil {
		return Line{}, err
	}
	to, err := resolveLocation(ctx, dir, doc, req.ToLocation)
	if err != nil {
		return Line{}, err
	}
	if from != nil {
		if err := masterdata.CheckSource(*from); err != nil {
			return Line{}, err
		}
	}
	fromID, toID := locationID(from), locationID(to)
	if err := doc.Type.CheckEnds(fromID, toID); err != nil {
		return Line{}, err
	}
	if fromID != nil {
		available, err := ledger.New(s.repo.Stock()).QuantityOnHand(ctx, product.ID, *fromID, nil)
		if err != nil {
			return Line{}, err
		}
		if req.Qty > available {
			return Line{}, &ledger.InsufficientStockError{
				ProductID:  product.ID,
				LocationID: *fromID,
				Available:  available,
				Requested:  req.Qty,
			}
		}
	}

	var line Line
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetForUpdate(ctx, documentID)
		if err != nil {
			return err
		}
		if !locked.Status.CanEdit() {
			return fmt.Errorf("%w: %s is %s", ErrDocumentNotDraft, locked.Number, locked.Status)
		}
		line, err = tx.InsertLine(ctx, Line{
			DocumentID:     documentID,
			ProductID:      product.ID,
			FromLocationID: fromID,
			ToLocationID:   toID,
			Qty:            req.Qty,
			UnitPrice:      req.UnitPrice,
			Notes:          req.Notes,
		})
		return err
	})
	if err != nil {
		return Line{}, err
	}
	return line, nil
}

func resolveLocation(ctx context.Context, dir masterdata.Directory, doc Document, barcode *string) (*masterdata.Location, error) {
	if barcode == nil || masterdata.NormalizeCode(*barcode) == "" {
		return nil, nil
	}
	loc, err := dir.FindLocationByBarcode(ctx, *barcode)
	if err != nil {
		return nil, err
	}
	if loc.WarehouseID != doc.WarehouseID {
		return nil, fmt.Errorf("%w: %s", ErrWarehouseMismatch, loc.Barcode)
	}
	return &loc, nil
}

func locationID(loc *masterdata.Location) *int64 {
	if loc == nil {
		return nil
	}
	id := loc.ID
	return &id
}

// RemoveLine deletes a line from a draft document.
func (s *Service) RemoveLine(ctx context.Context, documentID, lineID int64) error {
	if _, err := actorFrom(ctx); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.GetForUpdate(ctx, documentID)
		if err != nil {
			return err
		}
		if !doc.Status.CanEdit() {
			return fmt.Errorf("%w: %s is %s", ErrDocumentNotDraft, doc.Number, doc.Status)
		}
		return tx.DeleteLine(ctx, documentID, lineID)
	})
}

// Confirm applies every line to the ledger in one transaction. Stock and
// source location status are re-validated against the state inside the
// transaction; any failure leaves the ledger untouched.
func (s *Service) Confirm(ctx context.Context, id int64) (ConfirmResult, error) {
	actorID, err := actorFrom(ctx)
	if err != nil {
		return ConfirmResult{}, err
	}
	var result ConfirmResult
	var units int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		units = 0
		doc, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !doc.Status.CanConfirm() {
			return fmt.Errorf("%w: %s is %s", ErrDocumentNotDraft, doc.Number, doc.Status)
		}
		if len(doc.Lines) == 0 {
			return fmt.Errorf("%w: %s", ErrDocumentEmpty, doc.Number)
		}

		led := ledger.New(tx.Stock())
		movements := make([]Movement, 0, len(doc.Lines))
		for _, line := range doc.Lines {
			mv, err := s.applyLine(ctx, tx, led, doc, line)
			if err != nil {
				return fmt.Errorf("line %d: %w", line.ID, err)
			}
			rec := s.recorder.Record(audit.Event{
				Action:         mv.Action,
				ActorID:        actorID,
				ProductID:      audit.Int64(line.ProductID),
				FromLocationID: line.FromLocationID,
				ToLocationID:   line.ToLocationID,
				DocumentID:     audit.Int64(doc.ID),
				Qty:            audit.Int64(line.Qty),
				Meta:           map[string]any{"number": doc.Number, "line_id": line.ID},
			})
			if err := tx.Audit().Append(ctx, rec); err != nil {
				return err
			}
			movements = append(movements, mv)
			units += line.Qty
		}

		now := s.now().UTC()
		if err := tx.UpdateStatus(ctx, doc.ID, StatusConfirmed, actorID, now); err != nil {
			return fmt.Errorf("documents: update status: %w", err)
		}
		rec := s.recorder.Record(audit.Event{
			Action:     audit.ActionDocConfirm,
			ActorID:    actorID,
			DocumentID: audit.Int64(doc.ID),
			Qty:        audit.Int64(units),
			Meta:       map[string]any{"number": doc.Number, "type": string(doc.Type), "lines": len(doc.Lines)},
		})
		if err := tx.Audit().Append(ctx, rec); err != nil {
			return err
		}

		doc.Status = StatusConfirmed
		doc.ConfirmedBy = &actorID
		doc.ConfirmedAt = &now
		doc.UpdatedAt = now
		result = ConfirmResult{Document: doc, Movements: movements}
		return nil
	})
	if err != nil {
		return ConfirmResult{}, err
	}

	if s.stock != nil {
		s.stock.Invalidate(ctx)
	}
	if s.metrics != nil {
		s.metrics.DocumentConfirmed(string(result.Document.Type), units)
	}
	s.logger.Info("document confirmed",
		slog.Int64("document_id", result.Document.ID),
		slog.String("number", result.Document.Number),
		slog.Int("lines", len(result.Movements)),
		slog.Int64("actor_id", actorID))
	return result, nil
}

func (s *Service) applyLine(ctx context.Context, tx TxRepository, led *ledger.Ledger, doc Document, line Line) (Movement, error) {
	if err := doc.Type.CheckEnds(line.FromLocationID, line.ToLocationID); err != nil {
		return Movement{}, err
	}
	mv := Movement{
		LineID:         line.ID,
		Action:         doc.Type.MovementAction(),
		ProductID:      line.ProductID,
		FromLocationID: line.FromLocationID,
		ToLocationID:   line.ToLocationID,
		Qty:            line.Qty,
	}
	if line.FromLocationID != nil {
		loc, err := tx.Directory().GetLocation(ctx, *line.FromLocationID)
		if err != nil {
			return Movement{}, err
		}
		if err := masterdata.CheckSource(loc); err != nil {
			return Movement{}, err
		}
		debits, err := led.Deduct(ctx, line.ProductID, loc.ID, line.Qty)
		if err != nil {
			return Movement{}, err
		}
		mv.Debits = debits
	}
	if line.ToLocationID != nil {
		bal, err := led.Increase(ctx, line.ProductID, *line.ToLocationID, line.Qty)
		if err != nil {
			return Movement{}, err
		}
		mv.DestinationBalance = &bal
	}
	return mv, nil
}

// Cancel closes a draft document without touching the ledger.
func (s *Service) Cancel(ctx context.Context, id int64) (Document, error) {
	actorID, err := actorFrom(ctx)
	if err != nil {
		return Document{}, err
	}
	var cancelled Document
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !doc.Status.CanCancel() {
			return fmt.Errorf("%w: %s is %s", ErrDocumentNotDraft, doc.Number, doc.Status)
		}
		now := s.now().UTC()
		if err := tx.UpdateStatus(ctx, doc.ID, StatusCancelled, actorID, now); err != nil {
			return fmt.Errorf("documents: update status: %w", err)
		}
		rec := s.recorder.Record(audit.Event{
			Action:     audit.ActionDocCancel,
			ActorID:    actorID,
			DocumentID: audit.Int64(doc.ID),
			Meta:       map[string]any{"number": doc.Number, "type": string(doc.Type)},
		})
		if err := tx.Audit().Append(ctx, rec); err != nil {
			return err
		}
		doc.Status = StatusCancelled
		doc.CancelledBy = &actorID
		doc.CancelledAt = &now
		doc.UpdatedAt = now
		cancelled = doc
		return nil
	})
	if err != nil {
		return Document{}, err
	}
	if s.metrics != nil {
		s.metrics.DocumentCancelled(string(cancelled.Type))
	}
	s.logger.Info("document cancelled", slog.Int64("document_id", cancelled.ID), slog.String("number", cancelled.Number))
	return cancelled, nil
}
