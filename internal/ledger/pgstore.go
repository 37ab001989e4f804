package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-wms/internal/platform/db"
)

// PGStore implements Store and Reader on stock_rows.
type PGStore struct {
	db        db.DBTX
	forUpdate bool
}

// NewStore returns a store for reads on a pool.
func NewStore(conn db.DBTX) *PGStore {
	return &PGStore{db: conn}
}

// NewTxStore returns a store bound to tx that locks the rows it reads.
func NewTxStore(tx pgx.Tx) *PGStore {
	return &PGStore{db: tx, forUpdate: true}
}

const rowColumns = `id, product_id, location_id, container_id, qty, updated_at`

func (s *PGStore) lockClause() string {
	if s.forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

func (s *PGStore) queryRows(ctx context.Context, query string, args ...any) ([]StockRow, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockRow
	for rows.Next() {
		var r StockRow
		if err := rows.Scan(&r.ID, &r.ProductID, &r.LocationID, &r.ContainerID, &r.Qty, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) ListRows(ctx context.Context, productID, locationID int64) ([]StockRow, error) {
	return s.queryRows(ctx, `SELECT `+rowColumns+` FROM stock_rows
		WHERE product_id = $1 AND location_id = $2
		ORDER BY container_id NULLS FIRST, id`+s.lockClause(), productID, locationID)
}

func (s *PGStore) ListByLocation(ctx context.Context, locationID int64) ([]StockRow, error) {
	return s.queryRows(ctx, `SELECT `+rowColumns+` FROM stock_rows
		WHERE location_id = $1 AND qty > 0
		ORDER BY product_id, container_id NULLS FIRST, id`, locationID)
}

func (s *PGStore) ListByProduct(ctx context.Context, productID int64) ([]StockRow, error) {
	return s.queryRows(ctx, `SELECT `+rowColumns+` FROM stock_rows
		WHERE product_id = $1 AND qty > 0
		ORDER BY location_id, container_id NULLS FIRST, id`, productID)
}

func (s *PGStore) GetRow(ctx context.Context, key Key) (StockRow, error) {
	var r StockRow
	err := s.db.QueryRow(ctx, `SELECT `+rowColumns+` FROM stock_rows
		WHERE product_id = $1 AND location_id = $2 AND container_id IS NOT DISTINCT FROM $3`+s.lockClause(),
		key.ProductID, key.LocationID, key.ContainerID).
		Scan(&r.ID, &r.ProductID, &r.LocationID, &r.ContainerID, &r.Qty, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockRow{}, fmt.Errorf("%w: %s", ErrRowNotFound, key)
	}
	return r, err
}

func (s *PGStore) InsertRow(ctx context.Context, key Key, qty int64) (StockRow, error) {
	r := StockRow{ProductID: key.ProductID, LocationID: key.LocationID, ContainerID: key.ContainerID, Qty: qty}
	err := s.db.QueryRow(ctx, `INSERT INTO stock_rows (product_id, location_id, container_id, qty)
		VALUES ($1, $2, $3, $4) RETURNING id, updated_at`,
		key.ProductID, key.LocationID, key.ContainerID, qty).Scan(&r.ID, &r.UpdatedAt)
	if db.IsUniqueViolation(err) {
		// a concurrent transaction created the row after our snapshot
		return StockRow{}, fmt.Errorf("%w: stock row %s", db.ErrConcurrentUpdate, key)
	}
	return r, err
}

func (s *PGStore) UpdateQty(ctx context.Context, rowID, qty int64) error {
	tag, err := s.db.Exec(ctx, `UPDATE stock_rows SET qty = $2, updated_at = NOW() WHERE id = $1`, rowID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrRowNotFound, rowID)
	}
	return nil
}
