package counts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-wms/internal/audit"
	"github.com/odyssey-erp/odyssey-wms/internal/ledger"
	"github.com/odyssey-erp/odyssey-wms/internal/masterdata"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/db"
)

// PGRepository persists inventory counts in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

type txRepo struct {
	tx    pgx.Tx
	stock *ledger.PGStore
	dir   *masterdata.PGRepository
	audit *audit.Store
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{
			tx:    tx,
			stock: ledger.NewTxStore(tx),
			dir:   masterdata.NewTxRepository(tx),
			audit: audit.NewStore(tx),
		})
	})
}

func (t *txRepo) Stock() ledger.Store             { return t.stock }
func (t *txRepo) Directory() masterdata.Directory { return t.dir }
func (t *txRepo) Audit() audit.Writer             { return t.audit }

const countColumns = `id, warehouse_id, name, status, created_by, completed_by, completed_at, created_at, updated_at`

func scanCount(row pgx.Row) (Count, error) {
	var c Count
	var status string
	err := row.Scan(&c.ID, &c.WarehouseID, &c.Name, &status, &c.CreatedBy, &c.CompletedBy, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt)
	c.Status = Status(status)
	return c, err
}

func getCount(ctx context.Context, conn db.DBTX, id int64, lock bool) (Count, error) {
	query := `SELECT ` + countColumns + ` FROM inventory_counts WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	c, err := scanCount(conn.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Count{}, fmt.Errorf("%w: id %d", ErrCountNotFound, id)
	}
	if err != nil {
		return Count{}, err
	}
	if c.LocationIDs, err = listLocationIDs(ctx, conn, id); err != nil {
		return Count{}, err
	}
	if c.Lines, err = listLines(ctx, conn, id); err != nil {
		return Count{}, err
	}
	return c, nil
}

func listLocationIDs(ctx context.Context, conn db.DBTX, countID int64) ([]int64, error) {
	rows, err := conn.Query(ctx, `SELECT location_id FROM inventory_count_locations
		WHERE inventory_count_id = $1 ORDER BY location_id`, countID)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

const lineColumns = `id, inventory_count_id, location_id, product_id, system_qty, counted_qty, counted_by, created_at, updated_at`

func scanLine(row pgx.Row) (Line, error) {
	var l Line
	err := row.Scan(&l.ID, &l.CountID, &l.LocationID, &l.ProductID, &l.SystemQty, &l.CountedQty, &l.CountedBy, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func listLines(ctx context.Context, conn db.DBTX, countID int64) ([]Line, error) {
	rows, err := conn.Query(ctx, `SELECT `+lineColumns+` FROM inventory_lines
		WHERE inventory_count_id = $1 ORDER BY id`, countID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Get retrieves a count with its locations and lines.
func (r *PGRepository) Get(ctx context.Context, id int64) (Count, error) {
	return getCount(ctx, r.pool, id, false)
}

// List lists counts matching filter, newest first.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Count, int, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.WarehouseID > 0 {
		add("warehouse_id = $%d", filter.WarehouseID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if !filter.UpdatedBefore.IsZero() {
		add("updated_at < $%d", filter.UpdatedBefore)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_counts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * perPage
	}
	args = append(args, perPage, offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM inventory_counts%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		countColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Count
	for rows.Next() {
		c, err := scanCount(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (t *txRepo) Insert(ctx context.Context, c Count) (Count, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO inventory_counts (warehouse_id, name, status, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		c.WarehouseID, c.Name, string(c.Status), c.CreatedBy,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (t *txRepo) AddLocations(ctx context.Context, countID int64, locationIDs []int64) error {
	if len(locationIDs) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO inventory_count_locations (inventory_count_id, location_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING`, countID, locationIDs)
	return err
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Count, error) {
	return getCount(ctx, t.tx, id, true)
}

func (t *txRepo) UpsertLine(ctx context.Context, line Line) (Line, bool, error) {
	var created bool
	err := t.tx.QueryRow(ctx, `INSERT INTO inventory_lines
			(inventory_count_id, location_id, product_id, system_qty, counted_qty, counted_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (inventory_count_id, location_id, product_id) DO UPDATE
			SET counted_qty = EXCLUDED.counted_qty,
			    counted_by = EXCLUDED.counted_by,
			    updated_at = NOW()
		RETURNING `+lineColumns+`, (xmax = 0)`,
		line.CountID, line.LocationID, line.ProductID, line.SystemQty, line.CountedQty, line.CountedBy,
	).Scan(&line.ID, &line.CountID, &line.LocationID, &line.ProductID, &line.SystemQty, &line.CountedQty,
		&line.CountedBy, &line.CreatedAt, &line.UpdatedAt, &created)
	if err != nil {
		return Line{}, false, err
	}
	_, err = t.tx.Exec(ctx, `UPDATE inventory_counts SET updated_at = NOW() WHERE id = $1`, line.CountID)
	return line, created, err
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, status Status, actorID int64, at time.Time) error {
	var query string
	args := []any{id, string(status)}
	switch status {
	case StatusCompleted:
		query = `UPDATE inventory_counts SET status = $2, completed_by = $3, completed_at = $4, updated_at = $4 WHERE id = $1`
		args = append(args, actorID, at)
	case StatusCancelled:
		query = `UPDATE inventory_counts SET status = $2, updated_at = $3 WHERE id = $1`
		args = append(args, at)
	case StatusInProgress:
		query = `UPDATE inventory_counts SET status = $2, completed_by = NULL, completed_at = NULL, updated_at = $3 WHERE id = $1`
		args = append(args, at)
	default:
		return fmt.Errorf("counts: unsupported status %s", status)
	}
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrCountNotFound, id)
	}
	return nil
}

func (t *txRepo) HeldByOtherCount(ctx context.Context, countID, locationID int64) (bool, error) {
	var held bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (
			SELECT 1 FROM inventory_count_locations icl
			JOIN inventory_counts ic ON ic.id = icl.inventory_count_id
			WHERE icl.location_id = $1 AND ic.id <> $2 AND ic.status = 'IN_PROGRESS'
		)`, locationID, countID).Scan(&held)
	return held, err
}
