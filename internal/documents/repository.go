package documents

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

// PGRepository handles database operations for documents.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new document repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

type txRepo struct {
	tx    pgx.Tx
	stock *ledger.PGStore
	dir   *masterdata.PGRepository
	audit *audit.Store
}

// WithTx executes fn within a repeatable-read transaction.
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

func (r *PGRepository) Directory() masterdata.Directory { return masterdata.NewRepository(r.pool) }
func (r *PGRepository) Stock() ledger.Store             { return ledger.NewStore(r.pool) }

func (t *txRepo) Stock() ledger.Store             { return t.stock }
func (t *txRepo) Directory() masterdata.Directory { return t.dir }
func (t *txRepo) Audit() audit.Writer             { return t.audit }

// ============================================================================
// READ OPERATIONS
// ============================================================================

const documentColumns = `id, number, doc_type, status, warehouse_id, reference, notes, created_by,
	confirmed_by, confirmed_at, cancelled_by, cancelled_at, created_at, updated_at`

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	var docType, status string
	err := row.Scan(&d.ID, &d.Number, &docType, &status, &d.WarehouseID, &d.Reference, &d.Notes, &d.CreatedBy,
		&d.ConfirmedBy, &d.ConfirmedAt, &d.CancelledBy, &d.CancelledAt, &d.CreatedAt, &d.UpdatedAt)
	d.Type = Type(docType)
	d.Status = Status(status)
	return d, err
}

func getDocument(ctx context.Context, conn db.DBTX, id int64, lock bool) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	doc, err := scanDocument(conn.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, fmt.Errorf("%w: id %d", ErrDocumentNotFound, id)
	}
	if err != nil {
		return Document{}, err
	}
	lines, err := listLines(ctx, conn, id)
	if err != nil {
		return Document{}, err
	}
	doc.Lines = lines
	return doc, nil
}

func listLines(ctx context.Context, conn db.DBTX, documentID int64) ([]Line, error) {
	rows, err := conn.Query(ctx, `SELECT id, document_id, product_id, from_location_id, to_location_id,
			qty, unit_price, notes, created_at
		FROM document_lines
		WHERE document_id = $1
		ORDER BY id`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.ProductID, &l.FromLocationID, &l.ToLocationID,
			&l.Qty, &l.UnitPrice, &l.Notes, &l.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Get retrieves a document with its lines.
func (r *PGRepository) Get(ctx context.Context, id int64) (Document, error) {
	return getDocument(ctx, r.pool, id, false)
}

// List lists documents matching filter, newest first.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Document, int, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.WarehouseID > 0 {
		add("warehouse_id = $%d", filter.WarehouseID)
	}
	if filter.Type != "" {
		add("doc_type = $%d", string(filter.Type))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`+where, args...).Scan(&total); err != nil {
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
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM documents%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		documentColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, d)
	}
	return docs, total, rows.Err()
}

// ============================================================================
// TRANSACTIONAL OPERATIONS
// ============================================================================

func (t *txRepo) NextSequence(ctx context.Context, docType Type, year int) (int64, error) {
	var seq int64
	err := t.tx.QueryRow(ctx, `INSERT INTO document_sequences (doc_type, year, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, year) DO UPDATE SET last_value = document_sequences.last_value + 1
		RETURNING last_value`, string(docType), year).Scan(&seq)
	return seq, err
}

func (t *txRepo) Insert(ctx context.Context, doc Document) (Document, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO documents (number, doc_type, status, warehouse_id, reference, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		doc.Number, string(doc.Type), string(doc.Status), doc.WarehouseID, doc.Reference, doc.Notes, doc.CreatedBy,
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	return doc, err
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Document, error) {
	return getDocument(ctx, t.tx, id, true)
}

func (t *txRepo) InsertLine(ctx context.Context, line Line) (Line, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO document_lines
			(document_id, product_id, from_location_id, to_location_id, qty, unit_price, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		line.DocumentID, line.ProductID, line.FromLocationID, line.ToLocationID, line.Qty, line.UnitPrice, line.Notes,
	).Scan(&line.ID, &line.CreatedAt)
	if err != nil {
		return Line{}, err
	}
	_, err = t.tx.Exec(ctx, `UPDATE documents SET updated_at = NOW() WHERE id = $1`, line.DocumentID)
	return line, err
}

func (t *txRepo) DeleteLine(ctx context.Context, documentID, lineID int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM document_lines WHERE id = $1 AND document_id = $2`, lineID, documentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrLineNotFound, lineID)
	}
	return nil
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, status Status, actorID int64, at time.Time) error {
	var query string
	switch status {
	case StatusConfirmed:
		query = `UPDATE documents SET status = $2, confirmed_by = $3, confirmed_at = $4, updated_at = $4 WHERE id = $1`
	case StatusCancelled:
		query = `UPDATE documents SET status = $2, cancelled_by = $3, cancelled_at = $4, updated_at = $4 WHERE id = $1`
	default:
		return fmt.Errorf("documents: unsupported status transition to %s", status)
	}
	tag, err := t.tx.Exec(ctx, query, id, string(status), actorID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrDocumentNotFound, id)
	}
	return nil
}
