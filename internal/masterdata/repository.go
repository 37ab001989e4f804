package masterdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-wms/internal/platform/db"
)

// Repository is the full master data persistence contract.
type Repository interface {
	Directory
	CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	SetProductActive(ctx context.Context, id int64, active bool) error
	CreateLocation(ctx context.Context, l Location) (Location, error)
	ListLocations(ctx context.Context, warehouseID int64) ([]Location, error)
	CreateContainer(ctx context.Context, c Container) (Container, error)
}

// PGRepository implements Repository with pgx. Bound to a pgx.Tx it takes
// row locks on location status reads so status flips serialize with
// confirmations.
type PGRepository struct {
	db      db.DBTX
	lockRow bool
}

// NewRepository returns a repository running on a pool.
func NewRepository(conn db.DBTX) *PGRepository {
	return &PGRepository{db: conn}
}

// NewTxRepository returns a repository bound to a transaction.
func NewTxRepository(tx pgx.Tx) *PGRepository {
	return &PGRepository{db: tx, lockRow: true}
}

const productColumns = `id, sku, ean, name, is_active, created_at`
const locationColumns = `id, warehouse_id, barcode, name, status, created_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.EAN, &p.Name, &p.IsActive, &p.CreatedAt)
	return p, err
}

func scanLocation(row pgx.Row) (Location, error) {
	var l Location
	var status string
	err := row.Scan(&l.ID, &l.WarehouseID, &l.Barcode, &l.Name, &status, &l.CreatedAt)
	l.Status = LocationStatus(status)
	return l, err
}

// FindActiveProductByCode prefers an EAN hit over a SKU hit. SKUs are
// compared on sku_folded, which CreateProduct fills with FoldSKU.
func (r *PGRepository) FindActiveProductByCode(ctx context.Context, code string) (Product, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Product{}, ErrProductNotFound
	}
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+`
		FROM products
		WHERE is_active AND (ean = $1 OR sku_folded = $2)
		ORDER BY (ean IS NOT DISTINCT FROM $1) DESC, id
		LIMIT 1`, code, FoldSKU(code)))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, code)
	}
	return p, err
}

func (r *PGRepository) FindLocationByBarcode(ctx context.Context, barcode string) (Location, error) {
	barcode = NormalizeCode(barcode)
	l, err := scanLocation(r.db.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE barcode = $1`, barcode))
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, fmt.Errorf("%w: %s", ErrLocationNotFound, barcode)
	}
	return l, err
}

func (r *PGRepository) GetLocation(ctx context.Context, id int64) (Location, error) {
	l, err := scanLocation(r.db.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, fmt.Errorf("%w: id %d", ErrLocationNotFound, id)
	}
	return l, err
}

func (r *PGRepository) GetContainer(ctx context.Context, id int64) (Container, error) {
	var c Container
	err := r.db.QueryRow(ctx, `SELECT id, location_id, barcode, created_at FROM containers WHERE id = $1`, id).
		Scan(&c.ID, &c.LocationID, &c.Barcode, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Container{}, fmt.Errorf("%w: id %d", ErrContainerNotFound, id)
	}
	return c, err
}

func (r *PGRepository) LocationStatus(ctx context.Context, id int64) (LocationStatus, error) {
	query := `SELECT status FROM locations WHERE id = $1`
	if r.lockRow {
		query += ` FOR SHARE`
	}
	var status string
	if err := r.db.QueryRow(ctx, query, id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: id %d", ErrLocationNotFound, id)
		}
		return "", err
	}
	return LocationStatus(status), nil
}

func (r *PGRepository) SetLocationStatus(ctx context.Context, id int64, status LocationStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	tag, err := r.db.Exec(ctx, `UPDATE locations SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrLocationNotFound, id)
	}
	return nil
}

func (r *PGRepository) CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO warehouses (code, name) VALUES ($1, $2) RETURNING id, created_at`,
		w.Code, w.Name).Scan(&w.ID, &w.CreatedAt)
	if db.IsUniqueViolation(err) {
		return Warehouse{}, fmt.Errorf("%w: warehouse %s", ErrDuplicateBarcode, w.Code)
	}
	return w, err
}

func (r *PGRepository) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	var w Warehouse
	err := r.db.QueryRow(ctx, `SELECT id, code, name, created_at FROM warehouses WHERE id = $1`, id).
		Scan(&w.ID, &w.Code, &w.Name, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Warehouse{}, fmt.Errorf("%w: id %d", ErrWarehouseNotFound, id)
	}
	return w, err
}

func (r *PGRepository) CreateProduct(ctx context.Context, p Product) (Product, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO products (sku, sku_folded, ean, name, is_active)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		p.SKU, FoldSKU(p.SKU), p.EAN, p.Name, p.IsActive).Scan(&p.ID, &p.CreatedAt)
	if db.IsUniqueViolation(err) {
		return Product{}, fmt.Errorf("%w: product %s", ErrDuplicateBarcode, p.SKU)
	}
	return p, err
}

func (r *PGRepository) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: id %d", ErrProductNotFound, id)
	}
	return p, err
}

func (r *PGRepository) SetProductActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrProductNotFound, id)
	}
	return nil
}

func (r *PGRepository) CreateLocation(ctx context.Context, l Location) (Location, error) {
	if l.Status == "" {
		l.Status = LocationActive
	}
	err := r.db.QueryRow(ctx, `INSERT INTO locations (warehouse_id, barcode, name, status) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		l.WarehouseID, l.Barcode, l.Name, string(l.Status)).Scan(&l.ID, &l.CreatedAt)
	if db.IsUniqueViolation(err) {
		return Location{}, fmt.Errorf("%w: location %s", ErrDuplicateBarcode, l.Barcode)
	}
	return l, err
}

func (r *PGRepository) ListLocations(ctx context.Context, warehouseID int64) ([]Location, error) {
	rows, err := r.db.Query(ctx, `SELECT `+locationColumns+` FROM locations WHERE warehouse_id = $1 ORDER BY barcode`, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PGRepository) CreateContainer(ctx context.Context, c Container) (Container, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO containers (location_id, barcode) VALUES ($1, $2) RETURNING id, created_at`,
		c.LocationID, c.Barcode).Scan(&c.ID, &c.CreatedAt)
	if db.IsUniqueViolation(err) {
		return Container{}, fmt.Errorf("%w: container %s", ErrDuplicateBarcode, c.Barcode)
	}
	return c, err
}
