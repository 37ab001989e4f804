package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-wms/internal/audit"
	"github.com/odyssey-erp/odyssey-wms/internal/masterdata"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/db"
)

// PGRepository persists stock in PostgreSQL.
type PGRepository struct {
	*PGStore
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{PGStore: NewStore(pool), pool: pool}
}

type txRepo struct {
	stock *PGStore
	dir   *masterdata.PGRepository
	audit *audit.Store
}

func (t txRepo) Stock() Store                    { return t.stock }
func (t txRepo) Directory() masterdata.Directory { return t.dir }
func (t txRepo) Audit() audit.Writer             { return t.audit }

// WithTx executes the callback inside a repeatable-read transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, txRepo{
			stock: NewTxStore(tx),
			dir:   masterdata.NewTxRepository(tx),
			audit: audit.NewStore(tx),
		})
	})
}
