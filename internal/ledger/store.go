package ledger

import "context"

// Store persists stock rows. Implementations bound to a transaction must
// lock the rows they return so concurrent writers serialize.
type Store interface {
	// ListRows returns every row for (product, location) regardless of container.
	ListRows(ctx context.Context, productID, locationID int64) ([]StockRow, error)
	// GetRow returns the row with exactly this key or ErrRowNotFound.
	GetRow(ctx context.Context, key Key) (StockRow, error)
	InsertRow(ctx context.Context, key Key, qty int64) (StockRow, error)
	UpdateQty(ctx context.Context, rowID, qty int64) error
}

// Reader serves stock listings outside of transactions.
type Reader interface {
	ListRows(ctx context.Context, productID, locationID int64) ([]StockRow, error)
	ListByLocation(ctx context.Context, locationID int64) ([]StockRow, error)
	ListByProduct(ctx context.Context, productID int64) ([]StockRow, error)
}
