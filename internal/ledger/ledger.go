package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Ledger applies stock movements on top of a Store. Every mutation keeps
// each row's quantity at or above zero.
type Ledger struct {
	store Store
}

// New wraps store.
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// QuantityOnHand sums matching rows. A nil containerID matches every row of
// (product, location); otherwise only that container's row counts.
func (l *Ledger) QuantityOnHand(ctx context.Context, productID, locationID int64, containerID *int64) (int64, error) {
	if containerID != nil {
		row, err := l.store.GetRow(ctx, ContainerKey(productID, locationID, *containerID))
		if errors.Is(err, ErrRowNotFound) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		return row.Qty, nil
	}
	rows, err := l.store.ListRows(ctx, productID, locationID)
	if err != nil {
		return 0, err
	}
	return sumRows(rows), nil
}

// Adjust applies a signed delta to exactly one row. The row is created only
// for a positive delta.
func (l *Ledger) Adjust(ctx context.Context, key Key, delta int64) (int64, error) {
	row, err := l.store.GetRow(ctx, key)
	if errors.Is(err, ErrRowNotFound) {
		switch {
		case delta < 0:
			return 0, insufficient(key, 0, -delta)
		case delta == 0:
			return 0, nil
		}
		row, err = l.store.InsertRow(ctx, key, delta)
		if err != nil {
			return 0, fmt.Errorf("ledger: insert row %s: %w", key, err)
		}
		return row.Qty, nil
	}
	if err != nil {
		return 0, err
	}
	if delta == 0 {
		return row.Qty, nil
	}
	next := row.Qty + delta
	if next < 0 {
		return 0, insufficient(key, row.Qty, -delta)
	}
	if err := l.store.UpdateQty(ctx, row.ID, next); err != nil {
		return 0, fmt.Errorf("ledger: update row %s: %w", key, err)
	}
	return next, nil
}

// Increase adds qty to the unassigned row of (product, location).
func (l *Ledger) Increase(ctx context.Context, productID, locationID, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidQuantity, qty)
	}
	return l.Adjust(ctx, UnassignedKey(productID, locationID), qty)
}

// Deduct removes qty from (product, location) across all of its rows. The
// total is checked before any row is written; rows are then drained in
// SortRows order.
func (l *Ledger) Deduct(ctx context.Context, productID, locationID, qty int64) ([]Debit, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, qty)
	}
	rows, err := l.store.ListRows(ctx, productID, locationID)
	if err != nil {
		return nil, err
	}
	available := sumRows(rows)
	if available < qty {
		return nil, insufficient(UnassignedKey(productID, locationID), available, qty)
	}
	SortRows(rows)

	remaining := qty
	debits := make([]Debit, 0, 1)
	for _, row := range rows {
		if remaining == 0 {
			break
		}
		if row.Qty <= 0 {
			continue
		}
		take := min(row.Qty, remaining)
		left := row.Qty - take
		if err := l.store.UpdateQty(ctx, row.ID, left); err != nil {
			return nil, fmt.Errorf("ledger: update row %s: %w", row.Key(), err)
		}
		debits = append(debits, Debit{RowID: row.ID, ContainerID: row.ContainerID, Qty: take, Remaining: left})
		remaining -= take
	}
	return debits, nil
}

// Reconcile makes the (product, location) total equal target. Shortfalls are
// added to the unassigned row; surpluses are deducted like Deduct, so the
// unassigned row is drained before container rows.
func (l *Ledger) Reconcile(ctx context.Context, productID, locationID, target int64) (Reconciliation, error) {
	if target < 0 {
		return Reconciliation{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, target)
	}
	before, err := l.QuantityOnHand(ctx, productID, locationID, nil)
	if err != nil {
		return Reconciliation{}, err
	}
	rec := Reconciliation{ProductID: productID, LocationID: locationID, Before: before, After: target, Delta: target - before}
	switch {
	case rec.Delta > 0:
		if _, err := l.Increase(ctx, productID, locationID, rec.Delta); err != nil {
			return Reconciliation{}, err
		}
	case rec.Delta < 0:
		debits, err := l.Deduct(ctx, productID, locationID, -rec.Delta)
		if err != nil {
			return Reconciliation{}, err
		}
		rec.Debits = debits
	}
	return rec, nil
}

// Split moves qty between two rows of the same (product, location), e.g.
// from unassigned stock into a container.
func (l *Ledger) Split(ctx context.Context, productID, locationID int64, from, to *int64, qty int64) (SplitResult, error) {
	if qty <= 0 {
		return SplitResult{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, qty)
	}
	if sameContainer(from, to) {
		return SplitResult{}, ErrSameContainer
	}
	fromKey := Key{ProductID: productID, LocationID: locationID, ContainerID: from}
	toKey := Key{ProductID: productID, LocationID: locationID, ContainerID: to}
	fromBal, err := l.Adjust(ctx, fromKey, -qty)
	if err != nil {
		return SplitResult{}, err
	}
	toBal, err := l.Adjust(ctx, toKey, qty)
	if err != nil {
		return SplitResult{}, err
	}
	return SplitResult{
		ProductID:   productID,
		LocationID:  locationID,
		From:        from,
		To:          to,
		Qty:         qty,
		FromBalance: fromBal,
		ToBalance:   toBal,
	}, nil
}

// SortRows orders rows for deduction: unassigned first, then by container
// id, then by row id.
func SortRows(rows []StockRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch {
		case a.ContainerID == nil && b.ContainerID != nil:
			return true
		case a.ContainerID != nil && b.ContainerID == nil:
			return false
		case a.ContainerID != nil && b.ContainerID != nil && *a.ContainerID != *b.ContainerID:
			return *a.ContainerID < *b.ContainerID
		default:
			return a.ID < b.ID
		}
	})
}

func sumRows(rows []StockRow) int64 {
	var total int64
	for _, r := range rows {
		total += r.Qty
	}
	return total
}

func sameContainer(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func insufficient(key Key, available, requested int64) error {
	return &InsufficientStockError{
		ProductID:   key.ProductID,
		LocationID:  key.LocationID,
		ContainerID: key.ContainerID,
		Available:   available,
		Requested:   requested,
	}
}
