package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps stock rows in process. It implements Store and Reader.
type MemoryStore struct {
	mu     sync.RWMutex
	rows   map[int64]StockRow
	nextID int64
	now    func() time.Time
}

// MemorySnapshot is an opaque copy of a MemoryStore's rows.
type MemorySnapshot struct {
	rows   map[int64]StockRow
	nextID int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[int64]StockRow), now: time.Now}
}

// Snapshot captures the current rows.
func (m *MemoryStore) Snapshot() MemorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MemorySnapshot{rows: copyRows(m.rows), nextID: m.nextID}
}

// Restore replaces the rows with a snapshot.
func (m *MemoryStore) Restore(s MemorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = copyRows(s.rows)
	m.nextID = s.nextID
}

func copyRows(in map[int64]StockRow) map[int64]StockRow {
	out := make(map[int64]StockRow, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *MemoryStore) ListRows(ctx context.Context, productID, locationID int64) ([]StockRow, error) {
	return m.filter(func(r StockRow) bool {
		return r.ProductID == productID && r.LocationID == locationID
	}), nil
}

func (m *MemoryStore) ListByLocation(ctx context.Context, locationID int64) ([]StockRow, error) {
	return m.filter(func(r StockRow) bool { return r.LocationID == locationID }), nil
}

func (m *MemoryStore) ListByProduct(ctx context.Context, productID int64) ([]StockRow, error) {
	return m.filter(func(r StockRow) bool { return r.ProductID == productID }), nil
}

// All returns every row, mainly for invariant checks in tests.
func (m *MemoryStore) All() []StockRow {
	return m.filter(func(StockRow) bool { return true })
}

func (m *MemoryStore) filter(keep func(StockRow) bool) []StockRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []StockRow
	for _, r := range m.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	SortRows(out)
	return out
}

func (m *MemoryStore) GetRow(ctx context.Context, key Key) (StockRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rows {
		if r.ProductID == key.ProductID && r.LocationID == key.LocationID && sameContainer(r.ContainerID, key.ContainerID) {
			return r, nil
		}
	}
	return StockRow{}, fmt.Errorf("%w: %s", ErrRowNotFound, key)
}

func (m *MemoryStore) InsertRow(ctx context.Context, key Key, qty int64) (StockRow, error) {
	if qty < 0 {
		return StockRow{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, qty)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ProductID == key.ProductID && r.LocationID == key.LocationID && sameContainer(r.ContainerID, key.ContainerID) {
			return StockRow{}, fmt.Errorf("ledger: row %s already exists", key)
		}
	}
	m.nextID++
	row := StockRow{
		ID:          m.nextID,
		ProductID:   key.ProductID,
		LocationID:  key.LocationID,
		ContainerID: key.ContainerID,
		Qty:         qty,
		UpdatedAt:   m.now().UTC(),
	}
	if key.ContainerID != nil {
		c := *key.ContainerID
		row.ContainerID = &c
	}
	m.rows[row.ID] = row
	return row, nil
}

func (m *MemoryStore) UpdateQty(ctx context.Context, rowID, qty int64) error {
	if qty < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, qty)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[rowID]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrRowNotFound, rowID)
	}
	row.Qty = qty
	row.UpdatedAt = m.now().UTC()
	m.rows[rowID] = row
	return nil
}
