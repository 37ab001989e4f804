package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-wms/internal/audit"
	"github.com/odyssey-erp/odyssey-wms/internal/counts"
	"github.com/odyssey-erp/odyssey-wms/internal/ledger"
	"github.com/odyssey-erp/odyssey-wms/internal/masterdata"
)

// CountRepo implements counts.Repository.
type CountRepo struct{ s *Store }

// Counts returns the count repository view of s.
func (s *Store) Counts() *CountRepo { return &CountRepo{s: s} }

func (r *CountRepo) WithTx(ctx context.Context, fn func(context.Context, counts.TxRepository) error) error {
	return r.s.withTx(ctx, func() error { return fn(ctx, countTx{s: r.s}) })
}

func (r *CountRepo) Get(ctx context.Context, id int64) (counts.Count, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.count(id)
}

func (r *CountRepo) List(ctx context.Context, f counts.ListFilter) ([]counts.Count, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []counts.Count
	for _, id := range sortedIDs(r.s.st.counts) {
		c := r.s.st.counts[id]
		if f.WarehouseID > 0 && c.WarehouseID != f.WarehouseID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if !f.UpdatedBefore.IsZero() && !c.UpdatedAt.Before(f.UpdatedBefore) {
			continue
		}
		c.LocationIDs = append([]int64(nil), c.LocationIDs...)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, f.Page, f.PerPage), len(out), nil
}

// count must be called with mu held.
func (s *Store) count(id int64) (counts.Count, error) {
	c, ok := s.st.counts[id]
	if !ok {
		return counts.Count{}, fmt.Errorf("%w: id %d", counts.ErrCountNotFound, id)
	}
	c.LocationIDs = append([]int64{}, c.LocationIDs...)
	c.Lines = nil
	for _, lid := range sortedIDs(s.st.countLines) {
		if l := s.st.countLines[lid]; l.CountID == id {
			c.Lines = append(c.Lines, l)
		}
	}
	return c, nil
}

// SetCountUpdatedAt backdates a count, for stale-count scans.
func (s *Store) SetCountUpdatedAt(id int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.st.counts[id]; ok {
		c.UpdatedAt = at
		s.st.counts[id] = c
	}
}

type countTx struct{ s *Store }

func (t countTx) Stock() ledger.Store             { return t.s.Stock }
func (t countTx) Directory() masterdata.Directory { return t.s.Master }
func (t countTx) Audit() audit.Writer             { return auditWriter{s: t.s} }

func (t countTx) Insert(ctx context.Context, c counts.Count) (counts.Count, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	c.ID = t.s.nextID()
	c.CreatedAt = t.s.now().UTC()
	c.UpdatedAt = c.CreatedAt
	c.LocationIDs = []int64{}
	c.Lines = nil
	t.s.st.counts[c.ID] = c
	return c, nil
}

func (t countTx) AddLocations(ctx context.Context, countID int64, locationIDs []int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	c, ok := t.s.st.counts[countID]
	if !ok {
		return fmt.Errorf("%w: id %d", counts.ErrCountNotFound, countID)
	}
	for _, id := range locationIDs {
		if !slices.Contains(c.LocationIDs, id) {
			c.LocationIDs = append(c.LocationIDs, id)
		}
	}
	slices.Sort(c.LocationIDs)
	t.s.st.counts[countID] = c
	return nil
}

func (t countTx) GetForUpdate(ctx context.Context, id int64) (counts.Count, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.s.count(id)
}

func (t countTx) UpsertLine(ctx context.Context, line counts.Line) (counts.Line, bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	now := t.s.now().UTC()
	if c, ok := t.s.st.counts[line.CountID]; ok {
		c.UpdatedAt = now
		t.s.st.counts[line.CountID] = c
	}
	for id, existing := range t.s.st.countLines {
		if existing.CountID == line.CountID && existing.LocationID == line.LocationID && existing.ProductID == line.ProductID {
			existing.CountedQty = line.CountedQty
			existing.CountedBy = line.CountedBy
			existing.UpdatedAt = now
			t.s.st.countLines[id] = existing
			return existing, false, nil
		}
	}
	line.ID = t.s.nextID()
	line.CreatedAt, line.UpdatedAt = now, now
	t.s.st.countLines[line.ID] = line
	return line, true, nil
}

func (t countTx) UpdateStatus(ctx context.Context, id int64, status counts.Status, actorID int64, at time.Time) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	c, ok := t.s.st.counts[id]
	if !ok {
		return fmt.Errorf("%w: id %d", counts.ErrCountNotFound, id)
	}
	c.Status = status
	c.UpdatedAt = at
	switch status {
	case counts.StatusCompleted:
		c.CompletedBy, c.CompletedAt = &actorID, &at
	case counts.StatusInProgress:
		c.CompletedBy, c.CompletedAt = nil, nil
	}
	t.s.st.counts[id] = c
	return nil
}

func (t countTx) HeldByOtherCount(ctx context.Context, countID, locationID int64) (bool, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	for id, c := range t.s.st.counts {
		if id != countID && c.Status == counts.StatusInProgress && slices.Contains(c.LocationIDs, locationID) {
			return true, nil
		}
	}
	return false, nil
}
