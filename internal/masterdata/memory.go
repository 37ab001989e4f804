package masterdata

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Repository for tests and local tooling.
type MemoryStore struct {
	mu    sync.RWMutex
	state memoryState
}

type memoryState struct {
	nextID     int64
	warehouses map[int64]Warehouse
	products   map[int64]Product
	locations  map[int64]Location
	containers map[int64]Container
}

// MemorySnapshot is an opaque copy of a MemoryStore's contents.
type MemorySnapshot struct {
	state memoryState
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: memoryState{
		warehouses: make(map[int64]Warehouse),
		products:   make(map[int64]Product),
		locations:  make(map[int64]Location),
		containers: make(map[int64]Container),
	}}
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		nextID:     s.nextID,
		warehouses: make(map[int64]Warehouse, len(s.warehouses)),
		products:   make(map[int64]Product, len(s.products)),
		locations:  make(map[int64]Location, len(s.locations)),
		containers: make(map[int64]Container, len(s.containers)),
	}
	for k, v := range s.warehouses {
		out.warehouses[k] = v
	}
	for k, v := range s.products {
		out.products[k] = v
	}
	for k, v := range s.locations {
		out.locations[k] = v
	}
	for k, v := range s.containers {
		out.containers[k] = v
	}
	return out
}

// Snapshot captures the current contents.
func (m *MemoryStore) Snapshot() MemorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MemorySnapshot{state: m.state.clone()}
}

// Restore replaces the contents with a snapshot.
func (m *MemoryStore) Restore(s MemorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s.state.clone()
}

func (m *MemoryStore) FindActiveProductByCode(ctx context.Context, code string) (Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	code = NormalizeCode(code)
	var skuHit *Product
	for _, id := range sortedKeys(m.state.products) {
		p := m.state.products[id]
		if !p.IsActive {
			continue
		}
		if p.EAN != nil && *p.EAN == code {
			return p, nil
		}
		if skuHit == nil && p.MatchesCode(code) {
			hit := p
			skuHit = &hit
		}
	}
	if skuHit != nil {
		return *skuHit, nil
	}
	return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, code)
}

func (m *MemoryStore) FindLocationByBarcode(ctx context.Context, barcode string) (Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	barcode = NormalizeCode(barcode)
	for _, l := range m.state.locations {
		if l.Barcode == barcode {
			return l, nil
		}
	}
	return Location{}, fmt.Errorf("%w: %s", ErrLocationNotFound, barcode)
}

func (m *MemoryStore) GetLocation(ctx context.Context, id int64) (Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.state.locations[id]
	if !ok {
		return Location{}, fmt.Errorf("%w: id %d", ErrLocationNotFound, id)
	}
	return l, nil
}

func (m *MemoryStore) GetContainer(ctx context.Context, id int64) (Container, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.state.containers[id]
	if !ok {
		return Container{}, fmt.Errorf("%w: id %d", ErrContainerNotFound, id)
	}
	return c, nil
}

func (m *MemoryStore) LocationStatus(ctx context.Context, id int64) (LocationStatus, error) {
	l, err := m.GetLocation(ctx, id)
	if err != nil {
		return "", err
	}
	return l.Status, nil
}

func (m *MemoryStore) SetLocationStatus(ctx context.Context, id int64, status LocationStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.state.locations[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrLocationNotFound, id)
	}
	l.Status = status
	m.state.locations[id] = l
	return nil
}

func (m *MemoryStore) CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.state.warehouses {
		if existing.Code == w.Code {
			return Warehouse{}, fmt.Errorf("%w: warehouse %s", ErrDuplicateBarcode, w.Code)
		}
	}
	m.state.nextID++
	w.ID = m.state.nextID
	w.CreatedAt = time.Now().UTC()
	m.state.warehouses[w.ID] = w
	return w, nil
}

func (m *MemoryStore) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.state.warehouses[id]
	if !ok {
		return Warehouse{}, fmt.Errorf("%w: id %d", ErrWarehouseNotFound, id)
	}
	return w, nil
}

func (m *MemoryStore) CreateProduct(ctx context.Context, p Product) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.state.products {
		if FoldSKU(existing.SKU) == FoldSKU(p.SKU) {
			return Product{}, fmt.Errorf("%w: product %s", ErrDuplicateBarcode, p.SKU)
		}
		if p.EAN != nil && existing.EAN != nil && *existing.EAN == *p.EAN {
			return Product{}, fmt.Errorf("%w: product %s", ErrDuplicateBarcode, *p.EAN)
		}
	}
	m.state.nextID++
	p.ID = m.state.nextID
	p.CreatedAt = time.Now().UTC()
	m.state.products[p.ID] = p
	return p, nil
}

func (m *MemoryStore) GetProduct(ctx context.Context, id int64) (Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.state.products[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: id %d", ErrProductNotFound, id)
	}
	return p, nil
}

func (m *MemoryStore) SetProductActive(ctx context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.products[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrProductNotFound, id)
	}
	p.IsActive = active
	m.state.products[id] = p
	return nil
}

func (m *MemoryStore) CreateLocation(ctx context.Context, l Location) (Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.state.locations {
		if existing.Barcode == l.Barcode {
			return Location{}, fmt.Errorf("%w: location %s", ErrDuplicateBarcode, l.Barcode)
		}
	}
	if l.Status == "" {
		l.Status = LocationActive
	}
	m.state.nextID++
	l.ID = m.state.nextID
	l.CreatedAt = time.Now().UTC()
	m.state.locations[l.ID] = l
	return l, nil
}

func (m *MemoryStore) ListLocations(ctx context.Context, warehouseID int64) ([]Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Location
	for _, l := range m.state.locations {
		if l.WarehouseID == warehouseID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Barcode < out[j].Barcode })
	return out, nil
}

func (m *MemoryStore) CreateContainer(ctx context.Context, c Container) (Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.state.containers {
		if existing.Barcode == c.Barcode {
			return Container{}, fmt.Errorf("%w: container %s", ErrDuplicateBarcode, c.Barcode)
		}
	}
	m.state.nextID++
	c.ID = m.state.nextID
	c.CreatedAt = time.Now().UTC()
	m.state.containers[c.ID] = c
	return c, nil
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
