// Package counts runs physical inventory counts: locations are locked while
// counted quantities are collected, then the ledger is reconciled to them.
package counts

import (
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-wms/internal/ledger"
)

// Status is the lifecycle of a count.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// IsValid checks if the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Open reports whether counted quantities are still accepted.
func (s Status) Open() bool {
	return s == StatusInProgress
}

// Count is one inventory count over a set of locations in a warehouse.
type Count struct {
	ID          int64      `json:"id"`
	WarehouseID int64      `json:"warehouse_id"`
	Name        string     `json:"name"`
	Status      Status     `json:"status"`
	CreatedBy   int64      `json:"created_by"`
	CompletedBy *int64     `json:"completed_by,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LocationIDs []int64    `json:"location_ids"`
	Lines       []Line     `json:"lines,omitempty"`
}

// TouchedLocations returns the locked locations plus every location that
// has a line, without duplicates, in ascending order.
func (c Count) TouchedLocations() []int64 {
	seen := make(map[int64]struct{}, len(c.LocationIDs)+len(c.Lines))
	var out []int64
	add := func(id int64) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range c.LocationIDs {
		add(id)
	}
	for _, l := range c.Lines {
		add(l.LocationID)
	}
	sortIDs(out)
	return out
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// Line is the counted quantity of one product at one location. SystemQty is
// captured at the first submission and never changes afterwards.
type Line struct {
	ID         int64     `json:"id"`
	CountID    int64     `json:"count_id"`
	LocationID int64     `json:"location_id"`
	ProductID  int64     `json:"product_id"`
	SystemQty  int64     `json:"system_qty"`
	CountedQty int64     `json:"counted_qty"`
	CountedBy  int64     `json:"counted_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Difference is counted minus system quantity.
func (l Line) Difference() int64 {
	return l.CountedQty - l.SystemQty
}

// SubmitResult is returned by SubmitCount.
type SubmitResult struct {
	Line       Line  `json:"line"`
	Difference int64 `json:"difference"`
	Created    bool  `json:"created"`
}

// Adjustment is one ledger correction made on completion.
type Adjustment struct {
	LineID     int64                 `json:"line_id"`
	ProductID  int64                 `json:"product_id"`
	LocationID int64                 `json:"location_id"`
	SystemQty  int64                 `json:"system_qty"`
	CountedQty int64                 `json:"counted_qty"`
	Difference int64                 `json:"difference"`
	Ledger     ledger.Reconciliation `json:"ledger"`
}

// CompleteResult is returned by Complete.
type CompleteResult struct {
	Count       Count        `json:"count"`
	Adjustments []Adjustment `json:"adjustments"`
}

// ListFilter narrows List. A non-zero UpdatedBefore keeps only counts not
// touched since then.
type ListFilter struct {
	WarehouseID   int64
	Status        Status
	UpdatedBefore time.Time
	Page          int
	PerPage       int
}
