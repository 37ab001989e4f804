// Package ledger tracks quantity-on-hand as additive rows keyed by product,
// location and optional container.
package ledger

import (
	"fmt"
	"time"
)

// Key identifies one stock row. A nil ContainerID is the unassigned row.
type Key struct {
	ProductID   int64
	LocationID  int64
	ContainerID *int64
}

// UnassignedKey returns the key of the (product, location) row with no container.
func UnassignedKey(productID, locationID int64) Key {
	return Key{ProductID: productID, LocationID: locationID}
}

// ContainerKey returns the key of a container scoped row.
func ContainerKey(productID, locationID, containerID int64) Key {
	return Key{ProductID: productID, LocationID: locationID, ContainerID: &containerID}
}

// Unassigned reports whether the key has no container.
func (k Key) Unassigned() bool {
	return k.ContainerID == nil
}

func (k Key) String() string {
	if k.ContainerID == nil {
		return fmt.Sprintf("p%d@l%d", k.ProductID, k.LocationID)
	}
	return fmt.Sprintf("p%d@l%d/c%d", k.ProductID, k.LocationID, *k.ContainerID)
}

// StockRow is a non-negative quantity of one product at one location,
// optionally inside one container.
type StockRow struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"product_id"`
	LocationID  int64     `json:"location_id"`
	ContainerID *int64    `json:"container_id,omitempty"`
	Qty         int64     `json:"qty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Key returns the row's key.
func (r StockRow) Key() Key {
	return Key{ProductID: r.ProductID, LocationID: r.LocationID, ContainerID: r.ContainerID}
}

// Debit records how much one row gave during a multi-row deduction.
type Debit struct {
	RowID       int64  `json:"row_id"`
	ContainerID *int64 `json:"container_id,omitempty"`
	Qty         int64  `json:"qty"`
	Remaining   int64  `json:"remaining"`
}

// Reconciliation is the outcome of setting a (product, location) total.
type Reconciliation struct {
	ProductID  int64   `json:"product_id"`
	LocationID int64   `json:"location_id"`
	Before     int64   `json:"before"`
	After      int64   `json:"after"`
	Delta      int64   `json:"delta"`
	Debits     []Debit `json:"debits,omitempty"`
}

// SplitResult reports both sides of a move between rows at one location.
type SplitResult struct {
	ProductID   int64  `json:"product_id"`
	LocationID  int64  `json:"location_id"`
	From        *int64 `json:"from_container_id,omitempty"`
	To          *int64 `json:"to_container_id,omitempty"`
	Qty         int64  `json:"qty"`
	FromBalance int64  `json:"from_balance"`
	ToBalance   int64  `json:"to_balance"`
}
