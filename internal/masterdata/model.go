// Package masterdata resolves products, locations and containers for the
// stock engines and manages their lifecycle.
package masterdata

import "time"

// LocationStatus controls whether a location can source stock movements.
type LocationStatus string

const (
	LocationActive   LocationStatus = "ACTIVE"
	LocationBlocked  LocationStatus = "BLOCKED"
	LocationCounting LocationStatus = "COUNTING"
)

// IsValid checks if the status is known.
func (s LocationStatus) IsValid() bool {
	switch s {
	case LocationActive, LocationBlocked, LocationCounting:
		return true
	default:
		return false
	}
}

// Warehouse groups locations.
type Warehouse struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is a stock keeping unit identified by SKU and optionally EAN.
type Product struct {
	ID        int64     `json:"id"`
	SKU       string    `json:"sku"`
	EAN       *string   `json:"ean,omitempty"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Location is a barcoded storage place inside a warehouse.
type Location struct {
	ID          int64          `json:"id"`
	WarehouseID int64          `json:"warehouse_id"`
	Barcode     string         `json:"barcode"`
	Name        string         `json:"name"`
	Status      LocationStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Container is a barcoded carrier (pallet, tote) parked at a location.
type Container struct {
	ID         int64     `json:"id"`
	LocationID int64     `json:"location_id"`
	Barcode    string    `json:"barcode"`
	CreatedAt  time.Time `json:"created_at"`
}
