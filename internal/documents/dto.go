package documents

import "github.com/shopspring/decimal"

// CreateRequest opens a draft document.
type CreateRequest struct {
	Type        Type    `json:"type" validate:"required,oneof=PZ WZ MM INV_ADJ"`
	WarehouseID int64   `json:"warehouse_id" validate:"required,gt=0"`
	Reference   *string `json:"reference,omitempty" validate:"omitempty,max=100"`
	Notes       *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// AddLineRequest adds a line by scanned codes. Which locations are required
// depends on the document type.
type AddLineRequest struct {
	ProductCode  string           `json:"product_code" validate:"required,max=64"`
	FromLocation *string          `json:"from_location,omitempty" validate:"omitempty,max=64"`
	ToLocation   *string          `json:"to_location,omitempty" validate:"omitempty,max=64"`
	Qty          int64            `json:"qty" validate:"required,gt=0"`
	UnitPrice    *decimal.Decimal `json:"unit_price,omitempty"`
	Notes        *string          `json:"notes,omitempty" validate:"omitempty,max=500"`
}
