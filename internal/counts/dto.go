package counts

// CreateRequest starts a count and locks the given locations.
type CreateRequest struct {
	WarehouseID int64   `json:"warehouse_id" validate:"required,gt=0"`
	Name        string  `json:"name" validate:"required,max=200"`
	LocationIDs []int64 `json:"location_ids,omitempty" validate:"omitempty,dive,gt=0"`
}

// SubmitRequest records a counted quantity by scanned codes.
type SubmitRequest struct {
	LocationBarcode string `json:"location_barcode" validate:"required,max=64"`
	ProductCode     string `json:"product_code" validate:"required,max=64"`
	CountedQty      int64  `json:"counted_qty" validate:"gte=0"`
}
