package masterdata

// CreateWarehouseRequest creates a warehouse.
type CreateWarehouseRequest struct {
	Code string `json:"code" validate:"required,max=32"`
	Name string `json:"name" validate:"required,max=200"`
}

// CreateProductRequest creates a product.
type CreateProductRequest struct {
	SKU  string  `json:"sku" validate:"required,max=64"`
	EAN  *string `json:"ean,omitempty" validate:"omitempty,numeric,min=8,max=14"`
	Name string  `json:"name" validate:"required,max=200"`
}

// CreateLocationRequest creates a location in a warehouse.
type CreateLocationRequest struct {
	WarehouseID int64  `json:"warehouse_id" validate:"required,gt=0"`
	Barcode     string `json:"barcode" validate:"required,max=64"`
	Name        string `json:"name" validate:"required,max=200"`
}

// CreateContainerRequest parks a new container at a location.
type CreateContainerRequest struct {
	LocationID int64  `json:"location_id" validate:"required,gt=0"`
	Barcode    string `json:"barcode" validate:"required,max=64"`
}
