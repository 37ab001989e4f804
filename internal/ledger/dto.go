package ledger

// SplitRequest moves qty between rows at one location. A nil container id
// is the unassigned row.
type SplitRequest struct {
	ProductID       int64  `json:"product_id" validate:"required,gt=0"`
	LocationID      int64  `json:"location_id" validate:"required,gt=0"`
	FromContainerID *int64 `json:"from_container_id,omitempty" validate:"omitempty,gt=0"`
	ToContainerID   *int64 `json:"to_container_id,omitempty" validate:"omitempty,gt=0"`
	Qty             int64  `json:"qty" validate:"required,gt=0"`
}
