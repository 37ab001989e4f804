package counts

import "errors"

var (
	ErrCountNotFound = errors.New("counts: inventory count not found")
	// ErrInventoryNotInProgress rejects submissions and transitions on a closed count.
	ErrInventoryNotInProgress     = errors.New("counts: inventory count is not in progress")
	ErrInventoryEmpty             = errors.New("counts: inventory count has no lines")
	ErrInventoryAlreadyInProgress = errors.New("counts: inventory count is already in progress")
	ErrInvalidQuantity            = errors.New("counts: counted quantity must not be negative")
	ErrNameRequired               = errors.New("counts: name required")
	ErrWarehouseMismatch          = errors.New("counts: location belongs to another warehouse")
)
