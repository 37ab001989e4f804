package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientStock matches every *InsufficientStockError via errors.Is.
	ErrInsufficientStock = errors.New("ledger: insufficient stock")
	ErrRowNotFound       = errors.New("ledger: stock row not found")
	ErrInvalidQuantity   = errors.New("ledger: quantity must be positive")
	ErrSameContainer     = errors.New("ledger: source and target rows are the same")
	ErrContainerMismatch = errors.New("ledger: container is parked at another location")
)

// InsufficientStockError carries the quantities that made a debit fail.
type InsufficientStockError struct {
	ProductID   int64
	LocationID  int64
	ContainerID *int64
	Available   int64
	Requested   int64
}

func (e *InsufficientStockError) Error() string {
	if e.ContainerID != nil {
		return fmt.Sprintf("ledger: insufficient stock for product %d at location %d container %d: available %d, requested %d",
			e.ProductID, e.LocationID, *e.ContainerID, e.Available, e.Requested)
	}
	return fmt.Sprintf("ledger: insufficient stock for product %d at location %d: available %d, requested %d",
		e.ProductID, e.LocationID, e.Available, e.Requested)
}

// Is makes errors.Is(err, ErrInsufficientStock) hold.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// AsInsufficientStock unwraps err into an *InsufficientStockError.
func AsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}
