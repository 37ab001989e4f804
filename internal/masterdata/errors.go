package masterdata

import "errors"

var (
	ErrProductNotFound   = errors.New("masterdata: product not found")
	ErrLocationNotFound  = errors.New("masterdata: location not found")
	ErrContainerNotFound = errors.New("masterdata: container not found")
	ErrWarehouseNotFound = errors.New("masterdata: warehouse not found")

	// ErrLocationBlocked and ErrLocationCounting reject a valid location as a stock source.
	ErrLocationBlocked  = errors.New("masterdata: location is blocked")
	ErrLocationCounting = errors.New("masterdata: location is being counted")

	ErrDuplicateBarcode = errors.New("masterdata: duplicate barcode")
	ErrInvalidStatus    = errors.New("masterdata: invalid location status")
	ErrCodeRequired     = errors.New("masterdata: code required")
)
