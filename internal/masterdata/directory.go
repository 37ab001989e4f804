package masterdata

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Directory is the lookup surface the stock engines consume.
type Directory interface {
	// FindActiveProductByCode matches an exact EAN or a case-insensitive SKU
	// among active products.
	FindActiveProductByCode(ctx context.Context, code string) (Product, error)
	FindLocationByBarcode(ctx context.Context, barcode string) (Location, error)
	GetWarehouse(ctx context.Context, id int64) (Warehouse, error)
	GetLocation(ctx context.Context, id int64) (Location, error)
	GetContainer(ctx context.Context, id int64) (Container, error)
	LocationStatus(ctx context.Context, id int64) (LocationStatus, error)
	SetLocationStatus(ctx context.Context, id int64, status LocationStatus) error
}

// NormalizeCode trims scanner noise from a code.
func NormalizeCode(code string) string {
	return strings.TrimSpace(code)
}

// FoldSKU returns the case-folded form used for SKU comparison.
func FoldSKU(sku string) string {
	return cases.Fold().String(NormalizeCode(sku))
}

// MatchesCode reports whether code identifies p: exact EAN or folded SKU.
func (p Product) MatchesCode(code string) bool {
	code = NormalizeCode(code)
	if code == "" {
		return false
	}
	if p.EAN != nil && *p.EAN == code {
		return true
	}
	return FoldSKU(p.SKU) == FoldSKU(code)
}

// CheckSource rejects locations that cannot give stock away.
func CheckSource(loc Location) error {
	switch loc.Status {
	case LocationCounting:
		return fmt.Errorf("%w: %s", ErrLocationCounting, loc.Barcode)
	case LocationBlocked:
		return fmt.Errorf("%w: %s", ErrLocationBlocked, loc.Barcode)
	default:
		return nil
	}
}
