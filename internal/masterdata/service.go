package masterdata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Service manages master data used by the stock engines.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs the service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

func (s *Service) CreateWarehouse(ctx context.Context, req CreateWarehouseRequest) (Warehouse, error) {
	code := NormalizeCode(req.Code)
	if code == "" {
		return Warehouse{}, ErrCodeRequired
	}
	return s.repo.CreateWarehouse(ctx, Warehouse{Code: code, Name: strings.TrimSpace(req.Name)})
}

func (s *Service) CreateProduct(ctx context.Context, req CreateProductRequest) (Product, error) {
	sku := NormalizeCode(req.SKU)
	if sku == "" {
		return Product{}, ErrCodeRequired
	}
	p := Product{SKU: sku, Name: strings.TrimSpace(req.Name), IsActive: true}
	if req.EAN != nil {
		if ean := NormalizeCode(*req.EAN); ean != "" {
			p.EAN = &ean
		}
	}
	return s.repo.CreateProduct(ctx, p)
}

func (s *Service) DeactivateProduct(ctx context.Context, id int64) error {
	return s.repo.SetProductActive(ctx, id, false)
}

func (s *Service) CreateLocation(ctx context.Context, req CreateLocationRequest) (Location, error) {
	barcode := NormalizeCode(req.Barcode)
	if barcode == "" {
		return Location{}, ErrCodeRequired
	}
	if _, err := s.repo.GetWarehouse(ctx, req.WarehouseID); err != nil {
		return Location{}, err
	}
	return s.repo.CreateLocation(ctx, Location{
		WarehouseID: req.WarehouseID,
		Barcode:     barcode,
		Name:        strings.TrimSpace(req.Name),
		Status:      LocationActive,
	})
}

func (s *Service) CreateContainer(ctx context.Context, req CreateContainerRequest) (Container, error) {
	barcode := NormalizeCode(req.Barcode)
	if barcode == "" {
		return Container{}, ErrCodeRequired
	}
	if _, err := s.repo.GetLocation(ctx, req.LocationID); err != nil {
		return Container{}, err
	}
	return s.repo.CreateContainer(ctx, Container{LocationID: req.LocationID, Barcode: barcode})
}

func (s *Service) ListLocations(ctx context.Context, warehouseID int64) ([]Location, error) {
	if _, err := s.repo.GetWarehouse(ctx, warehouseID); err != nil {
		return nil, err
	}
	return s.repo.ListLocations(ctx, warehouseID)
}

// ResolveProduct exposes the code lookup used by document lines.
func (s *Service) ResolveProduct(ctx context.Context, code string) (Product, error) {
	return s.repo.FindActiveProductByCode(ctx, code)
}

// ResolveLocation exposes the barcode lookup used by document lines.
func (s *Service) ResolveLocation(ctx context.Context, barcode string) (Location, error) {
	return s.repo.FindLocationByBarcode(ctx, barcode)
}

// BlockLocation takes a location out of service. A location under count
// cannot be blocked or unblocked by hand.
func (s *Service) BlockLocation(ctx context.Context, id int64) (Location, error) {
	return s.setManualStatus(ctx, id, LocationBlocked)
}

// UnblockLocation returns a blocked location to service.
func (s *Service) UnblockLocation(ctx context.Context, id int64) (Location, error) {
	return s.setManualStatus(ctx, id, LocationActive)
}

func (s *Service) setManualStatus(ctx context.Context, id int64, status LocationStatus) (Location, error) {
	loc, err := s.repo.GetLocation(ctx, id)
	if err != nil {
		return Location{}, err
	}
	if loc.Status == LocationCounting {
		return Location{}, fmt.Errorf("%w: %s", ErrLocationCounting, loc.Barcode)
	}
	if loc.Status == status {
		return loc, nil
	}
	if err := s.repo.SetLocationStatus(ctx, id, status); err != nil {
		return Location{}, err
	}
	s.logger.Info("location status changed",
		slog.Int64("location_id", id),
		slog.String("from", string(loc.Status)),
		slog.String("to", string(status)),
	)
	loc.Status = status
	return loc, nil
}
