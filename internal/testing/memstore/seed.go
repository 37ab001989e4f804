package memstore

import (
	"context"

	"github.com/odyssey-erp/odyssey-wms/internal/ledger"
	"github.com/odyssey-erp/odyssey-wms/internal/masterdata"
)

// Fixture is the master data created by Seed.
type Fixture struct {
	Warehouse masterdata.Warehouse
	Other     masterdata.Warehouse // second warehouse, for mismatch cases

	Widget masterdata.Product // SKU "WIDGET-1", EAN 5901234123457
	Bolt   masterdata.Product // SKU "BOLT-8"

	A1 masterdata.Location // barcode "A-01"
	A2 masterdata.Location // barcode "A-02"
	A3 masterdata.Location // barcode "A-03"
	B1 masterdata.Location // barcode "B-01", in Other
}

// Seed creates two warehouses, two products and four locations.
func (s *Store) Seed(ctx context.Context) (Fixture, error) {
	var f Fixture
	var err error
	m := s.Master
	if f.Warehouse, err = m.CreateWarehouse(ctx, masterdata.Warehouse{Code: "WH1", Name: "Main"}); err != nil {
		return f, err
	}
	if f.Other, err = m.CreateWarehouse(ctx, masterdata.Warehouse{Code: "WH2", Name: "Overflow"}); err != nil {
		return f, err
	}
	ean := "5901234123457"
	if f.Widget, err = m.CreateProduct(ctx, masterdata.Product{SKU: "WIDGET-1", EAN: &ean, Name: "Widget", IsActive: true}); err != nil {
		return f, err
	}
	if f.Bolt, err = m.CreateProduct(ctx, masterdata.Product{SKU: "BOLT-8", Name: "Bolt M8", IsActive: true}); err != nil {
		return f, err
	}
	locs := []struct {
		dst       *masterdata.Location
		warehouse int64
		barcode   string
	}{
		{&f.A1, f.Warehouse.ID, "A-01"},
		{&f.A2, f.Warehouse.ID, "A-02"},
		{&f.A3, f.Warehouse.ID, "A-03"},
		{&f.B1, f.Other.ID, "B-01"},
	}
	for _, l := range locs {
		if *l.dst, err = m.CreateLocation(ctx, masterdata.Location{WarehouseID: l.warehouse, Barcode: l.barcode, Name: l.barcode}); err != nil {
			return f, err
		}
	}
	return f, nil
}

// Put adds qty unassigned units of product at location.
func (s *Store) Put(ctx context.Context, productID, locationID, qty int64) error {
	_, err := ledger.New(s.Stock).Increase(ctx, productID, locationID, qty)
	return err
}

// OnHand returns the (product, location) total across containers.
func (s *Store) OnHand(ctx context.Context, productID, locationID int64) (int64, error) {
	return ledger.New(s.Stock).QuantityOnHand(ctx, productID, locationID, nil)
}
