package counts_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-wms/internal/audit"
	"github.com/odyssey-erp/odyssey-wms/internal/counts"
	"github.com/odyssey-erp/odyssey-wms/internal/documents"
	"github.com/odyssey-erp/odyssey-wms/internal/ledger"
	"github.com/odyssey-erp/odyssey-wms/internal/masterdata"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
	"github.com/odyssey-erp/odyssey-wms/internal/testing/memstore"
)

const actorID int64 = 7

type stubMetrics struct {
	completed []int
	cancelled int
}

func (m *stubMetrics) CountCompleted(adjustments int) { m.completed = append(m.completed, adjustments) }
func (m *stubMetrics) CountCancelled()                { m.cancelled++ }

type stubNotifier struct{ calls int }

func (n *stubNotifier) Invalidate(context.Context) { n.calls++ }

type fixture struct {
	ctx      context.Context
	store    *memstore.Store
	f        memstore.Fixture
	svc      *counts.Service
	docs     *documents.Service
	metrics  *stubMetrics
	notifier *stubNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := shared.ContextWithActor(context.Background(), actorID)
	store := memstore.New()
	f, err := store.Seed(ctx)
	require.NoError(t, err)
	fx := &fixture{ctx: ctx, store: store, f: f, metrics: &stubMetrics{}, notifier: &stubNotifier{}}
	now := func() time.Time { return time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC) }
	fx.svc = counts.NewService(store.Counts(), counts.Options{Stock: fx.notifier, Metrics: fx.metrics, Now: now}, nil)
	fx.docs = documents.NewService(store.Documents(), documents.Options{Now: now}, nil)
	return fx
}

func (fx *fixture) start(t *testing.T, locationIDs ...int64) counts.Count {
	t.Helper()
	c, err := fx.svc.Create(fx.ctx, counts.CreateRequest{WarehouseID: fx.f.Warehouse.ID, Name: " cycle count ", LocationIDs: locationIDs})
	require.NoError(t, err)
	return c
}

func (fx *fixture) submit(t *testing.T, countID int64, location, product string, qty int64) counts.SubmitResult {
	t.Helper()
	res, err := fx.svc.SubmitCount(fx.ctx, countID, counts.SubmitRequest{LocationBarcode: location, ProductCode: product, CountedQty: qty})
	require.NoError(t, err)
	return res
}

func (fx *fixture) status(t *testing.T, locationID int64) masterdata.LocationStatus {
	t.Helper()
	st, err := fx.store.Master.LocationStatus(context.Background(), locationID)
	require.NoError(t, err)
	return st
}

func (fx *fixture) onHand(t *testing.T, productID, locationID int64) int64 {
	t.Helper()
	qty, err := fx.store.OnHand(context.Background(), productID, locationID)
	require.NoError(t, err)
	return qty
}

func TestCreateLocksLocations(t *testing.T) {
	fx := newFixture(t)

	c := fx.start(t, fx.f.A2.ID, fx.f.A1.ID, fx.f.A2.ID)
	assert.Equal(t, "cycle count", c.Name)
	assert.Equal(t, counts.StatusInProgress, c.Status)
	assert.Equal(t, []int64{fx.f.A1.ID, fx.f.A2.ID}, c.LocationIDs)
	assert.Equal(t, masterdata.LocationCounting, fx.status(t, fx.f.A1.ID))
	assert.Equal(t, masterdata.LocationCounting, fx.status(t, fx.f.A2.ID))
	assert.Equal(t, masterdata.LocationActive, fx.status(t, fx.f.A3.ID))
	assert.Equal(t, []audit.Action{audit.ActionInvStart}, fx.store.Actions())
}

func TestCreateRejects(t *testing.T) {
	fx := newFixture(t)
	fx.start(t, fx.f.A1.ID)

	tests := []struct {
		name string
		req  counts.CreateRequest
		want error
	}{
		{"blank name", counts.CreateRequest{WarehouseID: fx.f.Warehouse.ID, Name: "  "}, counts.ErrNameRequired},
		{"unknown warehouse", counts.CreateRequest{WarehouseID: 999, Name: "x"}, masterdata.ErrWarehouseNotFound},
		{"location of other warehouse", counts.CreateRequest{WarehouseID: fx.f.Warehouse.ID, Name: "x", LocationIDs: []int64{fx.f.B1.ID}}, counts.ErrWarehouseMismatch},
		{"location already counting", counts.CreateRequest{WarehouseID: fx.f.Warehouse.ID, Name: "x", LocationIDs: []int64{fx.f.A2.ID, fx.f.A1.ID}}, masterdata.ErrLocationCounting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.svc.Create(fx.ctx, tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}
	// The rejected create must not leave A2 locked.
	assert.Equal(t, masterdata.LocationActive, fx.status(t, fx.f.A2.ID))

	_, err := fx.svc.Create(context.Background(), counts.CreateRequest{WarehouseID: fx.f.Warehouse.ID, Name: "x"})
	require.ErrorIs(t, err, shared.ErrActorRequired)
}

func TestCompleteReconcilesToCountedQuantity(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.store.Put(ctx, fx.f.Widget.ID, fx.f.A1.ID, 10))

	c := fx.start(t, fx.f.A1.ID)
	first := fx.submit(t, c.ID, "A-01", "WIDGET-1", 7)
	assert.True(t, first.Created)
	assert.Equal(t, int64(10), first.Line.SystemQty)
	assert.Equal(t, int64(-3), first.Difference)

	second := fx.submit(t, c.ID, "A-01", "5901234123457", 12)
	assert.False(t, second.Created)
	assert.Equal(t, first.Line.ID, second.Line.ID)
	assert.Equal(t, int64(10), second.Line.SystemQty, "system quantity is frozen at first submission")
	assert.Equal(t, int64(2), second.Difference)

	res, err := fx.svc.Complete(fx.ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, res.Adjustments, 1)
	adj := res.Adjustments[0]
	assert.Equal(t, int64(2), adj.Difference)
	assert.Equal(t, int64(10), adj.Ledger.Before)
	assert.Equal(t, int64(12), adj.Ledger.After)
	assert.Equal(t, counts.StatusCompleted, res.Count.Status)

	assert.Equal(t, int64(12), fx.onHand(t, fx.f.Widget.ID, fx.f.A1.ID))
	assert.Equal(t, masterdata.LocationActive, fx.status(t, fx.f.A1.ID))
	assert.Equal(t, 1, fx.notifier.calls)
	assert.Equal(t, []int{1}, fx.metrics.completed)
	assert.Equal(t, []audit.Action{
		audit.ActionInvStart,
		audit.ActionInvLine,
		audit.ActionInvLine,
		audit.ActionStockAdj,
		audit.ActionInvComplete,
	}, fx.store.Actions())

	recs := fx.store.Records()
	adjRec := recs[3]
	require.NotNil(t, adjRec.Qty)
	assert.Equal(t, int64(2), *adjRec.Qty)
	require.NotNil(t, adjRec.CountID)
	assert.Equal(t, c.ID, *adjRec.CountID)
}

func TestCompleteDrainsUnassignedBeforeContainers(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	box, err := fx.store.Master.CreateContainer(ctx, masterdata.Container{LocationID: fx.f.A1.ID, Barcode: "PAL-1"})
	require.NoError(t, err)
	led := ledger.New(fx.store.Stock)
	_, err = led.Adjust(ctx, ledger.ContainerKey(fx.f.Bolt.ID, fx.f.A1.ID, box.ID), 6)
	require.NoError(t, err)
	require.NoError(t, fx.store.Put(ctx, fx.f.Bolt.ID, fx.f.A1.ID, 4))

	c := fx.start(t, fx.f.A1.ID)
	line := fx.submit(t, c.ID, "A-01", "BOLT-8", 5)
	assert.Equal(t, int64(10), line.Line.SystemQty, "system quantity includes container rows")

	_, err = fx.svc.Complete(fx.ctx, c.ID)
	require.NoError(t, err)

	total, err := led.QuantityOnHand(ctx, fx.f.Bolt.ID, fx.f.A1.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	inBox, err := led.QuantityOnHand(ctx, fx.f.Bolt.ID, fx.f.A1.ID, &box.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), inBox, "the unassigned 4 go first, then 1 from the pallet")
	unassigned, err := fx.store.Stock.GetRow(ctx, ledger.UnassignedKey(fx.f.Bolt.ID, fx.f.A1.ID))
	require.NoError(t, err)
	assert.Zero(t, unassigned.Qty)
}

func TestCompleteWithoutDifferencesLeavesLedger(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.store.Put(context.Background(), fx.f.Bolt.ID, fx.f.A1.ID, 3))

	c := fx.start(t, fx.f.A1.ID)
	fx.submit(t, c.ID, "A-01", "BOLT-8", 3)
	res, err := fx.svc.Complete(fx.ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Adjustments)
	assert.Equal(t, int64(3), fx.onHand(t, fx.f.Bolt.ID, fx.f.A1.ID))
	assert.Zero(t, fx.notifier.calls)
}

func TestCompleteRejectsEmptyAndClosedCounts(t *testing.T) {
	fx := newFixture(t)
	c := fx.start(t, fx.f.A1.ID)

	_, err := fx.svc.Complete(fx.ctx, c.ID)
	require.ErrorIs(t, err, counts.ErrInventoryEmpty)
	assert.Equal(t, masterdata.LocationCounting, fx.status(t, fx.f.A1.ID))

	_, err = fx.svc.Cancel(fx.ctx, c.ID)
	require.NoError(t, err)
	_, err = fx.svc.Complete(fx.ctx, c.ID)
	require.ErrorIs(t, err, counts.ErrInventoryNotInProgress)
	_, err = fx.svc.SubmitCount(fx.ctx, c.ID, counts.SubmitRequest{LocationBarcode: "A-01", ProductCode: "BOLT-8", CountedQty: 1})
	require.ErrorIs(t, err, counts.ErrInventoryNotInProgress)
	_, err = fx.svc.Cancel(fx.ctx, c.ID)
	require.ErrorIs(t, err, counts.ErrInventoryNotInProgress)
}

func TestSubmitCountValidation(t *testing.T) {
	fx := newFixture(t)
	c := fx.start(t)

	_, err := fx.svc.SubmitCount(fx.ctx, c.ID, counts.SubmitRequest{LocationBarcode: "A-01", ProductCode: "BOLT-8", CountedQty: -1})
	require.ErrorIs(t, err, counts.ErrInvalidQuantity)
	_, err = fx.svc.SubmitCount(fx.ctx, c.ID, counts.SubmitRequest{LocationBarcode: "B-01", ProductCode: "BOLT-8", CountedQty: 1})
	require.ErrorIs(t, err, counts.ErrWarehouseMismatch)
	_, err = fx.svc.SubmitCount(fx.ctx, c.ID, counts.SubmitRequest{LocationBarcode: "A-01", ProductCode: "NOPE", CountedQty: 1})
	require.ErrorIs(t, err, masterdata.ErrProductNotFound)
	_, err = fx.svc.SubmitCount(fx.ctx, 999, counts.SubmitRequest{LocationBarcode: "A-01", ProductCode: "BOLT-8", CountedQty: 1})
	require.ErrorIs(t, err, counts.ErrCountNotFound)
}

func TestCountingLocationBlocksDocuments(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.store.Put(context.Background(), fx.f.Bolt.ID, fx.f.A1.ID, 5))
	c := fx.start(t, fx.f.A1.ID)

	doc, err := fx.docs.Create(fx.ctx, documents.CreateRequest{Type: documents.TypeIssue, WarehouseID: fx.f.Warehouse.ID}, "")
	require.NoError(t, err)
	from := "A-01"
	req := documents.AddLineRequest{ProductCode: "BOLT-8", FromLocation: &from, Qty: 2}

	_, err = fx.docs.AddLine(fx.ctx, doc.ID, req)
	require.ErrorIs(t, err, masterdata.ErrLocationCounting)

	_, err = fx.svc.Cancel(fx.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, masterdata.LocationActive, fx.status(t, fx.f.A1.ID))
	assert.Equal(t, 1, fx.metrics.cancelled)

	_, err = fx.docs.AddLine(fx.ctx, doc.ID, req)
	require.NoError(t, err)
	_, err = fx.docs.Confirm(fx.ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), fx.onHand(t, fx.f.Bolt.ID, fx.f.A1.ID))
}

func TestCountedLocationOutsideLockIsReleased(t *testing.T) {
	fx := newFixture(t)
	c := fx.start(t, fx.f.A1.ID)
	fx.submit(t, c.ID, "A-03", "BOLT-8", 2)
	require.NoError(t, fx.store.Master.SetLocationStatus(context.Background(), fx.f.A3.ID, masterdata.LocationCounting))

	_, err := fx.svc.Complete(fx.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, masterdata.LocationActive, fx.status(t, fx.f.A1.ID))
	assert.Equal(t, masterdata.LocationActive, fx.status(t, fx.f.A3.ID))
	assert.Equal(t, int64(2), fx.onHand(t, fx.f.Bolt.ID, fx.f.A3.ID))
}

func TestReleaseKeepsLocksHeldByAnotherCount(t *testing.T) {
	fx := newFixture(t)
	first := fx.start(t, fx.f.A1.ID)
	_, err := fx.svc.Cancel(fx.ctx, first.ID)
	require.NoError(t, err)

	second := fx.start(t, fx.f.A1.ID)
	_, err = fx.svc.Reopen(fx.ctx, first.ID)
	require.NoError(t, err)

	_, err = fx.svc.Cancel(fx.ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, masterdata.LocationCounting, fx.status(t, fx.f.A1.ID), "first count still holds A-01")

	_, err = fx.svc.Cancel(fx.ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, masterdata.LocationActive, fx.status(t, fx.f.A1.ID))
}

func TestReopen(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.store.Put(context.Background(), fx.f.Bolt.ID, fx.f.A1.ID, 4))
	c := fx.start(t, fx.f.A1.ID)
	fx.submit(t, c.ID, "A-01", "BOLT-8", 1)
	_, err := fx.svc.Complete(fx.ctx, c.ID)
	require.NoError(t, err)

	_, err = fx.svc.Reopen(fx.ctx, 999)
	require.ErrorIs(t, err, counts.ErrCountNotFound)

	reopened, err := fx.svc.Reopen(fx.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, counts.StatusInProgress, reopened.Status)
	assert.Nil(t, reopened.CompletedAt)
	assert.Equal(t, masterdata.LocationCounting, fx.status(t, fx.f.A1.ID))
	assert.Equal(t, int64(1), fx.onHand(t, fx.f.Bolt.ID, fx.f.A1.ID), "earlier adjustment stays")

	_, err = fx.svc.Reopen(fx.ctx, c.ID)
	require.ErrorIs(t, err, counts.ErrInventoryAlreadyInProgress)

	stored, err := fx.svc.Get(fx.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, counts.StatusInProgress, stored.Status)
	assert.Nil(t, stored.CompletedBy)
	assert.Equal(t, audit.ActionInvReopen, fx.store.Actions()[len(fx.store.Actions())-1])
}

func TestCompleteRollsBackWhenAuditFails(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.store.Put(context.Background(), fx.f.Bolt.ID, fx.f.A1.ID, 4))
	c := fx.start(t, fx.f.A1.ID)
	fx.submit(t, c.ID, "A-01", "BOLT-8", 9)

	fx.store.FailAuditOn(audit.ActionInvComplete)
	_, err := fx.svc.Complete(fx.ctx, c.ID)
	require.ErrorIs(t, err, memstore.ErrAuditUnavailable)

	assert.Equal(t, int64(4), fx.onHand(t, fx.f.Bolt.ID, fx.f.A1.ID))
	assert.Equal(t, masterdata.LocationCounting, fx.status(t, fx.f.A1.ID))
	stored, err := fx.svc.Get(fx.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, counts.StatusInProgress, stored.Status)
}

func TestListStaleCounts(t *testing.T) {
	fx := newFixture(t)
	old := fx.start(t, fx.f.A1.ID)
	fresh := fx.start(t, fx.f.A2.ID)
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fx.store.SetCountUpdatedAt(old.ID, cutoff.Add(-time.Hour))
	fx.store.SetCountUpdatedAt(fresh.ID, cutoff.Add(time.Hour))

	items, page, err := fx.svc.List(fx.ctx, counts.ListFilter{Status: counts.StatusInProgress, UpdatedBefore: cutoff})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, old.ID, items[0].ID)
	assert.Equal(t, 1, page.Total)
}
