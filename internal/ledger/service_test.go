package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-wms/internal/audit"
	"github.com/odyssey-erp/odyssey-wms/internal/masterdata"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

type memoryRepo struct {
	*MemoryStore
	dir       *masterdata.MemoryStore
	records   []audit.Record
	failAudit bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{MemoryStore: NewMemoryStore(), dir: masterdata.NewMemoryStore()}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	stock, dir, n := m.MemoryStore.Snapshot(), m.dir.Snapshot(), len(m.records)
	if err := fn(ctx, memoryTx{m}); err != nil {
		m.MemoryStore.Restore(stock)
		m.dir.Restore(dir)
		m.records = m.records[:n]
		return err
	}
	return nil
}

type memoryTx struct{ repo *memoryRepo }

func (t memoryTx) Stock() Store                    { return t.repo.MemoryStore }
func (t memoryTx) Directory() masterdata.Directory { return t.repo.dir }
func (t memoryTx) Audit() audit.Writer             { return t }

func (t memoryTx) Append(ctx context.Context, rec audit.Record) error {
	if t.repo.failAudit {
		return errors.New("audit unavailable")
	}
	t.repo.records = append(t.repo.records, rec)
	return nil
}

type splitFixture struct {
	repo    *memoryRepo
	svc     *Service
	loc     masterdata.Location
	other   masterdata.Location
	box     masterdata.Container
	foreign masterdata.Container
}

func newSplitFixture(t *testing.T) splitFixture {
	t.Helper()
	ctx := context.Background()
	repo := newMemoryRepo()
	wh, err := repo.dir.CreateWarehouse(ctx, masterdata.Warehouse{Code: "WH", Name: "Main"})
	require.NoError(t, err)
	loc, err := repo.dir.CreateLocation(ctx, masterdata.Location{WarehouseID: wh.ID, Barcode: "L1", Name: "A1"})
	require.NoError(t, err)
	other, err := repo.dir.CreateLocation(ctx, masterdata.Location{WarehouseID: wh.ID, Barcode: "L2", Name: "A2"})
	require.NoError(t, err)
	box, err := repo.dir.CreateContainer(ctx, masterdata.Container{LocationID: loc.ID, Barcode: "BOX1"})
	require.NoError(t, err)
	foreign, err := repo.dir.CreateContainer(ctx, masterdata.Container{LocationID: other.ID, Barcode: "BOX2"})
	require.NoError(t, err)
	_, err = New(repo.MemoryStore).Increase(ctx, 100, loc.ID, 5)
	require.NoError(t, err)
	return splitFixture{repo: repo, svc: NewService(repo, nil, nil), loc: loc, other: other, box: box, foreign: foreign}
}

func TestServiceSplitRecordsAudit(t *testing.T) {
	f := newSplitFixture(t)
	ctx := shared.ContextWithActor(context.Background(), 7)

	res, err := f.svc.Split(ctx, SplitRequest{ProductID: 100, LocationID: f.loc.ID, ToContainerID: &f.box.ID, Qty: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.FromBalance)
	assert.Equal(t, int64(3), res.ToBalance)

	require.Len(t, f.repo.records, 1)
	rec := f.repo.records[0]
	assert.Equal(t, audit.ActionStockSplit, rec.Action)
	assert.Equal(t, int64(7), rec.ActorID)
	assert.Equal(t, int64(3), *rec.Qty)
	assert.Equal(t, f.box.ID, rec.Meta["to_container_id"])

	qty, err := f.svc.OnHand(ctx, 100, f.loc.ID, &f.box.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), qty)
	qty, err = f.svc.OnHand(ctx, 100, f.loc.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), qty)
}

func TestServiceSplitRejections(t *testing.T) {
	f := newSplitFixture(t)
	ctx := shared.ContextWithActor(context.Background(), 7)

	_, err := f.svc.Split(context.Background(), SplitRequest{ProductID: 100, LocationID: f.loc.ID, ToContainerID: &f.box.ID, Qty: 1})
	require.ErrorIs(t, err, shared.ErrActorRequired)

	_, err = f.svc.Split(ctx, SplitRequest{ProductID: 100, LocationID: f.loc.ID, ToContainerID: &f.foreign.ID, Qty: 1})
	require.ErrorIs(t, err, ErrContainerMismatch)

	_, err = f.svc.Split(ctx, SplitRequest{ProductID: 100, LocationID: f.loc.ID, ToContainerID: &f.box.ID, Qty: 6})
	require.ErrorIs(t, err, ErrInsufficientStock)

	require.NoError(t, f.repo.dir.SetLocationStatus(ctx, f.loc.ID, masterdata.LocationCounting))
	_, err = f.svc.Split(ctx, SplitRequest{ProductID: 100, LocationID: f.loc.ID, ToContainerID: &f.box.ID, Qty: 1})
	require.ErrorIs(t, err, masterdata.ErrLocationCounting)

	assert.Empty(t, f.repo.records)
}

func TestServiceSplitRollsBackWhenAuditFails(t *testing.T) {
	f := newSplitFixture(t)
	f.repo.failAudit = true
	ctx := shared.ContextWithActor(context.Background(), 7)

	_, err := f.svc.Split(ctx, SplitRequest{ProductID: 100, LocationID: f.loc.ID, ToContainerID: &f.box.ID, Qty: 2})
	require.Error(t, err)

	b, err := f.svc.Balance(ctx, 100, f.loc.ID)
	require.NoError(t, err)
	require.Len(t, b.Rows, 1)
	assert.Nil(t, b.Rows[0].ContainerID)
	assert.Equal(t, int64(5), b.Total)
}

func TestServiceListingsNeverNil(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	rows, err := svc.ByLocation(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, rows)

	rows, err = svc.ByProduct(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, rows)

	b, err := svc.Balance(ctx, 1, 1)
	require.NoError(t, err)
	assert.NotNil(t, b.Rows)
	assert.Zero(t, b.Total)
}
