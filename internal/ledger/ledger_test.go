package ledger

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRow(t *testing.T, s *MemoryStore, key Key, qty int64) StockRow {
	t.Helper()
	row, err := s.InsertRow(context.Background(), key, qty)
	require.NoError(t, err)
	return row
}

func TestIncreaseTargetsUnassignedRow(t *testing.T) {
	store := NewMemoryStore()
	l := New(store)
	ctx := context.Background()

	seedRow(t, store, ContainerKey(1, 1, 9), 4)

	bal, err := l.Increase(ctx, 1, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), bal)
	bal, err = l.Increase(ctx, 1, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(8), bal)

	total, err := l.QuantityOnHand(ctx, 1, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)

	c := int64(9)
	inContainer, err := l.QuantityOnHand(ctx, 1, 1, &c)
	require.NoError(t, err)
	assert.Equal(t, int64(4), inContainer)

	_, err = l.Increase(ctx, 1, 1, 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestDeductDrainsUnassignedThenContainers(t *testing.T) {
	store := NewMemoryStore()
	l := New(store)
	ctx := context.Background()

	seedRow(t, store, ContainerKey(1, 1, 20), 5)
	seedRow(t, store, ContainerKey(1, 1, 10), 4)
	seedRow(t, store, UnassignedKey(1, 1), 2)

	debits, err := l.Deduct(ctx, 1, 1, 7)
	require.NoError(t, err)
	require.Len(t, debits, 3)

	assert.Nil(t, debits[0].ContainerID)
	assert.Equal(t, int64(2), debits[0].Qty)
	assert.Equal(t, int64(10), *debits[1].ContainerID)
	assert.Equal(t, int64(4), debits[1].Qty)
	assert.Equal(t, int64(20), *debits[2].ContainerID)
	assert.Equal(t, int64(1), debits[2].Qty)
	assert.Equal(t, int64(4), debits[2].Remaining)

	var debited int64
	for _, d := range debits {
		debited += d.Qty
	}
	assert.Equal(t, int64(7), debited)

	total, err := l.QuantityOnHand(ctx, 1, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	for _, row := range store.All() {
		assert.GreaterOrEqual(t, row.Qty, int64(0))
	}
}

func TestDeductInsufficientLeavesRowsUntouched(t *testing.T) {
	store := NewMemoryStore()
	l := New(store)
	ctx := context.Background()

	seedRow(t, store, UnassignedKey(1, 1), 1)
	seedRow(t, store, ContainerKey(1, 1, 3), 2)

	_, err := l.Deduct(ctx, 1, 1, 5)
	require.ErrorIs(t, err, ErrInsufficientStock)
	ise, ok := AsInsufficientStock(err)
	require.True(t, ok)
	assert.Equal(t, int64(3), ise.Available)
	assert.Equal(t, int64(5), ise.Requested)
	assert.Contains(t, err.Error(), "available 3, requested 5")

	total, err := l.QuantityOnHand(ctx, 1, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestAdjustSingleRow(t *testing.T) {
	store := NewMemoryStore()
	l := New(store)
	ctx := context.Background()
	key := ContainerKey(2, 3, 4)

	bal, err := l.Adjust(ctx, key, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal)
	assert.Empty(t, store.All())

	_, err = l.Adjust(ctx, key, -1)
	ise, ok := AsInsufficientStock(err)
	require.True(t, ok)
	assert.Equal(t, int64(0), ise.Available)
	assert.Equal(t, int64(1), ise.Requested)
	assert.Empty(t, store.All())

	bal, err = l.Adjust(ctx, key, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(6), bal)

	_, err = l.Adjust(ctx, key, -7)
	ise, ok = AsInsufficientStock(err)
	require.True(t, ok)
	assert.Equal(t, int64(6), ise.Available)
	assert.Equal(t, int64(7), ise.Requested)

	bal, err = l.Adjust(ctx, key, -6)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal)
}

func TestReconcileSetsTotal(t *testing.T) {
	store := NewMemoryStore()
	l := New(store)
	ctx := context.Background()

	_, err := l.Increase(ctx, 1, 1, 10)
	require.NoError(t, err)

	rec, err := l.Reconcile(ctx, 1, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(10), rec.Before)
	assert.Equal(t, int64(-3), rec.Delta)

	rec, err = l.Reconcile(ctx, 1, 1, 12)
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.Before)
	assert.Equal(t, int64(5), rec.Delta)

	total, err := l.QuantityOnHand(ctx, 1, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)

	rec, err = l.Reconcile(ctx, 1, 1, 12)
	require.NoError(t, err)
	assert.Zero(t, rec.Delta)

	_, err = l.Reconcile(ctx, 1, 1, -1)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestReconcileDownDrainsUnassignedFirst(t *testing.T) {
	store := NewMemoryStore()
	l := New(store)
	ctx := context.Background()

	seedRow(t, store, UnassignedKey(1, 1), 2)
	seedRow(t, store, ContainerKey(1, 1, 5), 5)

	rec, err := l.Reconcile(ctx, 1, 1, 4)
	require.NoError(t, err)
	require.Len(t, rec.Debits, 2)

	unassigned, err := store.GetRow(ctx, UnassignedKey(1, 1))
	require.NoError(t, err)
	assert.Zero(t, unassigned.Qty)
	c := int64(5)
	boxed, err := l.QuantityOnHand(ctx, 1, 1, &c)
	require.NoError(t, err)
	assert.Equal(t, int64(4), boxed)
}

func TestSplitMovesBetweenRows(t *testing.T) {
	store := NewMemoryStore()
	l := New(store)
	ctx := context.Background()
	box := int64(9)

	_, err := l.Increase(ctx, 1, 1, 5)
	require.NoError(t, err)

	res, err := l.Split(ctx, 1, 1, nil, &box, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.FromBalance)
	assert.Equal(t, int64(3), res.ToBalance)

	total, err := l.QuantityOnHand(ctx, 1, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	_, err = l.Split(ctx, 1, 1, &box, &box, 1)
	require.ErrorIs(t, err, ErrSameContainer)

	_, err = l.Split(ctx, 1, 1, &box, nil, 4)
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestSortRowsIsDeterministic(t *testing.T) {
	c1, c2 := int64(1), int64(2)
	rows := []StockRow{
		{ID: 4, ContainerID: &c2},
		{ID: 3, ContainerID: &c1},
		{ID: 9},
		{ID: 1, ContainerID: &c1},
	}
	SortRows(rows)
	ids := []int64{rows[0].ID, rows[1].ID, rows[2].ID, rows[3].ID}
	assert.Equal(t, []int64{9, 1, 3, 4}, ids)
}

func TestRandomMovementsNeverGoNegative(t *testing.T) {
	store := NewMemoryStore()
	l := New(store)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	var expected int64
	for i := 0; i < 500; i++ {
		qty := rng.Int63n(10) + 1
		switch rng.Intn(3) {
		case 0:
			_, err := l.Increase(ctx, 1, 1, qty)
			require.NoError(t, err)
			expected += qty
		case 1:
			_, err := l.Deduct(ctx, 1, 1, qty)
			if qty > expected {
				require.ErrorIs(t, err, ErrInsufficientStock)
				continue
			}
			require.NoError(t, err)
			expected -= qty
		default:
			box := rng.Int63n(3) + 1
			_, err := l.Split(ctx, 1, 1, nil, &box, qty)
			if err != nil {
				require.ErrorIs(t, err, ErrInsufficientStock)
			}
		}
		for _, row := range store.All() {
			require.GreaterOrEqual(t, row.Qty, int64(0))
		}
		total, err := l.QuantityOnHand(ctx, 1, 1, nil)
		require.NoError(t, err)
		require.Equal(t, expected, total)
	}
}
