package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecordDocumentEntity(t *testing.T) {
	id := uuid.New()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	meta := map[string]any{"number": "PZ/2026/00001"}

	rec := NewRecord(id, at, Event{
		Action:     ActionDocConfirm,
		ActorID:    3,
		DocumentID: Int64(42),
		Meta:       meta,
	})

	assert.Equal(t, id, rec.ID)
	assert.Equal(t, EntityDocument, rec.Entity)
	assert.Equal(t, "42", rec.EntityID)
	assert.Equal(t, time.UTC, rec.At.Location())
	assert.True(t, rec.At.Equal(at))

	meta["number"] = "changed"
	assert.Equal(t, "PZ/2026/00001", rec.Meta["number"])
}

func TestNewRecordStockEntity(t *testing.T) {
	rec := NewRecord(uuid.New(), time.Now(), Event{
		Action:       ActionStockIn,
		ProductID:    Int64(5),
		ToLocationID: Int64(9),
		Qty:          Int64(3),
	})
	assert.Equal(t, EntityStock, rec.Entity)
	assert.Equal(t, "5@9", rec.EntityID)
	require.NotNil(t, rec.Qty)
	assert.Equal(t, int64(3), *rec.Qty)
	assert.NotNil(t, rec.Meta)
}

func TestRecorderUsesInjectedSources(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	id := uuid.MustParse("6f1c2e9a-8a3b-4c5d-9e0f-112233445566")
	rec := NewRecorderWith(func() time.Time { return fixed }, func() uuid.UUID { return id }).
		Record(Event{Action: ActionInvStart, CountID: Int64(1)})
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, fixed, rec.At)
	assert.Equal(t, EntityInventoryCount, rec.Entity)
}
