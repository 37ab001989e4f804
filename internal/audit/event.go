// Package audit turns stock events into immutable, append-only records.
package audit

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Action identifies what happened.
type Action string

const (
	ActionStockIn     Action = "STOCK_IN"
	ActionStockOut    Action = "STOCK_OUT"
	ActionStockMove   Action = "STOCK_MOVE"
	ActionStockAdj    Action = "STOCK_ADJ"
	ActionStockSplit  Action = "STOCK_SPLIT"
	ActionDocCreate   Action = "DOC_CREATE"
	ActionDocConfirm  Action = "DOC_CONFIRM"
	ActionDocCancel   Action = "DOC_CANCEL"
	ActionInvStart    Action = "INV_START"
	ActionInvLine     Action = "INV_LINE"
	ActionInvComplete Action = "INV_COMPLETE"
	ActionInvCancel   Action = "INV_CANCEL"
	ActionInvReopen   Action = "INV_REOPEN"
)

// Entity names used on records.
const (
	EntityDocument       = "document"
	EntityInventoryCount = "inventory_count"
	EntityStock          = "stock"
)

// Event describes a mutation about to be committed.
type Event struct {
	Action         Action
	ActorID        int64
	ProductID      *int64
	FromLocationID *int64
	ToLocationID   *int64
	DocumentID     *int64
	CountID        *int64
	Qty            *int64
	Meta           map[string]any
}

// Record is the persisted form of an Event.
type Record struct {
	ID             uuid.UUID      `json:"id"`
	Action         Action         `json:"action"`
	ActorID        int64          `json:"actor_id"`
	Entity         string         `json:"entity"`
	EntityID       string         `json:"entity_id"`
	ProductID      *int64         `json:"product_id,omitempty"`
	FromLocationID *int64         `json:"from_location_id,omitempty"`
	ToLocationID   *int64         `json:"to_location_id,omitempty"`
	DocumentID     *int64         `json:"document_id,omitempty"`
	CountID        *int64         `json:"count_id,omitempty"`
	Qty            *int64         `json:"qty,omitempty"`
	Meta           map[string]any `json:"meta"`
	At             time.Time      `json:"at"`
}

// NewRecord maps an event to its record. It has no side effects; the id and
// timestamp are supplied by the caller.
func NewRecord(id uuid.UUID, at time.Time, ev Event) Record {
	entity, entityID := entityOf(ev)
	meta := make(map[string]any, len(ev.Meta))
	for k, v := range ev.Meta {
		meta[k] = v
	}
	return Record{
		ID:             id,
		Action:         ev.Action,
		ActorID:        ev.ActorID,
		Entity:         entity,
		EntityID:       entityID,
		ProductID:      copyInt(ev.ProductID),
		FromLocationID: copyInt(ev.FromLocationID),
		ToLocationID:   copyInt(ev.ToLocationID),
		DocumentID:     copyInt(ev.DocumentID),
		CountID:        copyInt(ev.CountID),
		Qty:            copyInt(ev.Qty),
		Meta:           meta,
		At:             at.UTC(),
	}
}

func entityOf(ev Event) (string, string) {
	switch {
	case ev.DocumentID != nil:
		return EntityDocument, strconv.FormatInt(*ev.DocumentID, 10)
	case ev.CountID != nil:
		return EntityInventoryCount, strconv.FormatInt(*ev.CountID, 10)
	case ev.ProductID != nil:
		loc := ev.FromLocationID
		if loc == nil {
			loc = ev.ToLocationID
		}
		if loc != nil {
			return EntityStock, strconv.FormatInt(*ev.ProductID, 10) + "@" + strconv.FormatInt(*loc, 10)
		}
		return EntityStock, strconv.FormatInt(*ev.ProductID, 10)
	default:
		return EntityStock, "-"
	}
}

func copyInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

// Int64 returns a pointer to v, for building events inline.
func Int64(v int64) *int64 {
	return &v
}

// Recorder stamps events with an id and time.
type Recorder struct {
	now   func() time.Time
	newID func() uuid.UUID
}

// NewRecorder builds a Recorder using the wall clock and random UUIDs.
func NewRecorder() Recorder {
	return Recorder{now: time.Now, newID: uuid.New}
}

// NewRecorderWith builds a Recorder with fixed sources, mainly for tests.
func NewRecorderWith(now func() time.Time, newID func() uuid.UUID) Recorder {
	return Recorder{now: now, newID: newID}
}

// Record converts ev into a Record.
func (r Recorder) Record(ev Event) Record {
	now, newID := r.now, r.newID
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.New
	}
	return NewRecord(newID(), now(), ev)
}
