// Package documents implements the stock document engine: receipts (PZ),
// issues (WZ), internal moves (MM) and manual adjustments (INV_ADJ) that
// reach the ledger only when confirmed.
package documents

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-wms/internal/audit"
	"github.com/odyssey-erp/odyssey-wms/internal/ledger"
)

// ============================================================================
// DOCUMENT TYPE
// ============================================================================

// Type selects which locations a line carries and how it moves stock.
type Type string

const (
	TypeReceipt    Type = "PZ"      // destination only, increases stock
	TypeIssue      Type = "WZ"      // source only, decreases stock
	TypeMove       Type = "MM"      // source and destination
	TypeAdjustment Type = "INV_ADJ" // exactly one of source (decrease) or destination (increase)
)

// IsValid checks if the type is known.
func (t Type) IsValid() bool {
	switch t {
	case TypeReceipt, TypeIssue, TypeMove, TypeAdjustment:
		return true
	default:
		return false
	}
}

// CheckEnds validates which locations a line of this type supplies.
func (t Type) CheckEnds(from, to *int64) error {
	switch t {
	case TypeReceipt:
		if to == nil {
			return ErrDestinationRequired
		}
		if from != nil {
			return fmt.Errorf("%w: %s", ErrUnexpectedSource, t)
		}
	case TypeIssue:
		if from == nil {
			return ErrSourceRequired
		}
		if to != nil {
			return fmt.Errorf("%w: %s", ErrUnexpectedDestination, t)
		}
	case TypeMove:
		if from == nil {
			return ErrSourceRequired
		}
		if to == nil {
			return ErrDestinationRequired
		}
		if *from == *to {
			return ErrSameLocation
		}
	case TypeAdjustment:
		if (from == nil) == (to == nil) {
			return ErrAdjustmentDirection
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidType, t)
	}
	return nil
}

// MovementAction is the audit action emitted per confirmed line.
func (t Type) MovementAction() audit.Action {
	switch t {
	case TypeReceipt:
		return audit.ActionStockIn
	case TypeIssue:
		return audit.ActionStockOut
	case TypeMove:
		return audit.ActionStockMove
	default:
		return audit.ActionStockAdj
	}
}

// ============================================================================
// DOCUMENT STATUS
// ============================================================================

// Status represents the lifecycle of a document.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusConfirmed, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanEdit checks if lines may be added or removed.
func (s Status) CanEdit() bool {
	return s == StatusDraft
}

// CanConfirm checks if the document can be confirmed
func (s Status) CanConfirm() bool {
	return s == StatusDraft
}

// CanCancel checks if the document can be cancelled
func (s Status) CanCancel() bool {
	return s == StatusDraft
}

// ============================================================================
// ENTITIES
// ============================================================================

// Document is a stock movement request in one warehouse.
type Document struct {
	ID          int64      `json:"id"`
	Number      string     `json:"number"`
	Type        Type       `json:"type"`
	Status      Status     `json:"status"`
	WarehouseID int64      `json:"warehouse_id"`
	Reference   *string    `json:"reference,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	CreatedBy   int64      `json:"created_by"`
	ConfirmedBy *int64     `json:"confirmed_by,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CancelledBy *int64     `json:"cancelled_by,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Lines       []Line     `json:"lines,omitempty"`
}

// Line is one product quantity on a document. UnitPrice is informational
// and never affects the ledger.
type Line struct {
	ID             int64            `json:"id"`
	DocumentID     int64            `json:"document_id"`
	ProductID      int64            `json:"product_id"`
	FromLocationID *int64           `json:"from_location_id,omitempty"`
	ToLocationID   *int64           `json:"to_location_id,omitempty"`
	Qty            int64            `json:"qty"`
	UnitPrice      *decimal.Decimal `json:"unit_price,omitempty"`
	Notes          *string          `json:"notes,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Value returns qty * unit price, zero when no price is set.
func (l Line) Value() decimal.Decimal {
	if l.UnitPrice == nil {
		return decimal.Zero
	}
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Qty))
}

// Movement describes what confirming one line did to the ledger.
type Movement struct {
	LineID             int64          `json:"line_id"`
	Action             audit.Action   `json:"action"`
	ProductID          int64          `json:"product_id"`
	FromLocationID     *int64         `json:"from_location_id,omitempty"`
	ToLocationID       *int64         `json:"to_location_id,omitempty"`
	Qty                int64          `json:"qty"`
	Debits             []ledger.Debit `json:"debits,omitempty"`
	DestinationBalance *int64         `json:"destination_balance,omitempty"`
}

// ConfirmResult is returned by Confirm.
type ConfirmResult struct {
	Document  Document   `json:"document"`
	Movements []Movement `json:"movements"`
}

// ListFilter narrows List.
type ListFilter struct {
	WarehouseID int64
	Type        Type
	Status      Status
	Page        int
	PerPage     int
}
