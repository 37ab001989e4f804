package documents

import "errors"

var (
	ErrDocumentNotFound = errors.New("documents: document not found")
	ErrLineNotFound     = errors.New("documents: line not found")
	// ErrDocumentNotDraft rejects every mutation of a confirmed or cancelled document.
	ErrDocumentNotDraft = errors.New("documents: document is not in draft")
	ErrDocumentEmpty    = errors.New("documents: document has no lines")

	ErrInvalidType           = errors.New("documents: invalid document type")
	ErrInvalidQuantity       = errors.New("documents: quantity must be positive")
	ErrInvalidPrice          = errors.New("documents: unit price must not be negative")
	ErrSourceRequired        = errors.New("documents: source location required")
	ErrDestinationRequired   = errors.New("documents: destination location required")
	ErrUnexpectedSource      = errors.New("documents: source location not allowed")
	ErrUnexpectedDestination = errors.New("documents: destination location not allowed")
	ErrSameLocation          = errors.New("documents: source and destination must differ")
	ErrAdjustmentDirection   = errors.New("documents: adjustment needs exactly one of source or destination")
	ErrWarehouseMismatch     = errors.New("documents: location belongs to another warehouse")
)
