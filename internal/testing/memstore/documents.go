package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-wms/internal/audit"
	"github.com/odyssey-erp/odyssey-wms/internal/documents"
	"github.com/odyssey-erp/odyssey-wms/internal/ledger"
	"github.com/odyssey-erp/odyssey-wms/internal/masterdata"
)

// DocumentRepo implements documents.Repository.
type DocumentRepo struct{ s *Store }

// Documents returns the document repository view of s.
func (s *Store) Documents() *DocumentRepo { return &DocumentRepo{s: s} }

func (r *DocumentRepo) WithTx(ctx context.Context, fn func(context.Context, documents.TxRepository) error) error {
	return r.s.withTx(ctx, func() error { return fn(ctx, documentTx{s: r.s}) })
}

func (r *DocumentRepo) Get(ctx context.Context, id int64) (documents.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.document(id)
}

func (r *DocumentRepo) List(ctx context.Context, f documents.ListFilter) ([]documents.Document, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []documents.Document
	for _, id := range sortedIDs(r.s.st.docs) {
		d := r.s.st.docs[id]
		if f.WarehouseID > 0 && d.WarehouseID != f.WarehouseID {
			continue
		}
		if f.Type != "" && d.Type != f.Type {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, f.Page, f.PerPage), len(out), nil
}

func (r *DocumentRepo) Directory() masterdata.Directory { return r.s.Master }
func (r *DocumentRepo) Stock() ledger.Store             { return r.s.Stock }

// document must be called with mu held.
func (s *Store) document(id int64) (documents.Document, error) {
	d, ok := s.st.docs[id]
	if !ok {
		return documents.Document{}, fmt.Errorf("%w: id %d", documents.ErrDocumentNotFound, id)
	}
	d.Lines = nil
	for _, lid := range sortedIDs(s.st.docLines) {
		if l := s.st.docLines[lid]; l.DocumentID == id {
			d.Lines = append(d.Lines, l)
		}
	}
	return d, nil
}

type documentTx struct{ s *Store }

func (t documentTx) Stock() ledger.Store             { return t.s.Stock }
func (t documentTx) Directory() masterdata.Directory { return t.s.Master }
func (t documentTx) Audit() audit.Writer             { return auditWriter{s: t.s} }

func (t documentTx) NextSequence(ctx context.Context, docType documents.Type, year int) (int64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	key := fmt.Sprintf("%s/%d", docType, year)
	t.s.st.sequences[key]++
	return t.s.st.sequences[key], nil
}

func (t documentTx) Insert(ctx context.Context, doc documents.Document) (documents.Document, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, existing := range t.s.st.docs {
		if existing.Number == doc.Number {
			return documents.Document{}, fmt.Errorf("memstore: duplicate document number %s", doc.Number)
		}
	}
	doc.ID = t.s.nextID()
	doc.CreatedAt = t.s.now().UTC()
	doc.UpdatedAt = doc.CreatedAt
	doc.Lines = nil
	t.s.st.docs[doc.ID] = doc
	return doc, nil
}

func (t documentTx) GetForUpdate(ctx context.Context, id int64) (documents.Document, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.s.document(id)
}

func (t documentTx) InsertLine(ctx context.Context, line documents.Line) (documents.Line, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.st.docs[line.DocumentID]; !ok {
		return documents.Line{}, fmt.Errorf("%w: id %d", documents.ErrDocumentNotFound, line.DocumentID)
	}
	line.ID = t.s.nextID()
	line.CreatedAt = t.s.now().UTC()
	t.s.st.docLines[line.ID] = line
	return line, nil
}

func (t documentTx) DeleteLine(ctx context.Context, documentID, lineID int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	l, ok := t.s.st.docLines[lineID]
	if !ok || l.DocumentID != documentID {
		return fmt.Errorf("%w: id %d", documents.ErrLineNotFound, lineID)
	}
	delete(t.s.st.docLines, lineID)
	return nil
}

func (t documentTx) UpdateStatus(ctx context.Context, id int64, status documents.Status, actorID int64, at time.Time) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	d, ok := t.s.st.docs[id]
	if !ok {
		return fmt.Errorf("%w: id %d", documents.ErrDocumentNotFound, id)
	}
	d.Status = status
	d.UpdatedAt = at
	switch status {
	case documents.StatusConfirmed:
		d.ConfirmedBy, d.ConfirmedAt = &actorID, &at
	case documents.StatusCancelled:
		d.CancelledBy, d.CancelledAt = &actorID, &at
	}
	t.s.st.docs[id] = d
	return nil
}
