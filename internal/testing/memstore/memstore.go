// Package memstore is an in-process backend for the document and count
// services. Transactions are serialized and roll back every touched store
// when the callback fails.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-wms/internal/audit"
	"github.com/odyssey-erp/odyssey-wms/internal/counts"
	"github.com/odyssey-erp/odyssey-wms/internal/documents"
	"github.com/odyssey-erp/odyssey-wms/internal/ledger"
	"github.com/odyssey-erp/odyssey-wms/internal/masterdata"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/db"
	_ "github.com/odyssey-erp/odyssey-wms/internal/testing/guard"
)

// ErrAuditUnavailable is returned by the audit writer after FailAuditOn.
var ErrAuditUnavailable = errors.New("memstore: audit sink unavailable")

// Store holds stock, master data, documents, counts and audit records.
type Store struct {
	Stock  *ledger.MemoryStore
	Master *masterdata.MemoryStore

	txMu sync.Mutex
	mu   sync.RWMutex
	st   state
	now  func() time.Time

	failOn     audit.Action
	conflictOn audit.Action
	conflicts  int
}

type state struct {
	nextID     int64
	docs       map[int64]documents.Document
	docLines   map[int64]documents.Line
	sequences  map[string]int64
	counts     map[int64]counts.Count
	countLines map[int64]counts.Line
	records    []audit.Record
}

// New returns an empty store.
func New() *Store {
	return &Store{
		Stock:  ledger.NewMemoryStore(),
		Master: masterdata.NewMemoryStore(),
		now:    time.Now,
		st: state{
			docs:       make(map[int64]documents.Document),
			docLines:   make(map[int64]documents.Line),
			sequences:  make(map[string]int64),
			counts:     make(map[int64]counts.Count),
			countLines: make(map[int64]counts.Line),
		},
	}
}

func (s state) clone() state {
	out := state{
		nextID:     s.nextID,
		docs:       make(map[int64]documents.Document, len(s.docs)),
		docLines:   make(map[int64]documents.Line, len(s.docLines)),
		sequences:  make(map[string]int64, len(s.sequences)),
		counts:     make(map[int64]counts.Count, len(s.counts)),
		countLines: make(map[int64]counts.Line, len(s.countLines)),
		records:    append([]audit.Record(nil), s.records...),
	}
	for k, v := range s.docs {
		out.docs[k] = v
	}
	for k, v := range s.docLines {
		out.docLines[k] = v
	}
	for k, v := range s.sequences {
		out.sequences[k] = v
	}
	for k, v := range s.counts {
		v.LocationIDs = append([]int64(nil), v.LocationIDs...)
		out.counts[k] = v
	}
	for k, v := range s.countLines {
		out.countLines[k] = v
	}
	return out
}

// FailAuditOn makes every Append of action fail. An empty action clears it.
func (s *Store) FailAuditOn(action audit.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn = action
}

// Records returns the committed audit records in append order.
func (s *Store) Records() []audit.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Record(nil), s.st.records...)
}

// Actions returns the actions of Records.
func (s *Store) Actions() []audit.Action {
	recs := s.Records()
	out := make([]audit.Action, len(recs))
	for i, r := range recs {
		out[i] = r.Action
	}
	return out
}

// withTx serializes fn and restores every store when it fails.
// ConflictOn makes the next n Appends of action fail with
// db.ErrConcurrentUpdate, as a lost race on PostgreSQL would.
func (s *Store) ConflictOn(action audit.Action, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflictOn, s.conflicts = action, n
}

// withTx retries on conflicts the way db.WithTx does.
func (s *Store) withTx(ctx context.Context, fn func() error) error {
	return db.RetryConflicts(ctx, func() error { return s.attemptTx(fn) })
}

func (s *Store) attemptTx(fn func() error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	stock, master := s.Stock.Snapshot(), s.Master.Snapshot()
	s.mu.RLock()
	saved := s.st.clone()
	s.mu.RUnlock()

	if err := fn(); err != nil {
		s.Stock.Restore(stock)
		s.Master.Restore(master)
		s.mu.Lock()
		s.st = saved
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) nextID() int64 {
	s.st.nextID++
	return s.st.nextID
}

type auditWriter struct{ s *Store }

func (w auditWriter) Append(ctx context.Context, rec audit.Record) error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if w.s.failOn != "" && rec.Action == w.s.failOn {
		return fmt.Errorf("%w: %s", ErrAuditUnavailable, rec.Action)
	}
	if w.s.conflicts > 0 && rec.Action == w.s.conflictOn {
		w.s.conflicts--
		return fmt.Errorf("%w: %s", db.ErrConcurrentUpdate, rec.Action)
	}
	w.s.st.records = append(w.s.st.records, rec)
	return nil
}

func paginate[T any](items []T, page, perPage int) []T {
	if perPage <= 0 {
		perPage = 20
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return nil
	}
	end := min(start+perPage, len(items))
	return items[start:end]
}

func sortedIDs[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
