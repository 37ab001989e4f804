package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/odyssey-erp/odyssey-wms/internal/platform/db"
)

// Writer appends records. Implementations must run inside the caller's
// transaction so a record is committed exactly when its mutation is.
type Writer interface {
	Append(ctx context.Context, rec Record) error
}

// Store reads and writes audit_events through a pool or a transaction.
type Store struct {
	db db.DBTX
}

// NewStore returns a Store bound to conn.
func NewStore(conn db.DBTX) *Store {
	return &Store{db: conn}
}

// Append inserts rec.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if s == nil || s.db == nil {
		return errors.New("audit: store not initialised")
	}
	if rec.Action == "" || rec.Entity == "" || rec.EntityID == "" {
		return errors.New("audit: record requires action/entity/entity_id")
	}
	meta := rec.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("audit: encode meta: %w", err)
	}
	_, err = s.db.Exec(ctx, `INSERT INTO audit_events
		(id, action, actor_id, entity, entity_id, product_id, from_location_id, to_location_id, document_id, count_id, qty, meta, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ID, string(rec.Action), rec.ActorID, rec.Entity, rec.EntityID,
		rec.ProductID, rec.FromLocationID, rec.ToLocationID, rec.DocumentID, rec.CountID, rec.Qty,
		metaJSON, rec.At)
	return err
}

// Window returns records matching filters ordered newest first.
func (s *Store) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]Record, error) {
	where, args := filterClause(filters)
	args = append(args, offset, limit)
	query := fmt.Sprintf(`SELECT id, action, actor_id, entity, entity_id, product_id, from_location_id,
			to_location_id, document_id, count_id, qty, meta, occurred_at
		FROM audit_events
		%s
		ORDER BY occurred_at DESC, id
		OFFSET $%d LIMIT $%d`, where, len(args)-1, len(args))
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var action string
		var metaJSON []byte
		if err := rows.Scan(&rec.ID, &action, &rec.ActorID, &rec.Entity, &rec.EntityID, &rec.ProductID,
			&rec.FromLocationID, &rec.ToLocationID, &rec.DocumentID, &rec.CountID, &rec.Qty, &metaJSON, &rec.At); err != nil {
			return nil, err
		}
		rec.Action = Action(action)
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &rec.Meta); err != nil {
				return nil, fmt.Errorf("audit: decode meta: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func filterClause(f TimelineFilters) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if !f.From.IsZero() {
		add("occurred_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("occurred_at < $%d", f.To)
	}
	if f.ActorID > 0 {
		add("actor_id = $%d", f.ActorID)
	}
	if v := strings.TrimSpace(f.Entity); v != "" {
		add("entity = $%d", v)
	}
	if v := strings.TrimSpace(f.EntityID); v != "" {
		add("entity_id = $%d", v)
	}
	if v := strings.TrimSpace(f.Action); v != "" {
		add("action = $%d", strings.ToUpper(v))
	}
	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}
