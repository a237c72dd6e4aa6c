package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cooling_control/internal/models"

	"github.com/google/uuid"
)

// sqliteTimeLayout is the SQLite TIMESTAMP text format, millisecond precision
// so events of one tick keep their order.
const sqliteTimeLayout = "2006-01-02 15:04:05.000"

const (
	insertEventSQL  = `INSERT INTO control_events (id, occurred_at, type, message, meta) VALUES (?, ?, ?, ?, ?)`
	selectEventsSQL = `SELECT id, occurred_at, type, message, meta FROM control_events`
	pruneEventsSQL  = `DELETE FROM control_events WHERE occurred_at < ?`
)

// EventSQLite is the control-event journal.
type EventSQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewEventSQLite(db *sql.DB) *EventSQLite {
	return &EventSQLite{db: db, now: time.Now}
}

// Append inserts an event, assigning an id and timestamp when missing.
func (r *EventSQLite) Append(ctx context.Context, e models.ControlEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = r.now()
	}

	var meta sql.NullString
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata of %s: %w", e.EventID, err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, insertEventSQL,
		e.EventID,
		e.OccurredAt.UTC().Format(sqliteTimeLayout),
		normalizeType(e.Type),
		e.Description,
		meta,
	)
	return err
}

// List returns events in [From, To] of the given type, oldest first. A
// positive Limit keeps the most recent Limit events.
func (r *EventSQLite) List(ctx context.Context, f EventFilter) ([]models.ControlEvent, error) {
	q, args := eventQuery(f)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.ControlEvent, 0, 64)
	for rows.Next() {
		var (
			ev   models.ControlEvent
			meta sql.NullString
		)
		if err := rows.Scan(&ev.EventID, &ev.OccurredAt, &ev.Type, &ev.Description, &meta); err != nil {
			return nil, err
		}
		ev.OccurredAt = ev.OccurredAt.UTC()
		ev.Metadata = decodeMeta(meta)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Prune deletes events older than before and reports how many were removed.
func (r *EventSQLite) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, pruneEventsSQL, before.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func eventQuery(f EventFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !f.From.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, f.From.UTC().Format(sqliteTimeLayout))
	}
	if !f.To.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, f.To.UTC().Format(sqliteTimeLayout))
	}
	if typ := normalizeType(f.Type); typ != "" {
		conds = append(conds, "type = ?")
		args = append(args, typ)
	}

	q := selectEventsSQL
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	if f.Limit > 0 {
		q = "SELECT * FROM (" + q + " ORDER BY occurred_at DESC LIMIT ?)"
		args = append(args, f.Limit)
	}
	return q + " ORDER BY occurred_at ASC", args
}

// decodeMeta keeps malformed JSON as the raw string.
func decodeMeta(meta sql.NullString) any {
	if !meta.Valid || meta.String == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(meta.String), &v); err != nil {
		return meta.String
	}
	return v
}

func normalizeType(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}
