package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"jupiter/internal/domain"
)

// Writer appends entity events to the per-kind event tables.
type Writer struct{}

type EventPayload map[string]any

// Append writes evts for the entity kind#refID inside tx.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, kind domain.Kind, refID domain.EntityID, evts []domain.Event) error {
	if len(evts) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s_event(owner_ref_id,timestamp,session_index,name,source,owner_version,kind,data) VALUES (?,?,?,?,?,?,?,?)`, kind))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, e := range evts {
		payload := EventPayload(e.Data)
		if payload == nil {
			payload = EventPayload{}
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		_, err = stmt.ExecContext(ctx, int64(refID), e.Timestamp.UTC().Format(time.RFC3339Nano), i, e.Name,
			string(e.Source), e.Version, kindOf(e), string(data))
		if err != nil {
			return fmt.Errorf("append %s event %s: %w", kind, e.Name, err)
		}
	}
	return nil
}

// List returns the stored history of kind#refID, oldest first.
func (w Writer) List(ctx context.Context, q interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}, kind domain.Kind, refID domain.EntityID) ([]domain.Event, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		`SELECT timestamp,name,source,owner_version,data FROM %s_event WHERE owner_ref_id=? ORDER BY owner_version, session_index`, kind), int64(refID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Event
	for rows.Next() {
		var ts, name, source, data string
		var version int
		if err := rows.Scan(&ts, &name, &source, &version, &data); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, err
		}
		e := domain.Event{Name: name, Source: domain.EventSource(source), Timestamp: t, Version: version}
		if err := json.Unmarshal([]byte(data), &e.Data); err != nil {
			return nil, err
		}
		if len(e.Data) == 0 {
			e.Data = nil
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete drops the history of a removed entity.
func (w Writer) Delete(ctx context.Context, tx *sql.Tx, kind domain.Kind, refID domain.EntityID) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s_event WHERE owner_ref_id=?`, kind), int64(refID))
	return err
}

func kindOf(e domain.Event) string {
	switch e.Name {
	case "Created":
		return "create"
	case "Archived":
		return "archive"
	default:
		return "update"
	}
}
