package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"jupiter/internal/domain"
	"jupiter/internal/events"
)

// Query selects entities of one kind.
type Query struct {
	Parent        domain.EntityID
	AllowArchived bool
	RefIDs        []domain.EntityID
	// Filter maps declared link columns to a value, or to a slice for IN.
	Filter map[string]any
}

// Generic is the untyped repository of one kind, bound to a transaction.
type Generic struct {
	desc   Descriptor
	tx     *sql.Tx
	events events.Writer
}

func NewGeneric(tx *sql.Tx, kind domain.Kind) (*Generic, error) {
	d, err := Describe(kind)
	if err != nil {
		return nil, err
	}
	return &Generic{desc: d, tx: tx}, nil
}

func (g *Generic) Kind() domain.Kind { return g.desc.Kind }

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func optionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func sqlValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case domain.EntityID:
		return int64(x)
	case domain.ADate:
		if x.IsZero() {
			return nil
		}
		return x.String()
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return sqlValue(rv.Elem().Interface())
	}
	return v
}

func (g *Generic) linkValues(e domain.Entity) []any {
	links := e.Links()
	out := make([]any, len(g.desc.Links))
	for i, col := range g.desc.Links {
		out[i] = sqlValue(links[col])
	}
	return out
}

func (g *Generic) checkKind(e domain.Entity) error {
	if e.Kind() != g.desc.Kind {
		return fmt.Errorf("repository for %s cannot store %s", g.desc.Kind, e.Kind())
	}
	return nil
}

func (g *Generic) checkParent(ctx context.Context, e domain.Entity) error {
	if g.desc.ParentKind == "" {
		return nil
	}
	parent := e.ParentRefID()
	var one int
	err := g.tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE ref_id=?`, g.desc.ParentKind), int64(parent)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s of %s: %w", g.desc.ParentKind, domain.Describe(e), domain.ErrParentMissing)
	}
	return err
}

// Create inserts a new entity and assigns its ref id.
func (g *Generic) Create(ctx context.Context, e domain.Entity) error {
	if err := g.checkKind(e); err != nil {
		return err
	}
	b := e.Base()
	if b.IsPersisted() {
		return fmt.Errorf("%s: %w", domain.Describe(e), domain.ErrEntityAlreadyExists)
	}
	if err := g.checkParent(ctx, e); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", g.desc.Kind, err)
	}
	cols := []string{"version", "archived", "archival_reason", "created_time", "last_modified_time", "archived_time", "parent_ref_id"}
	args := []any{b.Version, sqlValue(b.Archived), nullableString(string(b.ArchivalReason)), formatTime(b.CreatedTime),
		formatTime(b.LastModifiedTime), optionalTime(b.ArchivedTime), nullableRef(e.ParentRefID())}
	cols = append(cols, g.desc.Links...)
	args = append(args, g.linkValues(e)...)
	cols = append(cols, "data")
	args = append(args, string(data))
	query := fmt.Sprintf(`INSERT INTO %s(%s) VALUES (%s)`, g.desc.Table(), strings.Join(cols, ","), placeholders(len(cols)))
	res, err := g.tx.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", g.desc.Kind, domain.ErrEntityAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert %s: %w", g.desc.Kind, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.RefID = domain.EntityID(id)
	if err := g.events.Append(ctx, g.tx, g.desc.Kind, b.RefID, b.Events()); err != nil {
		return err
	}
	b.MarkSaved()
	return nil
}

// Save persists a modified entity. The stored version must be the one the
// entity was loaded at, otherwise ErrConcurrentModification.
func (g *Generic) Save(ctx context.Context, e domain.Entity) error {
	if err := g.checkKind(e); err != nil {
		return err
	}
	b := e.Base()
	if !b.IsPersisted() {
		return fmt.Errorf("%s: %w", domain.Describe(e), domain.ErrEntityNotFound)
	}
	if !b.IsDirty() {
		return nil
	}
	if err := g.checkParent(ctx, e); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", g.desc.Kind, err)
	}
	sets := []string{"version=?", "archived=?", "archival_reason=?", "last_modified_time=?", "archived_time=?", "parent_ref_id=?"}
	args := []any{b.Version, sqlValue(b.Archived), nullableString(string(b.ArchivalReason)), formatTime(b.LastModifiedTime),
		optionalTime(b.ArchivedTime), nullableRef(e.ParentRefID())}
	for _, col := range g.desc.Links {
		sets = append(sets, col+"=?")
	}
	args = append(args, g.linkValues(e)...)
	sets = append(sets, "data=?")
	args = append(args, string(data), int64(b.RefID), b.Version-1)
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE ref_id=? AND version=?`, g.desc.Table(), strings.Join(sets, ","))
	res, err := g.tx.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", domain.Describe(e), domain.ErrEntityAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", domain.Describe(e), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := g.Load(ctx, b.RefID, true); err != nil {
			return err
		}
		return fmt.Errorf("%s at version %d: %w", domain.Describe(e), b.Version-1, domain.ErrConcurrentModification)
	}
	if err := g.events.Append(ctx, g.tx, g.desc.Kind, b.RefID, b.Events()); err != nil {
		return err
	}
	b.MarkSaved()
	return nil
}

const selectColumns = `ref_id,version,archived,archival_reason,created_time,last_modified_time,archived_time,data`

func (g *Generic) scan(rows interface{ Scan(...any) error }) (domain.Entity, error) {
	var (
		refID              int64
		version            int
		archived           bool
		reason, archivedAt sql.NullString
		created, modified  string
		data               string
	)
	if err := rows.Scan(&refID, &version, &archived, &reason, &created, &modified, &archivedAt, &data); err != nil {
		return nil, err
	}
	e := g.desc.New()
	if err := json.Unmarshal([]byte(data), e); err != nil {
		return nil, fmt.Errorf("decode %s#%d: %w", g.desc.Kind, refID, err)
	}
	b := e.Base()
	b.RefID = domain.EntityID(refID)
	b.Version = version
	b.Archived = archived
	b.ArchivalReason = domain.ArchivalReason(reason.String)
	var err error
	if b.CreatedTime, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, err
	}
	if b.LastModifiedTime, err = time.Parse(time.RFC3339Nano, modified); err != nil {
		return nil, err
	}
	b.ArchivedTime = nil
	if archivedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, archivedAt.String)
		if err != nil {
			return nil, err
		}
		b.ArchivedTime = &t
	}
	return e, nil
}

// Load returns the entity with id. Archived entities count as missing unless allowArchived.
func (g *Generic) Load(ctx context.Context, id domain.EntityID, allowArchived bool) (domain.Entity, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE ref_id=?`, selectColumns, g.desc.Table())
	if !allowArchived {
		query += ` AND archived=0`
	}
	e, err := g.scan(g.tx.QueryRowContext(ctx, query, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s#%d: %w", g.desc.Kind, id, domain.ErrEntityNotFound)
	}
	return e, err
}

// LoadByParent returns the single entity under parent. It serves trunks.
func (g *Generic) LoadByParent(ctx context.Context, parent domain.EntityID) (domain.Entity, error) {
	found, err := g.Find(ctx, Query{Parent: parent, AllowArchived: true})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%s for parent %d: %w", g.desc.Kind, parent, domain.ErrEntityNotFound)
	}
	return found[0], nil
}

func (g *Generic) compile(q Query) (string, []any, error) {
	var where []string
	var args []any
	if q.Parent != domain.BadRefID {
		where = append(where, "parent_ref_id=?")
		args = append(args, int64(q.Parent))
	}
	if !q.AllowArchived {
		where = append(where, "archived=0")
	}
	if q.RefIDs != nil {
		if len(q.RefIDs) == 0 {
			where = append(where, "0=1")
		} else {
			where = append(where, fmt.Sprintf("ref_id IN (%s)", placeholders(len(q.RefIDs))))
			for _, id := range q.RefIDs {
				args = append(args, int64(id))
			}
		}
	}
	cols := make([]string, 0, len(q.Filter))
	for col := range q.Filter {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		if !g.desc.hasColumn(col) {
			return "", nil, fmt.Errorf("%s has no indexed column %q", g.desc.Kind, col)
		}
		v := q.Filter[col]
		rv := reflect.ValueOf(v)
		switch {
		case v == nil:
			where = append(where, col+" IS NULL")
		case rv.Kind() == reflect.Slice:
			if rv.Len() == 0 {
				where = append(where, "0=1")
				continue
			}
			where = append(where, fmt.Sprintf("%s IN (%s)", col, placeholders(rv.Len())))
			for i := 0; i < rv.Len(); i++ {
				args = append(args, sqlValue(rv.Index(i).Interface()))
			}
		default:
			sv := sqlValue(v)
			if sv == nil {
				where = append(where, col+" IS NULL")
				continue
			}
			where = append(where, col+"=?")
			args = append(args, sv)
		}
	}
	query := fmt.Sprintf(`SELECT %s FROM %s`, selectColumns, g.desc.Table())
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return query + " ORDER BY ref_id", args, nil
}

// Find returns the entities matching q in insertion order.
func (g *Generic) Find(ctx context.Context, q Query) ([]domain.Entity, error) {
	query, args, err := g.compile(q)
	if err != nil {
		return nil, err
	}
	rows, err := g.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Entity
	for rows.Next() {
		e, err := g.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Remove deletes the entity and its history and returns it as it was.
func (g *Generic) Remove(ctx context.Context, id domain.EntityID) (domain.Entity, error) {
	e, err := g.Load(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if _, err := g.tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE ref_id=?`, g.desc.Table()), int64(id)); err != nil {
		return nil, fmt.Errorf("delete %s: %w", domain.Describe(e), err)
	}
	if err := g.events.Delete(ctx, g.tx, g.desc.Kind, id); err != nil {
		return nil, err
	}
	return e, nil
}

// History returns the persisted events of id.
func (g *Generic) History(ctx context.Context, id domain.EntityID) ([]domain.Event, error) {
	return g.events.List(ctx, g.tx, g.desc.Kind, id)
}

// Entities is the typed view of Generic.
type Entities[T domain.Entity] struct {
	*Generic
}

// NewEntities binds the repository of T's kind to tx.
func NewEntities[T domain.Entity](tx *sql.Tx) (*Entities[T], error) {
	var zero T
	g, err := NewGeneric(tx, zero.Kind())
	if err != nil {
		return nil, err
	}
	return &Entities[T]{g}, nil
}

func cast[T domain.Entity](e domain.Entity) (T, error) {
	t, ok := e.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unexpected %T for %s", e, e.Kind())
	}
	return t, nil
}

func (r *Entities[T]) Create(ctx context.Context, e T) (T, error) {
	if err := r.Generic.Create(ctx, e); err != nil {
		var zero T
		return zero, err
	}
	return e, nil
}

func (r *Entities[T]) Save(ctx context.Context, e T) (T, error) {
	if err := r.Generic.Save(ctx, e); err != nil {
		var zero T
		return zero, err
	}
	return e, nil
}

func (r *Entities[T]) LoadByID(ctx context.Context, id domain.EntityID, allowArchived bool) (T, error) {
	e, err := r.Generic.Load(ctx, id, allowArchived)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](e)
}

func (r *Entities[T]) LoadByParent(ctx context.Context, parent domain.EntityID) (T, error) {
	e, err := r.Generic.LoadByParent(ctx, parent)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](e)
}

// FindAll returns the entities under parent, optionally restricted to refIDs.
func (r *Entities[T]) FindAll(ctx context.Context, parent domain.EntityID, allowArchived bool, refIDs ...domain.EntityID) ([]T, error) {
	return r.FindAllGeneric(ctx, Query{Parent: parent, AllowArchived: allowArchived, RefIDs: refIDs})
}

func (r *Entities[T]) FindAllGeneric(ctx context.Context, q Query) ([]T, error) {
	found, err := r.Generic.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(found))
	for _, e := range found {
		t, err := cast[T](e)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// FindFirst returns the first match of q, or ErrEntityNotFound.
func (r *Entities[T]) FindFirst(ctx context.Context, q Query) (T, error) {
	found, err := r.FindAllGeneric(ctx, q)
	if err != nil {
		var zero T
		return zero, err
	}
	if len(found) == 0 {
		var zero T
		return zero, fmt.Errorf("%s: %w", r.Kind(), domain.ErrEntityNotFound)
	}
	return found[0], nil
}

func (r *Entities[T]) Remove(ctx context.Context, id domain.EntityID) (T, error) {
	e, err := r.Generic.Remove(ctx, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](e)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableRef(id domain.EntityID) any {
	if id == domain.BadRefID {
		return nil
	}
	return int64(id)
}
