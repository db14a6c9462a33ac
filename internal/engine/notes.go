package engine

import (
	"context"
	"errors"

	"jupiter/internal/domain"
	"jupiter/internal/repo"
	"jupiter/internal/uow"
)

// noteSources maps a note domain to the kind of entity that owns its notes.
var noteSources = map[domain.NoteDomain]domain.Kind{
	domain.NoteDomainInboxTask:             domain.KindInboxTask,
	domain.NoteDomainBigPlan:               domain.KindBigPlan,
	domain.NoteDomainPerson:                domain.KindPerson,
	domain.NoteDomainWorkingMem:            domain.KindWorkingMem,
	domain.NoteDomainTimePlan:              domain.KindTimePlan,
	domain.NoteDomainJournal:               domain.KindJournal,
	domain.NoteDomainScheduleEventInDay:    domain.KindScheduleEventInDay,
	domain.NoteDomainScheduleEventFullDays: domain.KindScheduleEventFullDays,
}

type NoteRefArgs struct {
	Domain      domain.NoteDomain `json:"domain" validate:"required"`
	SourceRefID domain.EntityID   `json:"source_entity_ref_id" validate:"required"`
}

type SetNoteArgs struct {
	NoteRefArgs
	Content domain.NoteContent `json:"content,omitempty"`
	// Text is shorthand for content made of plain paragraphs.
	Text *string `json:"text,omitempty"`
}

// noteSource loads the entity a note hangs off and checks it lives in the workspace.
func noteSource(ctx context.Context, s scope, args NoteRefArgs) (domain.Entity, error) {
	kind, ok := noteSources[args.Domain]
	if !ok {
		return nil, domain.Invalid("domain", "unknown note domain %q", args.Domain)
	}
	if err := checkKind(s, kind, false); err != nil {
		return nil, err
	}
	return loadAny(ctx, s, kind, args.SourceRefID)
}

func findNote(ctx context.Context, s scope, args NoteRefArgs) (*domain.Note, error) {
	return uow.For[*domain.Note](s.u).FindFirst(ctx, repo.Query{AllowArchived: true, Filter: map[string]any{
		"domain":               string(args.Domain),
		"source_entity_ref_id": int64(args.SourceRefID),
	}})
}

// SetNote creates or replaces the note of an entity. Notes mirrored from a calendar are read only.
func (e Engine) SetNote(ctx context.Context, id Identity, args SetNoteArgs) (*domain.Note, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	content := args.Content
	if args.Text != nil {
		content = domain.TextContent(*args.Text)
	}
	var out *domain.Note
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		src, err := noteSource(ctx, s, args.NoteRefArgs)
		if err != nil {
			return err
		}
		if ev, ok := src.(interface{ CanBeModifiedIndependently() bool }); ok && !ev.CanBeModifiedIndependently() {
			return domain.ErrCannotModifyLinked
		}
		if src.Base().Archived {
			return domain.Invalid("source_entity_ref_id", "%s is archived", domain.Describe(src))
		}
		notes := uow.For[*domain.Note](s.u)
		n, err := findNote(ctx, s, args.NoteRefArgs)
		switch {
		case errors.Is(err, domain.ErrEntityNotFound):
			coll, err := trunk[*domain.NoteCollection](ctx, s)
			if err != nil {
				return err
			}
			if n, err = domain.NewNote(s.ectx, coll.RefID, args.Domain, args.SourceRefID, content); err != nil {
				return err
			}
			out, err = notes.Create(ctx, n)
			return err
		case err != nil:
			return err
		}
		changed, err := n.UpdateContent(s.ectx, content)
		if err != nil {
			return err
		}
		out = n
		if changed {
			out, err = notes.Save(ctx, n)
		}
		return err
	})
	return out, err
}

// LoadNote returns the note of an entity.
func (e Engine) LoadNote(ctx context.Context, id Identity, args NoteRefArgs) (*domain.Note, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.Note
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if _, err := noteSource(ctx, s, args); err != nil {
			return err
		}
		var err error
		out, err = findNote(ctx, s, args)
		return err
	})
	return out, err
}
