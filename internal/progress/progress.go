// Package progress reports the entities a long-running operation touches.
package progress

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"jupiter/internal/domain"
	"jupiter/internal/telemetry"
)

// Reporter receives one call per entity created, updated, archived or removed.
type Reporter interface {
	EntityCreated(ctx context.Context, e domain.Entity) error
	EntityUpdated(ctx context.Context, e domain.Entity) error
	EntityArchived(ctx context.Context, e domain.Entity) error
	EntityRemoved(ctx context.Context, e domain.Entity) error
}

// Noop discards everything.
type Noop struct{}

func (Noop) EntityCreated(context.Context, domain.Entity) error  { return nil }
func (Noop) EntityUpdated(context.Context, domain.Entity) error  { return nil }
func (Noop) EntityArchived(context.Context, domain.Entity) error { return nil }
func (Noop) EntityRemoved(context.Context, domain.Entity) error  { return nil }

// LogReporter writes one debug line per entity.
type LogReporter struct {
	Log logrus.FieldLogger
}

func (r LogReporter) log(op string, e domain.Entity) error {
	if r.Log == nil {
		return nil
	}
	r.Log.WithFields(logrus.Fields{
		"op":     op,
		"entity": domain.Describe(e),
		"name":   domain.EntityName(e),
	}).Debug("entity changed")
	return nil
}

func (r LogReporter) EntityCreated(_ context.Context, e domain.Entity) error {
	return r.log("created", e)
}

func (r LogReporter) EntityUpdated(_ context.Context, e domain.Entity) error {
	return r.log("updated", e)
}

func (r LogReporter) EntityArchived(_ context.Context, e domain.Entity) error {
	return r.log("archived", e)
}

func (r LogReporter) EntityRemoved(_ context.Context, e domain.Entity) error {
	return r.log("removed", e)
}

// Recorder is implemented by every run log entry.
type Recorder interface {
	AddEntityCreated(ctx domain.Ctx, e domain.Entity) error
	AddEntityUpdated(ctx domain.Ctx, e domain.Entity) error
	AddEntityArchived(ctx domain.Ctx, e domain.Entity) error
	AddEntityRemoved(ctx domain.Ctx, e domain.Entity) error
}

// EntryReporter appends to a run log entry.
type EntryReporter struct {
	Entry Recorder
	Ctx   domain.Ctx
}

func (r EntryReporter) EntityCreated(_ context.Context, e domain.Entity) error {
	return r.Entry.AddEntityCreated(r.Ctx, e)
}

func (r EntryReporter) EntityUpdated(_ context.Context, e domain.Entity) error {
	return r.Entry.AddEntityUpdated(r.Ctx, e)
}

func (r EntryReporter) EntityArchived(_ context.Context, e domain.Entity) error {
	return r.Entry.AddEntityArchived(r.Ctx, e)
}

func (r EntryReporter) EntityRemoved(_ context.Context, e domain.Entity) error {
	return r.Entry.AddEntityRemoved(r.Ctx, e)
}

// MetricsReporter counts entities on jupiter.gen.entities, by op and kind.
type MetricsReporter struct {
	counter metric.Int64Counter
}

func NewMetricsReporter() MetricsReporter {
	return MetricsReporter{counter: telemetry.Counter("jupiter.gen.entities", "Entities touched by generation, cascades and sync")}
}

func (r MetricsReporter) add(ctx context.Context, op string, e domain.Entity) error {
	if r.counter == nil {
		return nil
	}
	r.counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("kind", string(e.Kind())),
	))
	return nil
}

func (r MetricsReporter) EntityCreated(ctx context.Context, e domain.Entity) error {
	return r.add(ctx, "created", e)
}

func (r MetricsReporter) EntityUpdated(ctx context.Context, e domain.Entity) error {
	return r.add(ctx, "updated", e)
}

func (r MetricsReporter) EntityArchived(ctx context.Context, e domain.Entity) error {
	return r.add(ctx, "archived", e)
}

func (r MetricsReporter) EntityRemoved(ctx context.Context, e domain.Entity) error {
	return r.add(ctx, "removed", e)
}

// Multi fans out to every reporter and stops at the first error.
type Multi []Reporter

func (m Multi) each(fn func(Reporter) error) error {
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) EntityCreated(ctx context.Context, e domain.Entity) error {
	return m.each(func(r Reporter) error { return r.EntityCreated(ctx, e) })
}

func (m Multi) EntityUpdated(ctx context.Context, e domain.Entity) error {
	return m.each(func(r Reporter) error { return r.EntityUpdated(ctx, e) })
}

func (m Multi) EntityArchived(ctx context.Context, e domain.Entity) error {
	return m.each(func(r Reporter) error { return r.EntityArchived(ctx, e) })
}

func (m Multi) EntityRemoved(ctx context.Context, e domain.Entity) error {
	return m.each(func(r Reporter) error { return r.EntityRemoved(ctx, e) })
}

// Counter tallies calls. Tests and run summaries use it.
type Counter struct {
	Created, Updated, Archived, Removed []domain.EntitySummary
}

func (c *Counter) EntityCreated(_ context.Context, e domain.Entity) error {
	c.Created = append(c.Created, domain.SummaryOf(e))
	return nil
}

func (c *Counter) EntityUpdated(_ context.Context, e domain.Entity) error {
	c.Updated = append(c.Updated, domain.SummaryOf(e))
	return nil
}

func (c *Counter) EntityArchived(_ context.Context, e domain.Entity) error {
	c.Archived = append(c.Archived, domain.SummaryOf(e))
	return nil
}

func (c *Counter) EntityRemoved(_ context.Context, e domain.Entity) error {
	c.Removed = append(c.Removed, domain.SummaryOf(e))
	return nil
}
