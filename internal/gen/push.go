package gen

import (
	"context"
	"time"

	"jupiter/internal/domain"
	"jupiter/internal/uow"
)

// pushed is what a slack or email task contributes to its inbox task.
type pushed struct {
	refID    domain.EntityID
	name     string
	extra    domain.PushGenerationExtraInfo
	modified time.Time
}

func (r *run) pushGroup(ctx context.Context) (*domain.PushIntegrationGroup, error) {
	return uow.For[*domain.PushIntegrationGroup](r.u).LoadByParent(ctx, r.ws.RefID)
}

func (r *run) slackTasks(ctx context.Context) error {
	group, err := r.pushGroup(ctx)
	if err != nil {
		return err
	}
	coll, err := uow.For[*domain.SlackTaskCollection](r.u).LoadByParent(ctx, group.RefID)
	if err != nil {
		return err
	}
	found, err := uow.For[*domain.SlackTask](r.u).FindAll(ctx, coll.RefID, false, r.args.FilterSlackTaskRefIDs...)
	if err != nil {
		return err
	}
	items := make([]pushed, len(found))
	for i, t := range found {
		items[i] = pushed{refID: t.RefID, name: t.TaskName(), extra: t.GenerationExtraInfo, modified: t.LastModifiedTime}
	}
	return r.pushTasks(ctx, domain.SourceSlackTask, &coll.PushTaskCollection, items)
}

func (r *run) emailTasks(ctx context.Context) error {
	group, err := r.pushGroup(ctx)
	if err != nil {
		return err
	}
	coll, err := uow.For[*domain.EmailTaskCollection](r.u).LoadByParent(ctx, group.RefID)
	if err != nil {
		return err
	}
	found, err := uow.For[*domain.EmailTask](r.u).FindAll(ctx, coll.RefID, false, r.args.FilterEmailTaskRefIDs...)
	if err != nil {
		return err
	}
	items := make([]pushed, len(found))
	for i, t := range found {
		items[i] = pushed{refID: t.RefID, name: t.TaskName(), extra: t.GenerationExtraInfo, modified: t.LastModifiedTime}
	}
	return r.pushTasks(ctx, domain.SourceEmailTask, &coll.PushTaskCollection, items)
}

// pushTasks keeps exactly one inbox task per push task.
func (r *run) pushTasks(ctx context.Context, source domain.InboxTaskSource, coll *domain.PushTaskCollection, items []pushed) error {
	ids := make([]domain.EntityID, len(items))
	for i, it := range items {
		ids[i] = it.refID
	}
	existing, err := r.derivedTasks(ctx, source, ids)
	if err != nil {
		return err
	}
	bySource := make(map[domain.EntityID]*domain.InboxTask, len(existing))
	for _, t := range existing {
		bySource[t.SourceEntityRefID] = t
	}
	for _, it := range items {
		g := domain.GeneratedTask{
			Project:        coll.GenerationProjectRefID,
			Name:           it.name,
			Eisen:          it.extra.EisenOr(domain.EisenRegular),
			Difficulty:     it.extra.DifficultyOr(domain.DifficultyEasy),
			ActionableDate: it.extra.ActionableDate,
			DueDate:        it.extra.DueDate,
			GenRightNow:    r.args.Today,
		}
		_, err := r.upsertTask(ctx, bySource[it.refID], latest(it.modified, coll.LastModifiedTime),
			func() (*domain.InboxTask, error) {
				return domain.NewInboxTaskForPushTask(r.ectx, r.tasks, source, it.refID, it.extra.Status, g)
			},
			func(t *domain.InboxTask) error { return t.UpdateLinkToPushTask(r.ectx, it.extra.Status, g) })
		if err != nil {
			return err
		}
	}
	return nil
}
