package engine

import (
	"context"

	"jupiter/internal/domain"
	"jupiter/internal/uow"
)

func pushCollection[T domain.Entity](ctx context.Context, s scope) (T, error) {
	var zero T
	group, err := trunk[*domain.PushIntegrationGroup](ctx, s)
	if err != nil {
		return zero, err
	}
	return uow.For[T](s.u).LoadByParent(ctx, group.RefID)
}

type SlackTaskArgs struct {
	User                string                         `json:"user" validate:"required"`
	Channel             string                         `json:"channel,omitempty"`
	Message             string                         `json:"message" validate:"required"`
	GenerationExtraInfo domain.PushGenerationExtraInfo `json:"generation_extra_info"`
}

// CreateSlackTask stores a pushed Slack message. The next generation run turns it into an inbox task.
func (e Engine) CreateSlackTask(ctx context.Context, id Identity, args SlackTaskArgs) (*domain.SlackTask, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.SlackTask
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureSlackTasks); err != nil {
			return err
		}
		coll, err := pushCollection[*domain.SlackTaskCollection](ctx, s)
		if err != nil {
			return err
		}
		t, err := domain.NewSlackTask(s.ectx, coll.RefID, args.User, args.Channel, args.Message, args.GenerationExtraInfo)
		if err != nil {
			return err
		}
		out, err = uow.For[*domain.SlackTask](s.u).Create(ctx, t)
		return err
	})
	return out, err
}

type UpdateSlackTaskArgs struct {
	RefID domain.EntityID `json:"ref_id" validate:"required"`
	SlackTaskArgs
}

func (e Engine) UpdateSlackTask(ctx context.Context, id Identity, args UpdateSlackTaskArgs) (*domain.SlackTask, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.SlackTask
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureSlackTasks); err != nil {
			return err
		}
		t, err := load[*domain.SlackTask](ctx, s, args.RefID, false)
		if err != nil {
			return err
		}
		if err := t.Update(s.ectx, args.User, args.Channel, args.Message, args.GenerationExtraInfo); err != nil {
			return err
		}
		out, err = uow.For[*domain.SlackTask](s.u).Save(ctx, t)
		return err
	})
	return out, err
}

type EmailTaskArgs struct {
	FromAddress         string                         `json:"from_address" validate:"required,email"`
	FromName            string                         `json:"from_name,omitempty"`
	ToAddress           string                         `json:"to_address" validate:"required,email"`
	Subject             string                         `json:"subject,omitempty"`
	Body                string                         `json:"body,omitempty"`
	GenerationExtraInfo domain.PushGenerationExtraInfo `json:"generation_extra_info"`
}

func (a EmailTaskArgs) message() domain.EmailMessage {
	return domain.EmailMessage{
		FromAddress: a.FromAddress,
		FromName:    a.FromName,
		ToAddress:   a.ToAddress,
		Subject:     a.Subject,
		Body:        a.Body,
	}
}

// CreateEmailTask stores a pushed email. The next generation run turns it into an inbox task.
func (e Engine) CreateEmailTask(ctx context.Context, id Identity, args EmailTaskArgs) (*domain.EmailTask, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.EmailTask
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureEmailTasks); err != nil {
			return err
		}
		coll, err := pushCollection[*domain.EmailTaskCollection](ctx, s)
		if err != nil {
			return err
		}
		t, err := domain.NewEmailTask(s.ectx, coll.RefID, args.message(), args.GenerationExtraInfo)
		if err != nil {
			return err
		}
		out, err = uow.For[*domain.EmailTask](s.u).Create(ctx, t)
		return err
	})
	return out, err
}

type UpdateEmailTaskArgs struct {
	RefID domain.EntityID `json:"ref_id" validate:"required"`
	EmailTaskArgs
}

func (e Engine) UpdateEmailTask(ctx context.Context, id Identity, args UpdateEmailTaskArgs) (*domain.EmailTask, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.EmailTask
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureEmailTasks); err != nil {
			return err
		}
		t, err := load[*domain.EmailTask](ctx, s, args.RefID, false)
		if err != nil {
			return err
		}
		if err := t.Update(s.ectx, args.message(), args.GenerationExtraInfo); err != nil {
			return err
		}
		out, err = uow.For[*domain.EmailTask](s.u).Save(ctx, t)
		return err
	})
	return out, err
}
