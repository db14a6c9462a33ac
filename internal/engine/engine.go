// Package engine holds the use cases shared by the CLI and the HTTP API.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"jupiter/internal/config"
	"jupiter/internal/domain"
	"jupiter/internal/engine/auth"
	"jupiter/internal/icalsync"
	"jupiter/internal/progress"
	"jupiter/internal/uow"
)

// Identity is who a use case runs as.
type Identity = auth.Identity

type Engine struct {
	DB       *sql.DB
	UOW      uow.Provider
	Locks    *uow.Locks
	Settings *config.Settings
	Controls domain.FeatureFlagsControls
	Tokens   auth.Tokens
	Log      logrus.FieldLogger
	Now      func() time.Time
	// Source tags every mutation the engine makes. It defaults to cli.
	Source  domain.EventSource
	Fetcher icalsync.Fetcher
	Metrics progress.Reporter
}

func New(db *sql.DB, settings *config.Settings, log logrus.FieldLogger) Engine {
	return Engine{
		DB:       db,
		UOW:      uow.Provider{DB: db},
		Locks:    uow.NewLocks(),
		Settings: settings,
		Controls: settings.FeatureControls(),
		Tokens:   auth.Tokens{Secret: settings.TokenSecret()},
		Log:      log,
		Now:      time.Now,
		Source:   domain.EventSourceCLI,
	}
}

// WithSource returns a copy of e that tags mutations with source.
func (e Engine) WithSource(source domain.EventSource) Engine {
	e.Source = source
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) log() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

func (e Engine) ectx() domain.Ctx {
	source := e.Source
	if source == "" {
		source = domain.EventSourceCLI
	}
	return domain.NewCtx(source, e.now())
}

func (e Engine) today() domain.ADate { return domain.DateOf(e.now()) }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// check validates the tags of a use case argument struct and reports the first failure
// as a domain validation error.
func check(args any) error {
	err := validate.Struct(args)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.Invalid("args", "%v", err)
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return domain.Invalid(fe.Field(), "is required")
	case "oneof":
		return domain.Invalid(fe.Field(), "must be one of %s", fe.Param())
	case "email":
		return domain.Invalid(fe.Field(), "must be an email address")
	case "min", "gte":
		return domain.Invalid(fe.Field(), "must be at least %s", fe.Param())
	case "max", "lte":
		return domain.Invalid(fe.Field(), "must be at most %s", fe.Param())
	default:
		return domain.Invalid(fe.Field(), "failed %s check", fe.Tag())
	}
}

// scope is what a use case sees inside its unit of work.
type scope struct {
	u    *uow.UnitOfWork
	ectx domain.Ctx
	user *domain.User
	ws   *domain.Workspace
}

// do runs fn in one unit of work after checking that id owns the workspace it names.
func (e Engine) do(ctx context.Context, id Identity, fn func(ctx context.Context, s scope) error) error {
	if id.User == domain.BadRefID || id.Workspace == domain.BadRefID {
		return fmt.Errorf("%w: no identity", auth.ErrInvalidCredentials)
	}
	return e.UOW.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		user, err := uow.For[*domain.User](u).LoadByID(ctx, id.User, false)
		if err != nil {
			return err
		}
		ws, err := uow.For[*domain.Workspace](u).LoadByID(ctx, id.Workspace, false)
		if err != nil {
			return err
		}
		if ws.OwnerRefID != user.RefID {
			return fmt.Errorf("workspace %d: %w", ws.RefID, domain.ErrEntityNotFound)
		}
		return fn(ctx, scope{u: u, ectx: e.ectx(), user: user, ws: ws})
	})
}

// trunk loads the one row of kind T that belongs to the workspace.
func trunk[T domain.Entity](ctx context.Context, s scope) (T, error) {
	return uow.For[T](s.u).LoadByParent(ctx, s.ws.RefID)
}

func deref[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
