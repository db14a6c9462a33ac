// Package uow scopes repository access to one transaction.
package uow

import (
	"context"
	"database/sql"
	"fmt"

	"jupiter/internal/domain"
	"jupiter/internal/repo"
)

// UnitOfWork hands out repositories sharing one transaction.
type UnitOfWork struct {
	tx    *sql.Tx
	repos map[domain.Kind]*repo.Generic
}

// Provider opens units of work on DB.
type Provider struct {
	DB *sql.DB
}

// Do runs fn inside a transaction. It commits when fn returns nil and the
// context is still live, and rolls back on error, panic or cancellation.
func (p Provider) Do(ctx context.Context, fn func(ctx context.Context, u *UnitOfWork) error) (err error) {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	u := &UnitOfWork{tx: tx, repos: map[domain.Kind]*repo.Generic{}}
	if err := fn(ctx, u); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Tx exposes the transaction for the record stores and raw queries.
func (u *UnitOfWork) Tx() *sql.Tx { return u.tx }

// GetFor returns the untyped repository of kind.
func (u *UnitOfWork) GetFor(kind domain.Kind) (*repo.Generic, error) {
	if g, ok := u.repos[kind]; ok {
		return g, nil
	}
	g, err := repo.NewGeneric(u.tx, kind)
	if err != nil {
		return nil, err
	}
	u.repos[kind] = g
	return g, nil
}

// For returns the typed repository of T. It panics when T has no storage declaration.
func For[T domain.Entity](u *UnitOfWork) *repo.Entities[T] {
	var zero T
	g, err := u.GetFor(zero.Kind())
	if err != nil {
		panic(err)
	}
	return &repo.Entities[T]{Generic: g}
}

func (u *UnitOfWork) StreakMarks() repo.HabitStreakMarks      { return repo.NewHabitStreakMarks(u.tx) }
func (u *UnitOfWork) BigPlanStats() repo.BigPlanStatsStore    { return repo.NewBigPlanStats(u.tx) }
func (u *UnitOfWork) JournalStats() repo.JournalStatsStore    { return repo.NewJournalStats(u.tx) }
func (u *UnitOfWork) ScoreLog() repo.ScoreLog                 { return repo.NewScoreLog(u.tx) }
func (u *UnitOfWork) ScoreStats() repo.ScoreStatsStore        { return repo.NewScoreStats(u.tx) }
func (u *UnitOfWork) ScorePeriodBests() repo.ScorePeriodBests { return repo.NewScorePeriodBests(u.tx) }
func (u *UnitOfWork) WorkspaceConfigs() repo.WorkspaceConfigs { return repo.NewWorkspaceConfigs(u.tx) }
func (u *UnitOfWork) APIKeys() repo.APIKeys                   { return repo.NewAPIKeys(u.tx) }
