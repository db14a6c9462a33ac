package uow

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"jupiter/internal/domain"
)

// Locks serializes long-running mutations of a workspace inside the process.
type Locks struct {
	mu   sync.Mutex
	sems map[domain.EntityID]*semaphore.Weighted
}

func NewLocks() *Locks {
	return &Locks{sems: map[domain.EntityID]*semaphore.Weighted{}}
}

// Acquire blocks until the workspace is free or ctx is done.
func (l *Locks) Acquire(ctx context.Context, workspace domain.EntityID) (release func(), err error) {
	l.mu.Lock()
	if l.sems == nil {
		l.sems = map[domain.EntityID]*semaphore.Weighted{}
	}
	sem, ok := l.sems[workspace]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.sems[workspace] = sem
	}
	l.mu.Unlock()
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { sem.Release(1) }) }, nil
}

// TryAcquire is Acquire without waiting.
func (l *Locks) TryAcquire(workspace domain.EntityID) (release func(), ok bool) {
	l.mu.Lock()
	if l.sems == nil {
		l.sems = map[domain.EntityID]*semaphore.Weighted{}
	}
	sem, found := l.sems[workspace]
	if !found {
		sem = semaphore.NewWeighted(1)
		l.sems[workspace] = sem
	}
	l.mu.Unlock()
	if !sem.TryAcquire(1) {
		return nil, false
	}
	var once sync.Once
	return func() { once.Do(func() { sem.Release(1) }) }, true
}
