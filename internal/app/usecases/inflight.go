package usecases

import (
	"context"
	"sync"

	"github.com/sandeepseesa/promptea/internal/app/dto"
)

// InFlight allows one running task per key and lets callers cancel it
type InFlight struct {
	mu    sync.Mutex
	tasks map[string]context.CancelFunc
}

// NewInFlight creates an empty guard
func NewInFlight() *InFlight {
	return &InFlight{tasks: make(map[string]context.CancelFunc)}
}

// Begin claims key and returns a cancellable child of ctx plus the release
// func the caller must defer. A key already claimed yields ErrRunInFlight.
func (f *InFlight) Begin(ctx context.Context, key string) (context.Context, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.tasks[key]; busy {
		return nil, nil, dto.ErrRunInFlight
	}
	taskCtx, cancel := context.WithCancel(ctx)
	f.tasks[key] = cancel

	var once sync.Once
	release := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.tasks, key)
			f.mu.Unlock()
			cancel()
		})
	}
	return taskCtx, release, nil
}

// Cancel cancels the task running under key
func (f *InFlight) Cancel(key string) error {
	f.mu.Lock()
	cancel, ok := f.tasks[key]
	f.mu.Unlock()
	if !ok {
		return dto.ErrNothingInFlight
	}
	cancel()
	return nil
}

// Running reports whether key is claimed
func (f *InFlight) Running(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tasks[key]
	return ok
}
