package background

import (
	"context"
	"sync"
	"time"
)

// Scope - joins a group of background goroutines under a shared cancellation
// context, so the owner is able to stop them together and wait for the drain.
type Scope struct {
	ctx       context.Context
	ctxCancel context.CancelFunc
	scope     sync.WaitGroup
}

// NewScope - concurrency scope builder.
func NewScope() *Scope {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scope{
		ctx:       ctx,
		ctxCancel: cancel,
	}
}

// Context - returns the scope context, done after Cancel.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Go - runs f as a goroutine registered within the scope.
func (s *Scope) Go(f func(ctx context.Context)) {
	s.scope.Add(1)
	go func() {
		defer s.scope.Done()
		f(s.ctx)
	}()
}

// Add - notifies scope to register processes/workers/layers.
// Based on sync.WaitGroup.
func (s *Scope) Add(delta int) {
	s.scope.Add(delta)
}

// Done - notifies scope when process/worker/layer is done.
// Based on sync.WaitGroup.
func (s *Scope) Done() {
	s.scope.Done()
}

// Cancel - cancels the scope context without waiting for registered members.
func (s *Scope) Cancel() {
	s.ctxCancel()
}

// WaitTimeout - waits until all registered members are done, but no longer
// than the given timeout. Reports whether the scope fully drained.
func (s *Scope) WaitTimeout(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.scope.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
