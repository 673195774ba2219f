// Package domain holds pieces shared by the document services.
package domain

import (
	"context"
	"sync"
)

// HookEvent is a point in a document's posting lifecycle.
type HookEvent string

const (
	// BeforePost runs after validation, before any movement is applied.
	// An error aborts the posting.
	BeforePost HookEvent = "before_post"
	// AfterPost runs once the movements are committed. Errors are logged
	// by the caller and do not undo the posting.
	AfterPost HookEvent = "after_post"
	// AfterReverse runs once a document's movements have been reversed.
	AfterReverse HookEvent = "after_reverse"
)

// Hook is a function that runs at a lifecycle point.
type Hook[T any] func(ctx context.Context, doc T) error

// HookRegistry stores lifecycle hooks for one document type.
type HookRegistry[T any] struct {
	mu    sync.RWMutex
	hooks map[HookEvent][]Hook[T]
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry[T any]() *HookRegistry[T] {
	return &HookRegistry[T]{hooks: make(map[HookEvent][]Hook[T])}
}

// On registers a hook for event.
func (r *HookRegistry[T]) On(event HookEvent, hook Hook[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[event] = append(r.hooks[event], hook)
}

// Run executes the hooks of event in registration order and stops at the
// first error.
func (r *HookRegistry[T]) Run(ctx context.Context, event HookEvent, doc T) error {
	r.mu.RLock()
	hooks := r.hooks[event]
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}
