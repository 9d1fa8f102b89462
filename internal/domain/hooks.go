package domain

import "context"

// HookEvent represents a committed engine event.
type HookEvent string

const (
	AfterFinalize HookEvent = "after_finalize"
	AfterAmend    HookEvent = "after_amend"
	AfterReturn   HookEvent = "after_return"
	AfterVoid     HookEvent = "after_void"
	AfterRepost   HookEvent = "after_repost"
)

// Hook is a function that runs after an event committed.
type Hook[T any] func(ctx context.Context, entity T) error

// HookRegistry stores lifecycle hooks for an entity type.
type HookRegistry[T any] struct {
	hooks map[HookEvent][]Hook[T]
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry[T any]() *HookRegistry[T] {
	return &HookRegistry[T]{
		hooks: make(map[HookEvent][]Hook[T]),
	}
}

// On registers a hook for the specified event.
func (r *HookRegistry[T]) On(event HookEvent, hook Hook[T]) {
	r.hooks[event] = append(r.hooks[event], hook)
}

// Run executes all hooks for the specified event and returns the first error.
// Hooks run after commit; their failure never undoes the committed operation.
func (r *HookRegistry[T]) Run(ctx context.Context, event HookEvent, entity T) error {
	if r == nil {
		return nil
	}
	for _, hook := range r.hooks[event] {
		if err := hook(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}
