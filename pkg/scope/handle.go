package scope

import (
	"context"
	"fmt"
)

// Handle is a lazy holder for a scoped target. Handles are cheap, safe for
// concurrent use, and stay valid across scope refreshes: after a refresh the
// next Get realizes a fresh target.
//
// Handles are how scoped targets reference each other. A factory that needs
// another target captures its Handle and dereferences it at call time, which
// keeps inter-dependency creation order irrelevant.
type Handle struct {
	name  string
	scope *Scope
}

// Name returns the target name the handle points at.
func (h *Handle) Name() string {
	return h.name
}

// Get returns the live target, realizing it on first access. During a scope
// drain, Get returns the cached target if it is still alive and
// ErrScopeDraining otherwise.
func (h *Handle) Get(ctx context.Context) (interface{}, error) {
	return h.scope.get(ctx, h.name)
}

// Realized reports whether the target behind the handle currently exists.
func (h *Handle) Realized() bool {
	return h.scope.Realized(h.name)
}

// Get is a generic helper that dereferences a handle and asserts the target
// type:
//
//	b, err := scope.Get[*Backend](ctx, handle)
func Get[T any](ctx context.Context, h *Handle) (T, error) {
	var zero T
	v, err := h.Get(ctx)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("target %s has type %T, want %T", h.name, v, zero)
	}
	return out, nil
}
