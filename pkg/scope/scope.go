// Package scope implements a refresh scope: a cache of lazily realized,
// named targets reachable through handles, with dependency-ordered teardown
// and the ability to drain and recreate targets without restarting the
// embedding application.
package scope

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cenkalti/backoff/v4"
	cmap "github.com/orcaman/concurrent-map/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/refreshscope/api"
	"github.com/srediag/refreshscope/internal/logutil"
)

// Factory constructs the real target behind a handle. It runs at most once
// per scope generation.
type Factory func(ctx context.Context) (interface{}, error)

// DisposeFunc tears down a realized target. When nil, targets implementing
// api.Disposer or io.Closer are disposed through those interfaces instead.
type DisposeFunc func(v interface{}) error

type scopeState int

const (
	stateActive scopeState = iota
	stateDraining
	stateClosed
)

type target struct {
	name    string
	factory Factory
	dispose DisposeFunc

	mu       sync.Mutex
	realized bool
	value    interface{}
}

// Scope owns a set of named targets. Targets are realized on first access
// through their Handle and destroyed on Refresh or Close in the configured
// teardown order.
type Scope struct {
	conf    *Config
	targets cmap.ConcurrentMap[string, *target]

	mu               sync.Mutex
	state            scopeState
	teardown         []string
	creationOrder    []string
	destructionOrder []string

	onCreated   func(name string)
	onDestroyed func(name string, err error)

	createdCtr   metric.Int64Counter
	destroyedCtr metric.Int64Counter

	log *logutil.Logger
}

// New creates a Scope. A nil conf selects DefaultConfig.
func New(conf *Config) (*Scope, error) {
	if conf == nil {
		conf = DefaultConfig()
	}
	if err := VerifyConfig(conf); err != nil {
		return nil, err
	}

	s := &Scope{
		conf:    conf,
		targets: cmap.New[*target](),
		log:     logutil.New("scope", nil),
	}

	if conf.Meter != nil {
		var err error
		s.createdCtr, err = conf.Meter.Int64Counter("refreshscope.targets.created")
		if err != nil {
			return nil, fmt.Errorf("create counter: %w", err)
		}
		s.destroyedCtr, err = conf.Meter.Int64Counter("refreshscope.targets.destroyed")
		if err != nil {
			return nil, fmt.Errorf("destroy counter: %w", err)
		}
	}

	return s, nil
}

// OnCreated installs a hook invoked after each target realization. Install
// hooks before handing out handles.
func (s *Scope) OnCreated(fn func(name string)) {
	s.onCreated = fn
}

// OnDestroyed installs a hook invoked after each target destruction with the
// disposer error, if any.
func (s *Scope) OnDestroyed(fn func(name string, err error)) {
	s.onDestroyed = fn
}

// Register adds a named target. Registration does not construct anything.
func (s *Scope) Register(name string, f Factory, d DisposeFunc) error {
	if name == "" {
		return errors.New("target name cannot be empty")
	}
	if f == nil {
		return fmt.Errorf("%w: %s", ErrNilFactory, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateClosed {
		return ErrScopeClosed
	}

	t := &target{name: name, factory: f, dispose: d}
	if !s.targets.SetIfAbsent(name, t) {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	return nil
}

// SetTeardownOrder fixes the order in which realized targets are destroyed
// during Refresh and Close: dependents must appear before their
// dependencies. Without an explicit order, teardown falls back to the
// reverse of the creation order.
func (s *Scope) SetTeardownOrder(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardown = append([]string(nil), names...)
}

// Handle returns the lazy handle for a registered target. Looking a handle
// up never realizes the target.
func (s *Scope) Handle(name string) (*Handle, error) {
	if !s.targets.Has(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, name)
	}
	return &Handle{name: name, scope: s}, nil
}

// Realized reports whether the named target currently holds a live instance.
func (s *Scope) Realized(name string) bool {
	t, ok := s.targets.Get(name)
	if !ok {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.realized
}

// RealizedCount returns the number of currently realized targets.
func (s *Scope) RealizedCount() int {
	n := 0
	for item := range s.targets.IterBuffered() {
		item.Val.mu.Lock()
		if item.Val.realized {
			n++
		}
		item.Val.mu.Unlock()
	}
	return n
}

// CreationOrder returns the names of all targets realized so far, in
// realization order. The log is cumulative across refreshes.
func (s *Scope) CreationOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.creationOrder...)
}

// DestructionOrder returns the names of all targets destroyed so far, in
// destruction order. The log is cumulative across refreshes.
func (s *Scope) DestructionOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.destructionOrder...)
}

// get returns the live instance for name, realizing it if necessary.
func (s *Scope) get(ctx context.Context, name string) (interface{}, error) {
	t, ok := s.targets.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.realized {
		return t.value, nil
	}

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	switch state {
	case stateDraining:
		return nil, fmt.Errorf("%w: cannot realize %s", ErrScopeDraining, name)
	case stateClosed:
		return nil, fmt.Errorf("%w: cannot realize %s", ErrScopeClosed, name)
	}

	v, err := s.realize(ctx, t)
	if err != nil {
		return nil, err
	}
	t.value = v
	t.realized = true

	s.mu.Lock()
	s.creationOrder = append(s.creationOrder, name)
	s.mu.Unlock()

	if s.createdCtr != nil {
		s.createdCtr.Add(ctx, 1, metric.WithAttributes(attribute.String("target", name)))
	}
	if s.onCreated != nil {
		s.onCreated(name)
	}
	s.log.Debugf("realized target %s", name)
	return v, nil
}

func (s *Scope) realize(ctx context.Context, t *target) (interface{}, error) {
	if s.conf.Tracer != nil {
		var span trace.Span
		ctx, span = s.conf.Tracer.Start(ctx, "refreshscope.realize",
			trace.WithAttributes(attribute.String("target", t.name)))
		defer span.End()
	}

	var v interface{}
	op := func() error {
		var err error
		v, err = t.factory(ctx)
		if err != nil {
			s.log.Warnf("factory for %s failed: %v", t.name, err)
		}
		return err
	}

	var err error
	if s.conf.MaxCreateRetries > 0 {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = s.conf.CreateRetryInterval
		err = backoff.Retry(op, backoff.WithContext(
			backoff.WithMaxRetries(bo, s.conf.MaxCreateRetries), ctx))
	} else {
		err = op()
	}
	if err != nil {
		return nil, fmt.Errorf("realize %s: %w", t.name, err)
	}
	return v, nil
}

// RefreshName destroys the named target if it is realized. The next handle
// access constructs a fresh instance.
func (s *Scope) RefreshName(ctx context.Context, name string) error {
	t, ok := s.targets.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, name)
	}

	s.mu.Lock()
	if s.state != stateActive {
		state := s.state
		s.mu.Unlock()
		if state == stateClosed {
			return ErrScopeClosed
		}
		return ErrScopeDraining
	}
	s.mu.Unlock()

	return s.destroyTarget(ctx, t)
}

// Refresh drains every realized target in teardown order and leaves the
// scope usable: the next access to any handle realizes a fresh target.
func (s *Scope) Refresh(ctx context.Context) error {
	return s.drain(ctx, false)
}

// Close drains the scope and rejects all further realizations. Close is
// idempotent.
func (s *Scope) Close(ctx context.Context) error {
	err := s.drain(ctx, true)
	if errors.Is(err, ErrScopeClosed) {
		return nil
	}
	return err
}

func (s *Scope) drain(ctx context.Context, final bool) error {
	s.mu.Lock()
	switch s.state {
	case stateClosed:
		s.mu.Unlock()
		return ErrScopeClosed
	case stateDraining:
		s.mu.Unlock()
		return ErrScopeDraining
	}
	s.state = stateDraining
	order := append([]string(nil), s.teardown...)
	if len(order) == 0 {
		// No explicit order: reverse creation order (LIFO).
		for i := len(s.creationOrder) - 1; i >= 0; i-- {
			order = append(order, s.creationOrder[i])
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, name := range order {
		if ctxErr := ctx.Err(); ctxErr != nil {
			errs = append(errs, ctxErr)
			break
		}
		t, ok := s.targets.Get(name)
		if !ok {
			continue
		}
		if err := s.destroyTarget(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}

	s.mu.Lock()
	if final {
		s.state = stateClosed
	} else {
		s.state = stateActive
	}
	s.mu.Unlock()

	return errors.Join(errs...)
}

// destroyTarget releases the target's instance and runs its disposer. A
// disposer may still read other realized targets through their handles; the
// teardown order guarantees its dependencies are destroyed later.
func (s *Scope) destroyTarget(ctx context.Context, t *target) error {
	t.mu.Lock()
	if !t.realized {
		t.mu.Unlock()
		return nil
	}
	v := t.value
	t.realized = false
	t.value = nil
	t.mu.Unlock()

	var err error
	switch {
	case t.dispose != nil:
		err = t.dispose(v)
	default:
		if d, ok := v.(api.Disposer); ok {
			err = d.Dispose()
		} else if c, ok := v.(io.Closer); ok {
			err = c.Close()
		}
	}

	s.mu.Lock()
	s.destructionOrder = append(s.destructionOrder, t.name)
	s.mu.Unlock()

	if s.destroyedCtr != nil {
		s.destroyedCtr.Add(ctx, 1, metric.WithAttributes(attribute.String("target", t.name)))
	}
	if s.onDestroyed != nil {
		s.onDestroyed(t.name, err)
	}

	if err != nil {
		s.log.Warnf("dispose of %s failed: %v", t.name, err)
		return fmt.Errorf("dispose %s: %w", t.name, err)
	}
	s.log.Debugf("destroyed target %s", t.name)
	return nil
}
