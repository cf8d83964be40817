// Package container implements the refresh container: a registry of named,
// refresh-scoped definitions with lazy handles, optional eager
// initialization, lifecycle events, and dependency-ordered teardown.
//
// Targets reference each other through handles, so the order in which they
// are created never matters; the order in which they are destroyed always
// does, and is derived from the declared dependency edges.
package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/srediag/refreshscope/api"
	"github.com/srediag/refreshscope/internal/graph"
	"github.com/srediag/refreshscope/internal/logutil"
	"github.com/srediag/refreshscope/pkg/scope"
)

// Container is the application context of the refresh scope. Register
// definitions, call Refresh once the registry is complete, look up handles,
// and Close when done.
type Container struct {
	mu   sync.RWMutex
	conf *Config

	defs     map[string]*Definition
	regOrder []string

	sc         *scope.Scope
	dispatcher *dispatcher

	refreshed bool
	closed    bool

	log *logutil.Logger
}

// New creates a Container. A nil conf selects DefaultConfig.
func New(conf *Config) (*Container, error) {
	if conf == nil {
		conf = DefaultConfig()
	}
	if err := VerifyConfig(conf); err != nil {
		return nil, err
	}

	sc, err := scope.New(conf.Scope)
	if err != nil {
		return nil, err
	}

	c := &Container{
		conf:       conf,
		defs:       make(map[string]*Definition),
		sc:         sc,
		dispatcher: newDispatcher(conf.EventQueueCap),
		log:        logutil.New("container", nil),
	}

	sc.OnCreated(func(name string) {
		conf.Metrics.TargetCreated(name)
		c.dispatcher.publish(api.Event{Kind: api.EventTargetCreated, Name: name})
	})
	sc.OnDestroyed(func(name string, err error) {
		conf.Metrics.TargetDestroyed(name)
		c.dispatcher.publish(api.Event{Kind: api.EventTargetDestroyed, Name: name, Err: err})
	})

	return c, nil
}

// Register adds a definition. Registration is only possible before the first
// Refresh; it never constructs anything.
func (c *Container) Register(def Definition) error {
	if err := def.validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrContainerClosed
	}
	if c.refreshed {
		return fmt.Errorf("%w: cannot register %s", ErrAlreadyRefreshed, def.Name)
	}
	if _, exists := c.defs[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDefinition, def.Name)
	}

	d := def
	if err := c.sc.Register(d.Name, func(ctx context.Context) (interface{}, error) {
		return d.Provide(ctx, c)
	}, d.Dispose); err != nil {
		return err
	}

	c.defs[d.Name] = &d
	c.regOrder = append(c.regOrder, d.Name)
	return nil
}

// Subscribe registers a lifecycle event listener. Delivery is asynchronous
// but preserves publish order.
func (c *Container) Subscribe(l api.EventListener) {
	c.dispatcher.subscribe(l)
}

// Refreshed reports whether the container has completed a Refresh.
func (c *Container) Refreshed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshed
}

// Closed reports whether the container has been closed.
func (c *Container) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Scope exposes the underlying refresh scope, mainly for inspection of the
// creation and destruction logs.
func (c *Container) Scope() *scope.Scope {
	return c.sc
}

// Refresh validates the dependency graph, fixes the teardown order, and,
// when eager initialization is enabled, realizes every target through a
// bounded worker pool. A refresh of an already-refreshed container drains
// the scope first, so targets are rebuilt from scratch.
func (c *Container) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrContainerClosed
	}
	wasRefreshed := c.refreshed
	names := append([]string(nil), c.regOrder...)
	defs := make([]*Definition, 0, len(names))
	for _, name := range names {
		defs = append(defs, c.defs[name])
	}
	c.mu.Unlock()

	order, err := teardownOrder(defs)
	if err != nil {
		return err
	}

	if wasRefreshed {
		if err := c.sc.Refresh(ctx); err != nil {
			return fmt.Errorf("drain before refresh: %w", err)
		}
		c.dispatcher.publish(api.Event{Kind: api.EventScopeRefreshed})
	}
	c.sc.SetTeardownOrder(order)

	start := time.Now()
	if c.conf.Eager {
		if err := c.eagerInit(ctx, names); err != nil {
			return fmt.Errorf("eager init: %w", err)
		}
	}

	c.mu.Lock()
	c.refreshed = true
	c.mu.Unlock()

	c.conf.Metrics.RefreshCompleted(time.Since(start))
	c.dispatcher.publish(api.Event{Kind: api.EventContextRefreshed})
	c.log.Infof("context refreshed, %d definitions, eager=%v", len(names), c.conf.Eager)
	return nil
}

// teardownOrder builds and validates the dependency graph and returns the
// destruction order: dependents strictly before their dependencies.
func teardownOrder(defs []*Definition) ([]string, error) {
	g := graph.New()
	for _, d := range defs {
		if err := g.AddNode(d.Name); err != nil {
			return nil, err
		}
	}
	for _, d := range defs {
		for _, dep := range d.DependsOn {
			if err := g.AddEdge(d.Name, dep); err != nil {
				return nil, err
			}
		}
	}
	if err := g.Validate(); err != nil {
		// Re-home internal sentinels on public ones, keeping the chain text.
		switch {
		case errors.Is(err, graph.ErrUnknownNode):
			return nil, fmt.Errorf("%w: %v", ErrUnknownDependency, err)
		case errors.Is(err, graph.ErrCycle):
			return nil, fmt.Errorf("%w: %v", ErrDependencyCycle, err)
		}
		return nil, err
	}
	return g.TopoOrder()
}

func (c *Container) eagerInit(ctx context.Context, names []string) error {
	pool, err := ants.NewPool(c.conf.EagerConcurrency)
	if err != nil {
		return err
	}
	defer pool.Release()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, name := range names {
		name := name
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			h, err := c.sc.Handle(name)
			if err == nil {
				_, err = h.Get(ctx)
			}
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, fmt.Errorf("submit eager init of %s: %w", name, submitErr))
			mu.Unlock()
		}
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Lookup returns the lazy handle for a registered definition. Looking a
// handle up never realizes the target.
func (c *Container) Lookup(name string) (*scope.Handle, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, ErrContainerClosed
	}
	return c.sc.Handle(name)
}

// RefreshName destroys one target; the next handle access recreates it.
func (c *Container) RefreshName(ctx context.Context, name string) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrContainerClosed
	}
	return c.sc.RefreshName(ctx, name)
}

// RefreshScope drains every realized target in teardown order and leaves the
// container usable: handles realize fresh targets on next access.
func (c *Container) RefreshScope(ctx context.Context) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrContainerClosed
	}
	if !c.refreshed {
		c.mu.RUnlock()
		return ErrNotRefreshed
	}
	c.mu.RUnlock()

	if err := c.sc.Refresh(ctx); err != nil {
		return err
	}
	c.dispatcher.publish(api.Event{Kind: api.EventScopeRefreshed})
	return nil
}

// Close drains the scope in teardown order, emits the closed event, flushes
// the event queue, and shuts the container for good. Close is idempotent;
// ctx cancellation skips the remaining disposals and is reported in the
// returned error.
func (c *Container) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.sc.Close(ctx)

	c.dispatcher.publish(api.Event{Kind: api.EventContextClosed, Err: err})
	c.dispatcher.close()
	c.log.Infof("context closed")
	return err
}
