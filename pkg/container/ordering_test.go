package container

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/refreshscope/pkg/scope"
)

// orderRecorder captures creation and destruction order of the test targets.
type orderRecorder struct {
	mu        sync.Mutex
	created   []string
	destroyed []string
}

func (r *orderRecorder) addCreated(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, name)
}

func (r *orderRecorder) addDestroyed(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destroyed = append(r.destroyed, name)
}

func (r *orderRecorder) snapshot() (created, destroyed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.created...), append([]string(nil), r.destroyed...)
}

func indexOf(names []string, want string) int {
	for i, n := range names {
		if n == want {
			return i
		}
	}
	return -1
}

// greeter plays the dependency role: stateless, with a no-op method.
type greeter struct {
	rec *orderRecorder
}

func newGreeter(rec *orderRecorder) *greeter {
	rec.addCreated("B")
	return &greeter{rec: rec}
}

func (g *greeter) SayHello() {}

func (g *greeter) Dispose() error {
	g.rec.addDestroyed("B")
	return nil
}

// consumer plays the dependent role: it holds the greeter's handle and
// reaches through it at call time.
type consumer struct {
	rec              *orderRecorder
	dep              *scope.Handle
	callDepOnDispose bool
}

func newConsumer(rec *orderRecorder, dep *scope.Handle, callDepOnDispose bool) *consumer {
	rec.addCreated("A")
	return &consumer{rec: rec, dep: dep, callDepOnDispose: callDepOnDispose}
}

func (c *consumer) CallDep(ctx context.Context) error {
	g, err := scope.Get[*greeter](ctx, c.dep)
	if err != nil {
		return err
	}
	g.SayHello()
	return nil
}

func (c *consumer) Dispose() error {
	if c.callDepOnDispose {
		if err := c.CallDep(context.Background()); err != nil {
			return err
		}
	}
	c.rec.addDestroyed("A")
	return nil
}

// layout describes one registration variant: names and declaration order of
// the dependent (A) and its dependency (B). Teardown order must not depend
// on either.
type layout struct {
	nameA, nameB    string
	dependencyFirst bool
}

var layouts = map[string]layout{
	"dependent first":          {nameA: "beanA", nameB: "beanB"},
	"dependency first":         {nameA: "beanA", nameB: "beanB", dependencyFirst: true},
	"adversarial names":        {nameA: "zzz_beanA", nameB: "aaa_beanB", dependencyFirst: true},
	"adversarial names (swap)": {nameA: "aaa_beanA", nameB: "zzz_beanB"},
}

func registerPair(t *testing.T, c *Container, rec *orderRecorder, lo layout, callDepOnDispose bool) {
	t.Helper()

	defA := Definition{
		Name:      lo.nameA,
		DependsOn: []string{lo.nameB},
		Provide: func(ctx context.Context, c *Container) (interface{}, error) {
			h, err := c.Lookup(lo.nameB)
			if err != nil {
				return nil, err
			}
			return newConsumer(rec, h, callDepOnDispose), nil
		},
	}
	defB := Definition{
		Name: lo.nameB,
		Provide: func(ctx context.Context, c *Container) (interface{}, error) {
			return newGreeter(rec), nil
		},
	}

	if lo.dependencyFirst {
		require.NoError(t, c.Register(defB))
		require.NoError(t, c.Register(defA))
	} else {
		require.NoError(t, c.Register(defA))
		require.NoError(t, c.Register(defB))
	}
}

func assertDependentDestroyedFirst(t *testing.T, rec *orderRecorder) {
	t.Helper()
	created, destroyed := rec.snapshot()
	require.Len(t, created, 2)
	require.Len(t, destroyed, 2)
	assert.Less(t, indexOf(destroyed, "A"), indexOf(destroyed, "B"),
		"dependent must be disposed before its dependency (shutdown order was: %v)", destroyed)
}

// With eager initialization, both targets exist after Refresh; their
// creation order is unspecified, but teardown always disposes the dependent
// before its dependency, no matter how the pair was declared or named.
func TestShutdownOrderWithEagerInit(t *testing.T) {
	for name, lo := range layouts {
		t.Run(name, func(t *testing.T) {
			rec := &orderRecorder{}
			c, err := New(nil)
			require.NoError(t, err)

			registerPair(t, c, rec, lo, false)
			require.NoError(t, c.Refresh(context.Background()))

			created, _ := rec.snapshot()
			assert.Len(t, created, 2)

			require.NoError(t, c.Close(context.Background()))
			assertDependentDestroyedFirst(t, rec)
		})
	}
}

// With eager initialization disabled, looking handles up constructs nothing:
// closing the container must observe zero creations and zero destructions.
func TestLazyLookupCreatesNothing(t *testing.T) {
	for name, lo := range layouts {
		t.Run(name, func(t *testing.T) {
			rec := &orderRecorder{}
			conf := DefaultConfig()
			conf.Eager = false
			c, err := New(conf)
			require.NoError(t, err)

			registerPair(t, c, rec, lo, false)
			require.NoError(t, c.Refresh(context.Background()))

			_, err = c.Lookup(lo.nameA)
			require.NoError(t, err)
			_, err = c.Lookup(lo.nameB)
			require.NoError(t, err)

			require.NoError(t, c.Close(context.Background()))

			created, destroyed := rec.snapshot()
			assert.Empty(t, created)
			assert.Empty(t, destroyed)
		})
	}
}

// Dereferencing the dependent and invoking the method that reaches into the
// dependency realizes both; teardown still disposes the dependent first.
func TestLazyDependentCallsDependency(t *testing.T) {
	for name, lo := range layouts {
		t.Run(name, func(t *testing.T) {
			rec := &orderRecorder{}
			conf := DefaultConfig()
			conf.Eager = false
			c, err := New(conf)
			require.NoError(t, err)

			registerPair(t, c, rec, lo, false)
			require.NoError(t, c.Refresh(context.Background()))

			h, err := c.Lookup(lo.nameA)
			require.NoError(t, err)
			a, err := scope.Get[*consumer](context.Background(), h)
			require.NoError(t, err)
			require.NoError(t, a.CallDep(context.Background()))

			require.NoError(t, c.Close(context.Background()))
			assertDependentDestroyedFirst(t, rec)
		})
	}
}

// Realizing the dependency before the dependent must not flip teardown
// order: destruction order follows declared edges, not creation order.
func TestLazyDependencyRealizedBeforeDependent(t *testing.T) {
	for name, lo := range layouts {
		t.Run(name, func(t *testing.T) {
			rec := &orderRecorder{}
			conf := DefaultConfig()
			conf.Eager = false
			c, err := New(conf)
			require.NoError(t, err)

			registerPair(t, c, rec, lo, false)
			require.NoError(t, c.Refresh(context.Background()))

			hb, err := c.Lookup(lo.nameB)
			require.NoError(t, err)
			_, err = hb.Get(context.Background())
			require.NoError(t, err)

			ha, err := c.Lookup(lo.nameA)
			require.NoError(t, err)
			a, err := scope.Get[*consumer](context.Background(), ha)
			require.NoError(t, err)
			require.NoError(t, a.CallDep(context.Background()))

			created, _ := rec.snapshot()
			require.Equal(t, []string{"B", "A"}, created)

			require.NoError(t, c.Close(context.Background()))
			assertDependentDestroyedFirst(t, rec)
		})
	}
}

// The dependent calls into its dependency from inside its own disposer. The
// dependency is still alive at that point and the relative shutdown order is
// unchanged.
func TestDependencyCallDuringDisposal(t *testing.T) {
	for name, lo := range layouts {
		t.Run(name, func(t *testing.T) {
			rec := &orderRecorder{}
			conf := DefaultConfig()
			conf.Eager = false
			c, err := New(conf)
			require.NoError(t, err)

			registerPair(t, c, rec, lo, true)
			require.NoError(t, c.Refresh(context.Background()))

			h, err := c.Lookup(lo.nameA)
			require.NoError(t, err)
			a, err := scope.Get[*consumer](context.Background(), h)
			require.NoError(t, err)
			require.NoError(t, a.CallDep(context.Background()))

			require.NoError(t, c.Close(context.Background()))
			assertDependentDestroyedFirst(t, rec)
		})
	}
}

// Refreshing the scope drains in dependency order and recreates on next
// access.
func TestScopeRefreshDrainsAndRecreates(t *testing.T) {
	lo := layouts["dependency first"]
	rec := &orderRecorder{}
	c, err := New(nil)
	require.NoError(t, err)

	registerPair(t, c, rec, lo, false)
	require.NoError(t, c.Refresh(context.Background()))

	require.NoError(t, c.RefreshScope(context.Background()))
	_, destroyed := rec.snapshot()
	require.Len(t, destroyed, 2)
	assert.Less(t, indexOf(destroyed, "A"), indexOf(destroyed, "B"))

	h, err := c.Lookup(lo.nameA)
	require.NoError(t, err)
	a, err := scope.Get[*consumer](context.Background(), h)
	require.NoError(t, err)
	require.NoError(t, a.CallDep(context.Background()))

	created, _ := rec.snapshot()
	assert.Len(t, created, 4)

	require.NoError(t, c.Close(context.Background()))
	created, destroyed = rec.snapshot()
	assert.Len(t, created, 4)
	assert.Len(t, destroyed, 4)
}

// A second Refresh of an eager container rebuilds every target.
func TestRepeatedRefreshRebuildsTargets(t *testing.T) {
	lo := layouts["dependent first"]
	rec := &orderRecorder{}
	c, err := New(nil)
	require.NoError(t, err)

	registerPair(t, c, rec, lo, false)
	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.Refresh(context.Background()))

	created, destroyed := rec.snapshot()
	assert.Len(t, created, 4)
	require.Len(t, destroyed, 2)
	assert.Less(t, indexOf(destroyed, "A"), indexOf(destroyed, "B"))

	require.NoError(t, c.Close(context.Background()))
}
