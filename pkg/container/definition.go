package container

import (
	"context"
	"errors"
	"fmt"

	"github.com/srediag/refreshscope/pkg/metrics"
	"github.com/srediag/refreshscope/pkg/scope"
)

// Provider constructs the target for a definition. Providers receive the
// container so they can look up handles for their declared dependencies;
// dereferencing those handles at call time, not construction time, is what
// keeps creation order irrelevant.
type Provider func(ctx context.Context, c *Container) (interface{}, error)

// Definition describes one refresh-scoped target.
type Definition struct {
	// Name identifies the target. Names are unique within a container.
	Name string

	// DependsOn lists the names of targets this one depends on. The edges
	// drive teardown order: this target is always destroyed before anything
	// it depends on.
	DependsOn []string

	// Provide constructs the target.
	Provide Provider

	// Dispose, when set, tears the target down. When nil, targets
	// implementing api.Disposer or io.Closer are disposed through those
	// interfaces.
	Dispose func(v interface{}) error
}

func (d *Definition) validate() error {
	if d.Name == "" {
		return errors.New("definition name cannot be empty")
	}
	if d.Provide == nil {
		return fmt.Errorf("%w: %s", ErrNilProvider, d.Name)
	}
	for _, dep := range d.DependsOn {
		if dep == d.Name {
			return fmt.Errorf("%w: %s", ErrSelfDependency, d.Name)
		}
	}
	return nil
}

// Config holds container tuning parameters. Use DefaultConfig to obtain a
// baseline and adjust fields before passing it to New.
type Config struct {
	// Scope configures the underlying refresh scope.
	Scope *scope.Config

	// Eager pre-creates every scoped target during Refresh. When false,
	// targets are realized on first handle access only.
	Eager bool

	// EagerConcurrency bounds the worker pool used for eager initialization.
	EagerConcurrency int

	// EventQueueCap is the initial capacity hint of the lifecycle event
	// queue.
	EventQueueCap int64

	// Metrics, when set, records creations, destructions and refresh cycles.
	Metrics *metrics.Metrics
}

// DefaultConfig returns the default container configuration: eager
// initialization on, four eager workers.
func DefaultConfig() *Config {
	return &Config{
		Scope:            scope.DefaultConfig(),
		Eager:            true,
		EagerConcurrency: 4,
		EventQueueCap:    64,
	}
}

// VerifyConfig checks a Config for inconsistent settings.
func VerifyConfig(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.EagerConcurrency <= 0 {
		return errors.New("EagerConcurrency must be positive")
	}
	if c.EventQueueCap <= 0 {
		return errors.New("EventQueueCap must be positive")
	}
	return scope.VerifyConfig(c.Scope)
}
