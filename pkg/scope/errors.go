package scope

import "errors"

var (
	// ErrUnknownTarget is returned when no target is registered under the
	// requested name.
	ErrUnknownTarget = errors.New("unknown target")

	// ErrAlreadyRegistered is returned when a target name is registered more
	// than once.
	ErrAlreadyRegistered = errors.New("target already registered")

	// ErrNilFactory is returned when a target is registered without a
	// factory.
	ErrNilFactory = errors.New("nil factory")

	// ErrScopeDraining is returned when a new target realization is requested
	// while the scope is tearing down. Already-realized targets stay readable
	// during the drain so that disposers can still reach their dependencies.
	ErrScopeDraining = errors.New("scope is draining")

	// ErrScopeClosed is returned once the scope has been closed for good.
	ErrScopeClosed = errors.New("scope is closed")
)
