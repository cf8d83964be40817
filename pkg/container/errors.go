package container

import "errors"

var (
	// ErrContainerClosed is returned by every operation after Close.
	ErrContainerClosed = errors.New("container is closed")

	// ErrAlreadyRefreshed is returned when Register is called after the first
	// Refresh. Definitions are frozen once the context has been refreshed.
	ErrAlreadyRefreshed = errors.New("container already refreshed")

	// ErrNotRefreshed is returned when an operation requires a refreshed
	// context.
	ErrNotRefreshed = errors.New("container not refreshed")

	// ErrDuplicateDefinition is returned when a definition name is registered
	// more than once.
	ErrDuplicateDefinition = errors.New("duplicate definition")

	// ErrNilProvider is returned when a definition has no Provide function.
	ErrNilProvider = errors.New("nil provider")

	// ErrSelfDependency is returned when a definition depends on itself.
	ErrSelfDependency = errors.New("definition depends on itself")

	// ErrUnknownDependency is returned by Refresh when a definition depends
	// on a name that was never registered.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrDependencyCycle is returned by Refresh when the declared
	// dependencies form a cycle. The error message includes the full chain.
	ErrDependencyCycle = errors.New("dependency cycle")
)
