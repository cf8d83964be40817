// Package api defines public contracts shared across refreshscope packages.
package api

// Disposer is implemented by scoped targets that need teardown work when
// their scope drains. Dispose is called exactly once per realized instance,
// in dependency order (dependents before their dependencies).
type Disposer interface {
	Dispose() error
}

// EventKind classifies container lifecycle events.
type EventKind int

const (
	// EventContextRefreshed fires after a successful container Refresh.
	EventContextRefreshed EventKind = iota
	// EventContextClosed fires once when the container closes.
	EventContextClosed
	// EventScopeRefreshed fires after the refresh scope drains all targets.
	EventScopeRefreshed
	// EventTargetCreated fires when a scoped target is realized.
	EventTargetCreated
	// EventTargetDestroyed fires when a realized target is disposed.
	EventTargetDestroyed
)

// String returns the human-readable name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventContextRefreshed:
		return "context-refreshed"
	case EventContextClosed:
		return "context-closed"
	case EventScopeRefreshed:
		return "scope-refreshed"
	case EventTargetCreated:
		return "target-created"
	case EventTargetDestroyed:
		return "target-destroyed"
	default:
		return "unknown"
	}
}

// Event describes a single lifecycle occurrence. Name is set for target
// events and empty for context-level events. Err carries the disposer or
// provider error, if any.
type Event struct {
	Kind EventKind
	Name string
	Err  error
}

// EventListener receives lifecycle events. Delivery is asynchronous but
// ordered; OnEvent must not block for long.
type EventListener interface {
	OnEvent(e Event)
}

// EventListenerFunc adapts a plain function to an EventListener.
type EventListenerFunc func(e Event)

// OnEvent implements EventListener.
func (f EventListenerFunc) OnEvent(e Event) { f(e) }
