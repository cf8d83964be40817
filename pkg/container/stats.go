package container

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// Stats is a point-in-time snapshot of the container, including the process
// resident set size for capacity monitoring.
type Stats struct {
	// Definitions is the number of registered definitions.
	Definitions int

	// Realized is the number of currently live targets.
	Realized int

	// CreatedTotal and DestroyedTotal count lifecycle transitions since the
	// container was created, across refreshes.
	CreatedTotal   int
	DestroyedTotal int

	// Refreshed reports whether the context has completed a Refresh.
	Refreshed bool

	// RSSBytes is the process resident set size.
	RSSBytes uint64
}

// Stats collects a snapshot. The memory probe failing does not invalidate
// the rest of the snapshot; its error is returned alongside.
func (c *Container) Stats() (Stats, error) {
	c.mu.RLock()
	st := Stats{
		Definitions: len(c.defs),
		Refreshed:   c.refreshed,
	}
	c.mu.RUnlock()

	st.Realized = c.sc.RealizedCount()
	st.CreatedTotal = len(c.sc.CreationOrder())
	st.DestroyedTotal = len(c.sc.DestructionOrder())

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return st, fmt.Errorf("process handle: %w", err)
	}
	mi, err := p.MemoryInfo()
	if err != nil {
		return st, fmt.Errorf("memory info: %w", err)
	}
	st.RSSBytes = mi.RSS
	return st, nil
}
