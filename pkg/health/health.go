// Package health exposes liveness and readiness probes for a refresh
// container. Readiness is gated on the context having completed a Refresh;
// a closed container reports not-ready again.
package health

import (
	"errors"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/refreshscope/pkg/container"
)

// GoroutineThreshold is the default liveness bound on runaway goroutine
// counts.
const GoroutineThreshold = 500

// NewHandler builds a healthcheck handler for the container. When reg is
// non-nil, check results are also exported as prometheus metrics under the
// refreshscope namespace. The returned handler serves /live and /ready.
func NewHandler(c *container.Container, reg prometheus.Registerer) healthcheck.Handler {
	var h healthcheck.Handler
	if reg != nil {
		h = healthcheck.NewMetricsHandler(reg, "refreshscope")
	} else {
		h = healthcheck.NewHandler()
	}

	h.AddLivenessCheck("goroutine-count", healthcheck.GoroutineCountCheck(GoroutineThreshold))
	h.AddReadinessCheck("context-refreshed", RefreshedCheck(c))
	return h
}

// RefreshedCheck returns a healthcheck.Check that passes only while the
// container is refreshed and not closed.
func RefreshedCheck(c *container.Container) healthcheck.Check {
	return func() error {
		if c.Closed() {
			return errors.New("container is closed")
		}
		if !c.Refreshed() {
			return errors.New("container not refreshed yet")
		}
		return nil
	}
}
