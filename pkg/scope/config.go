package scope

import (
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Config holds scope tuning parameters. Use DefaultConfig to obtain a
// baseline and adjust fields before passing it to New.
type Config struct {
	// MaxCreateRetries is the number of times a failing factory is retried
	// with exponential backoff before the error is surfaced. Zero disables
	// retries.
	MaxCreateRetries uint64

	// CreateRetryInterval is the initial backoff interval between factory
	// retries.
	CreateRetryInterval time.Duration

	// Meter, when set, records target creation and destruction counters.
	Meter metric.Meter

	// Tracer, when set, wraps every target realization in a span.
	Tracer trace.Tracer
}

// DefaultConfig returns the default scope configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxCreateRetries:    0,
		CreateRetryInterval: 50 * time.Millisecond,
	}
}

// VerifyConfig checks a Config for inconsistent settings.
func VerifyConfig(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.MaxCreateRetries > 0 && c.CreateRetryInterval <= 0 {
		return errors.New("CreateRetryInterval must be positive when retries are enabled")
	}
	return nil
}
