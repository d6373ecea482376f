// Package platform adapts the feature-flag SDK surface the producers consume:
// evaluate a flag for a context, track metric events, flush and close.
package platform

import (
	"errors"
	"time"

	"github.com/TimurManjosov/togglegen/internal/synth"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

var (
	// ErrNotInitialized is returned when the SDK client could not connect.
	ErrNotInitialized = errors.New("platform client not initialized")
	// ErrClosed is returned for calls made after Close.
	ErrClosed = errors.New("platform client closed")
	// ErrUnknownFlag is returned by the offline platform for unconfigured flags.
	ErrUnknownFlag = errors.New("unknown flag")
)

// Client is the SDK surface used by the producers. Implementations must be safe
// for concurrent use; the guarded-rollout producers share one Client.
type Client interface {
	Initialized() bool
	// Variation evaluates flagKey for c. def is returned when evaluation is impossible,
	// together with the reason as error.
	Variation(flagKey string, c synth.Context, def ldvalue.Value) (ldvalue.Value, error)
	TrackEvent(metric string, c synth.Context) error
	TrackMetric(metric string, c synth.Context, value float64) error
	Flush()
	Close() error
}

// Event is one tracked metric event as seen by a Sink.
type Event struct {
	Metric     string
	ContextKey string
	Value      *float64
	RecordedAt time.Time
}

// Sink receives tracked events from the offline platform.
type Sink interface {
	Record(Event) error
}
