package platform

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TimurManjosov/togglegen/internal/client"
	"github.com/TimurManjosov/togglegen/internal/synth"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// OfflineFlag configures one flag of the offline platform.
type OfflineFlag struct {
	Key        string
	Tags       []string
	Variations []ldvalue.Value
	Weights    []int // nil splits evenly
	// RolloutChecks is how many status probes report an active measured rollout
	// before it concludes. Zero means the flag never has one.
	RolloutChecks int
}

// Offline is an in-process platform used for dry runs and tests. It assigns
// variations by hashing context keys, reports measured rollouts that conclude after a
// fixed number of probes, and forwards every tracked event to a Sink.
type Offline struct {
	salt string
	sink Sink

	mu        sync.Mutex
	flags     map[string]*OfflineFlag
	order     []string
	remaining map[string]int
	flushes   int
	closed    bool
}

// NewOffline validates flags and builds the platform. sink may be nil.
func NewOffline(salt string, sink Sink, flags ...OfflineFlag) (*Offline, error) {
	o := &Offline{
		salt:      salt,
		sink:      sink,
		flags:     make(map[string]*OfflineFlag, len(flags)),
		remaining: make(map[string]int, len(flags)),
	}
	for i := range flags {
		f := flags[i]
		if f.Key == "" {
			return nil, fmt.Errorf("offline flag %d: key cannot be empty", i)
		}
		if len(f.Variations) == 0 {
			return nil, fmt.Errorf("offline flag %s: at least one variation is required", f.Key)
		}
		if err := validateWeights(len(f.Variations), f.Weights); err != nil {
			return nil, fmt.Errorf("offline flag %s: %w", f.Key, err)
		}
		o.flags[f.Key] = &f
		o.order = append(o.order, f.Key)
		o.remaining[f.Key] = f.RolloutChecks
	}
	return o, nil
}

func (o *Offline) Initialized() bool { return true }

func (o *Offline) Variation(flagKey string, c synth.Context, def ldvalue.Value) (ldvalue.Value, error) {
	o.mu.Lock()
	f, ok := o.flags[flagKey]
	closed := o.closed
	o.mu.Unlock()

	if closed {
		return def, ErrClosed
	}
	if !ok {
		return def, fmt.Errorf("%w: %s", ErrUnknownFlag, flagKey)
	}
	bucket := BucketContext(c.Key, flagKey, o.salt)
	if bucket < 0 {
		return def, fmt.Errorf("flag %s: context has no key", flagKey)
	}
	return f.Variations[pickVariation(bucket, len(f.Variations), f.Weights)], nil
}

func (o *Offline) TrackEvent(metric string, c synth.Context) error {
	return o.record(Event{Metric: metric, ContextKey: c.Key})
}

func (o *Offline) TrackMetric(metric string, c synth.Context, value float64) error {
	return o.record(Event{Metric: metric, ContextKey: c.Key, Value: &value})
}

func (o *Offline) record(e Event) error {
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if o.sink == nil {
		return nil
	}
	e.RecordedAt = time.Now().UTC()
	return o.sink.Record(e)
}

// Flush is a no-op beyond counting; events reach the sink when tracked.
func (o *Offline) Flush() {
	o.mu.Lock()
	o.flushes++
	o.mu.Unlock()
}

// Flushes returns how many times Flush was called.
func (o *Offline) Flushes() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.flushes
}

func (o *Offline) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (o *Offline) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// IsActive reports an active measured rollout while the flag's probe budget lasts.
func (o *Offline) IsActive(_ context.Context, flagKey string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.remaining[flagKey] <= 0 {
		return false
	}
	o.remaining[flagKey]--
	return true
}

// ListFlags returns the configured flags in the platform's REST shape, so the
// exposure pass can run against it.
func (o *Offline) ListFlags(_ context.Context) ([]client.Flag, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	flags := make([]client.Flag, 0, len(o.order))
	for _, key := range o.order {
		f := o.flags[key]
		flags = append(flags, client.Flag{Key: f.Key, Name: f.Key, Tags: append([]string(nil), f.Tags...)})
	}
	return flags, nil
}
