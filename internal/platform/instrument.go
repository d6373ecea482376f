package platform

import (
	"time"

	"github.com/TimurManjosov/togglegen/internal/synth"
	"github.com/TimurManjosov/togglegen/internal/telemetry"
)

type instrumented struct {
	Client
	m        *telemetry.Metrics
	producer string
}

// Instrument counts a producer's events and flushes. A nil Metrics returns c unchanged.
func Instrument(c Client, m *telemetry.Metrics, producer string) Client {
	if m == nil {
		return c
	}
	return &instrumented{Client: c, m: m, producer: producer}
}

func (i *instrumented) TrackEvent(metric string, c synth.Context) error {
	if err := i.Client.TrackEvent(metric, c); err != nil {
		return err
	}
	i.m.Events.WithLabelValues(i.producer, metric).Inc()
	return nil
}

func (i *instrumented) TrackMetric(metric string, c synth.Context, value float64) error {
	if err := i.Client.TrackMetric(metric, c, value); err != nil {
		return err
	}
	i.m.Events.WithLabelValues(i.producer, metric).Inc()
	return nil
}

func (i *instrumented) Flush() {
	i.m.Flushes.WithLabelValues(i.producer).Inc()
	i.Client.Flush()
}

type recording struct {
	Client
	sink Sink
}

// Recording copies every successfully tracked event into sink, so a live run can be
// inspected locally the same way a dry run is.
func Recording(c Client, sink Sink) Client {
	if sink == nil {
		return c
	}
	return &recording{Client: c, sink: sink}
}

func (r *recording) TrackEvent(metric string, c synth.Context) error {
	if err := r.Client.TrackEvent(metric, c); err != nil {
		return err
	}
	return r.sink.Record(Event{Metric: metric, ContextKey: c.Key, RecordedAt: time.Now().UTC()})
}

func (r *recording) TrackMetric(metric string, c synth.Context, value float64) error {
	if err := r.Client.TrackMetric(metric, c, value); err != nil {
		return err
	}
	return r.sink.Record(Event{Metric: metric, ContextKey: c.Key, Value: &value, RecordedAt: time.Now().UTC()})
}
