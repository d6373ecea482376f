package platform

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/TimurManjosov/togglegen/internal/synth"
	"github.com/TimurManjosov/togglegen/internal/telemetry"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBucketContext(t *testing.T) {
	if BucketContext("", "flag", "salt") != -1 {
		t.Error("Expected -1 for empty key")
	}
	a := BucketContext("user-1", "flag", "salt")
	if a != BucketContext("user-1", "flag", "salt") {
		t.Error("BucketContext is not deterministic")
	}
	for i := 0; i < 1000; i++ {
		b := BucketContext("user-"+strconv.Itoa(i), "flag", "salt")
		if b < 0 || b > 99 {
			t.Fatalf("bucket %d out of range", b)
		}
	}
}

func TestPickVariation(t *testing.T) {
	tests := []struct {
		bucket  int
		n       int
		weights []int
		want    int
	}{
		{0, 2, nil, 0},
		{49, 2, nil, 0},
		{50, 2, nil, 1},
		{99, 3, nil, 2},
		{49, 3, []int{50, 30, 20}, 0},
		{50, 3, []int{50, 30, 20}, 1},
		{79, 3, []int{50, 30, 20}, 1},
		{80, 3, []int{50, 30, 20}, 2},
		{0, 2, []int{0, 100}, 1},
	}
	for _, tt := range tests {
		if got := pickVariation(tt.bucket, tt.n, tt.weights); got != tt.want {
			t.Errorf("pickVariation(%d, %d, %v) = %d, want %d", tt.bucket, tt.n, tt.weights, got, tt.want)
		}
	}
}

func TestNewOffline_Validation(t *testing.T) {
	tests := []struct {
		name string
		flag OfflineFlag
	}{
		{"empty key", OfflineFlag{Variations: []ldvalue.Value{ldvalue.Bool(true)}}},
		{"no variations", OfflineFlag{Key: "f"}},
		{"weights mismatch", OfflineFlag{Key: "f", Variations: []ldvalue.Value{ldvalue.Bool(true)}, Weights: []int{50, 50}}},
		{"weights sum", OfflineFlag{Key: "f", Variations: []ldvalue.Value{ldvalue.Bool(true), ldvalue.Bool(false)}, Weights: []int{50, 40}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewOffline("s", nil, tt.flag); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestOffline_VariationSplit(t *testing.T) {
	o, err := NewOffline("salt", nil, OfflineFlag{
		Key:        "searchAlgorithm",
		Variations: []ldvalue.Value{ldvalue.Bool(false), ldvalue.String("simple-search"), ldvalue.String("featured-list")},
	})
	if err != nil {
		t.Fatal(err)
	}

	gen := synth.NewGenerator(5, 0)
	counts := make(map[string]int)
	for i := 0; i < 3000; i++ {
		v, err := o.Variation("searchAlgorithm", gen.Next(), ldvalue.Bool(false))
		if err != nil {
			t.Fatal(err)
		}
		counts[v.JSONString()]++
	}
	for k, n := range counts {
		if n < 800 || n > 1200 {
			t.Errorf("variation %s got %d of 3000, expected ~1000", k, n)
		}
	}
	if len(counts) != 3 {
		t.Errorf("Expected 3 variations, got %v", counts)
	}
}

func TestOffline_UnknownFlagReturnsDefault(t *testing.T) {
	o, _ := NewOffline("salt", nil)
	def := ldvalue.String("fallback")
	v, err := o.Variation("missing", synth.NewGenerator(1, 0).Next(), def)
	if !errors.Is(err, ErrUnknownFlag) {
		t.Fatalf("Expected ErrUnknownFlag, got %v", err)
	}
	if !v.Equal(def) {
		t.Errorf("Expected default, got %v", v)
	}
}

func TestOffline_RolloutChecks(t *testing.T) {
	o, _ := NewOffline("salt", nil,
		OfflineFlag{Key: "payments", Variations: []ldvalue.Value{ldvalue.Bool(true)}, RolloutChecks: 2},
		OfflineFlag{Key: "plain", Variations: []ldvalue.Value{ldvalue.Bool(true)}},
	)
	ctx := context.Background()
	got := []bool{o.IsActive(ctx, "payments"), o.IsActive(ctx, "payments"), o.IsActive(ctx, "payments")}
	if !got[0] || !got[1] || got[2] {
		t.Errorf("Expected active, active, inactive; got %v", got)
	}
	if o.IsActive(ctx, "plain") || o.IsActive(ctx, "unknown") {
		t.Error("flags without rollout budget must be inactive")
	}
}

func TestOffline_TrackAndClose(t *testing.T) {
	sink := NewMemorySink()
	o, _ := NewOffline("salt", sink)
	c := synth.NewGenerator(9, 0).Next()

	if err := o.TrackEvent("search-started", c); err != nil {
		t.Fatal(err)
	}
	if err := o.TrackMetric("cart-total", c, 120); err != nil {
		t.Fatal(err)
	}
	o.Flush()
	if o.Flushes() != 1 {
		t.Errorf("Expected 1 flush, got %d", o.Flushes())
	}

	events := sink.Events()
	if len(events) != 2 || events[0].Value != nil || *events[1].Value != 120 || events[1].ContextKey != c.Key {
		t.Fatalf("unexpected events: %+v", events)
	}

	_ = o.Close()
	if !o.Closed() {
		t.Error("Expected closed")
	}
	if err := o.TrackEvent("x", c); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
}

func TestOffline_ListFlags(t *testing.T) {
	o, _ := NewOffline("salt", nil,
		OfflineFlag{Key: "b", Tags: []string{"togglestore"}, Variations: []ldvalue.Value{ldvalue.Bool(true)}},
		OfflineFlag{Key: "a", Variations: []ldvalue.Value{ldvalue.Bool(true)}},
	)
	flags, err := o.ListFlags(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(flags) != 2 || flags[0].Key != "b" || !flags[0].HasTag("togglestore") || flags[1].HasTag("togglestore") {
		t.Errorf("unexpected flags: %+v", flags)
	}
}

func TestMemorySink_Summary(t *testing.T) {
	sink := NewMemorySink()
	v1, v2 := 100.0, 200.0
	_ = sink.Record(Event{Metric: "cart-total", Value: &v1})
	_ = sink.Record(Event{Metric: "cart-total", Value: &v2})
	_ = sink.Record(Event{Metric: "add-to-cart"})

	sum := sink.Summary()
	if len(sum) != 2 {
		t.Fatalf("Expected 2 metrics, got %+v", sum)
	}
	if sum[0].Metric != "add-to-cart" || sum[0].Count != 1 || sum[0].Numeric != 0 {
		t.Errorf("unexpected add-to-cart summary: %+v", sum[0])
	}
	if sum[1].Metric != "cart-total" || sum[1].Count != 2 || sum[1].Mean != 150 {
		t.Errorf("unexpected cart-total summary: %+v", sum[1])
	}
	if sink.Count("cart-total") != 2 {
		t.Errorf("Count mismatch")
	}
}

func TestInstrument(t *testing.T) {
	o, _ := NewOffline("salt", nil)
	if Instrument(o, nil, "p") != Client(o) {
		t.Error("nil metrics should return the client unchanged")
	}

	m := telemetry.NewMetrics()
	c := Instrument(o, m, "payments")
	ctx := synth.NewGenerator(1, 0).Next()
	_ = c.TrackEvent("payment-success-rate", ctx)
	_ = c.TrackMetric("payment-latency", ctx, 80)
	c.Flush()

	if got := testutil.ToFloat64(m.Events.WithLabelValues("payments", "payment-latency")); got != 1 {
		t.Errorf("Expected 1 latency event, got %v", got)
	}
	if got := testutil.ToFloat64(m.Flushes.WithLabelValues("payments")); got != 1 {
		t.Errorf("Expected 1 flush, got %v", got)
	}
	if o.Flushes() != 1 {
		t.Error("flush not forwarded")
	}

	_ = o.Close()
	_ = c.TrackEvent("payment-success-rate", ctx)
	if got := testutil.ToFloat64(m.Events.WithLabelValues("payments", "payment-success-rate")); got != 1 {
		t.Errorf("failed tracks must not be counted, got %v", got)
	}
}

func TestRecording(t *testing.T) {
	o, _ := NewOffline("salt", nil)
	if Recording(o, nil) != Client(o) {
		t.Error("nil sink should return the client unchanged")
	}

	sink := NewMemorySink()
	c := Recording(o, sink)
	ctx := synth.NewGenerator(1, 0).Next()
	if err := c.TrackEvent("search-started", ctx); err != nil {
		t.Fatalf("TrackEvent() error = %v", err)
	}
	if err := c.TrackMetric("cart-total", ctx, 420); err != nil {
		t.Fatalf("TrackMetric() error = %v", err)
	}

	events := sink.Events()
	if len(events) != 2 || events[0].ContextKey != ctx.Key || *events[1].Value != 420 {
		t.Errorf("unexpected recorded events %+v", events)
	}

	_ = o.Close()
	if err := c.TrackEvent("search-started", ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("Expected ErrClosed, got %v", err)
	}
	if len(sink.Events()) != 2 {
		t.Error("failed tracks must not be recorded")
	}
}
