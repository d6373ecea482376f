package rollout

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TimurManjosov/togglegen/internal/client"
	"github.com/TimurManjosov/togglegen/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

const activeFlag = `{
	"key": "paymentsSystemsUpgrade",
	"environments": {
		"production": {"on": true, "fallthrough": {"rollout": {"variations": [{"variation": 0, "weight": 5000}, {"variation": 1, "weight": 95000}]}}}
	}
}`

func TestProber_IsActive(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"active rollout", http.StatusOK, activeFlag, true},
		{"rollout concluded", http.StatusOK, `{"key":"f","environments":{"production":{"on":true,"fallthrough":{"variation":0}}}}`, false},
		{"missing fallthrough", http.StatusOK, `{"key":"f","environments":{"production":{"on":true}}}`, false},
		{"missing environment", http.StatusOK, `{"key":"f","environments":{"test":{"fallthrough":{"rollout":{"variations":[]}}}}}`, false},
		{"no environments", http.StatusOK, `{"key":"f"}`, false},
		{"malformed json", http.StatusOK, `{"key": "f", "environments": [`, false},
		{"wrong shape", http.StatusOK, `{"environments": "production"}`, false},
		{"not found", http.StatusNotFound, `{"message":"Unknown resource"}`, false},
		{"unauthorized", http.StatusUnauthorized, `{"message":"Invalid token"}`, false},
		{"server error", http.StatusInternalServerError, "oops", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewProber(client.NewClient(srv.URL, "k", "demo", time.Second), "production", zerolog.Nop())
			if got := p.IsActive(context.Background(), "paymentsSystemsUpgrade"); got != tt.want {
				t.Errorf("IsActive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProber_UnreachableIsInactive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewProber(client.NewClient(url, "k", "demo", time.Second), "production", zerolog.Nop())
	if p.IsActive(context.Background(), "f") {
		t.Error("Expected inactive for unreachable API")
	}
}

func TestIsMeasuredRollout_Nil(t *testing.T) {
	if IsMeasuredRollout(nil, "production") {
		t.Error("nil flag must be inactive")
	}
}

// scripted returns the given results in order, then false forever.
type scripted struct {
	results []bool
	calls   atomic.Int32
}

func (s *scripted) IsActive(context.Context, string) bool {
	n := int(s.calls.Add(1)) - 1
	if n < len(s.results) {
		return s.results[n]
	}
	return false
}

func TestAwaitActive(t *testing.T) {
	tests := []struct {
		name      string
		results   []bool
		attempts  int
		wantErr   error
		wantCalls int32
	}{
		{"ready at first poll", []bool{true}, 6, nil, 1},
		{"ready at third poll", []bool{false, false, true}, 6, nil, 3},
		{"ready on last attempt", []bool{false, false, false, false, false, true}, 6, nil, 6},
		{"never ready", nil, 6, ErrRolloutNotReady, 6},
		{"zero budget", []bool{true}, 0, ErrRolloutNotReady, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &scripted{results: tt.results}
			err := AwaitActive(context.Background(), s, "f", time.Millisecond, tt.attempts, zerolog.Nop())
			if !errors.Is(err, tt.wantErr) && !(err == nil && tt.wantErr == nil) {
				t.Fatalf("AwaitActive() error = %v, want %v", err, tt.wantErr)
			}
			if got := s.calls.Load(); got != tt.wantCalls {
				t.Errorf("Expected %d polls, got %d", tt.wantCalls, got)
			}
		})
	}
}

func TestAwaitActive_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &scripted{results: []bool{true}}
	if err := AwaitActive(ctx, s, "f", time.Hour, 6, zerolog.Nop()); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if s.calls.Load() != 0 {
		t.Error("no poll expected after cancellation")
	}
}

func TestObserve(t *testing.T) {
	m := telemetry.NewMetrics()
	c := Observe(&scripted{results: []bool{true, false}}, m)
	c.IsActive(context.Background(), "databaseUpgrade")
	c.IsActive(context.Background(), "databaseUpgrade")

	if got := testutil.ToFloat64(m.StatusChecks.WithLabelValues("databaseUpgrade", "active")); got != 1 {
		t.Errorf("Expected 1 active probe, got %v", got)
	}
	if got := testutil.ToFloat64(m.StatusChecks.WithLabelValues("databaseUpgrade", "inactive")); got != 1 {
		t.Errorf("Expected 1 inactive probe, got %v", got)
	}

	plain := &scripted{}
	if Observe(plain, nil) != StatusChecker(plain) {
		t.Error("nil metrics should return the checker unchanged")
	}
}
