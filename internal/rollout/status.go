// Package rollout decides whether a flag's measured (guarded) rollout is still running.
//
// A measured rollout is attached to the default delivery rule of the flag's
// environment; while it runs the fallthrough carries a rollout, and once the platform
// promotes or rolls back the release the fallthrough returns to a fixed variation.
// Status checks fail closed: anything short of a well-formed document showing an
// attached rollout counts as "not active".
package rollout

import (
	"context"

	"github.com/TimurManjosov/togglegen/internal/client"
	"github.com/TimurManjosov/togglegen/internal/telemetry"
	"github.com/rs/zerolog"
)

// FlagGetter fetches one flag document.
type FlagGetter interface {
	GetFlag(ctx context.Context, key string) (*client.Flag, error)
}

// StatusChecker answers whether flagKey has an active measured rollout.
type StatusChecker interface {
	IsActive(ctx context.Context, flagKey string) bool
}

// IsMeasuredRollout reports whether env's default rule carries a rollout.
func IsMeasuredRollout(flag *client.Flag, env string) bool {
	if flag == nil {
		return false
	}
	e, ok := flag.Environments[env]
	if !ok || e.Fallthrough == nil {
		return false
	}
	return e.Fallthrough.Rollout != nil
}

// Prober checks rollout status through the REST API. It performs exactly one fetch
// per call; retry policy belongs to the caller.
type Prober struct {
	api FlagGetter
	env string
	log zerolog.Logger
}

// NewProber creates a prober for the given environment.
func NewProber(api FlagGetter, env string, log zerolog.Logger) *Prober {
	return &Prober{api: api, env: env, log: log.With().Str("component", "rollout").Logger()}
}

// IsActive fetches the flag and never returns an error: fetch failures, HTTP errors
// and malformed documents are logged and reported as inactive.
func (p *Prober) IsActive(ctx context.Context, flagKey string) bool {
	flag, err := p.api.GetFlag(ctx, flagKey)
	if err != nil {
		p.log.Error().Err(err).Str("flag", flagKey).Msg("failed to fetch flag details")
		return false
	}
	return IsMeasuredRollout(flag, p.env)
}

type observed struct {
	StatusChecker
	m *telemetry.Metrics
}

// Observe records every probe result in m. A nil m returns c unchanged.
func Observe(c StatusChecker, m *telemetry.Metrics) StatusChecker {
	if m == nil {
		return c
	}
	return &observed{StatusChecker: c, m: m}
}

func (o *observed) IsActive(ctx context.Context, flagKey string) bool {
	active := o.StatusChecker.IsActive(ctx, flagKey)
	o.m.ObserveStatus(flagKey, active)
	return active
}
