package producer

import (
	"context"

	"github.com/TimurManjosov/togglegen/internal/client"
	"github.com/TimurManjosov/togglegen/internal/platform"
	"github.com/TimurManjosov/togglegen/internal/synth"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/rs/zerolog"
)

// DefaultExposureEvaluations is how many contexts evaluate each tagged flag.
const DefaultExposureEvaluations = 100

// FlagLister lists the project's flags.
type FlagLister interface {
	ListFlags(ctx context.Context) ([]client.Flag, error)
}

// ExposureReport summarizes an exposure pass.
type ExposureReport struct {
	Flags    []string // tagged flags that were evaluated
	Attempts int
	Errors   int
}

// EvaluateExposure evaluates every flag tagged with tag against perFlag fresh contexts
// so the platform records exposure events for them. It only reads flags. Listing
// failures produce an empty report; evaluation errors are counted and skipped.
func EvaluateExposure(ctx context.Context, lister FlagLister, c platform.Client, gen *synth.Generator, tag string, perFlag int, log zerolog.Logger) ExposureReport {
	log = log.With().Str("component", "exposure").Logger()
	var report ExposureReport

	flags, err := lister.ListFlags(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list flags")
		return report
	}

	for _, f := range flags {
		if !f.HasTag(tag) {
			continue
		}
		report.Flags = append(report.Flags, f.Key)
		log.Info().Str("flag", f.Key).Msg("evaluating flag")
		for i := 0; i < perFlag; i++ {
			if ctx.Err() != nil {
				return report
			}
			report.Attempts++
			if _, err := c.Variation(f.Key, gen.Next(), ldvalue.Null()); err != nil {
				report.Errors++
				log.Error().Err(err).Str("flag", f.Key).Msg("error evaluating flag")
			}
		}
	}

	if len(report.Flags) == 0 {
		log.Warn().Str("tag", tag).Msg("no flags found with tag")
		return report
	}
	c.Flush()
	log.Info().Int("flags", len(report.Flags)).Int("evaluations", report.Attempts).Msg("flag evaluations completed")
	return report
}
