package runner

import (
	"github.com/TimurManjosov/togglegen/internal/config"
	"github.com/TimurManjosov/togglegen/internal/platform"
	"github.com/TimurManjosov/togglegen/internal/producer"
	"github.com/TimurManjosov/togglegen/internal/telemetry"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/rs/zerolog"
)

const dryRunSalt = "togglegen-dry-run"

// Probes each offline guarded rollout stays active for. With the default check
// period the payments rollout runs for 2000 interactions, the database one for 1000.
const (
	dryRunPaymentsChecks = 4
	dryRunDatabaseChecks = 2
)

func aiModel(name string) ldvalue.Value {
	return ldvalue.ObjectBuild().
		Set("enabled", ldvalue.Bool(true)).
		Set("model", ldvalue.ObjectBuild().Set("name", ldvalue.String(name)).Build()).
		Build()
}

// DefaultOfflineFlags mirrors the demo project: the two guarded releases, the three
// experiments, all tagged for the exposure pass.
func DefaultOfflineFlags(keys config.Keys, tag string) []platform.OfflineFlag {
	tags := []string{tag}
	boolean := []ldvalue.Value{ldvalue.Bool(true), ldvalue.Bool(false)}
	return []platform.OfflineFlag{
		{Key: keys.PaymentsFlag, Tags: tags, Variations: boolean, RolloutChecks: dryRunPaymentsChecks},
		{Key: keys.DatabaseFlag, Tags: tags, Variations: boolean, RolloutChecks: dryRunDatabaseChecks},
		{Key: keys.SearchFlag, Tags: tags, Variations: []ldvalue.Value{
			ldvalue.String(producer.SearchFeaturedList),
			ldvalue.String(producer.SearchSimple),
			ldvalue.String(producer.SearchControl),
		}},
		{Key: keys.StorePromoFlag, Tags: tags, Variations: []ldvalue.Value{
			ldvalue.String(producer.PromoFlashSale),
			ldvalue.String(producer.PromoFreeShipping),
			ldvalue.String(producer.PromoPercentOff),
		}},
		{Key: keys.AIConfigFlag, Tags: tags, Variations: []ldvalue.Value{
			aiModel("anthropic.claude-3-7-sonnet"),
			aiModel("amazon.nova-pro"),
			aiModel("gpt-4o"),
		}, Weights: []int{34, 33, 33}},
	}
}

// NewDryRun wires a Runner to the offline platform. Every tracked event goes to sink,
// which may be nil.
func NewDryRun(cfg *config.Config, keys config.Keys, sink platform.Sink, metrics *telemetry.Metrics, log zerolog.Logger) (*Runner, *platform.Offline, error) {
	o, err := platform.NewOffline(dryRunSalt, sink, DefaultOfflineFlags(keys, cfg.ExposureTag)...)
	if err != nil {
		return nil, nil, err
	}
	return New(cfg, keys, o, o, o, metrics, log.With().Bool("dry_run", true).Logger()), o, nil
}
