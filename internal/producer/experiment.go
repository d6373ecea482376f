package producer

import (
	"context"
	"errors"
	"strings"

	"github.com/TimurManjosov/togglegen/internal/config"
	"github.com/TimurManjosov/togglegen/internal/funnel"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// DefaultInteractions is the batch size of an experiment.
const DefaultInteractions = 3000

// DefaultExperimentFlushEvery is the experiment flush period.
const DefaultExperimentFlushEvery = 100

// Arm is the behaviour of one experiment variation: funnels walked in order for every
// interaction served by it. Funnels are independent of each other.
type Arm struct {
	Name    string
	Funnels []funnel.Funnel
}

// Experiment runs a fixed batch of sequential interactions against an experiment flag.
type Experiment struct {
	Name    string
	FlagKey string
	Default ldvalue.Value

	// Classify maps the evaluated variation to an arm name.
	Classify func(ldvalue.Value) string
	Arms     map[string]Arm

	Interactions int
	FlushEvery   int

	// Stream is the experiment's offset among the generator streams of a run.
	Stream uint64
}

// Run performs exactly Interactions interactions, flushing every FlushEvery and once
// at the end. Cancellation stops the batch early with OutcomeCancelled.
func (e *Experiment) Run(ctx context.Context, d Deps) (Report, error) {
	log := d.Log.With().Str("producer", e.Name).Str("flag", e.FlagKey).Logger()
	report := Report{Producer: e.Name, Arms: make(Tally)}

	if !d.Client.Initialized() {
		log.Error().Msg("platform client is not initialized")
		report.Outcome = OutcomeAborted
		d.countOutcome(e.Name, report.Outcome)
		return report, nil
	}

	flushEvery := e.FlushEvery
	if flushEvery <= 0 {
		flushEvery = DefaultExperimentFlushEvery
	}

	log.Info().Int("users", e.Interactions).Msg("starting experiment results generation")
	for i := 0; i < e.Interactions; i++ {
		if ctx.Err() != nil {
			report.Outcome = OutcomeCancelled
			d.countOutcome(e.Name, report.Outcome)
			return report, nil
		}

		err := e.interact(d, &report)
		d.countInteraction(e.Name, err)
		if err != nil {
			var ie *InteractionError
			if !errors.As(err, &ie) {
				report.Outcome = OutcomeAborted
				d.countOutcome(e.Name, report.Outcome)
				return report, err
			}
			report.Errors++
			log.Error().Err(err).Int("user", i).Msg("error processing user")
		} else {
			report.Interactions++
		}

		if (i+1)%flushEvery == 0 {
			log.Info().Int("users", i+1).Msg("processed users")
			d.Client.Flush()
			report.Flushes++
		}
	}

	d.Client.Flush()
	report.Flushes++
	report.Outcome = OutcomeCompleted
	d.countOutcome(e.Name, report.Outcome)
	log.Info().Int("users", report.Interactions).Int("errors", report.Errors).Msg("experiment results generation completed")
	return report, nil
}

func (e *Experiment) interact(d Deps, report *Report) error {
	c := d.Gen.Next()
	v, err := d.Client.Variation(e.FlagKey, c, e.Default)
	if err != nil {
		return interactionErr("evaluate", c, err)
	}

	name := e.Classify(v)
	a, ok := e.Arms[name]
	if !ok {
		return interactionErr("classify", c, errors.New("no arm for variation "+v.JSONString()))
	}
	stats := report.Arms.arm(name)
	stats.Interactions++
	return walk(d, c, stats, a.Funnels)
}

// classifyString returns the variation's string value when it names an arm,
// otherwise fallback.
func classifyString(arms map[string]Arm, fallback string) func(ldvalue.Value) string {
	return func(v ldvalue.Value) string {
		if v.IsString() {
			if _, ok := arms[v.StringValue()]; ok {
				return v.StringValue()
			}
		}
		return fallback
	}
}

// Search algorithm arms.
const (
	SearchFeaturedList = "featured-list"
	SearchSimple       = "simple-search"
	SearchControl      = "control"
)

// SearchAlgorithmExperiment is the ranked experiment: featured-list converts more
// often and with larger carts than simple-search, which beats control.
func SearchAlgorithmExperiment(k config.Keys) *Experiment {
	arm := func(name string, addToCart, cartMin, cartMax float64) Arm {
		return Arm{Name: name, Funnels: []funnel.Funnel{{
			funnel.Always(k.SearchStarted),
			funnel.Maybe(k.AddToCartFromSearch, addToCart),
			funnel.Measure(k.CartTotal, &funnel.Range{Min: cartMin, Max: cartMax + 1, Integer: true}),
		}}}
	}
	arms := map[string]Arm{
		SearchFeaturedList: arm(SearchFeaturedList, 0.65, 150, 800),
		SearchSimple:       arm(SearchSimple, 0.55, 100, 600),
		SearchControl:      arm(SearchControl, 0.45, 80, 500),
	}
	return &Experiment{
		Name:         "search-algorithm",
		FlagKey:      k.SearchFlag,
		Default:      ldvalue.Bool(false),
		Classify:     classifyString(arms, SearchControl),
		Arms:         arms,
		Interactions: DefaultInteractions,
		FlushEvery:   DefaultExperimentFlushEvery,
	}
}

// Store promo banner arms.
const (
	PromoFlashSale    = "Flash Sale"
	PromoFreeShipping = "Free Shipping"
	PromoPercentOff   = "20 Percent Off"
)

// StorePromoBannerExperiment is the neutral funnel experiment: every banner walks the
// store-purchases funnel with rates a couple of points apart, and a completed checkout
// records the cart total.
func StorePromoBannerExperiment(k config.Keys) *Experiment {
	arm := func(name string, store, add, cart, checkout, totalMin, totalMax float64) Arm {
		return Arm{Name: name, Funnels: []funnel.Funnel{{
			funnel.Maybe(k.StoreAccessed, store),
			funnel.Maybe(k.AddToCart, add),
			funnel.Maybe(k.CartAccessed, cart),
			funnel.Maybe(k.CheckoutComplete, checkout),
			funnel.Measure(k.CartTotal, &funnel.Range{Min: totalMin, Max: totalMax + 1, Integer: true}),
		}}}
	}
	arms := map[string]Arm{
		PromoFlashSale:    arm(PromoFlashSale, 0.75, 0.60, 0.55, 0.48, 100, 600),
		PromoFreeShipping: arm(PromoFreeShipping, 0.73, 0.58, 0.53, 0.46, 95, 580),
		PromoPercentOff:   arm(PromoPercentOff, 0.74, 0.59, 0.54, 0.47, 98, 590),
	}
	return &Experiment{
		Name:         "store-promo-banner",
		FlagKey:      k.StorePromoFlag,
		Default:      ldvalue.String(PromoFlashSale),
		Classify:     classifyString(arms, PromoPercentOff),
		Arms:         arms,
		Interactions: DefaultInteractions,
		FlushEvery:   DefaultExperimentFlushEvery,
	}
}

// AI config arms, matched against the served model name.
const (
	ModelClaude  = "claude"
	ModelNova    = "nova"
	ModelGPT     = "gpt"
	ModelDefault = "default"
)

// ModelName extracts model.name from an AI config variation.
func ModelName(v ldvalue.Value) string {
	return v.GetByKey("model").GetByKey("name").StringValue()
}

func classifyModel(v ldvalue.Value) string {
	name := strings.ToLower(ModelName(v))
	for _, m := range []string{ModelClaude, ModelNova, ModelGPT} {
		if strings.Contains(name, m) {
			return m
		}
	}
	return ModelDefault
}

// AIConfigExperiment is the neutral multi-metric experiment: the models' quality
// ranges overlap heavily and differ mostly in cost.
func AIConfigExperiment(k config.Keys) *Experiment {
	uniform := func(lo, hi float64) *funnel.Range { return &funnel.Range{Min: lo, Max: hi} }
	arm := func(name string, accuracy, fidelity, relevance, cost *funnel.Range, negative float64) Arm {
		// each metric is its own funnel so one draw never gates another
		return Arm{Name: name, Funnels: []funnel.Funnel{
			{funnel.Measure(k.AIAccuracy, accuracy)},
			{funnel.Measure(k.AISourceFidelity, fidelity)},
			{funnel.Measure(k.AIRelevance, relevance)},
			{funnel.Measure(k.AICost, cost)},
			{funnel.Maybe(k.AINegativeFeedback, negative)},
		}}
	}
	arms := map[string]Arm{
		ModelClaude:  arm(ModelClaude, uniform(87, 92), uniform(82, 87), uniform(85, 90), uniform(0.25, 0.35), 0.08),
		ModelNova:    arm(ModelNova, uniform(86, 91), uniform(81, 86), uniform(84, 89), uniform(0.15, 0.25), 0.09),
		ModelGPT:     arm(ModelGPT, uniform(86.5, 91.5), uniform(81.5, 86.5), uniform(84.5, 89.5), uniform(0.20, 0.30), 0.085),
		ModelDefault: arm(ModelDefault, uniform(85, 90), uniform(80, 85), uniform(83, 88), uniform(0.18, 0.28), 0.10),
	}
	return &Experiment{
		Name:         "ai-config",
		FlagKey:      k.AIConfigFlag,
		Default:      ldvalue.Null(),
		Classify:     classifyModel,
		Arms:         arms,
		Interactions: DefaultInteractions,
		FlushEvery:   DefaultExperimentFlushEvery,
	}
}

// Experiments returns the three experiment producers in the order they run.
func Experiments(k config.Keys, cfg *config.Config) []*Experiment {
	exps := []*Experiment{
		SearchAlgorithmExperiment(k),
		StorePromoBannerExperiment(k),
		AIConfigExperiment(k),
	}
	for i, e := range exps {
		e.Stream = uint64(i)
		if cfg != nil {
			e.Interactions = cfg.ExperimentInteractions
			e.FlushEvery = cfg.ExperimentFlushEvery
		}
	}
	return exps
}
