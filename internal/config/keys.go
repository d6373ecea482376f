package config

// Keys names every flag and metric the producers touch. The values match what the
// provisioning step creates in the project.
type Keys struct {
	PaymentsFlag   string
	DatabaseFlag   string
	SearchFlag     string
	StorePromoFlag string
	AIConfigFlag   string

	PaymentSuccessRate string
	PaymentLatency     string
	PaymentErrorRate   string

	DatabaseErrorRate  string
	DatabaseLatency    string
	DatabaseThroughput string

	SearchStarted       string
	AddToCartFromSearch string
	CartTotal           string

	// store-purchases metric group, in funnel order
	StoreAccessed    string
	AddToCart        string
	CartAccessed     string
	CheckoutComplete string

	AIAccuracy         string
	AISourceFidelity   string
	AIRelevance        string
	AICost             string
	AINegativeFeedback string
}

// DefaultKeys returns the keys used by the demo project.
func DefaultKeys() Keys {
	return Keys{
		PaymentsFlag:   "paymentsSystemsUpgrade",
		DatabaseFlag:   "databaseUpgrade",
		SearchFlag:     "searchAlgorithm",
		StorePromoFlag: "storePromoBanner",
		AIConfigFlag:   "ai-config--togglebotchatbot",

		PaymentSuccessRate: "payment-success-rate",
		PaymentLatency:     "payment-latency",
		PaymentErrorRate:   "payment-error-rate",

		DatabaseErrorRate:  "database-error-rate",
		DatabaseLatency:    "database-latency",
		DatabaseThroughput: "database-throughput",

		SearchStarted:       "search-started",
		AddToCartFromSearch: "add-to-cart-from-search",
		CartTotal:           "cart-total",

		StoreAccessed:    "store-accessed",
		AddToCart:        "add-to-cart",
		CartAccessed:     "cart-accessed",
		CheckoutComplete: "checkout-complete",

		AIAccuracy:         "ai-accuracy",
		AISourceFidelity:   "ai-source-fidelity",
		AIRelevance:        "ai-relevance",
		AICost:             "ai-cost",
		AINegativeFeedback: "ai-chatbot-negative-feedback",
	}
}
