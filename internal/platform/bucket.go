package platform

import (
	"errors"

	"github.com/cespare/xxhash/v2"
)

// ErrInvalidWeights is returned when variation weights don't sum to 100.
var ErrInvalidWeights = errors.New("variation weights must sum to 100")

// BucketContext returns a deterministic bucket (0-99) for the given context key and flag.
// The same key + flagKey + salt combination always lands in the same bucket.
func BucketContext(contextKey, flagKey, salt string) int {
	if contextKey == "" {
		return -1 // Invalid: no context
	}
	key := contextKey + ":" + flagKey + ":" + salt
	return int(xxhash.Sum64String(key) % 100)
}

// validateWeights checks that weights match the variations and sum to exactly 100.
// Nil weights mean an equal split.
func validateWeights(n int, weights []int) error {
	if weights == nil {
		return nil
	}
	if len(weights) != n {
		return errors.New("one weight per variation is required")
	}
	total := 0
	for _, w := range weights {
		if w < 0 || w > 100 {
			return errors.New("variation weight must be between 0 and 100")
		}
		total += w
	}
	if total != 100 {
		return ErrInvalidWeights
	}
	return nil
}

// pickVariation maps a bucket onto cumulative weight ranges.
//
// Example: weights = [50, 30, 20]
//   - bucket 0-49  → 0
//   - bucket 50-79 → 1
//   - bucket 80-99 → 2
func pickVariation(bucket int, n int, weights []int) int {
	if weights == nil {
		return bucket * n / 100
	}
	cumulative := 0
	for i, w := range weights {
		cumulative += w
		if bucket < cumulative {
			return i
		}
	}
	return n - 1
}
