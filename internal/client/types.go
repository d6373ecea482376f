package client

import "encoding/json"

// Flag is the subset of the platform's flag document the generator reads.
type Flag struct {
	Key          string                 `json:"key"`
	Name         string                 `json:"name"`
	Kind         string                 `json:"kind"`
	Tags         []string               `json:"tags"`
	Variations   []Variation            `json:"variations"`
	Environments map[string]Environment `json:"environments"`
}

// HasTag reports whether the flag carries tag.
func (f Flag) HasTag(tag string) bool {
	for _, t := range f.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Variation is one possible value of a flag.
type Variation struct {
	Name  string          `json:"name,omitempty"`
	Value json.RawMessage `json:"value"`
}

// Environment holds a flag's per-environment targeting state.
type Environment struct {
	On          bool         `json:"on"`
	Fallthrough *Fallthrough `json:"fallthrough,omitempty"`
}

// Fallthrough is the default delivery rule. Rollout is set while a percentage,
// progressive or measured rollout is attached to it.
type Fallthrough struct {
	Variation *int     `json:"variation,omitempty"`
	Rollout   *Rollout `json:"rollout,omitempty"`
}

// Rollout describes a weighted split of the fallthrough rule.
type Rollout struct {
	Variations []WeightedVariation `json:"variations"`
	BucketBy   string              `json:"bucketBy,omitempty"`
	Kind       string              `json:"kind,omitempty"`
}

// WeightedVariation is one slice of a rollout; weights are in thousandths of a percent.
type WeightedVariation struct {
	Variation int `json:"variation"`
	Weight    int `json:"weight"`
}
