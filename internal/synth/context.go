// Package synth generates synthetic users for flag evaluations.
//
// Every attribute is drawn independently and uniformly from a fixed domain, and every
// key is a fresh UUID, so each Context identifies exactly one simulated interaction.
package synth

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mrand "math/rand/v2"

	"github.com/google/uuid"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
)

// Attribute domains.
var (
	Tiers            = []string{"Standard", "Platinum"}
	Roles            = []string{"Developer", "Beta", "Standard"}
	Locations        = []string{"New York", "Los Angeles", "Chicago", "Houston", "Phoenix"}
	Devices          = []string{"mobile", "desktop", "tablet"}
	OperatingSystems = []string{"windows", "macos", "ios", "android"}
)

// Context is one synthetic user/request bundle. It is used for exactly one
// evaluation-and-event sequence and never reused.
type Context struct {
	Key             string
	Name            string
	Email           string
	Tier            string
	Role            string
	Location        string
	Device          string
	OperatingSystem string
}

// LDContext converts the bundle into an SDK user context.
func (c Context) LDContext() ldcontext.Context {
	return ldcontext.NewBuilder(c.Key).
		Name(c.Name).
		SetString("email", c.Email).
		SetString("tier", c.Tier).
		SetString("role", c.Role).
		SetString("location", c.Location).
		SetString("device", c.Device).
		SetString("operating_system", c.OperatingSystem).
		Build()
}

// Generator produces Contexts and the random draws that go with them.
// A Generator is not safe for concurrent use; give each producer its own.
type Generator struct {
	src *mrand.ChaCha8
	rng *mrand.Rand
}

// NewGenerator returns a Generator. With a non-zero seed the sequence of contexts and
// draws is fully reproducible; stream separates generators built from the same seed.
// A zero seed draws a fresh seed from crypto/rand.
func NewGenerator(seed, stream uint64) *Generator {
	var s [32]byte
	if seed == 0 {
		if _, err := rand.Read(s[:]); err != nil {
			panic(fmt.Sprintf("synth: reading random seed: %v", err))
		}
	} else {
		binary.LittleEndian.PutUint64(s[0:8], seed)
		binary.LittleEndian.PutUint64(s[8:16], stream)
	}
	src := mrand.NewChaCha8(s)
	return &Generator{src: src, rng: mrand.New(src)}
}

// Next returns a new Context with a unique key.
func (g *Generator) Next() Context {
	id, err := uuid.NewRandomFromReader(g.src)
	if err != nil {
		// ChaCha8.Read never fails
		panic(fmt.Sprintf("synth: generating key: %v", err))
	}
	key := "user-" + id.String()
	short := key[:8]
	return Context{
		Key:             key,
		Name:            "Test User " + short,
		Email:           "test-" + short + "@example.com",
		Tier:            g.pick(Tiers),
		Role:            g.pick(Roles),
		Location:        g.pick(Locations),
		Device:          g.pick(Devices),
		OperatingSystem: g.pick(OperatingSystems),
	}
}

// Rand exposes the generator's random source for Bernoulli and value draws.
func (g *Generator) Rand() *mrand.Rand { return g.rng }

// Float64 returns a draw in [0, 1).
func (g *Generator) Float64() float64 { return g.rng.Float64() }

func (g *Generator) pick(domain []string) string {
	return domain[g.rng.IntN(len(domain))]
}
