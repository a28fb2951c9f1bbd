package game

import "math"

// RandomSource yields uniform draws in [0,1). *math/rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

type CrashPointGenerator interface {
	Generate() float64
}

// CrashPointFunc adapts a plain function, mostly for scripted rounds in tests.
type CrashPointFunc func() float64

func (f CrashPointFunc) Generate() float64 {
	return f()
}

// Prover is implemented by generators that can prove their last draw.
type Prover interface {
	Proof() *FairnessProof
}

// HouseEdgeGenerator reserves houseEdge of the probability mass for instant
// crashes and maps the rest through an inverse distribution.
type HouseEdgeGenerator struct {
	source    RandomSource
	houseEdge float64
}

func NewCrashPointGenerator(source RandomSource, houseEdge float64) *HouseEdgeGenerator {
	return &HouseEdgeGenerator{
		source:    source,
		houseEdge: houseEdge,
	}
}

func (g *HouseEdgeGenerator) Generate() float64 {
	return CrashPointFromDraw(g.source.Float64(), g.houseEdge)
}

// Proof returns nil unless the underlying source is provably fair.
func (g *HouseEdgeGenerator) Proof() *FairnessProof {
	if p, ok := g.source.(Prover); ok {
		return p.Proof()
	}
	return nil
}

// CrashPointFromDraw maps r in [0,1) to a crash multiplier floored to two
// decimals.
func CrashPointFromDraw(r, houseEdge float64) float64 {
	if r < houseEdge || r <= 0 {
		return MIN_MULTIPLIER
	}
	crash := math.Floor(100/(r*99)*100) / 100
	return math.Max(MIN_MULTIPLIER, crash)
}
