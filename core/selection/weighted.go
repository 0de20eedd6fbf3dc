// Package selection implements the popularity-weighted random pick used to choose the next
// track. Every candidate keeps a non-zero chance; claps add a bounded linear bonus.
package selection

import (
	"math/rand"
	"sync"
	"time"
)

const (
	// NoSelection is returned by Pick for an empty candidate list.
	NoSelection = -1
	// BaseWeight is the weight of a track nobody has clapped for.
	BaseWeight = 1.0
	// ClapBonus is the weight added per clap.
	ClapBonus = 0.05
)

// Weight returns 1 + 0.05 × clapCount. Negative counts are treated as zero.
func Weight(clapCount int64) float64 {
	if clapCount < 0 {
		clapCount = 0
	}
	return BaseWeight + ClapBonus*float64(clapCount)
}

// Picker draws weighted random indexes. It is safe for concurrent use.
type Picker struct {
	mu   sync.Mutex
	next func() float64 // uniform in [0,1)
}

// NewPicker returns a Picker reading from rng, or from a time-seeded source when rng is nil.
func NewPicker(rng *rand.Rand) *Picker {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Picker{next: rng.Float64}
}

// Pick performs a roulette-wheel draw over the clap counts and returns the chosen index,
// so index i is chosen with probability Weight(claps[i]) / Σ Weight(claps[j]).
// An empty list yields NoSelection.
func (p *Picker) Pick(claps []int64) int {
	if len(claps) == 0 {
		return NoSelection
	}

	weights := make([]float64, len(claps))
	total := 0.0
	for i, c := range claps {
		weights[i] = Weight(c)
		total += weights[i]
	}

	p.mu.Lock()
	r := p.next() * total
	p.mu.Unlock()

	for i, w := range weights {
		r -= w
		if r <= 0 {
			return i
		}
	}
	// rounding left r a hair above zero
	return len(weights) - 1
}

// PickFrom picks one item of items using clapsOf for its weight. ok is false when items is
// empty.
func PickFrom[T any](p *Picker, items []T, clapsOf func(T) int64) (item T, ok bool) {
	claps := make([]int64, len(items))
	for i, it := range items {
		claps[i] = clapsOf(it)
	}
	idx := p.Pick(claps)
	if idx == NoSelection {
		return item, false
	}
	return items[idx], true
}
