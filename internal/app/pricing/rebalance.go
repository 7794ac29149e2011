package pricing

import (
	"fmt"
	"math"
)

const (
	// eps is the tolerance below which a residual sum difference is ignored.
	eps = 1e-9
	// maxRounds caps the redistribution loop. Each round can move items into
	// their bounds, freeing room elsewhere, so a handful of rounds converges
	// whenever convergence is possible at all.
	maxRounds = 10
)

// Params carries one rebalance invocation. All slices must have equal length
// and share the same item order; Fair is the weight vector (normally the base
// prices).
type Params struct {
	Prices      []float64
	BoughtIndex int
	Delta       float64
	Min         []float64
	Max         []float64
	Fair        []float64
	TargetSum   float64
	// RoundTo is the currency tick. Zero disables rounding.
	RoundTo float64
}

// Validate reports inconsistent input: mismatched vector lengths or an
// out-of-range bought index. An empty item set is valid and yields an empty
// result.
func (p Params) Validate() error {
	n := len(p.Prices)
	if len(p.Min) != n || len(p.Max) != n || len(p.Fair) != n {
		return fmt.Errorf("pricing: mismatched vector lengths (prices=%d min=%d max=%d fair=%d)",
			n, len(p.Min), len(p.Max), len(p.Fair))
	}
	if n > 0 && (p.BoughtIndex < 0 || p.BoughtIndex >= n) {
		return fmt.Errorf("pricing: bought index %d out of range [0,%d)", p.BoughtIndex, n)
	}
	return nil
}

// Rebalance raises the bought item by Delta, lowers the others evenly, clamps
// everything into its band and redistributes the remaining difference against
// TargetSum using Fair as weights. The returned vector has the same length
// and order as the input, every element inside its band. The sum matches
// TargetSum except when the market is fully saturated, in which case the
// residual is pushed onto the bought item as far as its own band allows and
// the rest is accepted as bounded drift.
//
// The function is deterministic: identical input produces an identical
// vector, bit for bit.
func Rebalance(params Params) ([]float64, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	n := len(params.Prices)
	if n == 0 {
		return []float64{}, nil
	}

	p := make([]float64, n)
	copy(p, params.Prices)

	p[params.BoughtIndex] += params.Delta

	// A single item has nothing to trade against: the bump stands, clamped
	// and rounded into its band, and the sum invariant is trivial against the
	// item's own base price.
	if n == 1 {
		p[0] = clamp(p[0], params.Min[0], params.Max[0])
		if params.RoundTo > 0 {
			p[0] = clamp(math.Round(p[0]/params.RoundTo)*params.RoundTo, params.Min[0], params.Max[0])
		}
		return p, nil
	}

	dec := params.Delta / float64(n-1)
	for i := range p {
		if i != params.BoughtIndex {
			p[i] -= dec
		}
	}

	for i := range p {
		p[i] = clamp(p[i], params.Min[i], params.Max[i])
	}

	diff := sum(p) - params.TargetSum
	if math.Abs(diff) > eps {
		remaining := redistribute(p, diff, params.Min, params.Max, params.Fair)
		if remaining > eps {
			// Fully saturated market: push what is left onto the bought item,
			// clamped to its own band. Any residual beyond that is accepted
			// drift.
			i := params.BoughtIndex
			if diff > 0 {
				p[i] = clamp(p[i]-remaining, params.Min[i], params.Max[i])
			} else {
				p[i] = clamp(p[i]+remaining, params.Min[i], params.Max[i])
			}
		}
	}

	if params.RoundTo > 0 {
		roundAndNudge(p, params)
	}

	return p, nil
}

// redistribute moves |diff| across items that still have room, proportionally
// to their fair weight, and returns the amount it could not absorb. dir is
// implied by the sign of diff: positive means prices must come down.
func redistribute(p []float64, diff float64, minArr, maxArr, fair []float64) float64 {
	remaining := math.Abs(diff)
	lower := diff > 0

	for round := 0; round < maxRounds && remaining > eps; round++ {
		var movable []int
		for i := range p {
			if lower {
				if p[i] > minArr[i]+eps {
					movable = append(movable, i)
				}
			} else {
				if p[i]+eps < maxArr[i] {
					movable = append(movable, i)
				}
			}
		}
		if len(movable) == 0 {
			break
		}

		var weightSum float64
		for _, i := range movable {
			weightSum += math.Max(0, fair[i])
		}
		equal := weightSum <= eps

		var absorbed float64
		for _, i := range movable {
			var share float64
			if equal {
				share = remaining / float64(len(movable))
			} else {
				share = remaining * math.Max(0, fair[i]) / weightSum
			}
			if lower {
				room := p[i] - minArr[i]
				move := math.Min(share, room)
				p[i] -= move
				absorbed += move
			} else {
				room := maxArr[i] - p[i]
				move := math.Min(share, room)
				p[i] += move
				absorbed += move
			}
		}
		if absorbed <= eps {
			break
		}
		remaining -= absorbed
	}
	return remaining
}

// roundAndNudge rounds every price to the tick, re-clamps, and corrects the
// rounding drift by one tick on the bought item when the drift is at least
// half a tick and the nudge stays inside the bought item's band.
func roundAndNudge(p []float64, params Params) {
	tick := params.RoundTo
	for i := range p {
		p[i] = clamp(math.Round(p[i]/tick)*tick, params.Min[i], params.Max[i])
	}

	drift := sum(p) - params.TargetSum
	if math.Abs(drift) >= tick/2-eps {
		i := params.BoughtIndex
		candidate := p[i] - tick
		if drift < 0 {
			candidate = p[i] + tick
		}
		if candidate >= params.Min[i]-eps && candidate <= params.Max[i]+eps {
			p[i] = candidate
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func sum(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}
