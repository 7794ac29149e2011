package pricing

import (
	"math"
	"testing"
)

func params3() Params {
	return Params{
		Prices:      []float64{10, 10, 10},
		BoughtIndex: 0,
		Delta:       1,
		Min:         []float64{8, 8, 8},
		Max:         []float64{14, 14, 14},
		Fair:        []float64{10, 10, 10},
		TargetSum:   30,
		RoundTo:     0.5,
	}
}

func assertBounds(t *testing.T, p Params, out []float64) {
	t.Helper()
	for i := range out {
		if out[i] < p.Min[i]-1e-9 || out[i] > p.Max[i]+1e-9 {
			t.Fatalf("price %d = %v outside [%v,%v]", i, out[i], p.Min[i], p.Max[i])
		}
	}
}

func TestRebalance_ThreeItemsEvenSpread(t *testing.T) {
	p := params3()
	out, err := Rebalance(p)
	if err != nil {
		t.Fatalf("rebalance: %v", err)
	}
	if got := sum(out); math.Abs(got-30) > 1e-9 {
		t.Fatalf("sum = %v, want 30", got)
	}
	if out[0] <= 10 {
		t.Fatalf("bought item did not rise: %v", out[0])
	}
	if out[1] >= 10 || out[2] >= 10 {
		t.Fatalf("other items did not fall: %v", out)
	}
	if out[1] != out[2] {
		t.Fatalf("even spread violated: %v vs %v", out[1], out[2])
	}
	if out[0] != 11 || out[1] != 9.5 {
		t.Fatalf("unexpected vector: %v", out)
	}
	assertBounds(t, p, out)
}

func TestRebalance_IdempotentAtZeroDelta(t *testing.T) {
	p := params3()
	p.Delta = 0
	out, err := Rebalance(p)
	if err != nil {
		t.Fatalf("rebalance: %v", err)
	}
	for i := range out {
		if out[i] != p.Prices[i] {
			t.Fatalf("vector changed at %d: %v -> %v", i, p.Prices[i], out[i])
		}
	}
}

func TestRebalance_Deterministic(t *testing.T) {
	p := params3()
	p.Prices = []float64{11.5, 9.25, 9.25}
	first, err := Rebalance(p)
	if err != nil {
		t.Fatalf("rebalance: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := Rebalance(p)
		if err != nil {
			t.Fatalf("rebalance: %v", err)
		}
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("run %d diverged at %d: %v vs %v", i, j, first[j], again[j])
			}
		}
	}
}

func TestRebalance_SingleItem(t *testing.T) {
	p := Params{
		Prices:      []float64{10},
		BoughtIndex: 0,
		Delta:       1,
		Min:         []float64{8},
		Max:         []float64{14},
		Fair:        []float64{10},
		TargetSum:   10,
		RoundTo:     0.5,
	}
	out, err := Rebalance(p)
	if err != nil {
		t.Fatalf("rebalance: %v", err)
	}
	if len(out) != 1 || out[0] != 11 {
		t.Fatalf("expected [11], got %v", out)
	}

	p.Delta = 100
	out, err = Rebalance(p)
	if err != nil {
		t.Fatalf("rebalance: %v", err)
	}
	if out[0] != 14 {
		t.Fatalf("expected clamp at max, got %v", out[0])
	}
}

func TestRebalance_SaturatedMarketPushesOntoBoughtItem(t *testing.T) {
	// Items 1 and 2 are pinned; the bought item absorbs the correction as far
	// as its own band allows, and the remainder is bounded drift.
	p := Params{
		Prices:      []float64{10, 10, 10},
		BoughtIndex: 0,
		Delta:       0,
		Min:         []float64{9, 10, 10},
		Max:         []float64{11, 10, 10},
		Fair:        []float64{10, 10, 10},
		TargetSum:   27,
	}
	out, err := Rebalance(p)
	if err != nil {
		t.Fatalf("rebalance: %v", err)
	}
	assertBounds(t, p, out)
	if out[0] != 9 {
		t.Fatalf("bought item should sit at its min bound, got %v", out[0])
	}
	// Residual drift is exactly what the bands could not absorb.
	if got := sum(out) - p.TargetSum; math.Abs(got-2) > 1e-9 {
		t.Fatalf("drift = %v, want 2", got)
	}
}

func TestRebalance_ClampFreesRoomAcrossRounds(t *testing.T) {
	// One item near its min: the even subtraction clamps it, and later rounds
	// move the freed amount onto the remaining item.
	p := Params{
		Prices:      []float64{10, 8.2, 11.8},
		BoughtIndex: 0,
		Delta:       2,
		Min:         []float64{8, 8, 8},
		Max:         []float64{14, 14, 14},
		Fair:        []float64{10, 10, 10},
		TargetSum:   30,
		RoundTo:     0,
	}
	out, err := Rebalance(p)
	if err != nil {
		t.Fatalf("rebalance: %v", err)
	}
	assertBounds(t, p, out)
	if got := sum(out); math.Abs(got-30) > 1e-9 {
		t.Fatalf("sum = %v, want 30", got)
	}
	if out[0] < 10 {
		t.Fatalf("bought item fell below its starting price: %v", out[0])
	}
}

func TestRebalance_RoundingDriftWithinHalfTick(t *testing.T) {
	p := Params{
		Prices:      []float64{10.1, 9.9, 10.0},
		BoughtIndex: 1,
		Delta:       0.7,
		Min:         []float64{8, 8, 8},
		Max:         []float64{14, 14, 14},
		Fair:        []float64{10, 10, 10},
		TargetSum:   30,
		RoundTo:     0.5,
	}
	out, err := Rebalance(p)
	if err != nil {
		t.Fatalf("rebalance: %v", err)
	}
	assertBounds(t, p, out)
	if drift := math.Abs(sum(out) - p.TargetSum); drift > p.RoundTo/2+1e-9 {
		t.Fatalf("rounding drift %v exceeds half a tick", drift)
	}
	for i, v := range out {
		if r := math.Mod(v, p.RoundTo); math.Abs(r) > 1e-9 && math.Abs(r-p.RoundTo) > 1e-9 {
			t.Fatalf("price %d = %v not on tick", i, v)
		}
	}
}

func TestRebalance_EmptyAndInvalidInput(t *testing.T) {
	out, err := Rebalance(Params{})
	if err != nil {
		t.Fatalf("empty input should be valid: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty vector, got %v", out)
	}

	bad := params3()
	bad.Min = []float64{8, 8}
	if _, err := Rebalance(bad); err == nil {
		t.Fatalf("expected error for mismatched lengths")
	}

	bad = params3()
	bad.BoughtIndex = 3
	if _, err := Rebalance(bad); err == nil {
		t.Fatalf("expected error for out-of-range index")
	}
}

func TestRebalance_ZeroWeightsShareEqually(t *testing.T) {
	p := Params{
		Prices:      []float64{5, 5, 5},
		BoughtIndex: 0,
		Delta:       0,
		Min:         []float64{0, 0, 0},
		Max:         []float64{10, 10, 10},
		Fair:        []float64{0, 0, 0},
		TargetSum:   12,
		RoundTo:     0,
	}
	out, err := Rebalance(p)
	if err != nil {
		t.Fatalf("rebalance: %v", err)
	}
	if math.Abs(sum(out)-12) > 1e-9 {
		t.Fatalf("sum = %v, want 12", sum(out))
	}
	if out[0] != out[1] || out[1] != out[2] {
		t.Fatalf("equal split violated: %v", out)
	}
}

func TestRebalance_MonotonicBump(t *testing.T) {
	p := params3()
	p.Prices = []float64{10, 8.4, 11.6}
	p.Delta = 1.5
	out, err := Rebalance(p)
	if err != nil {
		t.Fatalf("rebalance: %v", err)
	}
	if out[0] < p.Prices[0] {
		t.Fatalf("bought item fell: %v -> %v", p.Prices[0], out[0])
	}
	assertBounds(t, p, out)
}
