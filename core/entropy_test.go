package core

import "testing"

// TestNetworkEntropyKnownInputs checks the network score against a
// hand-computed value.
func TestNetworkEntropyKnownInputs(t *testing.T) {
	got := CalculateNetworkEntropy(NetworkEntropyInput{
		Hops: 3, LatencyVarianceMs: 10.0, PacketLossProbability: 0.01, BandwidthSaturation: 0.5,
	})
	want := 1.45
	if diff := got - want; diff > 0.001 || diff < -0.001 {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestComponentEntropyClampedAt10(t *testing.T) {
	got := CalculateNetworkEntropy(NetworkEntropyInput{Hops: 1000, LatencyVarianceMs: 100000})
	if got != maxComponentEntropy {
		t.Fatalf("expected clamp to %v, got %v", maxComponentEntropy, got)
	}
	got = CalculateComputeEntropy(ComputeEntropyInput{CPUCycles: 1 << 40})
	if got != maxComponentEntropy {
		t.Fatalf("expected clamp to %v, got %v", maxComponentEntropy, got)
	}
	got = CalculateStorageEntropy(StorageEntropyInput{SizeBytes: 1 << 62})
	if got != maxComponentEntropy {
		t.Fatalf("expected clamp to %v, got %v", maxComponentEntropy, got)
	}
	got = CalculateTemporalEntropy(TemporalEntropyInput{StalenessSeconds: 1e9})
	if got != maxComponentEntropy {
		t.Fatalf("expected clamp to %v, got %v", maxComponentEntropy, got)
	}
}

// TestPriceMultiplierBounds checks the multiplier floor at zero disorder and
// the 5.0 cap at maximum disorder.
func TestPriceMultiplierBounds(t *testing.T) {
	calc := NewEntropyCalculator()

	zero := EntropyAccount{}
	if got := calc.PriceMultiplier(zero); got != 1.0 {
		t.Fatalf("all-zero account: got multiplier %v, want 1.0", got)
	}

	max := EntropyAccount{Network: 10, Compute: 10, Storage: 10, Temporal: 10}
	if got := calc.PriceMultiplier(max); got != 5.0 {
		t.Fatalf("all-10.0 account: got multiplier %v, want 5.0 (capped)", got)
	}
}

func TestPriceMultiplierMonotoneAndContinuous(t *testing.T) {
	prev := EntropyPriceMultiplier(0)
	for s := 0.0; s <= 10.0; s += 0.1 {
		got := EntropyPriceMultiplier(s)
		if got < prev-1e-9 {
			t.Fatalf("multiplier decreased at S=%.2f: %v < %v", s, got, prev)
		}
		if got < 1.0-1e-9 || got > 5.0+1e-9 {
			t.Fatalf("multiplier out of [1,5] bounds at S=%.2f: %v", s, got)
		}
		prev = got
	}

	// Continuity at the breakpoints (property 3/testable property row).
	breakpoints := []float64{2.0, 5.0, 8.0}
	for _, bp := range breakpoints {
		below := EntropyPriceMultiplier(bp - 1e-9)
		at := EntropyPriceMultiplier(bp)
		if diff := at - below; diff > 1e-6 || diff < -1e-6 {
			t.Fatalf("discontinuity at S=%v: %v vs %v", bp, below, at)
		}
	}
}

func TestEntropyWeightsValidation(t *testing.T) {
	if !DefaultEntropyWeights().IsValid() {
		t.Fatal("default weights must be valid")
	}
	if _, err := NewEntropyWeights(0.5, 0.5, 0.5, 0.5); err == nil {
		t.Fatal("weights summing to 2.0 must be rejected")
	}
	w, err := NewEntropyWeights(0.25, 0.25, 0.25, 0.25)
	if err != nil || !w.IsValid() {
		t.Fatalf("weights summing to 1.0 must be accepted, err=%v", err)
	}
}

func TestCustomWeightsHonoredInMultiplier(t *testing.T) {
	// The configured weights, not the defaults, must drive the multiplier.
	w, err := NewEntropyWeights(1.0, 0, 0, 0)
	if err != nil {
		t.Fatalf("construct weights: %v", err)
	}
	calc := NewEntropyCalculatorWithWeights(w)
	account := EntropyAccount{Network: 10, Compute: 0, Storage: 0, Temporal: 0}
	got := calc.PriceMultiplier(account)
	if got != 5.0 {
		t.Fatalf("weighting all onto a maxed component should hit the cap: got %v", got)
	}
	zeroWeighted := EntropyAccount{Network: 0, Compute: 10, Storage: 10, Temporal: 10}
	if got := calc.PriceMultiplier(zeroWeighted); got != 1.0 {
		t.Fatalf("zero-weighted components should not affect price: got %v", got)
	}
}
