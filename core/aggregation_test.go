package core

import "testing"

// TestAggregateGradientsWeightedMean checks the weighted mean of two reports
// with weights 1 and 3.
func TestAggregateGradientsWeightedMean(t *testing.T) {
	reports := []LeafGradientReport{
		{Node: NodeId{0x01}, Weight: 1, Gradient: ResourceGradient{CPUAvailable: 0.5, CreditBalance: 50.0}},
		{Node: NodeId{0x02}, Weight: 3, Gradient: ResourceGradient{CPUAvailable: 0.8333333333, CreditBalance: 83.333333333}},
	}
	got := AggregateGradients(reports)
	if diff := got.CPUAvailable - 0.75; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("got cpu %v, want 0.75", got.CPUAvailable)
	}
	if diff := got.CreditBalance - 75.0; diff > 1e-3 || diff < -1e-3 {
		t.Fatalf("got credit_balance %v, want 75.0", got.CreditBalance)
	}
}

func TestAggregateGradientsEmptyReportsYieldZero(t *testing.T) {
	got := AggregateGradients(nil)
	if got != ZeroGradient() {
		t.Fatalf("got %+v, want zero gradient", got)
	}
}

func TestAggregateGradientsZeroTotalWeightYieldsZero(t *testing.T) {
	reports := []LeafGradientReport{
		{Node: NodeId{0x01}, Weight: 0, Gradient: ResourceGradient{CPUAvailable: 1.0}},
	}
	got := AggregateGradients(reports)
	if got != ZeroGradient() {
		t.Fatalf("got %+v, want zero gradient when weights sum to zero", got)
	}
}

func TestAggregateGradientsSingleReportIsUnchanged(t *testing.T) {
	g := ResourceGradient{CPUAvailable: 0.42, MemoryAvailable: 0.1, GPUAvailable: 0.2, StorageAvailable: 0.3, BandwidthAvailable: 0.4, CreditBalance: 500}
	reports := []LeafGradientReport{{Node: NodeId{0x01}, Weight: 1, Gradient: g}}
	got := AggregateGradients(reports)
	if got != g {
		t.Fatalf("got %+v, want unchanged %+v", got, g)
	}
}
