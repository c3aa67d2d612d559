package core

import "testing"

func TestCalculateFixedPriceSumsComponents(t *testing.T) {
	cfg := DefaultFixedPriceConfig()
	got := CalculateFixedPrice(cfg, 10, 5, 2, 20)
	want := 10*cfg.CPUPerCycle + 5*cfg.MemoryPerMB + 2*cfg.StoragePerGB + 20*cfg.BandwidthPerMB
	if got.Amount != want {
		t.Fatalf("got %d, want %d", got.Amount, want)
	}
}

func TestCalculateDynamicPriceClampsToConfiguredMultiplierRange(t *testing.T) {
	cfg := DefaultDynamicPriceConfig()
	cfg.MaxMultiplier = 2.0
	maxed := EntropyAccount{Network: 10, Compute: 10, Storage: 10, Temporal: 10}

	got := CalculateDynamicPrice(cfg, maxed)
	want := NewCredits(uint64(float64(cfg.BasePrice.Amount) * 2.0))
	if got != want {
		t.Fatalf("got %+v, want %+v (clamped at MaxMultiplier)", got, want)
	}
}

func TestDynamicQuoteReportsPositiveAdjustmentAboveBase(t *testing.T) {
	base := NewCredits(100)
	q := DynamicQuote(base, 2.5)
	if q.TotalPrice.Amount != 250 {
		t.Fatalf("got total %d, want 250", q.TotalPrice.Amount)
	}
	if q.EntropyAdjustment.Amount != 150 {
		t.Fatalf("got adjustment %d, want 150", q.EntropyAdjustment.Amount)
	}
}

func TestDynamicQuoteZeroAdjustmentAtUnitMultiplier(t *testing.T) {
	base := NewCredits(100)
	q := DynamicQuote(base, 1.0)
	if !q.EntropyAdjustment.IsZero() {
		t.Fatalf("got adjustment %+v, want zero at multiplier 1.0", q.EntropyAdjustment)
	}
}

func TestAuctionQuoteUsesAskSideAndExpectedRevenue(t *testing.T) {
	maker := NewMarketMakerWithDefaults()
	book := NewOrderBook(ResourceCPU)
	mid := NewCredits(1000)

	quote := AuctionQuote(book, maker, mid, 0, nil, 100)
	if quote.Model != PricingModelAuction {
		t.Fatalf("got model %v, want PricingModelAuction", quote.Model)
	}
	_, expectedAsk := maker.Quote(book, mid, 0, nil)
	if quote.TotalPrice != expectedAsk {
		t.Fatalf("got total %+v, want the maker's ask price %+v", quote.TotalPrice, expectedAsk)
	}
}

func TestPricerQuoteDispatchesToDynamicByDefault(t *testing.T) {
	p := NewPricer()
	entropy := EntropyAccount{}
	got := p.Quote(&entropy)
	if got.Model != PricingModelDynamic {
		t.Fatalf("got model %v, want PricingModelDynamic", got.Model)
	}
	if got.TotalPrice != p.DynamicConfig.BasePrice {
		t.Fatalf("got total %+v, want base price %+v for all-zero entropy", got.TotalPrice, p.DynamicConfig.BasePrice)
	}
}
