package core

import "math"

// CalculateSpread derives the bid/ask spread for a resource.
func CalculateSpread(book OrderBook, cfg MarketMakerConfig, localEntropy float64, priceHistory []Credits) float64 {
	spread := cfg.MinimumSpread

	if len(priceHistory) > 1 {
		var sum float64
		for _, p := range priceHistory {
			sum += float64(p.Amount)
		}
		mean := sum / float64(len(priceHistory))
		if mean > 0 {
			var variance float64
			for _, p := range priceHistory {
				d := float64(p.Amount) - mean
				variance += d * d
			}
			variance /= float64(len(priceHistory))
			volatility := math.Sqrt(variance) / mean
			spread += volatility * cfg.VolatilityFactor
		}
	}

	currentInventory := book.TotalInventory()
	if cfg.TargetInventory > 0 {
		diff := float64(int64(currentInventory) - int64(cfg.TargetInventory))
		imbalance := math.Abs(diff) / float64(cfg.TargetInventory)
		spread += imbalance * cfg.InventoryFactor
	}

	spread += localEntropy * cfg.EntropySpreadFactor
	return spread
}

// CalculateBidPrice and CalculateAskPrice derive resting prices around a mid
// price for a given spread.
func CalculateBidPrice(mid Credits, spread float64) Credits {
	return NewCredits(uint64(math.Floor(float64(mid.Amount) * (1.0 - spread/2.0))))
}

func CalculateAskPrice(mid Credits, spread float64) Credits {
	return NewCredits(uint64(math.Ceil(float64(mid.Amount) * (1.0 + spread/2.0))))
}

// MarketMaker quotes bid/ask prices and expected revenue for a resource.
type MarketMaker struct {
	Config MarketMakerConfig
}

func NewMarketMaker(cfg MarketMakerConfig) *MarketMaker {
	return &MarketMaker{Config: cfg}
}

func NewMarketMakerWithDefaults() *MarketMaker {
	return &MarketMaker{Config: DefaultMarketMakerConfig()}
}

func (m *MarketMaker) Quote(book OrderBook, mid Credits, localEntropy float64, priceHistory []Credits) (bid, ask Credits) {
	spread := CalculateSpread(book, m.Config, localEntropy, priceHistory)
	return CalculateBidPrice(mid, spread), CalculateAskPrice(mid, spread)
}

// ExpectedRevenue is floor(volume * spread / 2).
func (m *MarketMaker) ExpectedRevenue(volume uint64, spread float64) Credits {
	return NewCredits(uint64(math.Floor(float64(volume) * spread / 2.0)))
}
