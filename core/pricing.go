package core

// PricingModel selects how a resource request's price is derived.
type PricingModel int

const (
	PricingModelFixed PricingModel = iota
	PricingModelDynamic
	PricingModelAuction
)

// FixedPriceConfig prices by flat per-unit rates.
type FixedPriceConfig struct {
	CPUPerCycle    uint64
	MemoryPerMB    uint64
	StoragePerGB   uint64
	BandwidthPerMB uint64
}

func DefaultFixedPriceConfig() FixedPriceConfig {
	return FixedPriceConfig{CPUPerCycle: 1, MemoryPerMB: 10, StoragePerGB: 100, BandwidthPerMB: 5}
}

func CalculateFixedPrice(cfg FixedPriceConfig, cpuCycles, memoryMB, storageGB, bandwidthMB uint64) Credits {
	total := cpuCycles*cfg.CPUPerCycle + memoryMB*cfg.MemoryPerMB + storageGB*cfg.StoragePerGB + bandwidthMB*cfg.BandwidthPerMB
	return NewCredits(total)
}

// DynamicPriceConfig prices by applying the entropy multiplier to a base.
type DynamicPriceConfig struct {
	BasePrice      Credits
	EntropyWeights EntropyWeights
	MinMultiplier  float64
	MaxMultiplier  float64
}

func DefaultDynamicPriceConfig() DynamicPriceConfig {
	return DynamicPriceConfig{
		BasePrice:      NewCredits(100),
		EntropyWeights: DefaultEntropyWeights(),
		MinMultiplier:  1.0,
		MaxMultiplier:  5.0,
	}
}

func CalculateDynamicPrice(cfg DynamicPriceConfig, entropy EntropyAccount) Credits {
	total := WeightedEntropySum(entropy, cfg.EntropyWeights)
	multiplier := clamp(EntropyPriceMultiplier(total), cfg.MinMultiplier, cfg.MaxMultiplier)
	return NewCredits(uint64(float64(cfg.BasePrice.Amount) * multiplier))
}

// PriceQuote is the result handed back to a caller requesting a price.
type PriceQuote struct {
	BasePrice         Credits
	EntropyAdjustment Credits
	TotalPrice        Credits
	EntropyMultiplier float64
	Model             PricingModel
}

func FixedQuote(price Credits) PriceQuote {
	return PriceQuote{BasePrice: price, EntropyAdjustment: ZeroCredits, TotalPrice: price, EntropyMultiplier: 1.0, Model: PricingModelFixed}
}

func DynamicQuote(base Credits, multiplier float64) PriceQuote {
	total := NewCredits(uint64(float64(base.Amount) * multiplier))
	adjustment := ZeroCredits
	if total.Amount > base.Amount {
		adjustment = NewCredits(total.Amount - base.Amount)
	}
	return PriceQuote{BasePrice: base, EntropyAdjustment: adjustment, TotalPrice: total, EntropyMultiplier: multiplier, Model: PricingModelDynamic}
}

// AuctionQuote derives an auction-based price from a resource's order book
// and market maker. The quote's total price is the ask side of the maker's
// spread, with the expected revenue over the requested volume reported as
// the entropy adjustment for symmetry with the dynamic quote shape.
func AuctionQuote(book OrderBook, maker *MarketMaker, mid Credits, localEntropy float64, priceHistory []Credits, volume uint64) PriceQuote {
	_, ask := maker.Quote(book, mid, localEntropy, priceHistory)
	spread := CalculateSpread(book, maker.Config, localEntropy, priceHistory)
	revenue := maker.ExpectedRevenue(volume, spread)
	return PriceQuote{
		BasePrice:         mid,
		EntropyAdjustment: revenue,
		TotalPrice:        ask,
		EntropyMultiplier: spread,
		Model:             PricingModelAuction,
	}
}

// Pricer orchestrates quote generation across all three models.
type Pricer struct {
	FixedConfig   FixedPriceConfig
	DynamicConfig DynamicPriceConfig
	DefaultModel  PricingModel
}

func NewPricer() *Pricer {
	return &Pricer{
		FixedConfig:   DefaultFixedPriceConfig(),
		DynamicConfig: DefaultDynamicPriceConfig(),
		DefaultModel:  PricingModelDynamic,
	}
}

func (p *Pricer) QuoteFixed(cpuCycles, memoryMB, storageGB, bandwidthMB uint64) PriceQuote {
	return FixedQuote(CalculateFixedPrice(p.FixedConfig, cpuCycles, memoryMB, storageGB, bandwidthMB))
}

func (p *Pricer) QuoteDynamic(entropy EntropyAccount) PriceQuote {
	total := WeightedEntropySum(entropy, p.DynamicConfig.EntropyWeights)
	multiplier := clamp(EntropyPriceMultiplier(total), p.DynamicConfig.MinMultiplier, p.DynamicConfig.MaxMultiplier)
	return DynamicQuote(p.DynamicConfig.BasePrice, multiplier)
}

// Quote prices by the configured default model. Dynamic uses entropy (a nil
// entropy quotes the base price at multiplier 1.0); every other model,
// Auction included, returns a fixed quote for zero usage. Auction quotes come
// from AuctionQuote, which needs an order book and a market maker.
func (p *Pricer) Quote(entropy *EntropyAccount) PriceQuote {
	if p.DefaultModel == PricingModelDynamic {
		if entropy != nil {
			return p.QuoteDynamic(*entropy)
		}
		return DynamicQuote(p.DynamicConfig.BasePrice, 1.0)
	}
	return p.QuoteFixed(0, 0, 0, 0)
}
