package core

// AggregateGradients computes the per-field weighted mean of leaf reports.
// An empty report set (or one whose weights sum to zero) yields the zero
// gradient.
func AggregateGradients(reports []LeafGradientReport) ResourceGradient {
	var totalWeight float64
	for _, r := range reports {
		totalWeight += r.Weight
	}
	if totalWeight == 0.0 {
		return ZeroGradient()
	}

	var cpu, memory, gpu, storage, bandwidth, credits float64
	for _, r := range reports {
		cpu += r.Gradient.CPUAvailable * r.Weight
		memory += r.Gradient.MemoryAvailable * r.Weight
		gpu += r.Gradient.GPUAvailable * r.Weight
		storage += r.Gradient.StorageAvailable * r.Weight
		bandwidth += r.Gradient.BandwidthAvailable * r.Weight
		credits += r.Gradient.CreditBalance * r.Weight
	}

	return ResourceGradient{
		CPUAvailable:       cpu / totalWeight,
		MemoryAvailable:    memory / totalWeight,
		GPUAvailable:       gpu / totalWeight,
		StorageAvailable:   storage / totalWeight,
		BandwidthAvailable: bandwidth / totalWeight,
		CreditBalance:      credits / totalWeight,
	}
}
