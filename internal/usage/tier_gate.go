package usage

import "github.com/nimasrn/gpu-savings-gateway/internal/model"

// CheckTier rejects a batch of count readings when it exceeds the tier's GPU
// allowance. It runs after Validate so validation problems are reported first.
func CheckTier(tier model.Tier, count int) error {
	limit := model.LimitsFor(tier).MaxGPUs
	if limit == model.Unlimited || count <= limit {
		return nil
	}
	return &TierLimitError{Tier: tier, Limit: limit, Requested: count}
}
