package guard

import "github.com/routekit/routekit/model"

// TierLimits defines the consumption ceilings for one subscription tier.
// A value of -1 means unlimited.
type TierLimits struct {
	Tier                    model.Tier
	MonthlyTokenLimit       int64
	MaxTokensPerRequest     int64
	RequestsPerMinute       int
	RequestsPerHour         int
	RequestsPerDay          int
	MaxContextWindow        int64
	CanUsePremiumModels     bool
	PriorityQueue           bool
	PremiumRequestsPerMonth int
}

var tierLimits = map[model.Tier]TierLimits{
	model.TierFree: {
		Tier:                model.TierFree,
		MonthlyTokenLimit:   100_000,
		MaxTokensPerRequest: 2_000,
		RequestsPerMinute:   5,
		RequestsPerHour:     50,
		RequestsPerDay:      200,
		MaxContextWindow:    8_000,
		CanUsePremiumModels: false,
		// Free accounts get a small monthly allowance of premium requests.
		PremiumRequestsPerMonth: 10,
	},
	model.TierPro: {
		Tier:                    model.TierPro,
		MonthlyTokenLimit:       2_000_000,
		MaxTokensPerRequest:     8_000,
		RequestsPerMinute:       20,
		RequestsPerHour:         300,
		RequestsPerDay:          2_000,
		MaxContextWindow:        32_000,
		CanUsePremiumModels:     true,
		PremiumRequestsPerMonth: 200,
	},
	model.TierUnlimited: {
		Tier:                    model.TierUnlimited,
		MonthlyTokenLimit:       -1,
		MaxTokensPerRequest:     32_000,
		RequestsPerMinute:       60,
		RequestsPerHour:         2_000,
		RequestsPerDay:          10_000,
		MaxContextWindow:        200_000,
		CanUsePremiumModels:     true,
		PriorityQueue:           true,
		PremiumRequestsPerMonth: -1,
	},
}

// LimitsForTier returns the limits for a tier. Unknown tiers fall back to
// free-tier limits so a bad record never grants extra quota.
func LimitsForTier(tier model.Tier) TierLimits {
	limits, ok := tierLimits[tier]
	if !ok {
		return tierLimits[model.TierFree]
	}
	return limits
}
