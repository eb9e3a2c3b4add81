package model

import (
	"fmt"
	"strings"
)

// Tier is a subscription level.
type Tier string

const (
	TierFree         Tier = "free"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

// Unlimited marks a limit that is not enforced.
const Unlimited = 0

type TierLimits struct {
	// MaxGPUs is the largest batch accepted per ingestion call.
	MaxGPUs         int     `json:"max_gpus"`
	RequestsPerHour int     `json:"requests_per_hour"`
	MonthlyPriceUSD float64 `json:"monthly_price_usd"`
	RealtimeAlerts  bool    `json:"realtime_alerts"`
}

var TierTable = map[Tier]TierLimits{
	TierFree: {
		MaxGPUs:         2,
		RequestsPerHour: 100,
		MonthlyPriceUSD: 0,
		RealtimeAlerts:  false,
	},
	TierProfessional: {
		MaxGPUs:         Unlimited,
		RequestsPerHour: 1000,
		MonthlyPriceUSD: 49,
		RealtimeAlerts:  true,
	},
	TierEnterprise: {
		MaxGPUs:         Unlimited,
		RequestsPerHour: Unlimited,
		MonthlyPriceUSD: 199,
		RealtimeAlerts:  true,
	},
}

func (t Tier) Valid() bool {
	_, ok := TierTable[t]
	return ok
}

func (t Tier) Limits() TierLimits {
	return LimitsFor(t)
}

// LimitsFor returns the limits of t; unknown tiers get the free tier's limits.
func LimitsFor(t Tier) TierLimits {
	if l, ok := TierTable[t]; ok {
		return l
	}
	return TierTable[TierFree]
}

func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

// Tiers lists every tier in ascending order.
func Tiers() []Tier {
	return []Tier{TierFree, TierProfessional, TierEnterprise}
}
