package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTier(t *testing.T) {
	tier, err := ParseTier(" Professional ")
	require.NoError(t, err)
	assert.Equal(t, TierProfessional, tier)

	_, err = ParseTier("gold")
	assert.Error(t, err)
}

func TestLimitsFor(t *testing.T) {
	assert.Equal(t, 2, LimitsFor(TierFree).MaxGPUs)
	assert.False(t, TierFree.Limits().RealtimeAlerts)
	assert.Equal(t, Unlimited, LimitsFor(TierProfessional).MaxGPUs)
	assert.Equal(t, 49.0, LimitsFor(TierProfessional).MonthlyPriceUSD)
	assert.Equal(t, 199.0, LimitsFor(TierEnterprise).MonthlyPriceUSD)
	assert.Equal(t, TierTable[TierFree], LimitsFor(Tier("unknown")))
}

func TestTiers(t *testing.T) {
	for _, tier := range Tiers() {
		assert.True(t, tier.Valid())
	}
	assert.Len(t, Tiers(), len(TierTable))
}
