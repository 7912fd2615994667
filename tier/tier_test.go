package tier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/getnfig/nfig/tier"
)

func TestTierMatches(t *testing.T) {
	var any tier.Tier
	assert.True(t, any.Matches(5))
	assert.True(t, any.Matches(0))

	prod := tier.Tier(1)
	assert.True(t, prod.Matches(1))
	assert.False(t, prod.Matches(2))
}

func TestDataCenterMatches(t *testing.T) {
	var any tier.DataCenter
	assert.True(t, any.Matches(7))

	east := tier.DataCenter(1)
	assert.True(t, east.Matches(1))
	assert.False(t, east.Matches(2))
}

func TestNamesFallback(t *testing.T) {
	n := tier.Names{Tiers: map[tier.Tier]string{1: "Prod"}}
	assert.Equal(t, "Prod", n.TierName(1))
	assert.Equal(t, "2", n.TierName(2))
	assert.Equal(t, "any", n.TierName(0))
}
