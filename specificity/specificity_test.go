package specificity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getnfig/nfig/specificity"
	"github.com/getnfig/nfig/tier"
)

func intPtr(i int) *int { return &i }

func TestMatches(t *testing.T) {
	now := time.Now()
	target := specificity.Target{SubAppID: intPtr(7), Tier: tier.Tier(1), DataCenter: tier.DataCenter(2)}

	root := specificity.Candidate{}
	assert.True(t, specificity.Matches(root, target, now))

	wrongSubApp := specificity.Candidate{SubAppID: intPtr(8)}
	assert.False(t, specificity.Matches(wrongSubApp, target, now))

	wrongTier := specificity.Candidate{Tier: tier.Tier(9)}
	assert.False(t, specificity.Matches(wrongTier, target, now))

	expired := time.Now().Add(-time.Hour)
	expiredCand := specificity.Candidate{ExpirationTime: &expired}
	assert.False(t, specificity.Matches(expiredCand, target, now))

	future := time.Now().Add(time.Hour)
	futureCand := specificity.Candidate{ExpirationTime: &future}
	assert.True(t, specificity.Matches(futureCand, target, now))
}

func TestMoreSpecificOrdering(t *testing.T) {
	override := specificity.Candidate{IsOverride: true}
	deflt := specificity.Candidate{}
	assert.True(t, specificity.MoreSpecific(override, deflt))
	assert.False(t, specificity.MoreSpecific(deflt, override))

	withSubApp := specificity.Candidate{SubAppID: intPtr(1)}
	withoutSubApp := specificity.Candidate{}
	assert.True(t, specificity.MoreSpecific(withSubApp, withoutSubApp))

	withTier := specificity.Candidate{Tier: tier.Tier(1)}
	withoutTier := specificity.Candidate{}
	assert.True(t, specificity.MoreSpecific(withTier, withoutTier))

	withDC := specificity.Candidate{DataCenter: tier.DataCenter(1)}
	withoutDC := specificity.Candidate{}
	assert.True(t, specificity.MoreSpecific(withDC, withoutDC))
}

func TestMoreSpecificTransitiveAndAntisymmetric(t *testing.T) {
	a := specificity.Candidate{IsOverride: true, SubAppID: intPtr(1), Tier: tier.Tier(1), DataCenter: tier.DataCenter(1)}
	b := specificity.Candidate{IsOverride: true, SubAppID: intPtr(1), Tier: tier.Tier(1)}
	c := specificity.Candidate{IsOverride: true, SubAppID: intPtr(1)}

	require.True(t, specificity.MoreSpecific(a, b))
	require.True(t, specificity.MoreSpecific(b, c))
	assert.True(t, specificity.MoreSpecific(a, c))

	assert.False(t, specificity.MoreSpecific(b, a) && specificity.MoreSpecific(a, b))
}

func TestMostPicksHighestSpecificity(t *testing.T) {
	cs := []specificity.Candidate{
		{},
		{DataCenter: tier.DataCenter(1)},
		{SubAppID: intPtr(1)},
		{IsOverride: true},
	}
	idx := specificity.Most(cs)
	assert.Equal(t, 3, idx)
}
