// Package specificity implements the validity and ordering rules used to
// pick the active default or override for a given target
// (subAppId, currentTier, currentDataCenter).
package specificity

import (
	"time"

	"github.com/getnfig/nfig/tier"
)

// Target is the (subAppId, tier, dataCenter) a candidate value is resolved
// against.
type Target struct {
	SubAppID       *int
	Tier           tier.Tier
	DataCenter     tier.DataCenter
}

// Candidate is the subset of fields specificity cares about, shared by
// DefaultValue and OverrideValue so this package doesn't depend on either.
type Candidate struct {
	SubAppID       *int
	Tier           tier.Tier // zero value (Any) for overrides, which have no tier field
	DataCenter     tier.DataCenter
	IsOverride     bool
	ExpirationTime *time.Time
}

// Matches reports whether c is a valid candidate for target: its sub-app,
// tier, and data center must each be unset or equal to the target's, and
// an override must not be expired.
func Matches(c Candidate, target Target, now time.Time) bool {
	if c.SubAppID != nil && (target.SubAppID == nil || *c.SubAppID != *target.SubAppID) {
		return false
	}
	if !c.Tier.Matches(target.Tier) {
		return false
	}
	if !c.DataCenter.Matches(target.DataCenter) {
		return false
	}
	if c.ExpirationTime != nil && !c.ExpirationTime.After(now) {
		return false
	}
	return true
}

// MoreSpecific reports whether a is strictly more specific than b:
// override beats default, then has-sub-app, then has-tier, then
// has-data-center. Both a and b are assumed to already match the same
// target (callers filter with Matches first).
func MoreSpecific(a, b Candidate) bool {
	if a.IsOverride != b.IsOverride {
		return a.IsOverride
	}
	if (a.SubAppID != nil) != (b.SubAppID != nil) {
		return a.SubAppID != nil
	}
	if (!a.Tier.IsAny()) != (!b.Tier.IsAny()) {
		return !a.Tier.IsAny()
	}
	if (!a.DataCenter.IsAny()) != (!b.DataCenter.IsAny()) {
		return !a.DataCenter.IsAny()
	}
	return false
}

// Most returns the index of the most specific matching candidate in cs, or
// -1 if cs is empty. Ties (a schema error for defaults, and impossible for
// overrides since the storage key is the scope triple) resolve to the
// first candidate encountered.
func Most(cs []Candidate) int {
	best := -1
	for i, c := range cs {
		if best == -1 || MoreSpecific(c, cs[best]) {
			best = i
		}
	}
	return best
}
