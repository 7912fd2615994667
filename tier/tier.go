// Package tier defines the two axes of deployment scoping NFig resolves
// defaults and overrides against: the current deployment stage and the
// current deployment locale. Both are small integer enums whose zero value
// means "any" — a default or override scoped to the zero value matches
// every tier / data center.
package tier

import "strconv"

// Tier is the deployment stage a process is running in (e.g. Dev, Prod).
// The zero value, Any, matches every tier.
type Tier int32

// DataCenter is the deployment locale a process is running in. The zero
// value, Any, matches every data center.
type DataCenter int32

// Any is the wildcard value shared by Tier and DataCenter: a default or
// override scoped to Any applies regardless of the caller's actual tier or
// data center.
const Any = 0

// IsAny reports whether t is the wildcard tier.
func (t Tier) IsAny() bool { return t == Any }

// Matches reports whether t is a valid candidate for the current tier:
// either t is the wildcard or t equals current exactly.
func (t Tier) Matches(current Tier) bool {
	return t == Any || t == current
}

// IsAny reports whether dc is the wildcard data center.
func (dc DataCenter) IsAny() bool { return dc == Any }

// Matches reports whether dc is a valid candidate for the current data
// center: either dc is the wildcard or dc equals current exactly.
func (dc DataCenter) Matches(current DataCenter) bool {
	return dc == Any || dc == current
}

// Names is an optional debugging aid: callers may register human-readable
// names for tier/data-center integer values (e.g. 1 -> "Prod"). Unset
// values fall back to their integer representation.
type Names struct {
	Tiers       map[Tier]string
	DataCenters map[DataCenter]string
}

// TierName returns the registered name for t, or its integer form.
func (n Names) TierName(t Tier) string {
	if n.Tiers != nil {
		if name, ok := n.Tiers[t]; ok {
			return name
		}
	}
	return t.String()
}

// DataCenterName returns the registered name for dc, or its integer form.
func (n Names) DataCenterName(dc DataCenter) string {
	if n.DataCenters != nil {
		if name, ok := n.DataCenters[dc]; ok {
			return name
		}
	}
	return dc.String()
}

func (t Tier) String() string {
	if t == Any {
		return "any"
	}
	return strconv.Itoa(int(t))
}

func (dc DataCenter) String() string {
	if dc == Any {
		return "any"
	}
	return strconv.Itoa(int(dc))
}
