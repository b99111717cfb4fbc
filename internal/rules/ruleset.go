package rules

import (
	"sort"
	"time"

	"iaros/retailing-engine/internal/catalog"
)

// RuleSet is the immutable, consistent bundle of all active rules for one
// airline at snapshot time (spec §4.3). Readers capture a RuleSet at
// request entry and use it throughout, guaranteeing per-request
// consistency even if the underlying cache refreshes mid-request (spec §9).
type RuleSet struct {
	AirlineID        string
	PricingRules     []PricingRule
	BundleTemplates  []BundleTemplate
	InventoryRule    *InventoryRule
	GenerationRule   *GenerationRule
	SnapshotAt       time.Time
}

// PricingRulesFor returns the RuleSet's rules for an airline and product
// type, sorted by priority ascending (spec §4.2 step 2). It does not
// filter on is_active or the validity window itself; Store.load has
// already dropped inactive and out-of-window rules from a snapshot.
func (rs *RuleSet) PricingRulesFor(airlineID string, productType catalog.ProductType) []*PricingRule {
	var out []*PricingRule
	for i := range rs.PricingRules {
		r := &rs.PricingRules[i]
		if r.AirlineID != airlineID || r.ProductType != productType {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// BoundsFor returns the tightest declared [min,max] multiplier bound
// across matching rules, or nil if none declare one (spec §4.2 step 8).
func (rs *RuleSet) BoundsFor(airlineID string, productType catalog.ProductType) *Bounds {
	var bound *Bounds
	for i := range rs.PricingRules {
		r := &rs.PricingRules[i]
		if r.AirlineID != airlineID || r.ProductType != productType {
			continue
		}
		if r.MinMultiplier == 0 && r.MaxMultiplier == 0 {
			continue
		}
		if bound == nil {
			bound = &Bounds{MinMultiplier: r.MinMultiplier, MaxMultiplier: r.MaxMultiplier}
			continue
		}
		if r.MinMultiplier > bound.MinMultiplier {
			bound.MinMultiplier = r.MinMultiplier
		}
		if r.MaxMultiplier < bound.MaxMultiplier {
			bound.MaxMultiplier = r.MaxMultiplier
		}
	}
	return bound
}

// ActiveBundleTemplates returns bundle templates sorted by priority
// descending (spec §4.4 tie-break: higher template priority wins ties).
func (rs *RuleSet) ActiveBundleTemplates() []BundleTemplate {
	out := make([]BundleTemplate, len(rs.BundleTemplates))
	copy(out, rs.BundleTemplates)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// isValidNow reports whether a rule's validity window contains now and it
// is marked active (spec §4.3: "is_active AND now in [valid_from, valid_until]").
func isValidNow(active bool, from, until, now time.Time) bool {
	if !active {
		return false
	}
	if !from.IsZero() && now.Before(from) {
		return false
	}
	if !until.IsZero() && now.After(until) {
		return false
	}
	return true
}
