package rules_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iaros/retailing-engine/internal/catalog"
	"iaros/retailing-engine/internal/rules"
)

func TestPricingRuleMatchesAllConditions(t *testing.T) {
	r := rules.PricingRule{
		Conditions: []rules.Condition{
			{Field: "utilization", Operator: "gte", Value: 0.8},
			{Field: "days_until_departure", Operator: "lte", Value: 7},
		},
	}
	assert.True(t, r.Matches(0.9, 3))
	assert.False(t, r.Matches(0.5, 3))
	assert.False(t, r.Matches(0.9, 30))
}

func TestPricingRuleApplyMultiplier(t *testing.T) {
	r := rules.PricingRule{Adjustment: rules.Adjustment{Kind: rules.AdjustmentMultiplier, Value: 1.5}}
	out, err := r.Apply(decimal.NewFromInt(100), 0, 0)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(150).Equal(out))
}

func TestPricingRuleApplyFixed(t *testing.T) {
	r := rules.PricingRule{Adjustment: rules.Adjustment{Kind: rules.AdjustmentFixed, Value: -10}}
	out, err := r.Apply(decimal.NewFromInt(100), 0, 0)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(90).Equal(out))
}

func TestPricingRuleApplyFormula(t *testing.T) {
	r := rules.PricingRule{Adjustment: rules.Adjustment{Kind: rules.AdjustmentFormula, Expr: "utilization * 200"}}
	out, err := r.Apply(decimal.NewFromInt(100), 0.5, 0)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(out))
}

func TestPricingRuleApplyNegativeMultiplierRejected(t *testing.T) {
	r := rules.PricingRule{Adjustment: rules.Adjustment{Kind: rules.AdjustmentMultiplier, Value: -1}}
	_, err := r.Apply(decimal.NewFromInt(100), 0, 0)
	assert.Error(t, err)
}

func TestPricingRuleApplyUnknownKindRejected(t *testing.T) {
	r := rules.PricingRule{Adjustment: rules.Adjustment{Kind: "BOGUS"}}
	_, err := r.Apply(decimal.NewFromInt(100), 0, 0)
	assert.Error(t, err)
}

func TestPricingRuleConditionsRoundTripThroughJSON(t *testing.T) {
	r := rules.PricingRule{
		Conditions: []rules.Condition{{Field: "utilization", Operator: "gt", Value: 0.5}},
	}
	require.NoError(t, r.EncodeConditions())
	assert.NotEmpty(t, r.ConditionsJSON)

	var reloaded rules.PricingRule
	reloaded.ConditionsJSON = r.ConditionsJSON
	require.NoError(t, reloaded.DecodeConditions())
	assert.Equal(t, r.Conditions, reloaded.Conditions)
}

func TestBundleTemplateSlotsRoundTripThroughJSON(t *testing.T) {
	tmpl := rules.BundleTemplate{
		Slots: []rules.BundleSlot{
			{ProductType: catalog.ProductFlight, Required: true},
			{ProductType: catalog.ProductBag, Required: false},
		},
	}
	require.NoError(t, tmpl.EncodeSlots())
	assert.NotEmpty(t, tmpl.SlotsJSON)

	var reloaded rules.BundleTemplate
	reloaded.SlotsJSON = tmpl.SlotsJSON
	require.NoError(t, reloaded.DecodeSlots())
	assert.Equal(t, tmpl.Slots, reloaded.Slots)
}

func TestBundleTemplateDecodeSlotsEmptyIsNoop(t *testing.T) {
	var tmpl rules.BundleTemplate
	require.NoError(t, tmpl.DecodeSlots())
	assert.Nil(t, tmpl.Slots)
}

func TestRuleSetPricingRulesForSortsByPriorityAscending(t *testing.T) {
	rs := &rules.RuleSet{
		PricingRules: []rules.PricingRule{
			{ID: "low-priority-last", AirlineID: "AA", ProductType: catalog.ProductFlight, Priority: 10},
			{ID: "high-priority-first", AirlineID: "AA", ProductType: catalog.ProductFlight, Priority: 1},
			{ID: "other-airline", AirlineID: "BB", ProductType: catalog.ProductFlight, Priority: 0},
			{ID: "other-product", AirlineID: "AA", ProductType: catalog.ProductBag, Priority: 0},
		},
	}
	out := rs.PricingRulesFor("AA", catalog.ProductFlight)
	require.Len(t, out, 2)
	assert.Equal(t, "high-priority-first", out[0].ID)
	assert.Equal(t, "low-priority-last", out[1].ID)
}

func TestRuleSetBoundsForPicksTightestBound(t *testing.T) {
	rs := &rules.RuleSet{
		PricingRules: []rules.PricingRule{
			{AirlineID: "AA", ProductType: catalog.ProductFlight, MinMultiplier: 0.5, MaxMultiplier: 2.0},
			{AirlineID: "AA", ProductType: catalog.ProductFlight, MinMultiplier: 0.8, MaxMultiplier: 1.5},
			{AirlineID: "AA", ProductType: catalog.ProductFlight}, // no bound declared, ignored
		},
	}
	bound := rs.BoundsFor("AA", catalog.ProductFlight)
	require.NotNil(t, bound)
	assert.Equal(t, 0.8, bound.MinMultiplier)
	assert.Equal(t, 1.5, bound.MaxMultiplier)
}

func TestRuleSetBoundsForNoDeclaredBoundReturnsNil(t *testing.T) {
	rs := &rules.RuleSet{
		PricingRules: []rules.PricingRule{{AirlineID: "AA", ProductType: catalog.ProductFlight}},
	}
	assert.Nil(t, rs.BoundsFor("AA", catalog.ProductFlight))
}

func TestRuleSetActiveBundleTemplatesSortsByPriorityDescending(t *testing.T) {
	rs := &rules.RuleSet{
		BundleTemplates: []rules.BundleTemplate{
			{ID: "low", Priority: 1},
			{ID: "high", Priority: 10},
			{ID: "mid", Priority: 5},
		},
	}
	out := rs.ActiveBundleTemplates()
	require.Len(t, out, 3)
	assert.Equal(t, []string{"high", "mid", "low"}, []string{out[0].ID, out[1].ID, out[2].ID})
}
