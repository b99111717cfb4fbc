package pricing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"iaros/retailing-engine/internal/catalog"
	"iaros/retailing-engine/internal/pricing"
	"iaros/retailing-engine/internal/rules"
)

func emptyRuleSet(airlineID string) *rules.RuleSet {
	return &rules.RuleSet{
		AirlineID:      airlineID,
		GenerationRule: &rules.GenerationRule{AirlineID: airlineID, MaxOffers: 5, ExpiryMinutes: 15},
	}
}

func baseProduct() *catalog.Product {
	return &catalog.Product{
		ProductID: "p1",
		AirlineID: "AA",
		Type:      catalog.ProductFlight,
		BasePrice: decimal.NewFromInt(100),
	}
}

func TestPriceUndefinedCapacityReturnsBasePrice(t *testing.T) {
	eng := pricing.NewEngine(zap.NewNop())
	price, err := eng.Price(baseProduct(), pricing.Context{
		Timestamp:   time.Now(),
		Utilization: -1, // capacity undefined sentinel
		RuleSet:     emptyRuleSet("AA"),
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(price))
}

func TestPriceAppliesDemandAndTimeMultipliers(t *testing.T) {
	eng := pricing.NewEngine(zap.NewNop())
	// Zero utilization, far out departure: demand mult = clamp(1+0,0.5,3)=1,
	// time mult (daysUntilDeparture >= 60) = 0.8.
	price, err := eng.Price(baseProduct(), pricing.Context{
		Timestamp:          time.Now(),
		DaysUntilDeparture: 90,
		Utilization:        0,
		RuleSet:            emptyRuleSet("AA"),
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(80).Equal(price))
}

func TestPriceLastMinuteSurcharge(t *testing.T) {
	eng := pricing.NewEngine(zap.NewNop())
	// daysUntilDeparture<=1 -> time mult 1.5, utilization 0 -> demand mult 1.
	price, err := eng.Price(baseProduct(), pricing.Context{
		Timestamp:          time.Now(),
		DaysUntilDeparture: 1,
		Utilization:        0,
		RuleSet:            emptyRuleSet("AA"),
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(150).Equal(price))
}

func TestPriceHighUtilizationClampsDemandMultiplier(t *testing.T) {
	eng := pricing.NewEngine(zap.NewNop())
	// utilization=1 -> demand mult = clamp(1+1*2, 0.5, 3) = 3; mid-horizon
	// time mult = 1.0.
	price, err := eng.Price(baseProduct(), pricing.Context{
		Timestamp:          time.Now(),
		DaysUntilDeparture: 30,
		Utilization:        1,
		RuleSet:            emptyRuleSet("AA"),
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(300).Equal(price))
}

func TestPriceBundleDiscount(t *testing.T) {
	eng := pricing.NewEngine(zap.NewNop())
	price, err := eng.Price(baseProduct(), pricing.Context{
		Timestamp:          time.Now(),
		DaysUntilDeparture: 30,
		Utilization:        0,
		IsBundled:          true,
		BundleDiscountPct:  0.1,
		RuleSet:            emptyRuleSet("AA"),
	})
	require.NoError(t, err)
	// demand=1, time=1, template discount 10% -> 90.
	assert.True(t, decimal.NewFromInt(90).Equal(price))
}

func TestPriceBundleWithZeroDiscountPctLeavesPriceUnchanged(t *testing.T) {
	eng := pricing.NewEngine(zap.NewNop())
	price, err := eng.Price(baseProduct(), pricing.Context{
		Timestamp:          time.Now(),
		DaysUntilDeparture: 30,
		Utilization:        0,
		IsBundled:          true,
		RuleSet:            emptyRuleSet("AA"),
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(price))
}

func TestPriceAppliesPricingRuleThenBounds(t *testing.T) {
	eng := pricing.NewEngine(zap.NewNop())
	rs := emptyRuleSet("AA")
	rs.PricingRules = []rules.PricingRule{
		{
			ID:          "r1",
			AirlineID:   "AA",
			ProductType: catalog.ProductFlight,
			Priority:    1,
			Adjustment:  rules.Adjustment{Kind: rules.AdjustmentMultiplier, Value: 5},
			MinMultiplier: 0.5,
			MaxMultiplier: 1.2,
			IsActive:    true,
		},
	}
	price, err := eng.Price(baseProduct(), pricing.Context{
		Timestamp:          time.Now(),
		DaysUntilDeparture: 30,
		Utilization:        0,
		RuleSet:            rs,
	})
	require.NoError(t, err)
	// base*5=500, demand=1,time=1 -> 500, clamped to max 120.
	assert.True(t, decimal.NewFromInt(120).Equal(price))
}

func TestPriceRoundsHalfToEven(t *testing.T) {
	eng := pricing.NewEngine(zap.NewNop())
	product := baseProduct()
	product.BasePrice = decimal.NewFromFloat(100.5)
	price, err := eng.Price(product, pricing.Context{
		Timestamp:          time.Now(),
		DaysUntilDeparture: 30,
		Utilization:        0,
		RuleSet:            emptyRuleSet("AA"),
	})
	require.NoError(t, err)
	// Exact halfway case: banker's rounding picks the even neighbor (100).
	assert.True(t, price.Equal(decimal.NewFromInt(100)))
}
