package pricing

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"iaros/retailing-engine/internal/catalog"
	"iaros/retailing-engine/internal/errs"
	"iaros/retailing-engine/internal/metrics"
	"iaros/retailing-engine/internal/rules"
)

// Context mirrors spec §4.2's PricingContext: everything the algorithm
// needs besides the product itself.
type Context struct {
	Timestamp          time.Time
	DaysUntilDeparture  int
	Utilization        float64 // in [0,1]; negative means undefined (capacity == 0), and Price returns the base price unadjusted
	IsBundled          bool
	BundleDiscountPct  float64 // applied in step 7 when IsBundled; fraction, e.g. 0.1 = 10% off
	UserSegment        string
	RuleSet            *rules.RuleSet
}

// Engine is the PricingEngine (spec §4.2): a pure, deterministic function
// of (Product, Context) -> integer minor units. No I/O, no suspension
// points — runs inline on the request path (spec §5).
type Engine struct {
	log *zap.Logger
}

func NewEngine(log *zap.Logger) *Engine {
	return &Engine{log: log}
}

// Price computes the price for one unit of product under ctx, following
// the load-bearing evaluation order in spec §4.2 steps 1-9.
func (e *Engine) Price(product *catalog.Product, ctx Context) (decimal.Decimal, error) {
	start := time.Now()
	defer func() { metrics.PricingDuration.Observe(time.Since(start).Seconds()) }()

	// Step 1: start from base_price, in higher-precision decimal.
	price := product.BasePrice

	// Edge case: capacity=0 / undefined utilization -> base price only.
	capacityUndefined := ctx.Utilization < 0
	if capacityUndefined {
		return product.BasePrice.RoundBank(0), nil
	}

	// Step 2-3: applicable rules, priority ascending, conditions matched.
	applicable := ctx.RuleSet.PricingRulesFor(product.AirlineID, product.Type)
	for _, rule := range applicable {
		if !rule.Matches(ctx.Utilization, float64(ctx.DaysUntilDeparture)) {
			continue
		}
		adjusted, err := rule.Apply(price, ctx.Utilization, float64(ctx.DaysUntilDeparture))
		if err != nil {
			return decimal.Zero, errs.Wrap(errs.KindInternal, "applying pricing rule "+rule.ID, err)
		}
		price = adjusted
	}

	// Step 4: demand multiplier, clamp(1 + utilization^2 * 2, 0.5, 3.0).
	demandMult := clamp(1+ctx.Utilization*ctx.Utilization*2, 0.5, 3.0)

	// Step 5: time multiplier, piecewise on days-until-departure.
	timeMult := timeMultiplier(ctx.DaysUntilDeparture)

	// Step 6.
	price = price.Mul(decimal.NewFromFloat(demandMult)).Mul(decimal.NewFromFloat(timeMult))

	// Step 7: bundle discount on ancillaries (spec §4.4 step 4's
	// template-authored discount_percentage, not a fixed rate).
	if ctx.IsBundled && ctx.BundleDiscountPct > 0 {
		price = price.Mul(decimal.NewFromFloat(1 - ctx.BundleDiscountPct))
	}

	// Step 8: clamp to rule-declared bounds, if any apply to this product type.
	if bound := ctx.RuleSet.BoundsFor(product.AirlineID, product.Type); bound != nil {
		min := product.BasePrice.Mul(decimal.NewFromFloat(bound.MinMultiplier))
		max := product.BasePrice.Mul(decimal.NewFromFloat(bound.MaxMultiplier))
		if price.LessThan(min) {
			price = min
		}
		if price.GreaterThan(max) {
			price = max
		}
	}

	// Step 9: round half-to-even to minor units.
	return price.RoundBank(0), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// timeMultiplier implements spec §4.2 step 5's piecewise table.
func timeMultiplier(daysUntilDeparture int) float64 {
	switch {
	case daysUntilDeparture <= 1:
		return 1.5
	case daysUntilDeparture <= 7:
		return 1.2
	case daysUntilDeparture >= 60:
		return 0.8
	default:
		return 1.0
	}
}
