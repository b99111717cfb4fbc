// Package rules implements the RuleStore (spec §4.3): a read-through
// cache over admin-authored pricing rules, bundle templates, inventory
// rules, and offer-generation rules. The rule shape here is grounded in
// pricing_service/src/RulesEngine.go's AdvancedRulesEngine (priority,
// Conditions, Actions, ValidFrom/ValidTo, Active) generalized to the
// three adjustment kinds spec §4.2 names.
package rules

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"iaros/retailing-engine/internal/catalog"
	"iaros/retailing-engine/internal/formula"
)

// AdjustmentKind is one of the three adjustment forms spec §4.2 step 3 names.
type AdjustmentKind string

const (
	AdjustmentMultiplier AdjustmentKind = "MULTIPLIER"
	AdjustmentFixed      AdjustmentKind = "FIXED"
	AdjustmentFormula    AdjustmentKind = "FORMULA"
)

// Condition gates whether a PricingRule applies to a given request,
// matching the (utilization, days_until_departure) variables available
// to FORMULA adjustments.
type Condition struct {
	Field    string  `json:"field" gorm:"size:50"`    // "utilization" or "days_until_departure"
	Operator string  `json:"operator" gorm:"size:10"` // gt, gte, lt, lte, eq
	Value    float64 `json:"value"`
}

func (c Condition) matches(utilization, daysUntilDeparture float64) bool {
	var actual float64
	switch c.Field {
	case "utilization":
		actual = utilization
	case "days_until_departure":
		actual = daysUntilDeparture
	default:
		return false
	}
	switch c.Operator {
	case "gt":
		return actual > c.Value
	case "gte":
		return actual >= c.Value
	case "lt":
		return actual < c.Value
	case "lte":
		return actual <= c.Value
	case "eq":
		return actual == c.Value
	default:
		return false
	}
}

// Adjustment is one rule action: MULTIPLIER(v), FIXED(v), or FORMULA(expr).
type Adjustment struct {
	Kind   AdjustmentKind `json:"kind" gorm:"size:20"`
	Value  float64        `json:"value"`
	Expr   string         `json:"expr" gorm:"type:text"`
}

// PricingRule is an admin-authored pricing adjustment, scoped to an
// airline + product type, applied in ascending priority order.
type PricingRule struct {
	ID          string        `json:"id" gorm:"primaryKey;size:36"`
	AirlineID   string        `json:"airline_id" gorm:"index;size:36"`
	ProductType catalog.ProductType `json:"product_type" gorm:"size:20"`
	Priority    int           `json:"priority"`
	ConditionsJSON string     `json:"-" gorm:"column:conditions_json;type:text"`
	Conditions  []Condition   `json:"conditions" gorm:"-"`
	Adjustment  Adjustment    `json:"adjustment" gorm:"embedded"`
	MinMultiplier float64     `json:"min_multiplier"`
	MaxMultiplier float64     `json:"max_multiplier"`
	IsActive    bool          `json:"is_active"`
	ValidFrom   time.Time     `json:"valid_from"`
	ValidUntil  time.Time     `json:"valid_until"`
}

func (PricingRule) TableName() string { return "pricing_rules" }

// DecodeConditions populates Conditions from the persisted
// ConditionsJSON column (same pattern as BundleTemplate.DecodeSlots).
func (r *PricingRule) DecodeConditions() error {
	if r.ConditionsJSON == "" {
		r.Conditions = nil
		return nil
	}
	return json.Unmarshal([]byte(r.ConditionsJSON), &r.Conditions)
}

// EncodeConditions serializes Conditions into ConditionsJSON ahead of a write.
func (r *PricingRule) EncodeConditions() error {
	raw, err := json.Marshal(r.Conditions)
	if err != nil {
		return err
	}
	r.ConditionsJSON = string(raw)
	return nil
}

// Matches reports whether every condition on the rule is satisfied.
func (r *PricingRule) Matches(utilization, daysUntilDeparture float64) bool {
	for _, c := range r.Conditions {
		if !c.matches(utilization, daysUntilDeparture) {
			return false
		}
	}
	return true
}

// Apply performs the rule's adjustment against price (spec §4.2 step 3).
func (r *PricingRule) Apply(price decimal.Decimal, utilization, daysUntilDeparture float64) (decimal.Decimal, error) {
	switch r.Adjustment.Kind {
	case AdjustmentMultiplier:
		if r.Adjustment.Value < 0 {
			return decimal.Zero, fmt.Errorf("invalid rule: negative multiplier")
		}
		return price.Mul(decimal.NewFromFloat(r.Adjustment.Value)), nil
	case AdjustmentFixed:
		return price.Add(decimal.NewFromFloat(r.Adjustment.Value)), nil
	case AdjustmentFormula:
		result, err := formula.EvalFormula(r.Adjustment.Expr, utilization, daysUntilDeparture)
		if err != nil {
			return decimal.Zero, err
		}
		if result < 0 {
			return decimal.Zero, fmt.Errorf("invalid rule: formula produced negative price")
		}
		return decimal.NewFromFloat(result), nil
	default:
		return decimal.Zero, fmt.Errorf("invalid rule: unknown adjustment kind %q", r.Adjustment.Kind)
	}
}

// Bounds constrains the post-multiplier price (spec §4.2 step 8).
type Bounds struct {
	MinMultiplier float64
	MaxMultiplier float64
}

// BundleSlot is one slot in a BundleTemplate: a required flight slot, or
// an optional ancillary product-type slot.
type BundleSlot struct {
	ProductType catalog.ProductType `json:"product_type" gorm:"size:20"`
	Required    bool                `json:"required"`
}

// BundleTemplate is an admin-authored recipe for composing offers (spec
// Glossary): required/optional product-type slots plus a discount applied
// to ancillaries.
type BundleTemplate struct {
	ID                 string       `json:"id" gorm:"primaryKey;size:36"`
	AirlineID          string       `json:"airline_id" gorm:"index;size:36"`
	Name               string       `json:"name" gorm:"size:100"`
	Priority           int          `json:"priority"`
	SlotsJSON          string       `json:"-" gorm:"column:slots_json;type:text"`
	Slots              []BundleSlot `json:"slots" gorm:"-"`
	DiscountPercentage float64      `json:"discount_percentage"`
	IsActive           bool         `json:"is_active"`
	ValidFrom          time.Time    `json:"valid_from"`
	ValidUntil         time.Time    `json:"valid_until"`
}

func (BundleTemplate) TableName() string { return "bundle_templates" }

// DecodeSlots populates Slots from the persisted SlotsJSON column, the
// same opaque-JSON-in-a-text-column pattern order.OrderItem uses for
// Metadata.
func (t *BundleTemplate) DecodeSlots() error {
	if t.SlotsJSON == "" {
		t.Slots = nil
		return nil
	}
	return json.Unmarshal([]byte(t.SlotsJSON), &t.Slots)
}

// EncodeSlots serializes Slots into SlotsJSON ahead of a write.
func (t *BundleTemplate) EncodeSlots() error {
	raw, err := json.Marshal(t.Slots)
	if err != nil {
		return err
	}
	t.SlotsJSON = string(raw)
	return nil
}

// InventoryRule carries an airline-level overbooking percentage, loaded
// into RuleSet.InventoryRule. Capacity inflation at materialization time
// reads catalog.Flight.OverbookingPct instead; nothing reads this value.
type InventoryRule struct {
	ID                 string  `json:"id" gorm:"primaryKey;size:36"`
	AirlineID          string  `json:"airline_id" gorm:"index;size:36"`
	OverbookingPercent float64 `json:"overbooking_percentage"`
	IsActive           bool    `json:"is_active"`
}

func (InventoryRule) TableName() string { return "inventory_rules" }

// GenerationRule carries the offer-generation scoring weights (spec §4.4
// step 5) and the max_offers / expiry_minutes knobs.
type GenerationRule struct {
	ID              string  `json:"id" gorm:"primaryKey;size:36"`
	AirlineID       string  `json:"airline_id" gorm:"index;size:36"`
	ConvertWeight   float64 `json:"convert_weight"`
	MarginWeight    float64 `json:"margin_weight"`
	MaxOffers       int     `json:"max_offers"`
	ExpiryMinutes   int     `json:"expiry_minutes"`
	IsActive        bool    `json:"is_active"`
}

func (GenerationRule) TableName() string { return "generation_rules" }
