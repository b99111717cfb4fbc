// Package catalog holds the immutable-after-publication product and
// flight catalog entries the rest of the engine prices and books against
// (spec §3). The engine only ever reads a snapshot; admin re-publication
// is a collaborator concern.
package catalog

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ProductType enumerates the ancillary/flight product taxonomy.
type ProductType string

const (
	ProductFlight       ProductType = "FLIGHT"
	ProductSeat         ProductType = "SEAT"
	ProductMeal         ProductType = "MEAL"
	ProductBag          ProductType = "BAG"
	ProductLounge       ProductType = "LOUNGE"
	ProductFastTrack    ProductType = "FAST_TRACK"
	ProductInsurance    ProductType = "INSURANCE"
	ProductCarbonOffset ProductType = "CARBON_OFFSET"
)

// Product is a catalog entry owned by an airline (spec §3). It is
// immutable after creation except via admin re-publication, which the
// core never performs — it only reads snapshots handed to it.
type Product struct {
	ProductID string          `json:"product_id" gorm:"primaryKey;size:36"`
	AirlineID string          `json:"airline_id" gorm:"index;size:36"`
	Type      ProductType     `json:"type" gorm:"size:20"`
	Code      string          `json:"code" gorm:"size:50"`
	BasePrice decimal.Decimal `json:"base_price" gorm:"type:decimal(14,2)"`
	Metadata  string          `json:"metadata" gorm:"type:text"`
	CreatedAt time.Time       `json:"created_at"`
}

func (Product) TableName() string { return "products" }

// GetMetadata decodes the opaque typed metadata record.
func (p *Product) GetMetadata() (map[string]interface{}, error) {
	if p.Metadata == "" {
		return map[string]interface{}{}, nil
	}
	var m map[string]interface{}
	err := json.Unmarshal([]byte(p.Metadata), &m)
	return m, err
}

// Flight is a specific scheduled instance (spec §3). Capacity is the
// authoritative total; InventoryIndex derives availability from it.
type Flight struct {
	FlightID            string          `json:"flight_id" gorm:"primaryKey;size:36"`
	AirlineID           string          `json:"airline_id" gorm:"index;size:36"`
	Origin              string          `json:"origin" gorm:"size:3"`
	Destination         string          `json:"destination" gorm:"size:3"`
	ScheduledDeparture   time.Time       `json:"scheduled_departure"`
	ScheduledArrival     time.Time       `json:"scheduled_arrival"`
	Capacity             int             `json:"capacity"`
	BasePrice            decimal.Decimal `json:"base_price" gorm:"type:decimal(14,2)"`
	OverbookingPct       float64         `json:"overbooking_percentage"`
}

func (Flight) TableName() string { return "flights" }

// DaysUntilDeparture reports the whole-day horizon used by PricingEngine's
// time-decay multiplier (spec §4.2 step 5).
func (f *Flight) DaysUntilDeparture(now time.Time) int {
	d := f.ScheduledDeparture.Sub(now)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// EffectiveCapacity inflates capacity by the overbooking percentage at
// materialization time, per spec §9's resolution of the otherwise-unused
// overbooking_percentage rule field.
func (f *Flight) EffectiveCapacity() int {
	if f.OverbookingPct <= 0 {
		return f.Capacity
	}
	extra := int(float64(f.Capacity) * f.OverbookingPct)
	return f.Capacity + extra
}
