// Package offer implements the Offer data model and the OfferGenerator
// component (spec §3, §4.4): transient, ranked bundle quotes synthesized
// against the rule store, inventory index, and pricing engine.
package offer

import (
	"time"

	"github.com/shopspring/decimal"

	"iaros/retailing-engine/internal/catalog"
)

// Status is the Offer lifecycle (spec §3): terminal on accept/expire.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusAccepted  Status = "ACCEPTED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// SearchContext captures the shopping request an offer was generated for.
type SearchContext struct {
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Departure   time.Time `json:"departure"`
	Return      *time.Time `json:"return,omitempty"`
	Passengers  int       `json:"passengers"`
	Cabin       string    `json:"cabin,omitempty"`
}

// Item is a priced product reference within an offer.
type Item struct {
	ProductID   string              `json:"product_id"`
	ProductType catalog.ProductType `json:"product_type"`
	FlightID    string              `json:"flight_id,omitempty"`
	UnitAmount  decimal.Decimal     `json:"unit_amount"`
	Quantity    int                 `json:"quantity"`
	Required    bool                `json:"required"`
}

// Offer is the transient quote described in spec §3. Its primary
// residence is the cache with a 15-minute TTL; OfferStore optionally
// mirrors it to the relational store for audit.
type Offer struct {
	OfferID       string        `json:"offer_id"`
	AirlineID     string        `json:"airline_id"`
	PrincipalID   string        `json:"principal_id"`
	SearchContext SearchContext `json:"search_context"`
	Items         []Item        `json:"items"`
	Total         decimal.Decimal `json:"total"`
	Status        Status        `json:"status"`
	ExpiresAt     time.Time     `json:"expires_at"`
	RankScore     float64       `json:"rank_score"`
	CreatedAt     time.Time     `json:"created_at"`
}

// IsExpired reports whether the offer's TTL has elapsed as of now.
func (o *Offer) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt) || now.Equal(o.ExpiresAt)
}

// FlightItems returns the offer's flight-type items, which carry the
// inventory load for hold acquisition (spec §4.5 stage 2).
func (o *Offer) FlightItems() []Item {
	var out []Item
	for _, it := range o.Items {
		if it.ProductType == catalog.ProductFlight {
			out = append(out, it)
		}
	}
	return out
}

// OfferSet is the ranked output of the OfferGenerator (spec §4.4).
type OfferSet struct {
	RequestID string
	Offers    []Offer
}

// AuditRecord is the optional durable mirror of an offer, for audit
// trails beyond the cache's TTL (spec §3: "optional mirror to store").
type AuditRecord struct {
	OfferID     string    `json:"offer_id" gorm:"primaryKey;size:36"`
	AirlineID   string    `json:"airline_id" gorm:"index;size:36"`
	PrincipalID string    `json:"principal_id" gorm:"index;size:36"`
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:decimal(14,2)"`
	Status      Status    `json:"status" gorm:"size:20"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (AuditRecord) TableName() string { return "offer_audit" }
