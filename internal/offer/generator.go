package offer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"iaros/retailing-engine/internal/catalog"
	"iaros/retailing-engine/internal/errs"
	"iaros/retailing-engine/internal/inventory"
	"iaros/retailing-engine/internal/metrics"
	"iaros/retailing-engine/internal/pricing"
	"iaros/retailing-engine/internal/rules"
)

// FlightSearch is the collaborator interface over candidate flight
// discovery (spec §4.4 step 1, and spec §6's "flight search" external
// collaborator — payment gateway internals and the rest of that surface
// are out of scope, but this interface boundary is not).
type FlightSearch interface {
	Search(ctx context.Context, origin, destination string, departure time.Time) ([]catalog.Flight, error)
}

// AncillaryCatalog resolves ancillary products offered alongside a flight.
type AncillaryCatalog interface {
	AncillariesFor(ctx context.Context, airlineID string, flightID string) ([]catalog.Product, error)
}

// EventPublisher mirrors hold.EventPublisher so Generator can emit
// offer.generated without importing the events transport.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, aggregateID string, payload interface{}) error
}

// RequestParams is the inbound shopping request (spec §4.4 step 1).
type RequestParams struct {
	RequestID   string
	AirlineID   string
	PrincipalID string
	Origin      string
	Destination string
	Departure   time.Time
	Passengers  int
	Cabin       string
}

// Generator is the OfferGenerator (spec §4.4): synthesizes ranked bundle
// offers from candidate flights, bundle templates, and the pricing engine.
type Generator struct {
	flights    FlightSearch
	ancillary  AncillaryCatalog
	index      *inventory.Index
	pricer     *pricing.Engine
	ruleStore  *rules.Store
	store      *Store
	events     EventPublisher
	log        *zap.Logger
}

func NewGenerator(flights FlightSearch, ancillary AncillaryCatalog, index *inventory.Index, pricer *pricing.Engine, ruleStore *rules.Store, store *Store, events EventPublisher, log *zap.Logger) *Generator {
	return &Generator{
		flights:   flights,
		ancillary: ancillary,
		index:     index,
		pricer:    pricer,
		ruleStore: ruleStore,
		store:     store,
		events:    events,
		log:       log,
	}
}

// Generate implements spec §4.4's seven-step algorithm: candidate flights,
// bundle construction against RuleSet templates, pricing, scoring,
// sort+truncate, persistence.
func (g *Generator) Generate(ctx context.Context, req RequestParams) (*OfferSet, error) {
	if req.Passengers <= 0 {
		return nil, errs.Validation("passengers must be positive")
	}

	// Step 1: candidate flight query.
	flights, err := g.flights.Search(ctx, req.Origin, req.Destination, req.Departure)
	if err != nil {
		return nil, errs.Transient("searching candidate flights", err)
	}
	if len(flights) == 0 {
		return &OfferSet{RequestID: req.RequestID}, nil
	}

	ruleSet, err := g.ruleStore.Snapshot(req.AirlineID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	templates := ruleSet.ActiveBundleTemplates()
	if len(templates) == 0 {
		templates = []rules.BundleTemplate{defaultFlightOnlyTemplate(req.AirlineID)}
	}

	var candidates []Offer
	templatePriority := map[string]int{} // offer_id -> source template priority, for the tie-break
	for i := range flights {
		flight := flights[i]

		available, aerr := g.index.Available(ctx, flight.FlightID)
		if aerr != nil {
			g.log.Warn("skipping flight with unavailable index read", zap.String("flight_id", flight.FlightID), zap.Error(aerr))
			continue
		}
		if available < req.Passengers {
			continue
		}
		utilization := utilizationOf(flight.EffectiveCapacity(), available)

		// Step 2-3: build one offer per matching bundle template.
		for _, tmpl := range templates {
			offer, berr := g.buildOffer(ctx, req, &flight, tmpl, ruleSet, utilization, now)
			if berr != nil {
				g.log.Warn("skipping bundle template", zap.String("template_id", tmpl.ID), zap.Error(berr))
				continue
			}
			candidates = append(candidates, *offer)
			templatePriority[offer.OfferID] = tmpl.Priority
		}
	}

	// Step 5: score.
	genRule := ruleSet.GenerationRule
	scoreCandidates(candidates, genRule.ConvertWeight, genRule.MarginWeight)

	// Step 6: sort desc by score, tie-break price asc / template priority
	// desc / insertion order, then truncate to max_offers.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].RankScore != candidates[j].RankScore {
			return candidates[i].RankScore > candidates[j].RankScore
		}
		if !candidates[i].Total.Equal(candidates[j].Total) {
			return candidates[i].Total.LessThan(candidates[j].Total)
		}
		return templatePriority[candidates[i].OfferID] > templatePriority[candidates[j].OfferID]
	})
	maxOffers := genRule.MaxOffers
	if maxOffers <= 0 {
		maxOffers = 5
	}
	if len(candidates) > maxOffers {
		candidates = candidates[:maxOffers]
	}

	// Step 7: persist with expiry.
	expiryMinutes := genRule.ExpiryMinutes
	if expiryMinutes <= 0 {
		expiryMinutes = 15
	}
	expiresAt := now.Add(time.Duration(expiryMinutes) * time.Minute)
	for i := range candidates {
		candidates[i].ExpiresAt = expiresAt
		if err := g.store.Put(ctx, &candidates[i]); err != nil {
			return nil, err
		}
		if pubErr := g.events.Publish(ctx, "offer.generated", candidates[i].OfferID, &candidates[i]); pubErr != nil {
			g.log.Warn("publishing offer.generated failed", zap.String("offer_id", candidates[i].OfferID), zap.Error(pubErr))
		}
	}
	metrics.OffersGenerated.WithLabelValues(req.AirlineID).Add(float64(len(candidates)))

	return &OfferSet{RequestID: req.RequestID, Offers: candidates}, nil
}

func (g *Generator) buildOffer(ctx context.Context, req RequestParams, flight *catalog.Flight, tmpl rules.BundleTemplate, ruleSet *rules.RuleSet, utilization float64, now time.Time) (*Offer, error) {
	daysOut := flight.DaysUntilDeparture(now)

	flightProduct := &catalog.Product{
		ProductID: flight.FlightID,
		AirlineID: flight.AirlineID,
		Type:      catalog.ProductFlight,
		BasePrice: flight.BasePrice,
	}
	flightPrice, err := g.pricer.Price(flightProduct, pricing.Context{
		Timestamp:          now,
		DaysUntilDeparture: daysOut,
		Utilization:        utilization,
		IsBundled:          false,
		RuleSet:            ruleSet,
	})
	if err != nil {
		return nil, err
	}

	items := []Item{{
		ProductID:   flight.FlightID,
		ProductType: catalog.ProductFlight,
		FlightID:    flight.FlightID,
		UnitAmount:  flightPrice,
		Quantity:    req.Passengers,
		Required:    true,
	}}
	total := flightPrice.Mul(decimal.NewFromInt(int64(req.Passengers)))

	ancillaries, err := g.ancillary.AncillariesFor(ctx, req.AirlineID, flight.FlightID)
	if err != nil {
		return nil, errs.Transient("loading ancillary catalog", err)
	}

	for _, slot := range tmpl.Slots {
		if slot.ProductType == catalog.ProductFlight {
			continue // the flight slot is handled above
		}
		product := findProductByType(ancillaries, slot.ProductType)
		if product == nil {
			if slot.Required {
				return nil, fmt.Errorf("required slot %s has no matching product", slot.ProductType)
			}
			continue
		}
		// Ancillaries price off a neutral demand/time context, not the
		// flight's own utilization curve: spec §4.4 step 4 prices bundled
		// ancillaries at list plus the template discount, leaving the
		// flight's steps 4-6 multipliers to the flight item alone.
		price, perr := g.pricer.Price(product, pricing.Context{
			Timestamp:          now,
			DaysUntilDeparture: ancillaryNeutralDaysUntilDeparture,
			Utilization:        0,
			IsBundled:          true,
			BundleDiscountPct:  tmpl.DiscountPercentage,
			RuleSet:            ruleSet,
		})
		if perr != nil {
			return nil, perr
		}
		items = append(items, Item{
			ProductID:   product.ProductID,
			ProductType: product.Type,
			UnitAmount:  price,
			Quantity:    req.Passengers,
			Required:    slot.Required,
		})
		total = total.Add(price.Mul(decimal.NewFromInt(int64(req.Passengers))))
	}

	return &Offer{
		OfferID:     uuid.New().String(),
		AirlineID:   req.AirlineID,
		PrincipalID: req.PrincipalID,
		SearchContext: SearchContext{
			Origin:      req.Origin,
			Destination: req.Destination,
			Departure:   req.Departure,
			Passengers:  req.Passengers,
			Cabin:       req.Cabin,
		},
		Items:     items,
		Total:     total,
		Status:    StatusActive,
		CreatedAt: now,
	}, nil
}

// ancillaryNeutralDaysUntilDeparture keeps pricing.Engine's step 5 time
// multiplier at 1.0 for ancillaries (neither the <=7-day surcharge nor
// the >=60-day discount), so only the template discount and any matching
// pricing rules affect the ancillary's price.
const ancillaryNeutralDaysUntilDeparture = 30

func findProductByType(products []catalog.Product, t catalog.ProductType) *catalog.Product {
	for i := range products {
		if products[i].Type == t {
			return &products[i]
		}
	}
	return nil
}

func utilizationOf(effectiveCapacity, available int) float64 {
	if effectiveCapacity <= 0 {
		return -1 // undefined, per pricing.Engine's capacity-undefined short-circuit
	}
	booked := effectiveCapacity - available
	if booked < 0 {
		booked = 0
	}
	return float64(booked) / float64(effectiveCapacity)
}

// scoreCandidates applies spec §4.4 step 5's scoring formula:
// score = w_c*P_convert + w_m*margin_norm, with P_convert = max(0.1, 1/(1+item_count))
// and margin_norm min-max normalized across the candidate set.
func scoreCandidates(offers []Offer, convertWeight, marginWeight float64) {
	if len(offers) == 0 {
		return
	}
	margins := make([]float64, len(offers))
	minMargin, maxMargin := math.Inf(1), math.Inf(-1)
	for i := range offers {
		m, _ := offers[i].Total.Float64()
		margins[i] = m
		if m < minMargin {
			minMargin = m
		}
		if m > maxMargin {
			maxMargin = m
		}
	}
	spread := maxMargin - minMargin

	for i := range offers {
		itemCount := len(offers[i].Items)
		convert := 1.0 / (1.0 + float64(itemCount))
		if convert < 0.1 {
			convert = 0.1
		}
		marginNorm := 0.5
		if spread > 0 {
			marginNorm = (margins[i] - minMargin) / spread
		}
		offers[i].RankScore = convertWeight*convert + marginWeight*marginNorm
	}
}

func defaultFlightOnlyTemplate(airlineID string) rules.BundleTemplate {
	return rules.BundleTemplate{
		ID:        "default:flight-only:" + airlineID,
		AirlineID: airlineID,
		Name:      "Flight Only",
		Priority:  0,
		Slots:     []rules.BundleSlot{{ProductType: catalog.ProductFlight, Required: true}},
		IsActive:  true,
	}
}
