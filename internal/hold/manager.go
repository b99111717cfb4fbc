// Package hold implements the two-stage HoldManager (spec §4.5): stage 1
// (the offer quote) is established implicitly by OfferGenerator writing a
// TTL'd cache entry; this package implements stage 2, the durable-with-TTL
// order inventory hold, plus customization and release. Lock-in (the
// PROPOSED -> PAYMENT_PENDING transition) is order.Engine.StartPayment.
package hold

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"iaros/retailing-engine/internal/catalog"
	"iaros/retailing-engine/internal/errs"
	"iaros/retailing-engine/internal/inventory"
	"iaros/retailing-engine/internal/metrics"
	"iaros/retailing-engine/internal/offer"
	"iaros/retailing-engine/internal/order"
)

// EventPublisher mirrors order.EventPublisher so HoldManager can emit
// offer.accepted / order.created without importing the events transport.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, aggregateID string, payload interface{}) error
}

// Manager is the HoldManager (spec §4.5).
type Manager struct {
	index      *inventory.Index
	offers     *offer.Store
	orders     *order.Store
	events     EventPublisher
	holdTTL    time.Duration
	log        *zap.Logger
}

func NewManager(index *inventory.Index, offers *offer.Store, orders *order.Store, events EventPublisher, holdTTL time.Duration, log *zap.Logger) *Manager {
	return &Manager{index: index, offers: offers, orders: orders, events: events, holdTTL: holdTTL, log: log}
}

// AcceptRequest carries the caller-supplied detail acceptOffer needs
// beyond the offer itself (spec §6's acceptOffer wire shape).
type AcceptRequest struct {
	PrincipalID string
	Contact     order.Contact
	Travelers   []order.Traveler
	SeatSelections map[string]string // flight_id -> seat
}

// Accept implements spec §4.5 stage 2: load+validate the offer, reserve
// inventory and seats all-or-nothing with compensation on partial
// failure, persist the order PROPOSED, mark the offer ACCEPTED
// single-shot (I5).
func (m *Manager) Accept(ctx context.Context, offerID string, req AcceptRequest) (*order.Order, error) {
	now := time.Now().UTC()

	o, err := m.offers.Get(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if o.Status != offer.StatusActive || o.IsExpired(now) {
		return nil, errs.Expired("offer is no longer active")
	}

	// Single-shot gate (spec §4.5 stage 2 step 5, I5/P2): claim the offer
	// before acquiring any inventory, so a concurrent Accept on the same
	// offer_id fails fast with OfferAlreadyAccepted instead of racing
	// through reservation and both landing a durable order.
	if err := m.offers.TryAcquireAcceptLock(ctx, offerID, time.Until(o.ExpiresAt)); err != nil {
		return nil, err
	}
	acceptLockHeld := true
	defer func() {
		if acceptLockHeld {
			if rerr := m.offers.ReleaseAcceptLock(ctx, offerID); rerr != nil {
				m.log.Error("releasing offer accept lock failed", zap.String("offer_id", offerID), zap.Error(rerr))
			}
		}
	}()

	type acquired struct {
		flightID string
		qty      int
		ticket   inventory.ReservationTicket
	}
	var reservations []acquired
	var seatHolds []string // flight_id:seat, for compensation

	orderID := uuid.New().String()

	rollback := func() {
		for _, a := range reservations {
			if rerr := m.index.Release(ctx, a.flightID, a.qty, a.ticket); rerr != nil {
				m.log.Error("compensating release failed", zap.String("flight_id", a.flightID), zap.Error(rerr))
			}
		}
		for _, fs := range seatHolds {
			flightID, seat := splitFlightSeat(fs)
			if rerr := m.index.ReleaseSeat(ctx, flightID, seat, orderID); rerr != nil {
				m.log.Error("compensating seat release failed", zap.String("key", fs), zap.Error(rerr))
			}
		}
	}

	for _, item := range o.FlightItems() {
		ticket, rerr := m.index.TryReserve(ctx, item.FlightID, item.Quantity)
		if rerr != nil {
			metrics.HoldAcquisitionFailures.WithLabelValues("inventory").Inc()
			rollback()
			return nil, rerr
		}
		reservations = append(reservations, acquired{flightID: item.FlightID, qty: item.Quantity, ticket: ticket})
	}

	for flightID, seat := range req.SeatSelections {
		if _, herr := m.index.HoldSeat(ctx, flightID, seat, orderID, m.holdTTL); herr != nil {
			metrics.HoldAcquisitionFailures.WithLabelValues("seat").Inc()
			rollback()
			return nil, herr
		}
		seatHolds = append(seatHolds, flightID+":"+seat)
	}

	items := make([]order.OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		oi := order.OrderItem{
			ProductID:   it.ProductID,
			ProductType: it.ProductType,
			UnitPrice:   it.UnitAmount,
			Quantity:    it.Quantity,
			Status:      order.ItemActive,
		}
		meta := map[string]interface{}{"flight_id": it.FlightID}
		if it.ProductType == catalog.ProductFlight {
			for _, a := range reservations {
				if a.flightID == it.FlightID {
					meta["reservation_ticket"] = string(a.ticket)
				}
			}
		}
		if seat, ok := req.SeatSelections[it.FlightID]; ok {
			meta["seat"] = seat
		}
		if err := oi.SetMetadata(meta); err != nil {
			rollback()
			return nil, errs.Internal("encoding order item metadata", err)
		}
		items = append(items, oi)
	}

	expiresAt := now.Add(m.holdTTL)
	newOrder := &order.Order{
		OrderID:       orderID,
		PrincipalID:   req.PrincipalID,
		AirlineID:     o.AirlineID,
		OriginOfferID: o.OfferID,
		Status:        order.StatusProposed,
		Total:         o.Total,
		ExpiresAt:     &expiresAt,
		CreatedAt:     now,
		Items:         items,
		Travelers:     req.Travelers,
		Contact:       req.Contact,
	}

	if err := m.orders.Create(ctx, newOrder); err != nil {
		rollback()
		return nil, err
	}
	acceptLockHeld = false // order is durable; the accept is final, don't release the gate

	o.Status = offer.StatusAccepted
	if err := m.offers.Save(ctx, o); err != nil {
		// The order is already durable and the accept lock is claimed
		// permanently; this mirror write only keeps the cached offer's
		// status field consistent for subsequent Get calls, so a failure
		// here is logged, not rolled back.
		m.log.Warn("marking offer accepted failed", zap.String("offer_id", offerID), zap.Error(err))
	}

	if pubErr := m.events.Publish(ctx, "order.created", newOrder.OrderID, newOrder); pubErr != nil {
		m.log.Warn("publishing order.created failed", zap.Error(pubErr))
	}
	if pubErr := m.events.Publish(ctx, "offer.accepted", offerID, o); pubErr != nil {
		m.log.Warn("publishing offer.accepted failed", zap.Error(pubErr))
	}

	return newOrder, nil
}

// Customize implements spec §4.5's "Customization": release the old seat
// hold and acquire the new one, holding it for the order hold TTL from
// this interaction (re-holding the same seat only extends its TTL, since
// HoldSeat is owner-idempotent), then record the new seat in the flight
// item's metadata so later releases find it. The order's own expires_at
// is not changed.
func (m *Manager) Customize(ctx context.Context, ord *order.Order, flightID, oldSeat, newSeat string) error {
	if oldSeat != "" && oldSeat != newSeat {
		if err := m.index.ReleaseSeat(ctx, flightID, oldSeat, ord.OrderID); err != nil {
			return err
		}
	}
	if newSeat != "" {
		if _, err := m.index.HoldSeat(ctx, flightID, newSeat, ord.OrderID, m.holdTTL); err != nil {
			return err
		}
	}
	_, err := m.orders.CompareAndSwap(ctx, ord.OrderID, func(o *order.Order) error {
		for i := range o.Items {
			meta, merr := o.Items[i].GetMetadata()
			if merr != nil {
				continue
			}
			if fid, _ := meta["flight_id"].(string); fid == flightID {
				meta["seat"] = newSeat
				if err := o.Items[i].SetMetadata(meta); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return err
}

// Release implements spec §4.5's "Release": on EXPIRED or CANCELLED, for
// every order item, compute the original reservation tickets from item
// metadata and issue compensating release / release_seat calls.
// Idempotent under repeated invocation (P4).
func (m *Manager) Release(ctx context.Context, ord *order.Order) error {
	for _, it := range ord.Items {
		if it.Status != order.ItemActive {
			continue
		}
		meta, err := it.GetMetadata()
		if err != nil {
			m.log.Warn("item metadata decode failed during release", zap.String("item_id", it.ItemID), zap.Error(err))
			continue
		}
		flightID, _ := meta["flight_id"].(string)
		if ticketStr, ok := meta["reservation_ticket"].(string); ok && ticketStr != "" && flightID != "" {
			if err := m.index.Release(ctx, flightID, it.Quantity, inventory.ReservationTicket(ticketStr)); err != nil {
				return err
			}
		}
		if seat, ok := meta["seat"].(string); ok && seat != "" && flightID != "" {
			if err := m.index.ReleaseSeat(ctx, flightID, seat, ord.OrderID); err != nil {
				return err
			}
		}
	}
	return nil
}

func splitFlightSeat(key string) (flightID, seat string) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
