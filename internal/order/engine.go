package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"iaros/retailing-engine/internal/errs"
	"iaros/retailing-engine/internal/metrics"
)

// PaymentAdapter is the external payment collaborator interface (spec §6:
// payment gateway internals are out of scope, but the boundary is not).
type PaymentAdapter interface {
	Charge(ctx context.Context, orderID, paymentToken string, amount decimal.Decimal) (reference string, err error)
}

// EventPublisher is the minimal surface OrderEngine needs from the
// EventBus (spec §4.8) to emit lifecycle events without importing its
// transport concerns.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, aggregateID string, payload interface{}) error
}

// Engine is the OrderEngine state machine (spec §4.6).
type Engine struct {
	store     *Store
	payments  PaymentAdapter
	events    EventPublisher
	holdTTL   time.Duration
	log       *zap.Logger
}

func NewEngine(store *Store, payments PaymentAdapter, events EventPublisher, holdTTL time.Duration, log *zap.Logger) *Engine {
	return &Engine{store: store, payments: payments, events: events, holdTTL: holdTTL, log: log}
}

// Get loads an order, enforcing principal ownership when principalID is non-empty.
func (e *Engine) Get(ctx context.Context, orderID, principalID string) (*Order, error) {
	o, err := e.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if principalID != "" && o.PrincipalID != principalID {
		return nil, errs.NotOwner("order does not belong to this principal")
	}
	return o, nil
}

// StartPayment implements PROPOSED -> PAYMENT_PENDING lock-in (spec §4.6,
// §4.5 "Lock-in"): atomically checks status=PROPOSED and time remaining,
// then freezes expires_at so the ExpiryWorker's status filter skips it.
func (e *Engine) StartPayment(ctx context.Context, orderID, principalID string) (*Order, error) {
	now := time.Now().UTC()
	o, err := e.store.CompareAndSwap(ctx, orderID, func(o *Order) error {
		if principalID != "" && o.PrincipalID != principalID {
			return errs.NotOwner("order does not belong to this principal")
		}
		if o.Status != StatusProposed {
			return errs.InvalidTransition("order is not PROPOSED")
		}
		if o.IsExpired(now) {
			return errs.Expired("order hold has expired")
		}
		o.Status = StatusPaymentPending
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.OrderTransitions.WithLabelValues(string(StatusPaymentPending)).Inc()
	if pubErr := e.events.Publish(ctx, "order.payment_pending", orderID, o); pubErr != nil {
		e.log.Warn("publishing order.payment_pending failed", zap.String("order_id", orderID), zap.Error(pubErr))
	}
	return o, nil
}

// ConfirmPayment implements PAYMENT_PENDING -> PAID (spec §4.6): calls the
// external PaymentAdapter, then on success persists payment_reference,
// nulls expires_at, generates fulfillment records, and appends a
// REVENUE_RECOGNIZED ledger entry per active item.
func (e *Engine) ConfirmPayment(ctx context.Context, orderID, principalID, paymentToken string) (*Order, error) {
	pending, err := e.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if principalID != "" && pending.PrincipalID != principalID {
		return nil, errs.NotOwner("order does not belong to this principal")
	}
	if pending.Status != StatusPaymentPending {
		return nil, errs.InvalidTransition("order is not PAYMENT_PENDING")
	}

	reference, chargeErr := e.payments.Charge(ctx, orderID, paymentToken, pending.Total)
	if chargeErr != nil {
		if pd, ok := chargeErr.(*errs.Error); ok && pd.Kind == errs.KindPaymentDeclined {
			return nil, pd
		}
		return nil, errs.PaymentDeclined(chargeErr.Error())
	}

	o, err := e.store.CompareAndSwap(ctx, orderID, func(o *Order) error {
		if o.Status != StatusPaymentPending {
			return errs.InvalidTransition("order is not PAYMENT_PENDING")
		}
		o.Status = StatusPaid
		o.PaymentReference = reference
		o.ExpiresAt = nil // I2: PAID or later has no expires_at
		for _, it := range o.Items {
			if it.Status != ItemActive {
				continue
			}
			o.Fulfillment = append(o.Fulfillment, Fulfillment{ItemID: it.ItemID, Type: FulfillmentBarcode})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range o.Fulfillment {
		if pubErr := e.events.Publish(ctx, "fulfillment.issued", o.Fulfillment[i].FulfillmentID, o.Fulfillment[i]); pubErr != nil {
			e.log.Warn("publishing fulfillment.issued failed", zap.String("order_id", orderID), zap.Error(pubErr))
		}
	}

	now := time.Now().UTC()
	for _, it := range o.Items {
		if it.Status != ItemActive {
			continue
		}
		if err := e.store.AppendLedger(ctx, &LedgerEntry{
			OrderID:   orderID,
			ItemID:    it.ItemID,
			Kind:      LedgerRevenueRecognized,
			Amount:    it.Total(),
			CreatedAt: now,
		}); err != nil {
			e.log.Warn("ledger append failed on payment confirmation", zap.String("order_id", orderID), zap.Error(err))
		}
	}
	metrics.OrderTransitions.WithLabelValues(string(StatusPaid)).Inc()
	if pubErr := e.events.Publish(ctx, "order.paid", orderID, o); pubErr != nil {
		e.log.Warn("publishing order.paid failed", zap.String("order_id", orderID), zap.Error(pubErr))
	}
	return o, nil
}

// DeclinePayment implements spec §4.6's "Decline payment": reverts to
// PROPOSED with the original expires_at if still within the hold window,
// else transitions the order to EXPIRED. The returned order's Status says
// which; releasing an EXPIRED order's inventory (hold.Manager.Release) is
// left to the caller, as on the ExpiryWorker path.
func (e *Engine) DeclinePayment(ctx context.Context, orderID string, originalExpiresAt time.Time) (*Order, error) {
	now := time.Now().UTC()
	windowElapsed := !now.Before(originalExpiresAt)
	o, err := e.store.CompareAndSwap(ctx, orderID, func(o *Order) error {
		if o.Status != StatusPaymentPending {
			return errs.InvalidTransition("order is not PAYMENT_PENDING")
		}
		if windowElapsed {
			o.Status = StatusExpired
			return nil
		}
		o.Status = StatusProposed
		expiresAt := originalExpiresAt
		o.ExpiresAt = &expiresAt
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.OrderTransitions.WithLabelValues(string(o.Status)).Inc()
	return o, nil
}

// Fulfill implements spec §4.6's "Fulfill": when every active item has
// been materially delivered, transition to FULFILLED. Consumption is
// gated by I4 via ConsumeFulfillment.
func (e *Engine) Fulfill(ctx context.Context, orderID string) (*Order, error) {
	o, err := e.store.CompareAndSwap(ctx, orderID, func(o *Order) error {
		if o.Status != StatusPaid {
			return errs.InvalidTransition("order is not PAID")
		}
		for _, it := range o.Items {
			if it.Status != ItemActive {
				continue
			}
			if !hasConsumedFulfillment(o.Fulfillment, it.ItemID) {
				return errs.InvalidTransition("not all items have been delivered")
			}
		}
		o.Status = StatusFulfilled
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.OrderTransitions.WithLabelValues(string(StatusFulfilled)).Inc()
	return o, nil
}

func hasConsumedFulfillment(fs []Fulfillment, itemID string) bool {
	for _, f := range fs {
		if f.ItemID == itemID && f.ConsumedAt != nil {
			return true
		}
	}
	return false
}

// ConsumeFulfillment marks one fulfillment record consumed (e.g. a
// barcode scan). Enforces I4: consumed count per item never exceeds
// item.quantity — ConfirmPayment and Modify create one fulfillment record
// per active item, and marking an already-consumed record again is
// rejected, so at most one consumption is counted per item.
func (e *Engine) ConsumeFulfillment(ctx context.Context, orderID, fulfillmentID string) (*Order, error) {
	now := time.Now().UTC()
	o, err := e.store.CompareAndSwap(ctx, orderID, func(o *Order) error {
		for i := range o.Fulfillment {
			if o.Fulfillment[i].FulfillmentID != fulfillmentID {
				continue
			}
			if o.Fulfillment[i].ConsumedAt != nil {
				return errs.InvalidTransition("fulfillment already consumed")
			}
			o.Fulfillment[i].ConsumedAt = &now
			if pubErr := e.events.Publish(ctx, "fulfillment.consumed", orderID, o.Fulfillment[i]); pubErr != nil {
				e.log.Warn("publishing fulfillment.consumed failed", zap.Error(pubErr))
			}
			return nil
		}
		return errs.NotFound("fulfillment not found: " + fulfillmentID)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Cancel implements the PROPOSED -> CANCELLED user-initiated transition
// (spec §4.6 diagram). Inventory release is the caller's (HoldManager's)
// responsibility, mirroring the EXPIRED path.
func (e *Engine) Cancel(ctx context.Context, orderID, principalID string) (*Order, error) {
	o, err := e.store.CompareAndSwap(ctx, orderID, func(o *Order) error {
		if principalID != "" && o.PrincipalID != principalID {
			return errs.NotOwner("order does not belong to this principal")
		}
		if o.Status != StatusProposed {
			return errs.InvalidTransition("only a PROPOSED order may be cancelled")
		}
		o.Status = StatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.OrderTransitions.WithLabelValues(string(StatusCancelled)).Inc()
	if pubErr := e.events.Publish(ctx, "order.cancelled", orderID, o); pubErr != nil {
		e.log.Warn("publishing order.cancelled failed", zap.Error(pubErr))
	}
	return o, nil
}

// ModifyRequest carries spec §4.6's "add a new item / refund an existing
// item" modification request.
type ModifyRequest struct {
	AddItems     []OrderItem
	RefundItemIDs []string
}

// Modify implements spec §4.6's "Modifications": allowed in PROPOSED, or
// PAID with policy. Structurally zero-cost — mutated in place, no
// re-ticketing concept. New items get fresh fulfillment on PAID orders;
// refunded items emit a REFUND ledger entry.
func (e *Engine) Modify(ctx context.Context, orderID, principalID string, req ModifyRequest) (*Order, error) {
	now := time.Now().UTC()
	var refunded []OrderItem
	var added []OrderItem
	o, err := e.store.CompareAndSwap(ctx, orderID, func(o *Order) error {
		if principalID != "" && o.PrincipalID != principalID {
			return errs.NotOwner("order does not belong to this principal")
		}
		if o.Status != StatusProposed && o.Status != StatusPaid {
			return errs.InvalidTransition("order may only be modified while PROPOSED or PAID")
		}

		refundSet := map[string]bool{}
		for _, id := range req.RefundItemIDs {
			refundSet[id] = true
		}
		for i := range o.Items {
			if refundSet[o.Items[i].ItemID] && o.Items[i].Status == ItemActive {
				o.Items[i].Status = ItemRefunded
				refunded = append(refunded, o.Items[i])
			}
		}

		for _, add := range req.AddItems {
			add.Status = ItemActive
			if add.ItemID == "" {
				add.ItemID = uuid.New().String()
			}
			o.Items = append(o.Items, add)
			added = append(added, add)
			if o.Status == StatusPaid {
				o.Fulfillment = append(o.Fulfillment, Fulfillment{ItemID: add.ItemID, Type: FulfillmentBarcode})
			}
		}

		o.RecomputeTotal()
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, it := range refunded {
		if lerr := e.store.AppendLedger(ctx, &LedgerEntry{
			OrderID:   orderID,
			ItemID:    it.ItemID,
			Kind:      LedgerRefund,
			Amount:    it.Total(),
			CreatedAt: now,
		}); lerr != nil {
			e.log.Warn("ledger append failed on refund", zap.String("order_id", orderID), zap.Error(lerr))
		}
		if pubErr := e.events.Publish(ctx, "order.item_refunded", orderID, it); pubErr != nil {
			e.log.Warn("publishing order.item_refunded failed", zap.Error(pubErr))
		}
	}
	for _, it := range added {
		if lerr := e.store.AppendLedger(ctx, &LedgerEntry{
			OrderID:   orderID,
			ItemID:    it.ItemID,
			Kind:      LedgerRevenueRecognized,
			Amount:    it.Total(),
			CreatedAt: now,
		}); lerr != nil {
			e.log.Warn("ledger append failed on modify add", zap.String("order_id", orderID), zap.Error(lerr))
		}
	}
	return o, nil
}
