// Package expiry implements the ExpiryWorker (spec §4.7): a periodic,
// cron-scheduled sweep that expires stale PROPOSED orders and ACTIVE
// offers, releasing their held inventory. Scheduled with robfig/cron/v3
// rather than a hand-rolled time.Ticker loop.
package expiry

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"iaros/retailing-engine/internal/errs"
	"iaros/retailing-engine/internal/hold"
	"iaros/retailing-engine/internal/metrics"
	"iaros/retailing-engine/internal/offer"
	"iaros/retailing-engine/internal/order"
)

// EventPublisher mirrors the other components' minimal EventBus surface.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, aggregateID string, payload interface{}) error
}

// Worker is the ExpiryWorker (spec §4.7).
type Worker struct {
	orders *order.Store
	offers *offer.Store
	holds  *hold.Manager
	events EventPublisher
	batch  int
	log    *zap.Logger

	cron *cron.Cron
}

func NewWorker(orders *order.Store, offers *offer.Store, holds *hold.Manager, events EventPublisher, batch int, log *zap.Logger) *Worker {
	return &Worker{orders: orders, offers: offers, holds: holds, events: events, batch: batch, log: log}
}

// Start schedules the sweep at the given interval (spec §4.7: interval
// ≤30s) using a seconds-resolution cron spec.
func (w *Worker) Start(interval time.Duration) {
	w.cron = cron.New(cron.WithSeconds())
	spec := "@every " + interval.String()
	_, err := w.cron.AddFunc(spec, func() {
		if err := w.Sweep(context.Background()); err != nil {
			w.log.Error("expiry sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		w.log.Error("scheduling expiry sweep failed", zap.Error(err))
		return
	}
	w.cron.Start()
}

func (w *Worker) Stop() {
	if w.cron != nil {
		ctx := w.cron.Stop()
		<-ctx.Done()
	}
}

// Sweep performs one pass of spec §4.7's steps 1-4: select PROPOSED
// orders past expiry, optimistically transition each to EXPIRED (skip on
// conflict), release inventory, emit order.expired; then mark stale
// ACTIVE offer-audit rows EXPIRED and emit offer.expired for each. It never touches
// PAYMENT_PENDING orders — ExpirableBatch's query enforces this by
// construction, which is the load-bearing invariant against the payment
// race.
func (w *Worker) Sweep(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.ExpirySweepDuration.Observe(time.Since(start).Seconds()) }()

	now := time.Now().UTC()
	batch, err := w.orders.ExpirableBatch(ctx, now, w.batch)
	if err != nil {
		return err
	}

	for i := range batch {
		ord := &batch[i]
		expired, err := w.orders.CompareAndSwap(ctx, ord.OrderID, func(o *order.Order) error {
			if o.Status != order.StatusProposed {
				return errs.InvalidTransition("order is no longer PROPOSED")
			}
			if !o.IsExpired(now) {
				return errs.InvalidTransition("order has not expired")
			}
			o.Status = order.StatusExpired
			return nil
		})
		if err != nil {
			if errs.Is(err, errs.KindTransient) {
				w.log.Info("skipping order with version conflict during expiry sweep", zap.String("order_id", ord.OrderID))
				continue
			}
			w.log.Warn("expiry transition rejected", zap.String("order_id", ord.OrderID), zap.Error(err))
			continue
		}

		if rerr := w.holds.Release(ctx, expired); rerr != nil {
			w.log.Error("inventory release failed during expiry sweep", zap.String("order_id", ord.OrderID), zap.Error(rerr))
			continue
		}
		if perr := w.events.Publish(ctx, "order.expired", expired.OrderID, expired); perr != nil {
			w.log.Warn("publishing order.expired failed", zap.String("order_id", ord.OrderID), zap.Error(perr))
		}
		metrics.ExpirySweepExpired.Inc()
	}

	expiredOfferIDs, err := w.offers.ExpireStaleAudit(ctx, now, w.batch)
	if err != nil {
		w.log.Warn("offer audit expiry sweep failed", zap.Error(err))
	} else if len(expiredOfferIDs) > 0 {
		w.log.Info("expired stale offer audit rows", zap.Int("count", len(expiredOfferIDs)))
		for _, offerID := range expiredOfferIDs {
			if perr := w.events.Publish(ctx, "offer.expired", offerID, offerID); perr != nil {
				w.log.Warn("publishing offer.expired failed", zap.String("offer_id", offerID), zap.Error(perr))
			}
		}
	}

	return nil
}
