package order

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"iaros/retailing-engine/internal/errs"
)

var errStaleVersion = errors.New("stale order version")

// Store is the durable OrderEngine repository: the relational store is
// the sole durable writer for order state (spec §5), transactionally
// consistent the way order_service/src/repository/order_repository.go's
// Create rolls every side table back together.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewStore(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log}
}

// Create persists a new order and its side tables in one transaction.
func (s *Store) Create(ctx context.Context, o *Order) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(o).Error; err != nil {
			return err
		}
		o.Contact.OrderID = o.OrderID
		if err := tx.Create(&o.Contact).Error; err != nil {
			return err
		}
		for i := range o.Travelers {
			o.Travelers[i].OrderID = o.OrderID
			if err := tx.Create(&o.Travelers[i]).Error; err != nil {
				return err
			}
		}
		for i := range o.Items {
			o.Items[i].OrderID = o.OrderID
			if err := tx.Create(&o.Items[i]).Error; err != nil {
				return err
			}
		}
		return tx.Create(&ChangeEntry{
			OrderID:     o.OrderID,
			Action:      "CREATED",
			Description: "order proposed from offer acceptance",
			Timestamp:   o.CreatedAt,
		}).Error
	})
	if err != nil {
		return errs.Transient("creating order", err)
	}
	return nil
}

// Get loads a full order graph by id.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	err := s.db.WithContext(ctx).
		Preload("Contact").
		Preload("Travelers").
		Preload("Items").
		Preload("Fulfillment").
		Where("order_id = ?", orderID).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("order not found: " + orderID)
	}
	if err != nil {
		return nil, errs.Transient("loading order", err)
	}
	return &o, nil
}

// CompareAndSwap applies mutate to the order under its current row
// version (spec §4.6: "guarded by (current_status, precondition) checked
// under a per-order optimistic lock"). Returns errs.Transient on version
// conflict so callers can retry, per spec §7's Transient/StaleVersion policy.
func (s *Store) CompareAndSwap(ctx context.Context, orderID string, mutate func(o *Order) error) (*Order, error) {
	var result *Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o Order
		if err := tx.Preload("Items").Preload("Travelers").Preload("Contact").Preload("Fulfillment").
			Where("order_id = ?", orderID).First(&o).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("order not found: " + orderID)
			}
			return err
		}

		priorVersion := o.Version
		if err := mutate(&o); err != nil {
			return err
		}

		res := tx.Model(&Order{}).
			Where("order_id = ? AND version = ?", orderID, priorVersion).
			Updates(map[string]interface{}{
				"status":            o.Status,
				"total":             o.Total,
				"payment_reference": o.PaymentReference,
				"expires_at":        o.ExpiresAt,
				"version":           priorVersion + 1,
				"updated_at":        time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.Transient("optimistic lock conflict on order "+orderID, errStaleVersion)
		}

		for i := range o.Items {
			if err := tx.Model(&OrderItem{}).
				Where("item_id = ?", o.Items[i].ItemID).
				Updates(map[string]interface{}{
					"status":     o.Items[i].Status,
					"metadata":   o.Items[i].Metadata,
					"updated_at": time.Now().UTC(),
				}).Error; err != nil {
				return err
			}
		}
		for i := range o.Items {
			if o.Items[i].ID == 0 {
				o.Items[i].OrderID = o.OrderID
				if err := tx.Create(&o.Items[i]).Error; err != nil {
					return err
				}
			}
		}
		for i := range o.Fulfillment {
			if o.Fulfillment[i].ID == 0 {
				o.Fulfillment[i].OrderID = o.OrderID
				if err := tx.Create(&o.Fulfillment[i]).Error; err != nil {
					return err
				}
			}
		}
		o.Version = priorVersion + 1
		result = &o
		return nil
	})
	if err != nil {
		if ae, ok := err.(*errs.Error); ok {
			return nil, ae
		}
		return nil, errs.Transient("updating order "+orderID, err)
	}
	return result, nil
}

// AppendLedger writes an append-only ledger entry.
func (s *Store) AppendLedger(ctx context.Context, entry *LedgerEntry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return errs.Transient("appending ledger entry", err)
	}
	return nil
}

// RecordChange appends an audit trail entry (order_service's AuditEntry pattern).
func (s *Store) RecordChange(ctx context.Context, orderID, action, description string) error {
	return s.db.WithContext(ctx).Create(&ChangeEntry{
		OrderID:     orderID,
		Action:      action,
		Description: description,
		Timestamp:   time.Now().UTC(),
	}).Error
}

// ExpirableBatch selects PROPOSED orders past their expiry, bounded to
// limit (spec §4.7 step 1). It never selects PAYMENT_PENDING orders —
// the load-bearing invariant against the payment race (spec §4.7).
func (s *Store) ExpirableBatch(ctx context.Context, now time.Time, limit int) ([]Order, error) {
	var orders []Order
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", StatusProposed, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, errs.Transient("selecting expirable orders", err)
	}
	return orders, nil
}
