package offer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"iaros/retailing-engine/internal/errs"
)

const (
	offerKeyPrefix       = "offer:"
	offerAcceptLockPrefix = "offer:accept-lock:"
)

func offerKey(offerID string) string            { return offerKeyPrefix + offerID }
func offerAcceptLockKey(offerID string) string { return offerAcceptLockPrefix + offerID }

// Store is the Offer's residence: the cache is authoritative (the TTL is
// the offer's expiry), with an optional relational mirror written
// best-effort for audit beyond the cache's lifetime (spec §3).
type Store struct {
	rdb *redis.Client
	db  *gorm.DB
	log *zap.Logger
}

func NewStore(rdb *redis.Client, db *gorm.DB, log *zap.Logger) *Store {
	return &Store{rdb: rdb, db: db, log: log}
}

// Put writes the offer to the cache with a TTL derived from its expiry,
// and mirrors an audit row best-effort.
func (s *Store) Put(ctx context.Context, o *Offer) error {
	ttl := time.Until(o.ExpiresAt)
	if ttl <= 0 {
		return errs.Validation("offer expiry must be in the future")
	}

	payload, err := json.Marshal(o)
	if err != nil {
		return errs.Internal("marshaling offer", err)
	}
	if err := s.rdb.Set(ctx, offerKey(o.OfferID), payload, ttl).Err(); err != nil {
		return errs.Transient("caching offer", err)
	}

	if s.db != nil {
		record := AuditRecord{
			OfferID:     o.OfferID,
			AirlineID:   o.AirlineID,
			PrincipalID: o.PrincipalID,
			TotalAmount: o.Total,
			Status:      o.Status,
			CreatedAt:   o.CreatedAt,
			ExpiresAt:   o.ExpiresAt,
		}
		if err := s.db.Save(&record).Error; err != nil {
			s.log.Warn("offer audit mirror failed", zap.String("offer_id", o.OfferID), zap.Error(err))
		}
	}
	return nil
}

// Get loads an offer by id. A cache miss is treated as expired, since the
// cache TTL is the offer's lifetime (spec §3: "primary residence is the
// cache").
func (s *Store) Get(ctx context.Context, offerID string) (*Offer, error) {
	payload, err := s.rdb.Get(ctx, offerKey(offerID)).Bytes()
	if err == redis.Nil {
		return nil, errs.Expired("offer expired or not found")
	}
	if err != nil {
		return nil, errs.Transient("reading offer", err)
	}
	var o Offer
	if err := json.Unmarshal(payload, &o); err != nil {
		return nil, errs.Internal("unmarshaling offer", err)
	}
	return &o, nil
}

// ExpireStaleAudit marks ACTIVE audit rows past expiry as EXPIRED (spec
// §4.7 step 4) and returns the offer_ids touched, so the caller can emit
// offer.expired once per offer. This is informational only — the cache
// TTL has already evicted the authoritative offer by the time this
// runs — so it only touches the optional relational mirror, and is
// skipped entirely when no mirror is configured.
func (s *Store) ExpireStaleAudit(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if s.db == nil {
		return nil, nil
	}
	var stale []AuditRecord
	if err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", StatusActive, now).
		Limit(limit).
		Find(&stale).Error; err != nil {
		return nil, errs.Transient("selecting stale offer audit rows", err)
	}
	if len(stale) == 0 {
		return nil, nil
	}

	ids := make([]string, len(stale))
	for i, rec := range stale {
		ids[i] = rec.OfferID
	}
	if err := s.db.WithContext(ctx).Model(&AuditRecord{}).
		Where("offer_id IN ?", ids).
		Update("status", StatusExpired).Error; err != nil {
		return nil, errs.Transient("expiring stale offer audit rows", err)
	}
	return ids, nil
}

// TryAcquireAcceptLock atomically claims the single-shot acceptOffer gate
// for offerID (spec §4.5 stage 2 step 5, invariants I5/P2: "at most one
// acceptOffer succeeds per offer_id"). The lock is a separate SETNX key
// rather than a field on the cached offer blob, in the same
// compare-and-set-via-dedicated-key style as inventory.Index's
// HoldSeat/ReleaseSeat. Returns errs.KindOfferAlreadyAccepted on
// contention.
func (s *Store) TryAcquireAcceptLock(ctx context.Context, offerID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	ok, err := s.rdb.SetNX(ctx, offerAcceptLockKey(offerID), "1", ttl).Result()
	if err != nil {
		return errs.Transient("acquiring offer accept lock", err)
	}
	if !ok {
		return errs.OfferAlreadyAccepted("offer " + offerID + " already accepted")
	}
	return nil
}

// ReleaseAcceptLock undoes a claimed accept lock when the rest of the
// accept flow fails after acquiring it, so a retried acceptOffer against
// the still-ACTIVE offer isn't falsely refused.
func (s *Store) ReleaseAcceptLock(ctx context.Context, offerID string) error {
	if err := s.rdb.Del(ctx, offerAcceptLockKey(offerID)).Err(); err != nil {
		return errs.Transient("releasing offer accept lock", err)
	}
	return nil
}

// Save rewrites the offer in place, preserving its remaining TTL.
func (s *Store) Save(ctx context.Context, o *Offer) error {
	ttl := time.Until(o.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second // allow a terminal-status write to land just before eviction
	}
	payload, err := json.Marshal(o)
	if err != nil {
		return errs.Internal("marshaling offer", err)
	}
	if err := s.rdb.Set(ctx, offerKey(o.OfferID), payload, ttl).Err(); err != nil {
		return errs.Transient("saving offer", err)
	}
	if s.db != nil {
		s.db.Model(&AuditRecord{}).Where("offer_id = ?", o.OfferID).Update("status", o.Status)
	}
	return nil
}
