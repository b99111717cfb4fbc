package rules

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"iaros/retailing-engine/internal/errs"
)

// Store is the RuleStore (spec §4.3): a read-through cache over the
// persistent admin tables, backed by patrickmn/go-cache the way
// api_gateway's dependency set suggests — an in-process, TTL-evicting
// cache is the natural fit for "write-rare, read-heavy, RCU-style" data
// (spec §9), cheaper than round-tripping Redis for every snapshot() call.
type Store struct {
	db    *gorm.DB
	cache *gocache.Cache
	ttl   time.Duration
	log   *zap.Logger
}

func NewStore(db *gorm.DB, ttl time.Duration, log *zap.Logger) *Store {
	return &Store{
		db:    db,
		cache: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
		log:   log,
	}
}

func cacheKey(airlineID string) string { return "ruleset:" + airlineID }

// Snapshot returns a consistent, immutable RuleSet for airlineID,
// refreshing from the database when the cached entry has expired or been
// explicitly invalidated (spec §4.3).
func (s *Store) Snapshot(airlineID string) (*RuleSet, error) {
	if cached, found := s.cache.Get(cacheKey(airlineID)); found {
		return cached.(*RuleSet), nil
	}

	rs, err := s.load(airlineID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(cacheKey(airlineID), rs, s.ttl)
	return rs, nil
}

// Invalidate evicts the cached snapshot immediately, for admin-write
// invalidation (spec §4.3's "or on explicit invalidation from admin writes").
func (s *Store) Invalidate(airlineID string) {
	s.cache.Delete(cacheKey(airlineID))
}

func (s *Store) load(airlineID string) (*RuleSet, error) {
	now := time.Now().UTC()

	var pricingRules []PricingRule
	if err := s.db.Where("airline_id = ? AND is_active = ?", airlineID, true).
		Find(&pricingRules).Error; err != nil {
		return nil, errs.Transient("loading pricing rules", err)
	}
	for i := range pricingRules {
		if err := pricingRules[i].DecodeConditions(); err != nil {
			return nil, errs.Internal("decoding pricing rule conditions", err)
		}
	}
	pricingRules = filterValid(pricingRules, now)

	var templates []BundleTemplate
	if err := s.db.Where("airline_id = ? AND is_active = ?", airlineID, true).
		Find(&templates).Error; err != nil {
		return nil, errs.Transient("loading bundle templates", err)
	}
	for i := range templates {
		if err := templates[i].DecodeSlots(); err != nil {
			return nil, errs.Internal("decoding bundle template slots", err)
		}
	}
	templates = filterValidTemplates(templates, now)

	var invRule InventoryRule
	var invRulePtr *InventoryRule
	if err := s.db.Where("airline_id = ? AND is_active = ?", airlineID, true).
		First(&invRule).Error; err == nil {
		invRulePtr = &invRule
	} else if err != gorm.ErrRecordNotFound {
		return nil, errs.Transient("loading inventory rule", err)
	}

	var genRule GenerationRule
	var genRulePtr *GenerationRule
	if err := s.db.Where("airline_id = ? AND is_active = ?", airlineID, true).
		First(&genRule).Error; err == nil {
		genRulePtr = &genRule
	} else if err != gorm.ErrRecordNotFound {
		return nil, errs.Transient("loading generation rule", err)
	}
	if genRulePtr == nil {
		genRulePtr = defaultGenerationRule(airlineID)
	}

	return &RuleSet{
		AirlineID:       airlineID,
		PricingRules:    pricingRules,
		BundleTemplates: templates,
		InventoryRule:   invRulePtr,
		GenerationRule:  genRulePtr,
		SnapshotAt:      now,
	}, nil
}

func filterValid(rs []PricingRule, now time.Time) []PricingRule {
	out := rs[:0]
	for _, r := range rs {
		if isValidNow(r.IsActive, r.ValidFrom, r.ValidUntil, now) {
			out = append(out, r)
		}
	}
	return out
}

func filterValidTemplates(ts []BundleTemplate, now time.Time) []BundleTemplate {
	out := ts[:0]
	for _, t := range ts {
		if isValidNow(t.IsActive, t.ValidFrom, t.ValidUntil, now) {
			out = append(out, t)
		}
	}
	return out
}

// defaultGenerationRule applies spec §4.4's documented defaults (0.6/0.4
// weights, max_offers=5, expiry_minutes=15) when the airline has not
// authored its own generation rule.
func defaultGenerationRule(airlineID string) *GenerationRule {
	return &GenerationRule{
		ID:            fmt.Sprintf("default:%s", airlineID),
		AirlineID:     airlineID,
		ConvertWeight: 0.6,
		MarginWeight:  0.4,
		MaxOffers:     5,
		ExpiryMinutes: 15,
		IsActive:      true,
	}
}
