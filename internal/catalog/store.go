package catalog

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"iaros/retailing-engine/internal/errs"
)

// Store is the read path over the admin-published catalog tables. It
// implements inventory.CapacitySource so the InventoryIndex can
// materialize a flight's availability counter from its authoritative
// capacity on first read, without importing the inventory package here.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewStore(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log}
}

// GetFlight loads one scheduled flight instance by id.
func (s *Store) GetFlight(ctx context.Context, flightID string) (*Flight, error) {
	var f Flight
	if err := s.db.WithContext(ctx).Where("flight_id = ?", flightID).First(&f).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFound("flight " + flightID)
		}
		return nil, errs.Transient("loading flight", err)
	}
	return &f, nil
}

// GetProduct loads one catalog product by id.
func (s *Store) GetProduct(ctx context.Context, productID string) (*Product, error) {
	var p Product
	if err := s.db.WithContext(ctx).Where("product_id = ?", productID).First(&p).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFound("product " + productID)
		}
		return nil, errs.Transient("loading product", err)
	}
	return &p, nil
}
