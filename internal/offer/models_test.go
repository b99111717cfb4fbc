package offer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"iaros/retailing-engine/internal/catalog"
	"iaros/retailing-engine/internal/offer"
)

func TestOfferIsExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	o := offer.Offer{ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, o.IsExpired(now))

	o.ExpiresAt = now
	assert.True(t, o.IsExpired(now))

	o.ExpiresAt = now.Add(time.Minute)
	assert.False(t, o.IsExpired(now))
}

func TestOfferFlightItemsFiltersByProductType(t *testing.T) {
	o := offer.Offer{
		Items: []offer.Item{
			{ProductID: "f1", ProductType: catalog.ProductFlight},
			{ProductID: "b1", ProductType: catalog.ProductBag},
			{ProductID: "f2", ProductType: catalog.ProductFlight},
		},
	}
	out := o.FlightItems()
	assert.Len(t, out, 2)
	assert.Equal(t, "f1", out[0].ProductID)
	assert.Equal(t, "f2", out[1].ProductID)
}

func TestOfferFlightItemsNoneReturnsNil(t *testing.T) {
	o := offer.Offer{Items: []offer.Item{{ProductID: "b1", ProductType: catalog.ProductBag}}}
	assert.Nil(t, o.FlightItems())
}
