package order_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iaros/retailing-engine/internal/order"
)

func TestOrderItemBeforeCreatePopulatesDefaults(t *testing.T) {
	oi := &order.OrderItem{}
	require.NoError(t, oi.BeforeCreate(nil))
	assert.NotEmpty(t, oi.ItemID)
	assert.Equal(t, order.ItemActive, oi.Status)
}

func TestOrderItemBeforeCreateKeepsExplicitStatus(t *testing.T) {
	oi := &order.OrderItem{ItemID: "preset", Status: order.ItemCancelled}
	require.NoError(t, oi.BeforeCreate(nil))
	assert.Equal(t, "preset", oi.ItemID)
	assert.Equal(t, order.ItemCancelled, oi.Status)
}

func TestOrderItemMetadataRoundTrip(t *testing.T) {
	oi := &order.OrderItem{}
	in := map[string]interface{}{"seat": "14C", "flight_id": "FL1"}
	require.NoError(t, oi.SetMetadata(in))
	out, err := oi.GetMetadata()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestOrderItemGetMetadataEmptyReturnsEmptyMap(t *testing.T) {
	oi := &order.OrderItem{}
	out, err := oi.GetMetadata()
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestOrderItemTotal(t *testing.T) {
	oi := &order.OrderItem{UnitPrice: decimal.NewFromInt(25), Quantity: 3}
	assert.True(t, decimal.NewFromInt(75).Equal(oi.Total()))
}

func TestTravelerBeforeCreatePopulatesID(t *testing.T) {
	tr := &order.Traveler{}
	require.NoError(t, tr.BeforeCreate(nil))
	assert.NotEmpty(t, tr.TravelerID)
}

func TestFulfillmentBeforeCreatePopulatesIDAndBarcode(t *testing.T) {
	f := &order.Fulfillment{}
	require.NoError(t, f.BeforeCreate(nil))
	assert.NotEmpty(t, f.FulfillmentID)
	assert.NotEmpty(t, f.Barcode)
}

func TestLedgerEntryBeforeCreatePopulatesID(t *testing.T) {
	l := &order.LedgerEntry{}
	require.NoError(t, l.BeforeCreate(nil))
	assert.NotEmpty(t, l.EntryID)
}

func TestOrderBeforeCreatePopulatesDefaults(t *testing.T) {
	o := &order.Order{}
	require.NoError(t, o.BeforeCreate(nil))
	assert.NotEmpty(t, o.OrderID)
	assert.Equal(t, order.StatusProposed, o.Status)
}

func TestOrderRecomputeTotalSumsOnlyActiveItems(t *testing.T) {
	o := &order.Order{
		Items: []order.OrderItem{
			{UnitPrice: decimal.NewFromInt(100), Quantity: 1, Status: order.ItemActive},
			{UnitPrice: decimal.NewFromInt(50), Quantity: 1, Status: order.ItemRefunded},
			{UnitPrice: decimal.NewFromInt(30), Quantity: 2, Status: order.ItemCancelled},
		},
	}
	o.RecomputeTotal()
	assert.True(t, decimal.NewFromInt(100).Equal(o.Total))
}

func TestOrderIsExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	o := &order.Order{ExpiresAt: &past}
	assert.True(t, o.IsExpired(now))

	o.ExpiresAt = &future
	assert.False(t, o.IsExpired(now))

	o.ExpiresAt = nil
	assert.False(t, o.IsExpired(now))
}
