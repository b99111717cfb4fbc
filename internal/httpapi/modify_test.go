package httpapi

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iaros/retailing-engine/internal/catalog"
)

func TestBuildModifyRequestDecodesAddItems(t *testing.T) {
	req := modifyOrderRequest{RefundItems: []string{"item-1"}}
	req.Add = append(req.Add, struct {
		ProductID   string `json:"product_id" binding:"required"`
		ProductType string `json:"product_type" binding:"required"`
		UnitPrice   string `json:"unit_price" binding:"required"`
		Quantity    int    `json:"quantity" binding:"required"`
	}{ProductID: "p1", ProductType: "BAG", UnitPrice: "49.99", Quantity: 2})

	out, err := buildModifyRequest(req)
	require.NoError(t, err)
	require.Len(t, out.AddItems, 1)
	assert.Equal(t, "p1", out.AddItems[0].ProductID)
	assert.Equal(t, catalog.ProductBag, out.AddItems[0].ProductType)
	assert.Equal(t, 2, out.AddItems[0].Quantity)
	assert.True(t, out.AddItems[0].UnitPrice.Equal(decimal.RequireFromString("49.99")))
	assert.Equal(t, []string{"item-1"}, out.RefundItemIDs)
}

func TestBuildModifyRequestRejectsInvalidUnitPrice(t *testing.T) {
	req := modifyOrderRequest{}
	req.Add = append(req.Add, struct {
		ProductID   string `json:"product_id" binding:"required"`
		ProductType string `json:"product_type" binding:"required"`
		UnitPrice   string `json:"unit_price" binding:"required"`
		Quantity    int    `json:"quantity" binding:"required"`
	}{ProductID: "p1", ProductType: "BAG", UnitPrice: "not-a-number", Quantity: 1})

	_, err := buildModifyRequest(req)
	assert.Error(t, err)
}
