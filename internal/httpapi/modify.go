package httpapi

import (
	"github.com/shopspring/decimal"

	"iaros/retailing-engine/internal/catalog"
	"iaros/retailing-engine/internal/order"
)

// buildModifyRequest decodes the wire-level modifyOrder add[] entries into
// order.OrderItem values the OrderEngine appends in place (spec §4.6's
// "Modifications": zero-cost structurally, no re-ticketing). Added items
// keep the client-supplied unit_price; the OrderEngine does not re-price
// them.
func buildModifyRequest(req modifyOrderRequest) (order.ModifyRequest, error) {
	items := make([]order.OrderItem, 0, len(req.Add))
	for _, a := range req.Add {
		price, err := decimal.NewFromString(a.UnitPrice)
		if err != nil {
			return order.ModifyRequest{}, err
		}
		items = append(items, order.OrderItem{
			ProductID:   a.ProductID,
			ProductType: catalog.ProductType(a.ProductType),
			UnitPrice:   price,
			Quantity:    a.Quantity,
		})
	}
	return order.ModifyRequest{AddItems: items, RefundItemIDs: req.RefundItems}, nil
}
