package httpapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iaros/retailing-engine/internal/order"
)

func TestCurrentSeatFindsMatchingFlightItem(t *testing.T) {
	item := order.OrderItem{}
	require.NoError(t, item.SetMetadata(map[string]interface{}{"flight_id": "FL1", "seat": "12A"}))
	ord := &order.Order{Items: []order.OrderItem{item}}

	assert.Equal(t, "12A", currentSeat(ord, "FL1"))
}

func TestCurrentSeatNoMatchReturnsEmpty(t *testing.T) {
	item := order.OrderItem{}
	require.NoError(t, item.SetMetadata(map[string]interface{}{"flight_id": "FL1", "seat": "12A"}))
	ord := &order.Order{Items: []order.OrderItem{item}}

	assert.Equal(t, "", currentSeat(ord, "FL2"))
}

func TestCurrentSeatIgnoresItemsWithUndecodableMetadata(t *testing.T) {
	ord := &order.Order{Items: []order.OrderItem{{Metadata: "not-json"}}}
	assert.Equal(t, "", currentSeat(ord, "FL1"))
}
