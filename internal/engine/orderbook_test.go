package engine

import (
	"testing"

	"exchange-simulator/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func exchOrderID(t *testing.T, resp models.ResponseEnvelope) string {
	t.Helper()
	or, ok := resp.(models.OrderResponse)
	require.True(t, ok, "expected OrderResponse, got %T", resp)
	require.NotNil(t, or.OrderParams)
	return or.OrderParams.ExchOrderID
}

// TestCreateOrderRequest_ImmediateCross verifies a single resting order and
// a fully crossing incoming order produce ack + two fill responses, both
// trading at the incoming order's limit price.
func TestCreateOrderRequest_ImmediateCross(t *testing.T) {
	book := NewOrderBook("TEST")

	book.CreateOrderRequest(models.SideSell, "m1", "c1", 10, price("101"))

	responses := book.CreateOrderRequest(models.SideBuy, "m2", "c2", 10, price("102"))

	require.Len(t, responses, 3)
	ack, ok := responses[0].(models.OrderResponse)
	require.True(t, ok)
	assert.True(t, ack.Status)
	assert.Equal(t, models.StatusAck, ack.OrderParams.Status)

	for _, resp := range responses[1:] {
		fill, ok := resp.(models.FillOrderResponse)
		require.True(t, ok)
		assert.True(t, fill.Status)
		assert.True(t, fill.Trade.LimitPrice.Equal(price("102")), "trade must execute at the aggressor's limit price")
		assert.Equal(t, models.FillTypeComplete, fill.Trade.FillType)
	}

	depth := book.GetMarketDepth()
	assert.Empty(t, depth, "fully crossed orders should leave nothing resting")
}

// TestCreateOrderRequest_PartialSweep matches spec scenario 2: a buy order
// large enough to walk two resting ask levels sweeps both in price-time
// priority order, each at the incoming order's limit price.
func TestCreateOrderRequest_PartialSweep(t *testing.T) {
	book := NewOrderBook("TEST")

	book.CreateOrderRequest(models.SideSell, "m1", "c1", 10, price("101"))
	book.CreateOrderRequest(models.SideSell, "m2", "c1", 5, price("102"))

	responses := book.CreateOrderRequest(models.SideBuy, "m3", "c2", 12, price("102"))

	// ack + (fill,fill) against the 101 level + (fill,fill) against 2 of the
	// 5 units at the 102 level = 5 responses.
	require.Len(t, responses, 5)

	var trades []models.Trade
	for _, resp := range responses[1:] {
		fill := resp.(models.FillOrderResponse)
		trades = append(trades, fill.Trade)
	}

	// Every trade price is the aggressor's limit price regardless of which
	// resting level it crossed.
	for _, trade := range trades {
		assert.True(t, trade.LimitPrice.Equal(price("102")))
	}

	depth := book.GetMarketDepth()
	require.Len(t, depth, 1)
	assert.Equal(t, "102", depth[0].Ask)
	assert.Equal(t, "3", depth[0].AskVolume)
}

// TestReviseOrderRequest_LosesPriority verifies revising an order's price
// moves it to the back of its new price level's FIFO queue, so an
// unrevised order at that price trades first.
func TestReviseOrderRequest_LosesPriority(t *testing.T) {
	book := NewOrderBook("TEST")

	first := book.CreateOrderRequest(models.SideSell, "m1", "c1", 5, price("100"))
	firstID := exchOrderID(t, first[0])

	second := book.CreateOrderRequest(models.SideSell, "m2", "c1", 5, price("101"))
	secondID := exchOrderID(t, second[0])

	revisedQty := int64(5)
	book.ReviseOrderRequest("m3", "c1", secondID, &revisedQty, ptrPrice("100"))

	responses := book.CreateOrderRequest(models.SideBuy, "m4", "c2", 5, price("100"))

	require.Len(t, responses, 3)
	fill := responses[2].(models.FillOrderResponse)
	assert.Equal(t, firstID, fill.OrderParams.ExchOrderID, "the order that didn't move should still trade first")
}

// TestReviseOrderRequest_RejectsBelowFilled covers spec scenario 5: an
// order partially filled cannot be revised to a quantity below what has
// already filled.
func TestReviseOrderRequest_RejectsBelowFilled(t *testing.T) {
	book := NewOrderBook("TEST")

	resting := book.CreateOrderRequest(models.SideSell, "m1", "c1", 10, price("100"))
	restingID := exchOrderID(t, resting[0])

	book.CreateOrderRequest(models.SideBuy, "m2", "c2", 4, price("100"))

	tooLow := int64(3)
	responses := book.ReviseOrderRequest("m3", "c1", restingID, &tooLow, nil)

	require.Len(t, responses, 1)
	revise := responses[0].(models.OrderResponse)
	assert.False(t, revise.Status)
}

// TestCancelOrderRequest_FilledOrderRejected covers spec scenario 6: cancelling an
// order that has already completely filled fails with a clear rejection
// rather than silently succeeding.
func TestCancelOrderRequest_FilledOrderRejected(t *testing.T) {
	book := NewOrderBook("TEST")

	resting := book.CreateOrderRequest(models.SideSell, "m1", "c1", 5, price("100"))
	restingID := exchOrderID(t, resting[0])

	book.CreateOrderRequest(models.SideBuy, "m2", "c2", 5, price("100"))

	responses := book.CancelOrderRequest("m3", "c1", restingID)
	require.Len(t, responses, 1)
	cancel := responses[0].(models.OrderResponse)
	assert.False(t, cancel.Status)
}

func ptrPrice(s string) *decimal.Decimal {
	p := price(s)
	return &p
}
