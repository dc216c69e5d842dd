package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderParams_JSONRoundTrip(t *testing.T) {
	params := OrderParams{
		LimitPrice:     decimal.NewFromFloat(101.25),
		Quantity:       100,
		Side:           SideBuy,
		Symbol:         "TEST",
		FilledQuantity: 40,
		ExchOrderID:    "order-1",
		Status:         StatusPartiallyFilled,
	}

	data, err := json.Marshal(params)
	require.NoError(t, err)

	var decoded OrderParams
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, params, decoded)
}

func TestTrade_JSONRoundTrip(t *testing.T) {
	trade := Trade{
		Quantity:    10,
		LimitPrice:  decimal.NewFromFloat(99.5),
		Symbol:      "TEST",
		ExchOrderID: "order-1",
		TradeID:     "trade-1",
		FillType:    FillTypePartial,
		Side:        SideSell,
	}

	data, err := json.Marshal(trade)
	require.NoError(t, err)

	var decoded Trade
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, trade, decoded)
}

func TestDecodeResponseEnvelope_OrderResponse(t *testing.T) {
	params := OrderParams{ExchOrderID: "order-1", Status: StatusAck}
	original := OrderResponse{
		ClientMsgID: "msg-1",
		ClientID:    "client-1",
		OrderParams: &params,
		Status:      true,
		StatusMsg:   "ok",
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name":"OrderResponse"`)

	decoded, err := DecodeResponseEnvelope(data)
	require.NoError(t, err)

	resp, ok := decoded.(OrderResponse)
	require.True(t, ok)
	assert.Equal(t, original.ClientMsgID, resp.ClientMsgID)
	assert.Equal(t, original.ClientID, resp.ClientID)
	assert.True(t, resp.Succeeded())
	assert.Equal(t, "OrderResponse", resp.EnvelopeName())
	assert.Equal(t, "client-1", resp.RecipientClientID())
}

func TestDecodeResponseEnvelope_FillOrderResponse(t *testing.T) {
	params := OrderParams{ExchOrderID: "order-1", Status: StatusFilled}
	original := FillOrderResponse{
		ClientID:    "client-1",
		OrderParams: &params,
		Trade:       Trade{Quantity: 5, TradeID: "trade-1"},
		Status:      true,
		StatusMsg:   "filled",
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	decoded, err := DecodeResponseEnvelope(data)
	require.NoError(t, err)

	resp, ok := decoded.(FillOrderResponse)
	require.True(t, ok)
	assert.Equal(t, original.Trade.TradeID, resp.Trade.TradeID)
	assert.Equal(t, "FillOrderResponse", resp.EnvelopeName())
}

func TestDecodeResponseEnvelope_UnknownName(t *testing.T) {
	_, err := DecodeResponseEnvelope([]byte(`{"name":"SomethingElse"}`))
	assert.Error(t, err)
}
