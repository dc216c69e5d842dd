// Package models holds the wire value types shared between the exchange
// simulator and the iceberg strategy client: sides, statuses, order/trade
// projections and the response envelopes that travel over the message bus.
//
// Field and event names mirror the original simulator's wire contract
// exactly (see spec §6) so that any client speaking that contract can be
// dropped in unmodified.
package models

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Side identifies which side of the book an order rests on.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderStatus is the engine-side lifecycle of an Order.
type OrderStatus string

const (
	StatusAck             OrderStatus = "ack"
	StatusPartiallyFilled OrderStatus = "partially_filled"
	StatusFilled          OrderStatus = "filled"
	StatusCancelled       OrderStatus = "cancelled"
)

// FillType classifies a Trade from the perspective of the order it closed.
type FillType string

const (
	FillTypeComplete FillType = "Complete Fill"
	FillTypePartial  FillType = "Partial Fill"
)

// OrderParams is the wire projection of engine.Order.
type OrderParams struct {
	LimitPrice     decimal.Decimal `json:"limit_price"`
	Quantity       int64           `json:"quantity"`
	Side           Side            `json:"side"`
	Symbol         string          `json:"symbol"`
	FilledQuantity int64           `json:"filled_quantity"`
	ExchOrderID    string          `json:"exch_order_id"`
	Status         OrderStatus     `json:"status"`
}

// OpenQuantity returns Quantity minus FilledQuantity.
func (p OrderParams) OpenQuantity() int64 {
	return p.Quantity - p.FilledQuantity
}

func (p OrderParams) String() string {
	return fmt.Sprintf(
		"limit_price: %s, quantity: %d, side: %s, symbol: %s, filled_quantity: %d, exch_order_id: %s, status: %s",
		p.LimitPrice, p.Quantity, p.Side, p.Symbol, p.FilledQuantity, p.ExchOrderID, p.Status,
	)
}

// Trade is produced once per matching event per participating order.
type Trade struct {
	Quantity    int64           `json:"quantity"`
	LimitPrice  decimal.Decimal `json:"limit_price"`
	Symbol      string          `json:"symbol"`
	ExchOrderID string          `json:"exch_order_id"`
	TradeID     string          `json:"trade_id"`
	FillType    FillType        `json:"fill_type"`
	Side        Side            `json:"side"`
}

// ResponseEnvelope is the closed sum type {OrderResponse, FillOrderResponse}
// the engine emits, replacing the string-discriminated "name" field with a
// proper Go interface (see spec §9's Design Notes). RecipientClientID backs
// the "client_id as private room" routing discipline from spec §6.
type ResponseEnvelope interface {
	EnvelopeName() string
	RecipientClientID() string
	Succeeded() bool
}

// OrderResponse is the non-fill response envelope: acks, revise/cancel
// confirmations, and rejections.
type OrderResponse struct {
	ClientMsgID string       `json:"client_msg_id"`
	ClientID    string       `json:"client_id"`
	OrderParams *OrderParams `json:"order_params"`
	Status      bool         `json:"status"`
	StatusMsg   string       `json:"status_msg"`
}

func (r OrderResponse) EnvelopeName() string      { return "OrderResponse" }
func (r OrderResponse) RecipientClientID() string { return r.ClientID }
func (r OrderResponse) Succeeded() bool           { return r.Status }

// MarshalJSON injects the "name" discriminator required by spec §6.
func (r OrderResponse) MarshalJSON() ([]byte, error) {
	type alias OrderResponse
	return json.Marshal(struct {
		Name string `json:"name"`
		alias
	}{Name: r.EnvelopeName(), alias: alias(r)})
}

// FillOrderResponse is the fill response envelope. It carries no
// client_msg_id: a fill is not a direct response to a single client request,
// it is a side effect of matching.
type FillOrderResponse struct {
	ClientID    string       `json:"client_id"`
	OrderParams *OrderParams `json:"order_params"`
	Trade       Trade        `json:"trade"`
	Status      bool         `json:"status"`
	StatusMsg   string       `json:"status_msg"`
}

func (r FillOrderResponse) EnvelopeName() string      { return "FillOrderResponse" }
func (r FillOrderResponse) RecipientClientID() string { return r.ClientID }
func (r FillOrderResponse) Succeeded() bool           { return r.Status }

func (r FillOrderResponse) MarshalJSON() ([]byte, error) {
	type alias FillOrderResponse
	return json.Marshal(struct {
		Name string `json:"name"`
		alias
	}{Name: r.EnvelopeName(), alias: alias(r)})
}

// envelopeName peeks at the "name" discriminator of a raw JSON envelope.
type envelopeName struct {
	Name string `json:"name"`
}

// DecodeResponseEnvelope decodes a raw wire envelope into the concrete type
// its "name" field names. This is the one place code is allowed to branch on
// the string tag — everything else in the module works with the
// ResponseEnvelope interface.
func DecodeResponseEnvelope(data []byte) (ResponseEnvelope, error) {
	var disc envelopeName
	if err := json.Unmarshal(data, &disc); err != nil {
		return nil, fmt.Errorf("decode envelope discriminator: %w", err)
	}
	switch disc.Name {
	case "OrderResponse":
		var r OrderResponse
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decode OrderResponse: %w", err)
		}
		return r, nil
	case "FillOrderResponse":
		var r FillOrderResponse
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decode FillOrderResponse: %w", err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown response envelope name %q", disc.Name)
	}
}

// CreateOrderRequest is the client->engine "create" event.
type CreateOrderRequest struct {
	ClientMsgID string          `json:"client_msg_id"`
	ClientID    string          `json:"client_id"`
	Quantity    int64           `json:"quantity"`
	LimitPrice  decimal.Decimal `json:"limit_price"`
	Side        Side            `json:"side"`
}

// ReviseOrderRequest is the client->engine "revise" event. Both quantity and
// price are optional; either alone is valid.
type ReviseOrderRequest struct {
	ClientMsgID      string           `json:"client_msg_id"`
	ClientID         string           `json:"client_id"`
	OrderID          string           `json:"order_id"`
	RevisedQuantity  *int64           `json:"revised_quantity,omitempty"`
	RevisedPrice     *decimal.Decimal `json:"revised_price,omitempty"`
}

// CancelOrderRequest is the client->engine "cancel" event.
type CancelOrderRequest struct {
	ClientMsgID string `json:"client_msg_id"`
	ClientID    string `json:"client_id"`
	OrderID     string `json:"order_id"`
}

// DepthRow is one row of a paired bid/ask market depth snapshot. Empty
// string marks a side with no row at that rank (spec §6).
type DepthRow struct {
	Bid       string `json:"bid"`
	BidVolume string `json:"bid_volume"`
	Ask       string `json:"ask"`
	AskVolume string `json:"ask_volume"`
}
