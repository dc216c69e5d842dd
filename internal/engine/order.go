package engine

import (
	"fmt"
	"time"

	"exchange-simulator/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	orderCreationSuccessMsg = "Successful order creation"
	orderFillSuccessMsg     = "Order filled successfully"
	orderCancelSuccessMsg   = "Order cancellation is successful"
	reviseSuccessMsg        = "Revise order successful"
)

// Order is the engine-side order entity (spec §4.1). Timestamp resets on a
// successful revise, which is how the order loses price-time priority.
type Order struct {
	params      models.OrderParams
	timestamp   time.Time
	clientID    string
	clientMsgID string
	trades      []models.Trade

	// restingKey is the price key the order is currently filed under in the
	// OrderBook's side map, if any. Revising the price changes params.LimitPrice
	// before the book re-files the order, so the book needs this to find
	// where the order actually rests rather than recomputing from the
	// (possibly already-changed) current price.
	restingKey string
}

// NewOrder instantiates an Order with an engine-assigned exch_order_id and
// status Ack.
func NewOrder(side models.Side, symbol string, quantity int64, limitPrice decimal.Decimal, clientMsgID, clientID string) *Order {
	return &Order{
		params: models.OrderParams{
			LimitPrice:     limitPrice,
			Quantity:       quantity,
			Side:           side,
			Symbol:         symbol,
			FilledQuantity: 0,
			ExchOrderID:    uuid.NewString(),
			Status:         models.StatusAck,
		},
		timestamp:   time.Now(),
		clientID:    clientID,
		clientMsgID: clientMsgID,
	}
}

func (o *Order) ExchOrderID() string         { return o.params.ExchOrderID }
func (o *Order) ClientID() string            { return o.clientID }
func (o *Order) ClientMsgID() string         { return o.clientMsgID }
func (o *Order) Side() models.Side           { return o.params.Side }
func (o *Order) Symbol() string              { return o.params.Symbol }
func (o *Order) LimitPrice() decimal.Decimal { return o.params.LimitPrice }
func (o *Order) Quantity() int64             { return o.params.Quantity }
func (o *Order) FilledQuantity() int64       { return o.params.FilledQuantity }
func (o *Order) Status() models.OrderStatus  { return o.params.Status }
func (o *Order) Timestamp() time.Time        { return o.timestamp }
func (o *Order) Trades() []models.Trade      { return o.trades }

// Params returns the current wire projection of the order. The returned
// value is a copy; mutating it has no effect on the Order.
func (o *Order) Params() models.OrderParams { return o.params }

// OpenQuantity is Quantity minus FilledQuantity.
func (o *Order) OpenQuantity() int64 {
	return o.params.Quantity - o.params.FilledQuantity
}

// IsTerminal reports whether the order is Filled or Cancelled.
func (o *Order) IsTerminal() bool {
	return o.params.Status == models.StatusFilled || o.params.Status == models.StatusCancelled
}

func ackResponse(order *Order) models.OrderResponse {
	params := order.Params()
	return models.OrderResponse{
		ClientMsgID: order.ClientMsgID(),
		ClientID:    order.ClientID(),
		OrderParams: &params,
		Status:      true,
		StatusMsg:   orderCreationSuccessMsg,
	}
}

// Fill records a trade against the order. qty must not exceed OpenQuantity;
// this is the one invariant violation in the system that is reported via a
// Go error rather than as response data (spec §7) — the OrderBook catches it
// and degrades to a logged warning.
func (o *Order) Fill(qty int64, price decimal.Decimal, tradeID string) (models.FillOrderResponse, error) {
	if qty > o.OpenQuantity() {
		return models.FillOrderResponse{}, fmt.Errorf(
			"fill quantity %d cannot be more than open quantity %d", qty, o.OpenQuantity())
	}

	o.params.FilledQuantity += qty

	var fillType models.FillType
	if o.OpenQuantity() == 0 {
		fillType = models.FillTypeComplete
		o.params.Status = models.StatusFilled
	} else {
		fillType = models.FillTypePartial
		o.params.Status = models.StatusPartiallyFilled
	}

	trade := models.Trade{
		Quantity:    qty,
		LimitPrice:  price,
		Symbol:      o.params.Symbol,
		ExchOrderID: o.params.ExchOrderID,
		TradeID:     tradeID,
		FillType:    fillType,
		Side:        o.params.Side,
	}
	o.trades = append(o.trades, trade)

	params := o.Params()
	return models.FillOrderResponse{
		ClientID:    o.clientID,
		OrderParams: &params,
		Trade:       trade,
		Status:      true,
		StatusMsg:   orderFillSuccessMsg,
	}, nil
}

// Revise updates quantity and/or price. Both fields are optional. Quantity
// revision below the filled quantity fails with QtyBelowFilled; a price
// revision after the order has become Filled fails with PriceOnFilled. Any
// successful field change refreshes the timestamp, losing price-time
// priority.
func (o *Order) Revise(clientMsgID, clientID string, revisedQty *int64, revisedPrice *decimal.Decimal) models.OrderResponse {
	if revisedQty != nil {
		if *revisedQty < o.params.FilledQuantity {
			statusMsg := fmt.Sprintf(
				"Revise quantity %d should not be less than filled quantity %d",
				*revisedQty, o.params.FilledQuantity)
			params := o.Params()
			return models.OrderResponse{
				ClientMsgID: clientMsgID,
				ClientID:    clientID,
				OrderParams: &params,
				Status:      false,
				StatusMsg:   statusMsg,
			}
		}
		o.params.Quantity = *revisedQty
	}

	if o.OpenQuantity() == 0 {
		o.params.Status = models.StatusFilled
	}

	if revisedPrice != nil {
		if o.params.Status == models.StatusFilled {
			params := o.Params()
			return models.OrderResponse{
				ClientMsgID: clientMsgID,
				ClientID:    clientID,
				OrderParams: &params,
				Status:      false,
				StatusMsg:   "Order price cannot be revised after revised quantity filled the order",
			}
		}
		o.params.LimitPrice = *revisedPrice
	}

	o.timestamp = time.Now()
	params := o.Params()
	return models.OrderResponse{
		ClientMsgID: clientMsgID,
		ClientID:    clientID,
		OrderParams: &params,
		Status:      true,
		StatusMsg:   reviseSuccessMsg,
	}
}

// Cancel fails with CancelOnFilled when the order is already Filled;
// otherwise transitions it to Cancelled.
func (o *Order) Cancel(clientMsgID, clientID string) models.OrderResponse {
	if o.params.Status == models.StatusFilled {
		params := o.Params()
		return models.OrderResponse{
			ClientMsgID: clientMsgID,
			ClientID:    clientID,
			OrderParams: &params,
			Status:      false,
			StatusMsg:   "Filled order cannot be cancelled",
		}
	}

	o.params.Status = models.StatusCancelled
	params := o.Params()
	return models.OrderResponse{
		ClientMsgID: clientMsgID,
		ClientID:    clientID,
		OrderParams: &params,
		Status:      true,
		StatusMsg:   orderCancelSuccessMsg,
	}
}
