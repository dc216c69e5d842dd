package engine

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"exchange-simulator/internal/models"

	"github.com/shopspring/decimal"
)

const defaultSymbol = "AUTOTRAD Equity"

// PriceLevel is a FIFO queue of live orders at a single price. FIFO order
// doubles as time priority: add appends to the back, so re-adding a revised
// order (after remove) puts it behind every order that already rested at
// that price.
type PriceLevel struct {
	Price  decimal.Decimal
	Orders []*Order
}

func (pl *PriceLevel) add(order *Order) {
	pl.Orders = append(pl.Orders, order)
}

func (pl *PriceLevel) remove(exchOrderID string) bool {
	for i, o := range pl.Orders {
		if o.ExchOrderID() == exchOrderID {
			pl.Orders = append(pl.Orders[:i], pl.Orders[i+1:]...)
			return true
		}
	}
	return false
}

func (pl *PriceLevel) isEmpty() bool { return len(pl.Orders) == 0 }

func (pl *PriceLevel) totalOpenQuantity() int64 {
	var total int64
	for _, o := range pl.Orders {
		total += o.OpenQuantity()
	}
	return total
}

// OrderBook is the in-memory book for a single symbol (spec §3's Book
// state). It owns two independent, side-appropriate containers rather than
// one order-embedded comparator (spec §9's Design Note): bids sorted by
// descending price then ascending timestamp, asks sorted ascending then
// ascending timestamp.
type OrderBook struct {
	Symbol string

	bids map[string]*PriceLevel
	asks map[string]*PriceLevel

	bidPrices []decimal.Decimal // cached, sorted descending
	askPrices []decimal.Decimal // cached, sorted ascending

	completedOrders map[string]*Order

	matcher *Matcher

	// mu serializes create/revise/cancel/depth against each other: one
	// in-flight request at a time is sufficient and simplest (spec §5).
	mu sync.Mutex
}

// NewOrderBook constructs an empty OrderBook for symbol. An empty symbol
// defaults to defaultSymbol, matching the simulator's bootstrap behavior.
func NewOrderBook(symbol string) *OrderBook {
	if symbol == "" {
		symbol = defaultSymbol
	}
	return &OrderBook{
		Symbol:          symbol,
		bids:            make(map[string]*PriceLevel),
		asks:            make(map[string]*PriceLevel),
		completedOrders: make(map[string]*Order),
		matcher:         NewMatcher(),
	}
}

// CreateOrderRequest instantiates an order, acks it, runs matching, and
// settles the order into completedOrders or the live side (spec §4.2).
func (ob *OrderBook) CreateOrderRequest(side models.Side, clientMsgID, clientID string, quantity int64, limitPrice decimal.Decimal) []models.ResponseEnvelope {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	order := NewOrder(side, ob.Symbol, quantity, limitPrice, clientMsgID, clientID)

	responses := []models.ResponseEnvelope{ackResponse(order)}
	responses = append(responses, ob.evaluateOrderMatch(order)...)
	return responses
}

// ReviseOrderRequest validates the order is live, revises it, re-runs
// matching, and re-sorts the book (spec §4.2).
func (ob *OrderBook) ReviseOrderRequest(clientMsgID, clientID, orderID string, revisedQuantity *int64, revisedPrice *decimal.Decimal) []models.ResponseEnvelope {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	order, err := ob.validatedOrder(orderID)
	if err != nil {
		return []models.ResponseEnvelope{
			models.OrderResponse{
				ClientMsgID: clientMsgID,
				ClientID:    clientID,
				OrderParams: nil,
				Status:      false,
				StatusMsg:   err.Error(),
			},
		}
	}

	reviseResp := order.Revise(clientMsgID, clientID, revisedQuantity, revisedPrice)
	responses := []models.ResponseEnvelope{reviseResp}
	responses = append(responses, ob.evaluateOrderMatch(order)...)
	return responses
}

// CancelOrderRequest validates the order is live, cancels it, and removes
// it from the book (spec §4.2).
func (ob *OrderBook) CancelOrderRequest(clientMsgID, clientID, orderID string) []models.ResponseEnvelope {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	order, err := ob.validatedOrder(orderID)
	if err != nil {
		return []models.ResponseEnvelope{
			models.OrderResponse{
				ClientMsgID: clientMsgID,
				ClientID:    clientID,
				OrderParams: nil,
				Status:      false,
				StatusMsg:   err.Error(),
			},
		}
	}

	cancelResp := order.Cancel(clientMsgID, clientID)
	ob.settleOrder(order, nil)
	return []models.ResponseEnvelope{cancelResp}
}

// GetMarketDepth collapses each side into aggregated (price, open quantity)
// rows, best first, and zips the two sides row-by-row (spec §4.2).
func (ob *OrderBook) GetMarketDepth() []models.DepthRow {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	var bidRows, askRows []models.DepthRow
	for _, price := range ob.bidPrices {
		pl := ob.bids[price.String()]
		if pl == nil || pl.isEmpty() {
			continue
		}
		bidRows = append(bidRows, models.DepthRow{Bid: price.String(), BidVolume: fmt.Sprintf("%d", pl.totalOpenQuantity())})
	}
	for _, price := range ob.askPrices {
		pl := ob.asks[price.String()]
		if pl == nil || pl.isEmpty() {
			continue
		}
		askRows = append(askRows, models.DepthRow{Ask: price.String(), AskVolume: fmt.Sprintf("%d", pl.totalOpenQuantity())})
	}

	max := len(bidRows)
	if len(askRows) > max {
		max = len(askRows)
	}
	rows := make([]models.DepthRow, 0, max)
	for i := 0; i < max; i++ {
		row := models.DepthRow{}
		if i < len(bidRows) {
			row.Bid, row.BidVolume = bidRows[i].Bid, bidRows[i].BidVolume
		}
		if i < len(askRows) {
			row.Ask, row.AskVolume = askRows[i].Ask, askRows[i].AskVolume
		}
		rows = append(rows, row)
	}
	return rows
}

// evaluateOrderMatch runs the matching algorithm against order and then
// settles the book: terminal orders move to completedOrders, live orders
// are (re)inserted at the back of their price level.
func (ob *OrderBook) evaluateOrderMatch(order *Order) []models.ResponseEnvelope {
	result := ob.matcher.match(order, ob)
	for _, warning := range result.warnings {
		log.Printf("[WARN] %s", warning)
	}
	ob.settleOrder(order, result.filledCounterOrders)
	return result.responses
}

// settleOrder moves filledCounterOrders (the resting orders matching ate
// through) to completedOrders, then settles order itself: to
// completedOrders if terminal, or removed-and-reinserted into its live side
// otherwise (refreshing its sort position after a revise).
func (ob *OrderBook) settleOrder(order *Order, filledCounterOrders []*Order) {
	for _, filled := range filledCounterOrders {
		ob.removeFromSide(filled)
		ob.completedOrders[filled.ExchOrderID()] = filled
	}

	if order.IsTerminal() {
		ob.removeFromSide(order)
		ob.completedOrders[order.ExchOrderID()] = order
		return
	}

	ob.removeFromSide(order)
	ob.addToSide(order)
}

func (ob *OrderBook) addToSide(order *Order) {
	priceKey := order.LimitPrice().String()
	order.restingKey = priceKey
	if order.Side() == models.SideBuy {
		if ob.bids[priceKey] == nil {
			ob.bids[priceKey] = &PriceLevel{Price: order.LimitPrice()}
		}
		ob.bids[priceKey].add(order)
		ob.refreshBidPrices()
		return
	}
	if ob.asks[priceKey] == nil {
		ob.asks[priceKey] = &PriceLevel{Price: order.LimitPrice()}
	}
	ob.asks[priceKey].add(order)
	ob.refreshAskPrices()
}

// removeFromSide removes order from wherever it currently rests, using its
// restingKey rather than its current limit price (which may already have
// been revised past the price level it is actually filed under).
func (ob *OrderBook) removeFromSide(order *Order) {
	priceKey := order.restingKey
	if priceKey == "" {
		return
	}
	order.restingKey = ""
	if order.Side() == models.SideBuy {
		if pl, ok := ob.bids[priceKey]; ok {
			pl.remove(order.ExchOrderID())
			if pl.isEmpty() {
				delete(ob.bids, priceKey)
			}
			ob.refreshBidPrices()
		}
		return
	}
	if pl, ok := ob.asks[priceKey]; ok {
		pl.remove(order.ExchOrderID())
		if pl.isEmpty() {
			delete(ob.asks, priceKey)
		}
		ob.refreshAskPrices()
	}
}

func (ob *OrderBook) refreshBidPrices() {
	ob.bidPrices = ob.bidPrices[:0]
	for _, pl := range ob.bids {
		if !pl.isEmpty() {
			ob.bidPrices = append(ob.bidPrices, pl.Price)
		}
	}
	sort.Slice(ob.bidPrices, func(i, j int) bool {
		return ob.bidPrices[i].GreaterThan(ob.bidPrices[j])
	})
}

func (ob *OrderBook) refreshAskPrices() {
	ob.askPrices = ob.askPrices[:0]
	for _, pl := range ob.asks {
		if !pl.isEmpty() {
			ob.askPrices = append(ob.askPrices, pl.Price)
		}
	}
	sort.Slice(ob.askPrices, func(i, j int) bool {
		return ob.askPrices[i].LessThan(ob.askPrices[j])
	})
}

// orderedCounterOrders returns a point-in-time, best-first snapshot of the
// live side opposite side: every price level in priority order, each
// level's orders in FIFO (time-priority) order. The matcher walks this
// snapshot once per request rather than re-querying "best" repeatedly,
// because a counter order that fills mid-walk is not removed from the book
// until the whole match completes (spec §4.2's "iterate X in best-first
// order").
func (ob *OrderBook) orderedCounterOrders(side models.Side) []*Order {
	var prices []decimal.Decimal
	var levels map[string]*PriceLevel
	if side == models.SideBuy {
		prices, levels = ob.askPrices, ob.asks
	} else {
		prices, levels = ob.bidPrices, ob.bids
	}

	var snapshot []*Order
	for _, price := range prices {
		pl := levels[price.String()]
		if pl == nil {
			continue
		}
		snapshot = append(snapshot, pl.Orders...)
	}
	return snapshot
}

// validatedOrder looks an order up by id: a completed order is rejected
// with a specific message, a never-seen id with a generic one, otherwise
// the live order is returned (spec §4.2's failure semantics).
func (ob *OrderBook) validatedOrder(orderID string) (*Order, error) {
	if _, ok := ob.completedOrders[orderID]; ok {
		return nil, fmt.Errorf("Completed Order id: %s cannot be updated", orderID)
	}
	for _, pl := range ob.bids {
		for _, o := range pl.Orders {
			if o.ExchOrderID() == orderID {
				return o, nil
			}
		}
	}
	for _, pl := range ob.asks {
		for _, o := range pl.Orders {
			if o.ExchOrderID() == orderID {
				return o, nil
			}
		}
	}
	return nil, fmt.Errorf("Order id: %s does not exist in the order book", orderID)
}
