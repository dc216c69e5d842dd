package engine

import (
	"fmt"

	"exchange-simulator/internal/models"

	"github.com/google/uuid"
)

// matchResult accumulates what a single matching pass against the book
// produced: the response envelopes to emit, which resting (counter-side)
// orders reached Filled and must be moved to completedOrders, and any
// warnings from invariant guards that were caught and downgraded (spec §7's
// OverFill handling).
type matchResult struct {
	responses           []models.ResponseEnvelope
	filledCounterOrders []*Order
	warnings            []string
}

// Matcher implements price-time priority crossing (spec §4.2). The trade
// price is always the aggressor's (incoming order's) limit price for both
// sides of a match — a deliberate simulator convention, not the usual
// resting-price rule (spec §9's open question; preserved as-is).
type Matcher struct{}

func NewMatcher() *Matcher { return &Matcher{} }

// match walks a best-first snapshot of the opposite live side once, filling
// both sides of each crossing trade until the incoming order fills or
// prices stop crossing. A counter order that fills mid-walk is simply
// skipped on the following iterations (it is not removed from the live
// book until the whole request settles).
func (m *Matcher) match(order *Order, ob *OrderBook) *matchResult {
	result := &matchResult{}

	for _, counter := range ob.orderedCounterOrders(order.Side()) {
		if order.Status() == models.StatusFilled {
			break
		}
		if counter.OpenQuantity() == 0 {
			continue
		}
		if !m.priceMatches(order, counter) {
			break
		}

		fillQty := order.OpenQuantity()
		if counter.OpenQuantity() < fillQty {
			fillQty = counter.OpenQuantity()
		}
		tradeID := fmt.Sprintf("FillId-%s", uuid.NewString())
		tradePrice := order.LimitPrice()

		orderFill, err := order.Fill(fillQty, tradePrice, tradeID)
		if err != nil {
			result.warnings = append(result.warnings, err.Error())
			break
		}
		result.responses = append(result.responses, orderFill)

		counterFill, err := counter.Fill(fillQty, tradePrice, tradeID)
		if err != nil {
			result.warnings = append(result.warnings, err.Error())
			break
		}
		result.responses = append(result.responses, counterFill)

		if counter.Status() == models.StatusFilled {
			result.filledCounterOrders = append(result.filledCounterOrders, counter)
		}
	}

	return result
}

// priceMatches implements the cross test from spec §4.2: a buy crosses an
// ask priced at or below its limit; a sell crosses a bid priced at or above
// its limit.
func (m *Matcher) priceMatches(order, counter *Order) bool {
	if order.Side() == models.SideBuy {
		return counter.LimitPrice().LessThanOrEqual(order.LimitPrice())
	}
	return counter.LimitPrice().GreaterThanOrEqual(order.LimitPrice())
}
