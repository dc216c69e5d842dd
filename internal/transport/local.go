// Package transport carries request/response envelopes between the engine
// and strategy sides of the simulator. LocalBus wires them together
// in-process, calling the OrderBook directly and delivering each request's
// responses on a goroutine; NatsBus wires them over a real NATS server for
// a multi-process deployment.
package transport

import (
	"log"
	"sync"

	"exchange-simulator/internal/engine"
	"exchange-simulator/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LocalBus is an in-memory, single-process exchange connection: requests
// are applied to the OrderBook synchronously and responses are fanned out
// to a registered Router on their own goroutine, matching the engine's own
// "one in-flight request at a time" discipline without letting a slow
// client callback stall the book.
type LocalBus struct {
	book     *engine.OrderBook
	clientID string
	pending  *pendingRequests

	mu     sync.Mutex
	router Router
}

// NewLocalBus returns a bus bound to book, identifying its caller as a
// single client with a freshly generated client_id (mirroring the reference
// client assigning itself a uuid4 hex on construction).
func NewLocalBus(book *engine.OrderBook) *LocalBus {
	return &LocalBus{
		book:     book,
		clientID: uuid.NewString(),
		pending:  newPendingRequests(),
	}
}

// ClientID returns the client_id this bus identifies itself as.
func (b *LocalBus) ClientID() string { return b.clientID }

// RegisterRouter installs the handler set that receives every response
// addressed to this bus's client_id. Only one router may be registered; a
// second call replaces the first.
func (b *LocalBus) RegisterRouter(router Router) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.router = router
}

// dispatch hands every response from one request that is addressed to this
// bus's client_id to the router on a single dedicated goroutine, in the
// order the engine produced them; responses for other clients (the
// counter side of a match) are dropped. A goroutine
// per response would let Go's scheduler interleave them arbitrarily, and
// spec.md §5 requires a single request's responses — e.g. a partial fill
// immediately followed by its complete-fill sibling in a sweep — to arrive
// in that order so Strategy.OnSliceFill's cumulative-delta math never sees
// filled_quantity go backwards.
func (b *LocalBus) dispatch(responses []models.ResponseEnvelope) {
	b.mu.Lock()
	router := b.router
	b.mu.Unlock()

	if router == nil {
		log.Printf("[WARN] response router is not set for client %s", b.clientID)
		return
	}
	go func() {
		for _, resp := range responses {
			if resp.RecipientClientID() != b.clientID {
				continue
			}
			route(router, b.pending, resp)
		}
	}()
}

// SendCreateOrderRequest implements iceberg.ExchangeClient.
func (b *LocalBus) SendCreateOrderRequest(quantity int64, limitPrice decimal.Decimal, side models.Side) string {
	clientMsgID := uuid.NewString()
	log.Printf("[INFO] sending create order request: client_msg_id=%s quantity=%d limit_price=%s side=%s",
		clientMsgID, quantity, limitPrice, side)
	b.pending.record(clientMsgID, kindCreate)
	responses := b.book.CreateOrderRequest(side, clientMsgID, b.clientID, quantity, limitPrice)
	b.dispatch(responses)
	return clientMsgID
}

// SendReviseOrderRequest implements iceberg.ExchangeClient.
func (b *LocalBus) SendReviseOrderRequest(orderID string, revisedQuantity int64, revisedPrice decimal.Decimal) string {
	clientMsgID := uuid.NewString()
	log.Printf("[INFO] sending revise order request: client_msg_id=%s order_id=%s revised_quantity=%d revised_price=%s",
		clientMsgID, orderID, revisedQuantity, revisedPrice)
	b.pending.record(clientMsgID, kindRevise)
	responses := b.book.ReviseOrderRequest(clientMsgID, b.clientID, orderID, &revisedQuantity, &revisedPrice)
	b.dispatch(responses)
	return clientMsgID
}

// SendCancelOrderRequest implements iceberg.ExchangeClient.
func (b *LocalBus) SendCancelOrderRequest(orderID string) string {
	clientMsgID := uuid.NewString()
	log.Printf("[INFO] sending cancel order request: client_msg_id=%s order_id=%s", clientMsgID, orderID)
	b.pending.record(clientMsgID, kindCancel)
	responses := b.book.CancelOrderRequest(clientMsgID, b.clientID, orderID)
	b.dispatch(responses)
	return clientMsgID
}
