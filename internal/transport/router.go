package transport

import (
	"sync"

	"exchange-simulator/internal/models"
)

// Router is the strategy-side handler set a bus dispatches decoded responses
// to. strategy.Manager implements this directly.
type Router interface {
	OnCreateResp(models.ResponseEnvelope)
	OnReviseResp(models.ResponseEnvelope)
	OnCancelResp(models.ResponseEnvelope)
	OnFillResp(models.FillOrderResponse)
}

type requestKind int

const (
	kindCreate requestKind = iota
	kindRevise
	kindCancel
)

// pendingRequests correlates an outbound client_msg_id to the request kind
// that will let dispatch route its eventual response to the matching Router
// method. The wire envelope alone only distinguishes a fill from everything
// else — create_resp, revise_resp and cancel_resp all decode to the same
// OrderResponse shape, so the bus has to remember what it sent.
type pendingRequests struct {
	mu      sync.Mutex
	kindsOf map[string]requestKind
}

func newPendingRequests() *pendingRequests {
	return &pendingRequests{kindsOf: make(map[string]requestKind)}
}

func (p *pendingRequests) record(clientMsgID string, kind requestKind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kindsOf[clientMsgID] = kind
}

func (p *pendingRequests) take(clientMsgID string) (requestKind, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kind, ok := p.kindsOf[clientMsgID]
	if ok {
		delete(p.kindsOf, clientMsgID)
	}
	return kind, ok
}

// route sends resp to the Router method matching the request it answers,
// falling back to OnCreateResp for any OrderResponse the bus has no pending
// record of (e.g. a bootstrap order seeded directly against the book,
// outside the strategy manager's tracking).
func route(router Router, pending *pendingRequests, resp models.ResponseEnvelope) {
	if fill, ok := resp.(models.FillOrderResponse); ok {
		router.OnFillResp(fill)
		return
	}
	order, ok := resp.(models.OrderResponse)
	if !ok {
		return
	}
	kind, found := pending.take(order.ClientMsgID)
	if !found {
		router.OnCreateResp(resp)
		return
	}
	switch kind {
	case kindRevise:
		router.OnReviseResp(resp)
	case kindCancel:
		router.OnCancelResp(resp)
	default:
		router.OnCreateResp(resp)
	}
}
