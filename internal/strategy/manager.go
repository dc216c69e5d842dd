// Package strategy implements the StrategyManager: the client-side
// component that owns a book of in-flight iceberg parent orders and routes
// exchange response envelopes back to the right one.
package strategy

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"exchange-simulator/internal/iceberg"
	"exchange-simulator/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ParentRecord is the manager's bookkeeping entry for one iceberg parent: the
// strategy itself plus the metadata StrategyManager.Status reports on.
type ParentRecord struct {
	ParentID       string
	Side           models.Side
	Quantity       int64
	FilledQuantity int64
	LimitPrice     decimal.Decimal
	State          iceberg.State
	UpdatedAt      time.Time

	strategy *iceberg.Strategy
}

// Manager owns every live and completed iceberg parent for one client
// session. All operations and callbacks serialize on a single mutex held
// across the whole handler body — simplicity over throughput, matching the
// exchange side's own single in-flight-request design.
type Manager struct {
	mu     sync.Mutex
	client iceberg.ExchangeClient
	orders map[string]*ParentRecord
}

// NewManager constructs a Manager and binds it to client. The caller is
// responsible for feeding inbound response envelopes to OnCreateResp /
// OnFillResp / OnReviseResp / OnCancelResp as they arrive off the bus.
func NewManager(client iceberg.ExchangeClient) *Manager {
	return &Manager{
		client: client,
		orders: make(map[string]*ParentRecord),
	}
}

// findParentByOrderID locates the parent record whose live slice has the
// given exch_order_id, or, if messageID is supplied, whose live slice's
// client_msg_id matches instead. Must be called with mu held.
func (m *Manager) findParentByOrderID(orderID, messageID string) *ParentRecord {
	for _, rec := range m.orders {
		if rec.strategy.SliceOrderID() == orderID {
			return rec
		}
		if messageID != "" && rec.strategy.SliceMessageID() == messageID {
			return rec
		}
	}
	log.Printf("[ERROR] could not find parent for order ID %s and message ID %s", orderID, messageID)
	return nil
}

// CreateIceberg starts a new iceberg parent and submits its first slice,
// returning the new parent_id.
func (m *Manager) CreateIceberg(side models.Side, quantity int64, limitPrice decimal.Decimal, sliceSize int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	parentID := uuid.NewString()
	strat := iceberg.NewStrategy(m.client, quantity, sliceSize, side, limitPrice)
	rec := &ParentRecord{
		ParentID:   parentID,
		Side:       side,
		Quantity:   quantity,
		LimitPrice: limitPrice,
		State:      iceberg.StateSent,
		UpdatedAt:  time.Now(),
		strategy:   strat,
	}
	m.orders[parentID] = rec
	strat.Submit()
	return parentID
}

// OnCreateResp handles a create_resp (or, if the slice crossed the book
// immediately, a fill_resp riding the create's response) for a live slice.
func (m *Manager) OnCreateResp(resp models.ResponseEnvelope) {
	switch r := resp.(type) {
	case models.FillOrderResponse:
		m.OnFillResp(r)
	case models.OrderResponse:
		if r.OrderParams == nil {
			log.Printf("[WARN] received create_resp with no order_params: %+v", r)
			return
		}
		orderID := r.OrderParams.ExchOrderID

		m.mu.Lock()
		defer m.mu.Unlock()

		rec := m.findParentByOrderID(orderID, r.ClientMsgID)
		if rec == nil {
			return
		}
		rec.strategy.OnSliceCreated(orderID, r.Status)
		rec.UpdatedAt = time.Now()
		rec.State = rec.strategy.ParentState()
	default:
		log.Printf("[WARN] received unexpected message %T", resp)
	}
}

// OnFillResp handles a fill_resp for a live slice, updating the parent's
// cumulative filled_quantity by the incremental amount the slice reports.
func (m *Manager) OnFillResp(resp models.FillOrderResponse) {
	if resp.OrderParams == nil {
		log.Printf("[WARN] received fill_resp with no order_params: %+v", resp)
		return
	}
	orderID := resp.OrderParams.ExchOrderID

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.findParentByOrderID(orderID, "")
	if rec == nil {
		return
	}
	delta := rec.strategy.OnSliceFill(resp.OrderParams.FilledQuantity, resp.Status)
	rec.FilledQuantity += delta
	rec.UpdatedAt = time.Now()
	rec.State = rec.strategy.ParentState()
}

// Revise asks the iceberg identified by parentID to retarget its total
// quantity and/or limit price.
func (m *Manager) Revise(parentID string, revisedQuantity int64, revisedPrice decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.orders[parentID]
	if !ok {
		return fmt.Errorf("could not find order with ID %s to revise it", parentID)
	}

	rec.strategy.Revise(revisedQuantity, revisedPrice)
	rec.Quantity = revisedQuantity
	rec.LimitPrice = revisedPrice
	rec.State = rec.strategy.ParentState()
	rec.UpdatedAt = time.Now()
	return nil
}

// OnReviseResp handles a revise_resp for a live slice. A fill riding a
// revise's response is routed to OnFillResp, as on the create path.
func (m *Manager) OnReviseResp(resp models.ResponseEnvelope) {
	switch r := resp.(type) {
	case models.FillOrderResponse:
		m.OnFillResp(r)
	case models.OrderResponse:
		m.mu.Lock()
		defer m.mu.Unlock()

		if !r.Status {
			log.Printf("[WARN] received an error on revise response: %s", r.StatusMsg)
			return
		}
		if r.OrderParams == nil {
			return
		}
		orderID := r.OrderParams.ExchOrderID
		rec := m.findParentByOrderID(orderID, r.ClientMsgID)
		if rec == nil {
			return
		}
		rec.strategy.OnReviseAck(r.OrderParams.Quantity, r.OrderParams.LimitPrice, r.Status)
		rec.UpdatedAt = time.Now()
		rec.State = rec.strategy.ParentState()
	default:
		log.Printf("[WARN] received unexpected message %T", resp)
	}
}

// Cancel asks the iceberg identified by parentID to cancel its live slice.
func (m *Manager) Cancel(parentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.orders[parentID]
	if !ok {
		return fmt.Errorf("could not find parent for order ID %s", parentID)
	}
	rec.strategy.Cancel()
	rec.UpdatedAt = time.Now()
	rec.State = rec.strategy.ParentState()
	return nil
}

// OnCancelResp handles a cancel_resp for a live slice. A fill riding a
// cancel's response is routed to OnFillResp, as on the create and revise
// paths.
func (m *Manager) OnCancelResp(resp models.ResponseEnvelope) {
	switch r := resp.(type) {
	case models.FillOrderResponse:
		m.OnFillResp(r)
	case models.OrderResponse:
		if r.OrderParams == nil {
			return
		}
		orderID := r.OrderParams.ExchOrderID

		m.mu.Lock()
		defer m.mu.Unlock()

		rec := m.findParentByOrderID(orderID, r.ClientMsgID)
		if rec == nil {
			return
		}
		rec.strategy.OnCancelAck(r.Status)
		rec.UpdatedAt = time.Now()
		rec.State = rec.strategy.ParentState()
	default:
		log.Printf("[WARN] received unexpected message %T", resp)
	}
}

// Status returns a snapshot of every parent, split into completed and
// pending groups and ordered most-recently-updated first, mirroring the
// reference client's print_status report.
func (m *Manager) Status(parentID string) (found *ParentRecord, completed, pending []ParentRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if parentID != "" {
		if rec, ok := m.orders[parentID]; ok {
			copyRec := *rec
			found = &copyRec
		}
	}

	for _, rec := range m.orders {
		copyRec := *rec
		if iceberg.CompletedStates[rec.State] {
			completed = append(completed, copyRec)
		} else {
			pending = append(pending, copyRec)
		}
	}
	sort.Slice(completed, func(i, j int) bool { return completed[i].UpdatedAt.After(completed[j].UpdatedAt) })
	sort.Slice(pending, func(i, j int) bool { return pending[i].UpdatedAt.After(pending[j].UpdatedAt) })
	return found, completed, pending
}
