// Package iceberg implements the client-side iceberg execution strategy: a
// parent order that is worked by repeatedly sending a single child slice to
// the exchange, waiting for it to rest or fill, and submitting the next
// slice until the parent's total quantity is exhausted.
package iceberg

import (
	"log"

	"exchange-simulator/internal/models"

	"github.com/shopspring/decimal"
)

// State is the iceberg's lifecycle, mirroring the engine-side OrderStatus
// plus the client-only transient states a slice passes through while a
// request is in flight.
type State string

const (
	StatePending     State = "Pending"
	StateSent        State = "Sent"
	StateWorking     State = "Working"
	StatePartFilled  State = "PartiallyFilled"
	StateFilled      State = "Filled"
	StateCancelled   State = "Cancelled"
	StateRejected    State = "Rejected"
	StateReviseSent  State = "ReviseSent"
	StateCancelSent  State = "CancelSent"
)

// ActiveStates are the states in which a parent order is still live and
// can accept a Revise or Cancel.
var ActiveStates = map[State]bool{
	StatePending:    true,
	StateWorking:    true,
	StatePartFilled: true,
}

// CompletedStates are the states a parent order never leaves once reached.
var CompletedStates = map[State]bool{
	StateRejected:  true,
	StateCancelled: true,
	StateFilled:    true,
}

// ExchangeClient is everything a Strategy needs from the transport layer: it
// sends the three request types and returns the client_msg_id the exchange
// will echo back on the matching response, so the strategy can correlate its
// own slice against the asynchronous callback it will later receive.
type ExchangeClient interface {
	SendCreateOrderRequest(quantity int64, limitPrice decimal.Decimal, side models.Side) string
	SendReviseOrderRequest(orderID string, revisedQuantity int64, revisedPrice decimal.Decimal) string
	SendCancelOrderRequest(orderID string) string
}

// Strategy is one iceberg parent order: a total quantity worked in slices of
// at most sliceSize, at most one slice live at a time (spec's "at-most-one-
// live-slice" invariant).
type Strategy struct {
	client ExchangeClient

	totalQuantity int64
	sliceSize     int64
	side          models.Side
	limitPrice    decimal.Decimal

	filledQuantity int64

	sliceFilledQuantity int64
	sliceMessageID      string
	sliceOrderID        string

	lastSliceState State
	parentState    State
}

// NewStrategy constructs a Strategy in State Pending; call Submit to send
// the first slice.
func NewStrategy(client ExchangeClient, totalQuantity, sliceSize int64, side models.Side, limitPrice decimal.Decimal) *Strategy {
	return &Strategy{
		client:         client,
		totalQuantity:  totalQuantity,
		sliceSize:      sliceSize,
		side:           side,
		limitPrice:     limitPrice,
		lastSliceState: StatePending,
		parentState:    StatePending,
	}
}

// ParentState reports the parent's current lifecycle state.
func (s *Strategy) ParentState() State { return s.parentState }

// FilledQuantity reports the parent's cumulative fill across all slices.
func (s *Strategy) FilledQuantity() int64 { return s.filledQuantity }

// SliceOrderID reports the exch_order_id of the currently live slice, or ""
// if no slice is live.
func (s *Strategy) SliceOrderID() string { return s.sliceOrderID }

// SliceMessageID reports the client_msg_id the live slice's create request
// was sent with, used to correlate a create_resp before the exchange has
// assigned (and echoed back) an exch_order_id.
func (s *Strategy) SliceMessageID() string { return s.sliceMessageID }

// Snapshot is the read-only projection Inspect returns for status reporting.
type Snapshot struct {
	ParentState         State
	LastSliceState       State
	SliceOrderID         string
	Side                 models.Side
	LimitPrice           decimal.Decimal
	SliceSize            int64
	SliceFilledQuantity  int64
	FilledQuantity       int64
	TotalQuantity        int64
}

// Inspect returns a snapshot of the strategy's current state, used by
// StrategyManager.Status for reporting without exposing mutable internals.
func (s *Strategy) Inspect() Snapshot {
	return Snapshot{
		ParentState:         s.parentState,
		LastSliceState:      s.lastSliceState,
		SliceOrderID:        s.sliceOrderID,
		Side:                s.side,
		LimitPrice:          s.limitPrice,
		SliceSize:           s.sliceSize,
		SliceFilledQuantity: s.sliceFilledQuantity,
		FilledQuantity:      s.filledQuantity,
		TotalQuantity:       s.totalQuantity,
	}
}

// Submit sends the next child slice, always at the nominal sliceSize: the
// final slice is not capped down to whatever quantity remains of the
// parent's total — the exchange decides whether the counter side has
// enough liquidity to matter, since only one slice is ever live at a time
// and each is independently sized. It must never be called while a
// manager-level lock the caller holds could be re-entered by the client's
// response path — ExchangeClient implementations dispatch callbacks on a
// separate goroutine precisely so this call can be made from inside
// OnSliceFill without deadlocking.
func (s *Strategy) Submit() {
	s.sliceFilledQuantity = 0
	s.sliceOrderID = ""
	s.sliceMessageID = s.client.SendCreateOrderRequest(s.sliceSize, s.limitPrice, s.side)
	s.lastSliceState = StateSent
	if s.parentState != StatePartFilled {
		s.parentState = StateSent
	}
}

// evaluateAndSlice recomputes lastSliceState and parentState from the
// current fill counters, then submits the next slice if the live one just
// completely filled and the parent still has quantity left to work.
func (s *Strategy) evaluateAndSlice() {
	switch {
	case s.sliceFilledQuantity == s.sliceSize:
		s.lastSliceState = StateFilled
	case s.sliceFilledQuantity > 0:
		s.lastSliceState = StatePartFilled
	default:
		s.lastSliceState = StateWorking
	}

	switch {
	case s.filledQuantity == s.totalQuantity:
		s.parentState = StateFilled
	case s.filledQuantity > 0:
		s.parentState = StatePartFilled
	default:
		s.parentState = StateWorking
	}

	if s.lastSliceState == StateFilled && s.filledQuantity < s.totalQuantity {
		s.Submit()
	}
}

// OnSliceCreated handles the create_resp for the live slice: a rejection
// moves the parent straight to its terminal Rejected state (no retry); an
// ack moves both slice and parent to Working.
func (s *Strategy) OnSliceCreated(orderID string, status bool) {
	if !status {
		log.Printf("[WARN] order slice %s creation rejected", orderID)
		s.lastSliceState = StateRejected
		s.parentState = StateRejected
		return
	}
	s.sliceOrderID = orderID
	s.lastSliceState = StateWorking
	s.parentState = StateWorking
}

// OnSliceFill handles a fill_resp against the live slice's current
// cumulative filled_quantity, returning the incremental quantity filled by
// this one event so the caller (StrategyManager) can add it to the parent's
// own running total. A fill on an unsuccessful status is logged and
// ignored. May transitively call Submit, which fires a new create request —
// the caller must not be holding a lock Submit's client would need to
// re-enter.
func (s *Strategy) OnSliceFill(cumulativeFilledQuantity int64, status bool) int64 {
	if !status {
		log.Printf("[WARN] received unsuccessful fill for slice %s", s.sliceOrderID)
		return 0
	}
	delta := cumulativeFilledQuantity - s.sliceFilledQuantity
	s.sliceFilledQuantity = cumulativeFilledQuantity
	s.filledQuantity += delta
	s.evaluateAndSlice()
	return delta
}

// Revise applies a new parent quantity/price target. It is logged and
// ignored unless the parent is active with an acknowledged live slice, and
// a target at or below the quantity already filled is rejected the same
// way, so the zero-open-quantity cancel branch below is never reached.
// Otherwise the live slice is reconciled against the new target per the
// branch that applies (spec's revise policy): revise its size down if the
// new target needs fewer open units than the slice currently has
// outstanding, revise its price if the price changed, or update the
// parent's hidden total/price in place if neither the slice's size nor
// price need to change yet.
//
// The slice-size branch revises the slice down to its OWN current open
// quantity rather than to what the new parent target would imply for a
// fresh slice — this looks like it should be the latter, but it mirrors the
// reference client's behavior and is preserved unchanged.
func (s *Strategy) Revise(revisedQuantity int64, revisedPrice decimal.Decimal) {
	if !ActiveStates[s.parentState] || s.sliceOrderID == "" {
		log.Printf("[ERROR] order is in state %s and cannot be revised", s.parentState)
		return
	}

	if revisedQuantity <= s.filledQuantity {
		log.Printf("[ERROR] cannot update quantity to %d, already filled %d", revisedQuantity, s.filledQuantity)
		return
	}

	revisedOpenQuantity := revisedQuantity - s.filledQuantity
	sliceOpenQuantity := s.sliceSize - s.sliceFilledQuantity

	switch {
	case revisedOpenQuantity == 0:
		s.client.SendCancelOrderRequest(s.sliceOrderID)
		s.lastSliceState = StateCancelSent
		s.parentState = StateCancelSent
	case sliceOpenQuantity > revisedOpenQuantity:
		s.client.SendReviseOrderRequest(s.sliceOrderID, sliceOpenQuantity, revisedPrice)
		s.lastSliceState = StateReviseSent
		s.parentState = StateReviseSent
	case !s.limitPrice.Equal(revisedPrice):
		s.client.SendReviseOrderRequest(s.sliceOrderID, s.sliceSize, revisedPrice)
		s.lastSliceState = StateReviseSent
		s.parentState = StateReviseSent
	default:
		s.totalQuantity = revisedQuantity
		s.limitPrice = revisedPrice
	}
}

// OnReviseAck handles a revise_resp for the live slice. If no revise is
// outstanding (the slice has already moved on to a later state) the ack is
// stale and ignored. A rejected revise falls back to Working; an accepted
// one applies the new slice size/price and re-evaluates.
func (s *Strategy) OnReviseAck(revisedQuantity int64, revisedPrice decimal.Decimal, status bool) {
	if s.lastSliceState != StateReviseSent {
		return
	}
	if !status {
		s.lastSliceState = StateWorking
		s.parentState = StateWorking
		return
	}
	s.sliceSize = revisedQuantity
	s.limitPrice = revisedPrice
	s.evaluateAndSlice()
}

// Cancel requests cancellation of the live slice. Ignored if the slice is
// not currently in an active state (already terminal, or a request is
// already in flight).
func (s *Strategy) Cancel() {
	if !ActiveStates[s.lastSliceState] || s.sliceOrderID == "" {
		log.Printf("[WARN] order is in a transient state and cannot be cancelled")
		return
	}
	s.client.SendCancelOrderRequest(s.sliceOrderID)
	s.lastSliceState = StateCancelSent
	s.parentState = StateCancelSent
}

// OnCancelAck handles a cancel_resp for the live slice. A stale ack (no
// cancel outstanding) is ignored; a rejection falls back to Working.
func (s *Strategy) OnCancelAck(status bool) {
	if s.lastSliceState != StateCancelSent {
		return
	}
	if !status {
		s.lastSliceState = StateWorking
		s.parentState = StateWorking
		return
	}
	s.lastSliceState = StateCancelled
	s.parentState = StateCancelled
}
