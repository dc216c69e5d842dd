package iceberg

import (
	"fmt"
	"testing"

	"exchange-simulator/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient records every request the strategy sends it, standing in for
// a real transport in unit tests.
type fakeClient struct {
	creates []createCall
	revises []reviseCall
	cancels []string
	nextID  int
}

type createCall struct {
	quantity int64
	price    decimal.Decimal
	side     models.Side
}

type reviseCall struct {
	orderID  string
	quantity int64
	price    decimal.Decimal
}

func (f *fakeClient) SendCreateOrderRequest(quantity int64, limitPrice decimal.Decimal, side models.Side) string {
	f.creates = append(f.creates, createCall{quantity, limitPrice, side})
	f.nextID++
	return fmt.Sprintf("msg-%d", f.nextID)
}

func (f *fakeClient) SendReviseOrderRequest(orderID string, revisedQuantity int64, revisedPrice decimal.Decimal) string {
	f.revises = append(f.revises, reviseCall{orderID, revisedQuantity, revisedPrice})
	return "revise-msg"
}

func (f *fakeClient) SendCancelOrderRequest(orderID string) string {
	f.cancels = append(f.cancels, orderID)
	return "cancel-msg"
}

func price(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestStrategy_Submit_SendsFirstSlice(t *testing.T) {
	client := &fakeClient{}
	s := NewStrategy(client, 30, 10, models.SideBuy, price("100"))

	s.Submit()

	require.Len(t, client.creates, 1)
	assert.Equal(t, int64(10), client.creates[0].quantity)
	assert.Equal(t, StateSent, s.lastSliceState)
}

// TestStrategy_Rollover covers spec scenario 4: a slice that completely
// fills before the parent's total is exhausted triggers the next slice
// automatically.
func TestStrategy_Rollover(t *testing.T) {
	client := &fakeClient{}
	s := NewStrategy(client, 25, 10, models.SideBuy, price("100"))
	s.Submit()
	s.OnSliceCreated("order-1", true)

	delta := s.OnSliceFill(10, true)
	assert.Equal(t, int64(10), delta)
	assert.Equal(t, int64(10), s.FilledQuantity())
	assert.Equal(t, StatePartFilled, s.ParentState())
	require.Len(t, client.creates, 2, "a fully filled slice with quantity left should roll to a new slice")
	assert.Equal(t, int64(10), client.creates[1].quantity)

	s.OnSliceCreated("order-2", true)
	delta = s.OnSliceFill(10, true)
	assert.Equal(t, int64(10), delta)
	assert.Equal(t, int64(20), s.FilledQuantity())
	require.Len(t, client.creates, 3, "a third slice rolls even though it nominally exceeds the 5 units left")
	assert.Equal(t, int64(10), client.creates[2].quantity, "final slice is still sent at the nominal slice size, not capped to the remainder")

	s.OnSliceCreated("order-3", true)
	delta = s.OnSliceFill(5, true)
	assert.Equal(t, int64(5), delta)
	assert.Equal(t, int64(25), s.FilledQuantity())
	assert.Equal(t, StateFilled, s.ParentState())
	assert.Len(t, client.creates, 3, "parent fully filled, no further slice should be sent")
}

func TestStrategy_OnSliceCreated_Rejected(t *testing.T) {
	client := &fakeClient{}
	s := NewStrategy(client, 10, 10, models.SideBuy, price("100"))
	s.Submit()

	s.OnSliceCreated("order-1", false)
	assert.Equal(t, StateRejected, s.ParentState())
}

// TestStrategy_Revise_RejectsTargetAlreadyFilled: a revise whose new total
// is no more than the quantity already filled is rejected without sending
// anything to the exchange.
func TestStrategy_Revise_RejectsTargetAlreadyFilled(t *testing.T) {
	client := &fakeClient{}
	s := NewStrategy(client, 20, 10, models.SideBuy, price("100"))
	s.Submit()
	s.OnSliceCreated("order-1", true)
	s.OnSliceFill(10, true)
	s.OnSliceCreated("order-2", true)

	s.Revise(10, price("100"))

	assert.Empty(t, client.cancels)
	assert.Empty(t, client.revises)
	assert.Equal(t, StateWorking, s.ParentState())
}

// TestStrategy_Revise_DownRevisesToOldSliceRemainder preserves the reference
// client's quirk: reducing the slice revises it down to the slice's OWN
// current open quantity, not to what the new parent target implies.
func TestStrategy_Revise_DownRevisesToOldSliceRemainder(t *testing.T) {
	client := &fakeClient{}
	s := NewStrategy(client, 30, 20, models.SideBuy, price("100"))
	s.Submit()
	s.OnSliceCreated("order-1", true)
	s.OnSliceFill(5, true) // slice open quantity is now 20-5=15

	// Revise parent down to 12 total, already filled 5, so revised open
	// quantity is 7 — less than the slice's own open remainder of 15.
	s.Revise(12, price("100"))

	require.Len(t, client.revises, 1)
	assert.Equal(t, int64(15), client.revises[0].quantity, "revises down to the slice's own remainder, not the new target")
	assert.Equal(t, StateReviseSent, s.ParentState())
}

func TestStrategy_Revise_PriceOnly(t *testing.T) {
	client := &fakeClient{}
	s := NewStrategy(client, 20, 10, models.SideBuy, price("100"))
	s.Submit()
	s.OnSliceCreated("order-1", true)

	s.Revise(20, price("101"))

	require.Len(t, client.revises, 1)
	assert.Equal(t, int64(10), client.revises[0].quantity)
	assert.True(t, client.revises[0].price.Equal(price("101")))
}

func TestStrategy_Revise_RejectsWhenNotActive(t *testing.T) {
	client := &fakeClient{}
	s := NewStrategy(client, 10, 10, models.SideBuy, price("100"))
	s.Submit()
	s.OnSliceCreated("order-1", false) // -> Rejected, terminal

	s.Revise(10, price("101"))
	assert.Empty(t, client.revises)
	assert.Empty(t, client.cancels)
}

func TestStrategy_OnReviseAck_Stale(t *testing.T) {
	client := &fakeClient{}
	s := NewStrategy(client, 20, 10, models.SideBuy, price("100"))
	s.Submit()
	s.OnSliceCreated("order-1", true)

	// No revise outstanding: ack should be ignored.
	s.OnReviseAck(15, price("101"), true)
	assert.Equal(t, StateWorking, s.lastSliceState)
}

func TestStrategy_Cancel_ThenAck(t *testing.T) {
	client := &fakeClient{}
	s := NewStrategy(client, 20, 10, models.SideBuy, price("100"))
	s.Submit()
	s.OnSliceCreated("order-1", true)

	s.Cancel()
	require.Len(t, client.cancels, 1)
	assert.Equal(t, StateCancelSent, s.ParentState())

	s.OnCancelAck(true)
	assert.Equal(t, StateCancelled, s.ParentState())
}

func TestStrategy_Cancel_StaleAckIgnored(t *testing.T) {
	client := &fakeClient{}
	s := NewStrategy(client, 20, 10, models.SideBuy, price("100"))
	s.Submit()
	s.OnSliceCreated("order-1", true)

	// No cancel outstanding.
	s.OnCancelAck(false)
	assert.Equal(t, StateWorking, s.ParentState())
}
