package transport

import (
	"encoding/json"
	"fmt"
	"log"

	"exchange-simulator/internal/models"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
)

// Exchange request subjects. The engine side subscribes to all three and
// publishes every response to "client.<client_id>.responses".
const (
	subjectCreate = "exchange.create"
	subjectRevise = "exchange.revise"
	subjectCancel = "exchange.cancel"
)

func clientSubject(clientID string) string {
	return fmt.Sprintf("client.%s.responses", clientID)
}

// NatsBus is a real message-bus client connection: requests are published
// as JSON to the exchange's request subjects, and responses addressed to
// this client_id are delivered to a registered Router via an async
// subscription (so the NATS client library's own dispatch goroutine, not
// the caller's, runs the Router — the same non-reentrancy property LocalBus
// provides by spawning one goroutine per request's responses).
type NatsBus struct {
	conn     *nats.Conn
	clientID string
	pending  *pendingRequests
	sub      *nats.Subscription
}

// DialNatsBus connects to a NATS server at url and identifies this
// connection with a freshly generated client_id.
func DialNatsBus(url string) (*NatsBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return &NatsBus{
		conn:     conn,
		clientID: uuid.NewString(),
		pending:  newPendingRequests(),
	}, nil
}

// ClientID returns the client_id this bus identifies itself as.
func (b *NatsBus) ClientID() string { return b.clientID }

// Close unsubscribes and closes the underlying NATS connection.
func (b *NatsBus) Close() {
	if b.sub != nil {
		if err := b.sub.Unsubscribe(); err != nil {
			log.Printf("[WARN] failed to unsubscribe: %v", err)
		}
	}
	b.conn.Close()
}

// RegisterRouter subscribes to this client's private response subject and
// delivers every decoded envelope to router, on the NATS client library's
// own async-subscription goroutine.
func (b *NatsBus) RegisterRouter(router Router) error {
	sub, err := b.conn.Subscribe(clientSubject(b.clientID), func(msg *nats.Msg) {
		resp, err := models.DecodeResponseEnvelope(msg.Data)
		if err != nil {
			log.Printf("[ERROR] failed to decode response envelope: %v", err)
			return
		}
		if resp.RecipientClientID() != b.clientID {
			log.Printf("[ERROR] current client ID: %s, received: %s", b.clientID, resp.RecipientClientID())
			return
		}
		route(router, b.pending, resp)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", clientSubject(b.clientID), err)
	}
	b.sub = sub
	return nil
}

// SendCreateOrderRequest implements iceberg.ExchangeClient.
func (b *NatsBus) SendCreateOrderRequest(quantity int64, limitPrice decimal.Decimal, side models.Side) string {
	req := models.CreateOrderRequest{
		ClientMsgID: uuid.NewString(),
		ClientID:    b.clientID,
		Quantity:    quantity,
		LimitPrice:  limitPrice,
		Side:        side,
	}
	b.pending.record(req.ClientMsgID, kindCreate)
	b.publish(subjectCreate, req)
	return req.ClientMsgID
}

// SendReviseOrderRequest implements iceberg.ExchangeClient.
func (b *NatsBus) SendReviseOrderRequest(orderID string, revisedQuantity int64, revisedPrice decimal.Decimal) string {
	req := models.ReviseOrderRequest{
		ClientMsgID:     uuid.NewString(),
		ClientID:        b.clientID,
		OrderID:         orderID,
		RevisedQuantity: &revisedQuantity,
		RevisedPrice:    &revisedPrice,
	}
	b.pending.record(req.ClientMsgID, kindRevise)
	b.publish(subjectRevise, req)
	return req.ClientMsgID
}

// SendCancelOrderRequest implements iceberg.ExchangeClient.
func (b *NatsBus) SendCancelOrderRequest(orderID string) string {
	req := models.CancelOrderRequest{
		ClientMsgID: uuid.NewString(),
		ClientID:    b.clientID,
		OrderID:     orderID,
	}
	b.pending.record(req.ClientMsgID, kindCancel)
	b.publish(subjectCancel, req)
	return req.ClientMsgID
}

func (b *NatsBus) publish(subject string, request any) {
	data, err := json.Marshal(request)
	if err != nil {
		log.Printf("[ERROR] failed to marshal request for %s: %v", subject, err)
		return
	}
	log.Printf("[INFO] publishing to %s: %s", subject, data)
	if err := b.conn.Publish(subject, data); err != nil {
		log.Printf("[ERROR] failed to publish to %s: %v", subject, err)
	}
}

// NatsServer is the engine side's half of the connection: it subscribes to
// the three request subjects, applies each to book, and publishes every
// response to the requesting client's private subject.
type NatsServer struct {
	conn *nats.Conn
	book orderBook
}

// orderBook is the subset of engine.OrderBook the NATS server needs; kept
// as an interface so nats.go stays decoupled from the concrete engine
// package in the dependency graph (transport already imports engine in
// local.go, but a narrow interface here keeps this file's surface minimal
// and testable with a fake book).
type orderBook interface {
	CreateOrderRequest(side models.Side, clientMsgID, clientID string, quantity int64, limitPrice decimal.Decimal) []models.ResponseEnvelope
	ReviseOrderRequest(clientMsgID, clientID, orderID string, revisedQuantity *int64, revisedPrice *decimal.Decimal) []models.ResponseEnvelope
	CancelOrderRequest(clientMsgID, clientID, orderID string) []models.ResponseEnvelope
}

// NewNatsServer connects to url and wires its subscriptions to book.
func NewNatsServer(url string, book orderBook) (*NatsServer, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	s := &NatsServer{conn: conn, book: book}
	if err := s.subscribeAll(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *NatsServer) subscribeAll() error {
	if _, err := s.conn.Subscribe(subjectCreate, s.handleCreate); err != nil {
		return fmt.Errorf("subscribe %s: %w", subjectCreate, err)
	}
	if _, err := s.conn.Subscribe(subjectRevise, s.handleRevise); err != nil {
		return fmt.Errorf("subscribe %s: %w", subjectRevise, err)
	}
	if _, err := s.conn.Subscribe(subjectCancel, s.handleCancel); err != nil {
		return fmt.Errorf("subscribe %s: %w", subjectCancel, err)
	}
	return nil
}

func (s *NatsServer) handleCreate(msg *nats.Msg) {
	var req models.CreateOrderRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		log.Printf("[ERROR] failed to decode create request: %v", err)
		return
	}
	responses := s.book.CreateOrderRequest(req.Side, req.ClientMsgID, req.ClientID, req.Quantity, req.LimitPrice)
	s.publishAll(req.ClientID, responses)
}

func (s *NatsServer) handleRevise(msg *nats.Msg) {
	var req models.ReviseOrderRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		log.Printf("[ERROR] failed to decode revise request: %v", err)
		return
	}
	responses := s.book.ReviseOrderRequest(req.ClientMsgID, req.ClientID, req.OrderID, req.RevisedQuantity, req.RevisedPrice)
	s.publishAll(req.ClientID, responses)
}

func (s *NatsServer) handleCancel(msg *nats.Msg) {
	var req models.CancelOrderRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		log.Printf("[ERROR] failed to decode cancel request: %v", err)
		return
	}
	responses := s.book.CancelOrderRequest(req.ClientMsgID, req.ClientID, req.OrderID)
	s.publishAll(req.ClientID, responses)
}

func (s *NatsServer) publishAll(clientID string, responses []models.ResponseEnvelope) {
	for _, resp := range responses {
		data, err := json.Marshal(resp)
		if err != nil {
			log.Printf("[ERROR] failed to marshal response: %v", err)
			continue
		}
		if err := s.conn.Publish(clientSubject(clientID), data); err != nil {
			log.Printf("[ERROR] failed to publish response: %v", err)
		}
	}
}

// Close closes the underlying NATS connection.
func (s *NatsServer) Close() {
	s.conn.Close()
}
