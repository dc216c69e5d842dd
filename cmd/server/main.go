// Command server wires together the order book, the iceberg strategy
// manager, and a message bus, then seeds a few bootstrap quotes so there is
// something on the book to trade against. The symbol (SYMBOL) and the
// transport (NATS_URL set: NATS; unset: in-process) are controlled by
// environment variables so the same binary covers a single-process demo and
// a NATS-connected one; the bootstrap quotes are seeded in both cases.
package main

import (
	"log"
	"os"

	"exchange-simulator/internal/engine"
	"exchange-simulator/internal/models"
	"exchange-simulator/internal/strategy"
	"exchange-simulator/internal/transport"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// strategy.Manager already exposes exactly the four handlers
// transport.Router requires, so it is wired in directly with no adapter.
var _ transport.Router = (*strategy.Manager)(nil)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[INFO] .env not loaded: %v", err)
	}

	log.Println("[INFO] starting exchange simulator...")

	symbol := os.Getenv("SYMBOL")
	book := engine.NewOrderBook(symbol)
	log.Printf("[INFO] order book initialized for symbol %q", book.Symbol)

	seedBootstrapQuotes(book)

	natsURL := os.Getenv("NATS_URL")
	if natsURL != "" {
		runWithNats(book, natsURL)
		return
	}
	runLocal(book)
}

// runLocal wires a LocalBus and a single StrategyManager in-process: useful
// for a demo binary that doesn't need a separate NATS server.
func runLocal(book *engine.OrderBook) {
	bus := transport.NewLocalBus(book)
	manager := strategy.NewManager(bus)
	bus.RegisterRouter(manager)

	log.Printf("[INFO] local bus ready, client_id=%s", bus.ClientID())
	select {}
}

// runWithNats subscribes book to the exchange's NATS request subjects and
// keeps the process alive serving them; a separate client process would
// dial the same URL with transport.DialNatsBus and its own strategy.Manager.
func runWithNats(book *engine.OrderBook, natsURL string) {
	server, err := transport.NewNatsServer(natsURL, book)
	if err != nil {
		log.Fatalf("[ERROR] failed to start nats server: %v", err)
	}
	defer server.Close()

	log.Printf("[INFO] nats server ready, listening at %s", natsURL)
	select {}
}

// seedBootstrapQuotes lays down a small resting book so a freshly started
// simulator has liquidity to trade against immediately. This is a demo
// convenience confined to the binary entry point, not part of the engine's
// own semantics.
func seedBootstrapQuotes(book *engine.OrderBook) {
	quotes := []struct {
		side  models.Side
		qty   int64
		price string
	}{
		{models.SideBuy, 100, "99.50"},
		{models.SideBuy, 200, "99.25"},
		{models.SideSell, 100, "100.50"},
		{models.SideSell, 200, "100.75"},
	}
	for _, q := range quotes {
		price, err := decimal.NewFromString(q.price)
		if err != nil {
			log.Printf("[WARN] failed to parse bootstrap price %q: %v", q.price, err)
			continue
		}
		book.CreateOrderRequest(q.side, "bootstrap", "bootstrap-client", q.qty, price)
	}
	log.Printf("[INFO] seeded %d bootstrap quotes", len(quotes))
}
