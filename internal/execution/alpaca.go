package execution

import (
	"context"
	"fmt"
	"log"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"tradeloop/internal/model"
)

// DefaultAlpacaPaperURL is Alpaca's paper trading endpoint.
const DefaultAlpacaPaperURL = "https://paper-api.alpaca.markets"

// OrderPlacer is the part of *alpaca.Client the gateway uses.
type OrderPlacer interface {
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
}

// AlpacaConfig holds trading API credentials.
type AlpacaConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string // default: paper trading
}

// AlpacaGateway places crypto market orders through the Alpaca trading API.
type AlpacaGateway struct {
	client OrderPlacer
}

var _ model.ExecutionGateway = (*AlpacaGateway)(nil)

// NewAlpacaGateway creates a gateway backed by the official SDK.
func NewAlpacaGateway(cfg AlpacaConfig) *AlpacaGateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAlpacaPaperURL
	}
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.BaseURL,
	})
	log.Printf("[alpaca] trading client targeting %s", cfg.BaseURL)
	return NewAlpacaGatewayWithClient(client)
}

// NewAlpacaGatewayWithClient wraps any OrderPlacer.
func NewAlpacaGatewayWithClient(c OrderPlacer) *AlpacaGateway {
	return &AlpacaGateway{client: c}
}

func (g *AlpacaGateway) SubmitOrder(ctx context.Context, req model.OrderRequest) (model.OrderConfirmation, error) {
	if err := ctx.Err(); err != nil {
		return model.OrderConfirmation{}, err
	}

	side := alpaca.Buy
	if req.Side == model.SideSell {
		side = alpaca.Sell
	}
	qty := req.Qty
	symbol := model.PairSymbol(req.Instrument)

	// Crypto orders accept GTC or IOC only.
	order, err := g.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:      symbol,
		Qty:         &qty,
		Side:        side,
		Type:        alpaca.Market,
		TimeInForce: alpaca.GTC,
	})
	if err != nil {
		return model.OrderConfirmation{}, fmt.Errorf("alpaca: place %s %s: %v: %w", req.Side, symbol, err, model.ErrOrderSubmission)
	}

	log.Printf("[alpaca] order created: %s | ID: %s | Status: %s", symbol, order.ID, order.Status)
	return model.OrderConfirmation{
		OrderID:     order.ID,
		Instrument:  req.Instrument,
		Side:        req.Side,
		Qty:         req.Qty,
		Status:      order.Status,
		SubmittedAt: order.SubmittedAt,
	}, nil
}
