package execution

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradeloop/internal/model"
)

// Fill represents a simulated order fill.
type Fill struct {
	OrderID   string             `json:"order_id"`
	Request   model.OrderRequest `json:"request"`
	FillPrice decimal.Decimal    `json:"fill_price"` // zero when no quote was available
	FilledAt  time.Time          `json:"filled_at"`
	Slippage  decimal.Decimal    `json:"slippage"`
}

// QuoteFunc returns the reference price for instrument, if known.
type QuoteFunc func(instrument string) (float64, bool)

// PaperGateway simulates order execution without real venue calls.
// Useful for backtesting and paper trading.
type PaperGateway struct {
	mu       sync.RWMutex
	fills    []Fill
	orderSeq int64

	// Simulation parameters
	slippageBps int64 // basis points of slippage (e.g., 5 = 0.05%)
	quote       QuoteFunc
	now         func() time.Time
}

var _ model.ExecutionGateway = (*PaperGateway)(nil)

// NewPaperGateway creates a paper trading gateway.
// slippageBps controls simulated slippage in basis points; quote may be nil.
func NewPaperGateway(slippageBps int64, quote QuoteFunc) *PaperGateway {
	return &PaperGateway{
		fills:       make([]Fill, 0, 64),
		slippageBps: slippageBps,
		quote:       quote,
		now:         time.Now,
	}
}

// Fills returns a snapshot of all fills.
func (p *PaperGateway) Fills() []Fill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

func (p *PaperGateway) SubmitOrder(ctx context.Context, req model.OrderRequest) (model.OrderConfirmation, error) {
	if err := ctx.Err(); err != nil {
		return model.OrderConfirmation{}, err
	}

	p.mu.Lock()
	p.orderSeq++
	orderID := fmt.Sprintf("PAPER-%d", p.orderSeq)

	// Market order: fill at the quote, moved against us by the slippage.
	fillPrice := decimal.Zero
	slippage := decimal.Zero
	if p.quote != nil {
		if px, ok := p.quote(req.Instrument); ok && px > 0 {
			fillPrice = decimal.NewFromFloat(px)
			if p.slippageBps > 0 {
				slippage = fillPrice.Mul(decimal.NewFromInt(p.slippageBps)).Div(decimal.NewFromInt(10000))
				if req.Side == model.SideBuy {
					fillPrice = fillPrice.Add(slippage) // buy higher
				} else {
					fillPrice = fillPrice.Sub(slippage) // sell lower
				}
			}
		}
	}

	now := p.now()
	p.fills = append(p.fills, Fill{
		OrderID:   orderID,
		Request:   req,
		FillPrice: fillPrice,
		FilledAt:  now,
		Slippage:  slippage,
	})
	p.mu.Unlock()

	log.Printf("[paper] %s %s qty=%s price=%s (slip=%s) order=%s",
		req.Side, req.Instrument, req.Qty, fillPrice, slippage, orderID)

	return model.OrderConfirmation{
		OrderID:     orderID,
		Instrument:  req.Instrument,
		Side:        req.Side,
		Qty:         req.Qty,
		Status:      "FILLED",
		SubmittedAt: now,
	}, nil
}

