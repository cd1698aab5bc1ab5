package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a market order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// MinQuantity is the smallest order quantity an operator may configure.
var MinQuantity = decimal.RequireFromString("0.01")

// OrderRequest is a market order for one instrument.
type OrderRequest struct {
	Instrument string          `json:"instrument"`
	Side       Side            `json:"side"`
	Qty        decimal.Decimal `json:"qty"`
}

// OrderConfirmation is the venue's acknowledgement of a submitted order.
// Its contents are opaque to the trading loop and only reported.
type OrderConfirmation struct {
	OrderID     string          `json:"order_id"`
	Instrument  string          `json:"instrument"`
	Side        Side            `json:"side"`
	Qty         decimal.Decimal `json:"qty"`
	Status      string          `json:"status"`
	SubmittedAt time.Time       `json:"submitted_at"`
}
