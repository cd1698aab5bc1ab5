// Package execution submits market orders for emitted signals.
//
// Gateways are fire-and-forget: one call per signal, no retries, no order
// state tracking. Every failure is wrapped with model.ErrOrderSubmission so
// the loop can classify it.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log"

	"tradeloop/internal/model"
)

// Executor validates an order request, forwards it to the wrapped gateway
// and logs the outcome.
type Executor struct {
	next model.ExecutionGateway
	name string
}

var _ model.ExecutionGateway = (*Executor)(nil)

// NewExecutor wraps gw. name labels log lines, e.g. "paper" or "binance".
func NewExecutor(name string, gw model.ExecutionGateway) *Executor {
	return &Executor{next: gw, name: name}
}

// Validate checks the request before it reaches a venue.
func Validate(req model.OrderRequest) error {
	if req.Instrument == "" {
		return fmt.Errorf("empty instrument: %w", model.ErrOrderSubmission)
	}
	if req.Side != model.SideBuy && req.Side != model.SideSell {
		return fmt.Errorf("invalid side %q: %w", req.Side, model.ErrOrderSubmission)
	}
	if req.Qty.LessThan(model.MinQuantity) {
		return fmt.Errorf("quantity %s below minimum %s: %w", req.Qty, model.MinQuantity, model.ErrOrderSubmission)
	}
	return nil
}

func (e *Executor) SubmitOrder(ctx context.Context, req model.OrderRequest) (model.OrderConfirmation, error) {
	if err := Validate(req); err != nil {
		return model.OrderConfirmation{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.OrderConfirmation{}, err
	}

	log.Printf("[executor] %s submitting %s %s qty=%s", e.name, req.Side, req.Instrument, req.Qty)
	conf, err := e.next.SubmitOrder(ctx, req)
	if err != nil {
		log.Printf("[executor] %s %s %s failed: %v", e.name, req.Side, req.Instrument, err)
		return model.OrderConfirmation{}, wrapSubmission(e.name, err)
	}
	log.Printf("[executor] %s order=%s status=%s", e.name, conf.OrderID, conf.Status)
	return conf, nil
}

// wrapSubmission tags err as an order submission failure unless it already
// is one or is a context error.
func wrapSubmission(venue string, err error) error {
	if errors.Is(err, model.ErrOrderSubmission) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s: %v: %w", venue, err, model.ErrOrderSubmission)
}
