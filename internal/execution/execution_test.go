package execution

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeloop/internal/model"
)

func order(side model.Side, qty string) model.OrderRequest {
	return model.OrderRequest{Instrument: "BTCUSDT", Side: side, Qty: decimal.RequireFromString(qty)}
}

// countingGateway records calls and returns a fixed result.
type countingGateway struct {
	calls int
	err   error
}

func (c *countingGateway) SubmitOrder(_ context.Context, req model.OrderRequest) (model.OrderConfirmation, error) {
	c.calls++
	if c.err != nil {
		return model.OrderConfirmation{}, c.err
	}
	return model.OrderConfirmation{OrderID: "X-1", Instrument: req.Instrument, Side: req.Side, Qty: req.Qty, Status: "NEW"}, nil
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(order(model.SideBuy, "0.01")))
	assert.ErrorIs(t, Validate(order(model.SideBuy, "0.009")), model.ErrOrderSubmission)
	assert.ErrorIs(t, Validate(order("HOLD", "1")), model.ErrOrderSubmission)
	assert.ErrorIs(t, Validate(model.OrderRequest{Side: model.SideSell, Qty: decimal.NewFromInt(1)}), model.ErrOrderSubmission)
}

func TestExecutor_WrapsFailures(t *testing.T) {
	gw := &countingGateway{err: errors.New("venue down")}
	_, err := NewExecutor("test", gw).SubmitOrder(context.Background(), order(model.SideBuy, "0.5"))

	assert.ErrorIs(t, err, model.ErrOrderSubmission)
	assert.Contains(t, err.Error(), "venue down")
	assert.Equal(t, 1, gw.calls)
}

func TestExecutor_RejectsBeforeVenue(t *testing.T) {
	gw := &countingGateway{}
	_, err := NewExecutor("test", gw).SubmitOrder(context.Background(), order(model.SideBuy, "0.001"))
	assert.ErrorIs(t, err, model.ErrOrderSubmission)
	assert.Zero(t, gw.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewExecutor("test", gw).SubmitOrder(ctx, order(model.SideBuy, "1"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, gw.calls)
}

func TestPaperGateway_SequentialIDsAndSlippage(t *testing.T) {
	p := NewPaperGateway(10, func(string) (float64, bool) { return 100, true })

	c1, err := p.SubmitOrder(context.Background(), order(model.SideBuy, "0.01"))
	require.NoError(t, err)
	c2, err := p.SubmitOrder(context.Background(), order(model.SideSell, "0.02"))
	require.NoError(t, err)

	assert.Equal(t, "PAPER-1", c1.OrderID)
	assert.Equal(t, "PAPER-2", c2.OrderID)
	assert.Equal(t, "FILLED", c1.Status)
	assert.Equal(t, model.SideSell, c2.Side)
	assert.True(t, c2.Qty.Equal(decimal.RequireFromString("0.02")))

	fills := p.Fills()
	require.Len(t, fills, 2)
	assert.Equal(t, "100.1", fills[0].FillPrice.String())
	assert.Equal(t, "99.9", fills[1].FillPrice.String())
	assert.Equal(t, "0.1", fills[1].Slippage.String())
}

func TestPaperGateway_NoQuote(t *testing.T) {
	p := NewPaperGateway(10, nil)
	_, err := p.SubmitOrder(context.Background(), order(model.SideBuy, "1"))
	require.NoError(t, err)
	assert.True(t, p.Fills()[0].FillPrice.IsZero())
}

type fakePlacer struct {
	req alpaca.PlaceOrderRequest
	err error
}

func (f *fakePlacer) PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &alpaca.Order{ID: "a1b2", Status: "accepted", SubmittedAt: time.Unix(1700000000, 0)}, nil
}

func TestAlpacaGateway(t *testing.T) {
	f := &fakePlacer{}
	conf, err := NewAlpacaGatewayWithClient(f).SubmitOrder(context.Background(), order(model.SideSell, "0.25"))
	require.NoError(t, err)

	assert.Equal(t, "BTC/USDT", f.req.Symbol)
	assert.Equal(t, alpaca.Sell, f.req.Side)
	assert.Equal(t, alpaca.Market, f.req.Type)
	assert.Equal(t, alpaca.GTC, f.req.TimeInForce)
	require.NotNil(t, f.req.Qty)
	assert.Equal(t, "0.25", f.req.Qty.String())

	assert.Equal(t, "a1b2", conf.OrderID)
	assert.Equal(t, "accepted", conf.Status)
	assert.Equal(t, "BTCUSDT", conf.Instrument)
}

func TestAlpacaGateway_Error(t *testing.T) {
	_, err := NewAlpacaGatewayWithClient(&fakePlacer{err: errors.New("insufficient balance")}).
		SubmitOrder(context.Background(), order(model.SideBuy, "1"))
	assert.ErrorIs(t, err, model.ErrOrderSubmission)
}

func TestBinanceGateway_SignedOrder(t *testing.T) {
	const secret = "s3cr3t"
	var form url.Values
	var rawBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/order", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("X-MBX-APIKEY"))
		b, _ := io.ReadAll(r.Body)
		rawBody = string(b)
		form, _ = url.ParseQuery(rawBody)
		w.Write([]byte(`{"symbol":"BTCUSDT","orderId":28,"transactTime":1507725176595,"status":"FILLED","executedQty":"0.01000000"}`))
	}))
	defer srv.Close()

	g := NewBinanceGateway(BinanceConfig{APIKey: "key-1", APISecret: secret, BaseURL: srv.URL})
	g.now = func() time.Time { return time.UnixMilli(1507725176000) }

	conf, err := g.SubmitOrder(context.Background(), order(model.SideBuy, "0.01"))
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", form.Get("symbol"))
	assert.Equal(t, "BUY", form.Get("side"))
	assert.Equal(t, "MARKET", form.Get("type"))
	assert.Equal(t, "0.01", form.Get("quantity"))
	assert.Equal(t, "1507725176000", form.Get("timestamp"))

	// Signature covers everything before it.
	i := strings.LastIndex(rawBody, "&signature=")
	require.Positive(t, i)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(rawBody[:i]))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), form.Get("signature"))

	assert.Equal(t, "28", conf.OrderID)
	assert.Equal(t, "FILLED", conf.Status)
	assert.True(t, conf.Qty.Equal(decimal.RequireFromString("0.01")))
	assert.Equal(t, time.UnixMilli(1507725176595).UTC(), conf.SubmittedAt)
}

func TestBinanceGateway_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2010,"msg":"Account has insufficient balance for requested action."}`))
	}))
	defer srv.Close()

	_, err := NewBinanceGateway(BinanceConfig{BaseURL: srv.URL}).SubmitOrder(context.Background(), order(model.SideSell, "1"))
	assert.ErrorIs(t, err, model.ErrOrderSubmission)
	assert.Contains(t, err.Error(), "insufficient balance")
}

