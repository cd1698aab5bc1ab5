package execution

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradeloop/internal/model"
)

const (
	DefaultBinanceURL        = "https://api.binance.com"
	DefaultBinanceTestnetURL = "https://testnet.binance.vision"
	binanceOrderPath         = "/api/v3/order"
	defaultRecvWindow        = 5000
)

// BinanceConfig holds signed-endpoint credentials.
type BinanceConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string        // default: testnet
	Timeout   time.Duration // default: 10s
}

// BinanceGateway places MARKET orders on Binance spot via the signed
// /api/v3/order endpoint.
type BinanceGateway struct {
	apiKey     string
	secret     []byte
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

var _ model.ExecutionGateway = (*BinanceGateway)(nil)

// NewBinanceGateway creates a signed order client.
func NewBinanceGateway(cfg BinanceConfig) *BinanceGateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBinanceTestnetURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &BinanceGateway{
		apiKey:     cfg.APIKey,
		secret:     []byte(cfg.APISecret),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
}

type binanceOrderResponse struct {
	Symbol       string `json:"symbol"`
	OrderID      int64  `json:"orderId"`
	TransactTime int64  `json:"transactTime"`
	Status       string `json:"status"`
	ExecutedQty  string `json:"executedQty"`
}

type binanceError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// sign returns the hex HMAC-SHA256 of payload.
func (g *BinanceGateway) sign(payload string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *BinanceGateway) SubmitOrder(ctx context.Context, req model.OrderRequest) (model.OrderConfirmation, error) {
	form := url.Values{}
	form.Set("symbol", req.Instrument)
	form.Set("side", string(req.Side))
	form.Set("type", "MARKET")
	form.Set("quantity", req.Qty.String())
	form.Set("recvWindow", strconv.Itoa(defaultRecvWindow))
	form.Set("timestamp", strconv.FormatInt(g.now().UnixMilli(), 10))
	payload := form.Encode()
	body := payload + "&signature=" + g.sign(payload)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+binanceOrderPath, strings.NewReader(body))
	if err != nil {
		return model.OrderConfirmation{}, fmt.Errorf("binance: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("X-MBX-APIKEY", g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return model.OrderConfirmation{}, ctx.Err()
		}
		return model.OrderConfirmation{}, fmt.Errorf("binance: order %s: %v: %w", req.Instrument, err, model.ErrOrderSubmission)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.OrderConfirmation{}, fmt.Errorf("binance: read body: %v: %w", err, model.ErrOrderSubmission)
	}
	if resp.StatusCode != http.StatusOK {
		var be binanceError
		if json.Unmarshal(raw, &be) == nil && be.Msg != "" {
			return model.OrderConfirmation{}, fmt.Errorf("binance: order %s: code %d: %s: %w", req.Instrument, be.Code, be.Msg, model.ErrOrderSubmission)
		}
		return model.OrderConfirmation{}, fmt.Errorf("binance: order %s: status %d: %w", req.Instrument, resp.StatusCode, model.ErrOrderSubmission)
	}

	var out binanceOrderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return model.OrderConfirmation{}, fmt.Errorf("binance: decode order: %v: %w", err, model.ErrOrderSubmission)
	}

	qty := req.Qty
	if out.ExecutedQty != "" {
		if q, err := decimal.NewFromString(out.ExecutedQty); err == nil && q.IsPositive() {
			qty = q
		}
	}
	submitted := g.now()
	if out.TransactTime > 0 {
		submitted = time.UnixMilli(out.TransactTime).UTC()
	}

	log.Printf("[binance] order %d %s %s status=%s", out.OrderID, req.Side, req.Instrument, out.Status)
	return model.OrderConfirmation{
		OrderID:     strconv.FormatInt(out.OrderID, 10),
		Instrument:  req.Instrument,
		Side:        req.Side,
		Qty:         qty,
		Status:      out.Status,
		SubmittedAt: submitted,
	}, nil
}
