// Package binance fetches klines from the Binance spot REST API.
package binance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tradeloop/internal/model"
)

const (
	DefaultBaseURL = "https://api.binance.com"
	klinesPath     = "/api/v3/klines"

	// MaxLimit is the largest page the klines endpoint serves.
	MaxLimit = 1000
)

// Config configures the client.
type Config struct {
	BaseURL string        // default: https://api.binance.com
	Timeout time.Duration // default: 10s
}

// Client implements model.MarketDataClient over the public klines endpoint.
// It needs no credentials.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ model.MarketDataClient = (*Client)(nil)

// New creates a klines client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// apiError is the error body Binance returns on 4xx.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// FetchCandles returns the newest limit klines, oldest first. The last
// kline may still be forming.
func (c *Client) FetchCandles(ctx context.Context, instrument string, interval model.Interval, limit int) (model.Series, error) {
	if limit <= 0 || limit > MaxLimit {
		return model.Series{}, fmt.Errorf("binance: limit %d out of range 1..%d: %w", limit, MaxLimit, model.ErrDataFetch)
	}
	if !interval.Valid() {
		return model.Series{}, fmt.Errorf("binance: interval %q: %w", interval, model.ErrDataFetch)
	}

	q := url.Values{}
	q.Set("symbol", instrument)
	q.Set("interval", string(interval))
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+klinesPath+"?"+q.Encode(), nil)
	if err != nil {
		return model.Series{}, fmt.Errorf("binance: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Series{}, fmt.Errorf("binance: klines %s: %v: %w", instrument, err, model.ErrDataFetch)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return model.Series{}, fmt.Errorf("binance: read body: %v: %w", err, model.ErrDataFetch)
	}

	if resp.StatusCode != http.StatusOK {
		var ae apiError
		if json.Unmarshal(body, &ae) == nil && ae.Msg != "" {
			return model.Series{}, fmt.Errorf("binance: klines %s: status %d code %d: %s: %w",
				instrument, resp.StatusCode, ae.Code, ae.Msg, model.ErrDataFetch)
		}
		return model.Series{}, fmt.Errorf("binance: klines %s: status %d: %w", instrument, resp.StatusCode, model.ErrDataFetch)
	}

	candles, err := parseKlines(body)
	if err != nil {
		return model.Series{}, fmt.Errorf("binance: klines %s: %v: %w", instrument, err, model.ErrDataFetch)
	}

	s := model.Series{Instrument: instrument, Interval: interval, Candles: candles}
	if err := s.Validate(); err != nil {
		return model.Series{}, fmt.Errorf("binance: klines %s: %v: %w", instrument, err, model.ErrDataFetch)
	}
	log.Printf("[binance] fetched %d %s/%s klines", s.Len(), instrument, interval)
	return s, nil
}

// parseKlines decodes [[openTime,"open","high","low","close","volume",...],...].
func parseKlines(body []byte) ([]model.Candle, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw [][]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}

	out := make([]model.Candle, 0, len(raw))
	for i, k := range raw {
		if len(k) < 6 {
			return nil, fmt.Errorf("kline %d: %d fields", i, len(k))
		}
		openMs, err := asInt(k[0])
		if err != nil {
			return nil, fmt.Errorf("kline %d open time: %w", i, err)
		}
		var vals [5]float64
		for j := range vals {
			if vals[j], err = asFloat(k[j+1]); err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, j+1, err)
			}
		}
		out = append(out, model.Candle{
			TS:     time.UnixMilli(openMs).UTC(),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	return out, nil
}

func asInt(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("unexpected %T", v)
}

// Prices arrive as strings; accept bare numbers too.
func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case string:
		return strconv.ParseFloat(n, 64)
	case json.Number:
		return n.Float64()
	}
	return 0, fmt.Errorf("unexpected %T", v)
}
