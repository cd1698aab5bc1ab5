// Package config loads process configuration from the environment (and an
// optional .env file) and the trading loop's settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"tradeloop/internal/indicator"
	"tradeloop/internal/loop"
	"tradeloop/internal/model"
	"tradeloop/internal/strategy"
)

// DefaultLoopFile is read when LOOP_CONFIG is unset.
const DefaultLoopFile = "config/loop.yaml"

// Market data providers.
const (
	ProviderBinance = "binance"
	ProviderAlpaca  = "alpaca"
)

// Execution gateways.
const (
	GatewayPaper   = "paper"
	GatewayBinance = "binance"
	GatewayAlpaca  = "alpaca"
)

// Config holds all application configuration.
type Config struct {
	// Venues
	DataProvider string
	Gateway      string

	BinanceBaseURL    string
	BinanceTradeURL   string
	BinanceAPIKey     string
	BinanceAPISecret  string
	AlpacaAPIKey      string
	AlpacaAPISecret   string
	AlpacaTradeURL    string
	AlpacaDataURL     string
	PaperSlippageBps  int64
	RequestTimeoutSec int

	// Infrastructure
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string // empty disables the candle archive
	HTTPAddr      string
	LogLevel      string
	HistorySize   int

	// Notifications
	WebhookURL     string
	TelegramToken  string
	TelegramChatID string

	LoopFile string
	Loop     loop.Config
}

// Load reads .env (if present), the environment and the loop file, and
// validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[config] .env not loaded: %v", err)
	}

	c := &Config{
		DataProvider: strings.ToLower(getEnv("DATA_PROVIDER", ProviderBinance)),
		Gateway:      strings.ToLower(getEnv("EXECUTION_GATEWAY", GatewayPaper)),

		BinanceBaseURL:    getEnv("BINANCE_BASE_URL", "https://api.binance.com"),
		BinanceTradeURL:   getEnv("BINANCE_TRADE_URL", "https://testnet.binance.vision"),
		BinanceAPIKey:     getEnv("BINANCE_API_KEY", ""),
		BinanceAPISecret:  getEnv("BINANCE_API_SECRET", ""),
		AlpacaAPIKey:      getEnv("APCA_API_KEY_ID", ""),
		AlpacaAPISecret:   getEnv("APCA_API_SECRET_KEY", ""),
		AlpacaTradeURL:    getEnv("APCA_API_BASE_URL", "https://paper-api.alpaca.markets"),
		AlpacaDataURL:     getEnv("APCA_DATA_URL", ""),
		PaperSlippageBps:  int64(getEnvInt("PAPER_SLIPPAGE_BPS", 0)),
		RequestTimeoutSec: getEnvInt("REQUEST_TIMEOUT_SEC", 10),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		SQLitePath:    getEnv("SQLITE_PATH", ""),
		HTTPAddr:      getEnv("HTTP_ADDR", ":9090"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		HistorySize:   getEnvInt("HISTORY_SIZE", 50),

		WebhookURL:     getEnv("WEBHOOK_URL", ""),
		TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID: getEnv("TELEGRAM_CHAT_ID", ""),

		LoopFile: getEnv("LOOP_CONFIG", ""),
	}

	path, required := c.LoopFile, true
	if path == "" {
		path, required = DefaultLoopFile, false
	}
	lc, err := LoadLoop(path, required)
	if err != nil {
		return nil, err
	}
	if err := applyEnv(&lc); err != nil {
		return nil, err
	}
	c.Loop = lc
	c.LoopFile = path

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks venue selection, credentials and the loop settings.
func (c *Config) Validate() error {
	switch c.DataProvider {
	case ProviderBinance:
	case ProviderAlpaca:
		if c.AlpacaAPIKey == "" || c.AlpacaAPISecret == "" {
			return invalid("alpaca market data requires APCA_API_KEY_ID and APCA_API_SECRET_KEY")
		}
	default:
		return invalid("unknown DATA_PROVIDER %q", c.DataProvider)
	}

	if c.Loop.AutoTrade {
		switch c.Gateway {
		case GatewayPaper:
		case GatewayBinance:
			if c.BinanceAPIKey == "" || c.BinanceAPISecret == "" {
				return invalid("binance execution requires BINANCE_API_KEY and BINANCE_API_SECRET")
			}
		case GatewayAlpaca:
			if c.AlpacaAPIKey == "" || c.AlpacaAPISecret == "" {
				return invalid("alpaca execution requires APCA_API_KEY_ID and APCA_API_SECRET_KEY")
			}
		default:
			return invalid("unknown EXECUTION_GATEWAY %q", c.Gateway)
		}
	}
	if c.TelegramToken != "" && c.TelegramChatID == "" {
		return invalid("TELEGRAM_CHAT_ID is required with TELEGRAM_BOT_TOKEN")
	}
	return c.Loop.Validate()
}

// RequestTimeout returns the per-request timeout for venue HTTP calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// loopFile is the on-disk shape of the loop settings.
type loopFile struct {
	Instrument         string           `yaml:"instrument"`
	AllowedInstruments []string         `yaml:"allowed_instruments"`
	Interval           string           `yaml:"interval"`
	PollInterval       string           `yaml:"poll_interval"`
	FetchLimit         int              `yaml:"fetch_limit"`
	Indicators         []string         `yaml:"indicators"`
	Rules              []string         `yaml:"rules"`
	Quantity           string           `yaml:"quantity"`
	AutoTrade          bool             `yaml:"auto_trade"`
	Periods            indicator.Config `yaml:"periods"`
	Signals            strategy.Options `yaml:"signals"`
}

// LoadLoop reads loop settings from path on top of loop.DefaultConfig. A
// missing file yields the defaults unless required is set.
func LoadLoop(path string, required bool) (loop.Config, error) {
	cfg := loop.DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			log.Printf("[config] %s not found, using loop defaults", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read loop config: %w", err)
	}

	f := loopFile{Periods: cfg.Periods, Signals: cfg.Signals}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return cfg, invalid("parse %s: %v", path, err)
	}

	if f.Instrument != "" {
		cfg.Instrument = strings.ToUpper(f.Instrument)
	}
	if len(f.AllowedInstruments) > 0 {
		cfg.AllowedInstruments = f.AllowedInstruments
	}
	if f.Interval != "" {
		iv, err := model.ParseInterval(f.Interval)
		if err != nil {
			return cfg, invalid("%v", err)
		}
		cfg.Interval = iv
	}
	if f.PollInterval != "" {
		d, err := time.ParseDuration(f.PollInterval)
		if err != nil {
			return cfg, invalid("poll_interval: %v", err)
		}
		cfg.PollInterval = d
	}
	if f.FetchLimit != 0 {
		cfg.FetchLimit = f.FetchLimit
	}
	if f.Indicators != nil {
		if cfg.Indicators, err = parseIndicators(f.Indicators); err != nil {
			return cfg, err
		}
	}
	if f.Rules != nil {
		if cfg.Rules, err = parseRules(f.Rules); err != nil {
			return cfg, err
		}
	}
	if f.Quantity != "" {
		if cfg.Quantity, err = parseQuantity(f.Quantity); err != nil {
			return cfg, err
		}
	}
	cfg.AutoTrade = f.AutoTrade
	cfg.Periods = f.Periods
	cfg.Signals = f.Signals
	return cfg, nil
}

// applyEnv overrides loop settings from the environment.
func applyEnv(cfg *loop.Config) error {
	var err error
	if v := os.Getenv("SYMBOL"); v != "" {
		cfg.Instrument = strings.ToUpper(strings.TrimSpace(v))
	}
	if v := os.Getenv("INTERVAL"); v != "" {
		if cfg.Interval, err = model.ParseInterval(v); err != nil {
			return invalid("INTERVAL: %v", err)
		}
	}
	if v := os.Getenv("POLL_INTERVAL_SEC"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return invalid("POLL_INTERVAL_SEC: %v", err)
		}
		cfg.PollInterval = time.Duration(n) * time.Second
	}
	if v := os.Getenv("FETCH_LIMIT"); v != "" {
		if cfg.FetchLimit, err = strconv.Atoi(v); err != nil {
			return invalid("FETCH_LIMIT: %v", err)
		}
	}
	if v := os.Getenv("INDICATORS"); v != "" {
		if cfg.Indicators, err = parseIndicators(splitList(v)); err != nil {
			return err
		}
	}
	if v := os.Getenv("RULES"); v != "" {
		if cfg.Rules, err = parseRules(splitList(v)); err != nil {
			return err
		}
	}
	if v := os.Getenv("QUANTITY"); v != "" {
		if cfg.Quantity, err = parseQuantity(v); err != nil {
			return err
		}
	}
	if v := os.Getenv("AUTO_TRADE"); v != "" {
		if cfg.AutoTrade, err = strconv.ParseBool(v); err != nil {
			return invalid("AUTO_TRADE: %v", err)
		}
	}
	if v := os.Getenv("RSI_EDGE_TRIGGERED"); v != "" {
		if cfg.Signals.RSIEdgeTriggered, err = strconv.ParseBool(v); err != nil {
			return invalid("RSI_EDGE_TRIGGERED: %v", err)
		}
	}
	return nil
}

func parseIndicators(ss []string) ([]indicator.Name, error) {
	out := make([]indicator.Name, 0, len(ss))
	for _, s := range ss {
		n, err := indicator.ParseName(s)
		if err != nil {
			return nil, invalid("%v", err)
		}
		out = append(out, n)
	}
	return out, nil
}

func parseRules(ss []string) ([]strategy.RuleName, error) {
	out := make([]strategy.RuleName, 0, len(ss))
	for _, s := range ss {
		r, err := strategy.ParseRule(s)
		if err != nil {
			return nil, invalid("%v", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func parseQuantity(s string) (decimal.Decimal, error) {
	q, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, invalid("quantity %q: %v", s, err)
	}
	return q, nil
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{model.ErrInvalidConfig}, args...)...)
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %t", key, v, fallback)
		return fallback
	}
	return b
}
