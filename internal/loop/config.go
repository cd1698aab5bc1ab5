package loop

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"tradeloop/internal/indicator"
	"tradeloop/internal/model"
	"tradeloop/internal/strategy"
)

const (
	DefaultPollInterval = 60 * time.Second
	DefaultFetchLimit   = 100
)

// Config is read once when the loop starts and never mutated afterwards.
// Changing it means building a new Loop.
type Config struct {
	Instrument         string
	AllowedInstruments []string
	Interval           model.Interval
	PollInterval       time.Duration
	FetchLimit         int
	Indicators         []indicator.Name
	Rules              []strategy.RuleName
	Quantity           decimal.Decimal
	AutoTrade          bool

	Periods indicator.Config
	Signals strategy.Options
}

// DefaultConfig mirrors the dashboard defaults: BTCUSDT on 5m candles,
// SMA and RSI with the RSI rule, quantity 1, auto-trade off.
func DefaultConfig() Config {
	return Config{
		Instrument:         model.DefaultInstruments[0],
		AllowedInstruments: slices.Clone(model.DefaultInstruments),
		Interval:           model.DefaultInterval,
		PollInterval:       DefaultPollInterval,
		FetchLimit:         DefaultFetchLimit,
		Indicators:         []indicator.Name{indicator.SMA, indicator.RSI},
		Rules:              []strategy.RuleName{strategy.RuleRSI},
		Quantity:           decimal.NewFromInt(1),
		Periods:            indicator.DefaultConfig(),
		Signals:            strategy.DefaultOptions(),
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{model.ErrInvalidConfig}, args...)...)
}

// Validate checks the configuration. Every error wraps model.ErrInvalidConfig.
func (c Config) Validate() error {
	_, _, err := c.build()
	return err
}

// build validates c and constructs the engine and evaluator it describes.
func (c Config) build() (*indicator.Engine, *strategy.Evaluator, error) {
	allowed := c.AllowedInstruments
	if len(allowed) == 0 {
		allowed = model.DefaultInstruments
	}
	if c.Instrument == "" || !slices.Contains(allowed, c.Instrument) {
		return nil, nil, invalid("instrument %q not in allow-list %v", c.Instrument, allowed)
	}
	if !c.Interval.Valid() {
		return nil, nil, invalid("unsupported interval %q", c.Interval)
	}
	if c.PollInterval <= 0 {
		return nil, nil, invalid("poll interval must be positive, got %v", c.PollInterval)
	}
	if c.Quantity.LessThan(model.MinQuantity) {
		return nil, nil, invalid("quantity %s below minimum %s", c.Quantity, model.MinQuantity)
	}

	eng, err := indicator.NewEngine(c.Periods, c.Indicators)
	if err != nil {
		return nil, nil, invalid("%v", err)
	}
	if c.FetchLimit <= 0 {
		return nil, nil, invalid("fetch limit must be positive, got %d", c.FetchLimit)
	}
	if need := eng.RequiredHistory(); c.FetchLimit < need {
		return nil, nil, invalid("fetch limit %d below the %d candles the enabled indicators need", c.FetchLimit, need)
	}

	eval, err := strategy.NewEvaluator(c.Rules, c.Signals)
	if err != nil {
		return nil, nil, invalid("%v", err)
	}
	return eng, eval, nil
}
