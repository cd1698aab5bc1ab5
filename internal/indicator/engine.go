package indicator

import (
	"errors"
	"fmt"
	"strconv"

	"tradeloop/internal/model"
)

// Config holds the indicator periods. Zero values are replaced by defaults.
type Config struct {
	SMAPeriod  int `yaml:"sma_period"`
	EMAPeriod  int `yaml:"ema_period"`
	RSIPeriod  int `yaml:"rsi_period"`
	MACDFast   int `yaml:"macd_fast"`
	MACDSlow   int `yaml:"macd_slow"`
	MACDSignal int `yaml:"macd_signal"`
}

// DefaultConfig returns SMA(20), EMA(20), RSI(14) and MACD(12,26,9).
func DefaultConfig() Config {
	return Config{
		SMAPeriod:  20,
		EMAPeriod:  20,
		RSIPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SMAPeriod == 0 {
		c.SMAPeriod = d.SMAPeriod
	}
	if c.EMAPeriod == 0 {
		c.EMAPeriod = d.EMAPeriod
	}
	if c.RSIPeriod == 0 {
		c.RSIPeriod = d.RSIPeriod
	}
	if c.MACDFast == 0 {
		c.MACDFast = d.MACDFast
	}
	if c.MACDSlow == 0 {
		c.MACDSlow = d.MACDSlow
	}
	if c.MACDSignal == 0 {
		c.MACDSignal = d.MACDSignal
	}
	return c
}

// InsufficientHistoryError reports a series too short for an indicator.
type InsufficientHistoryError struct {
	Indicator Name
	Need      int
	Have      int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s: need %d candles, have %d", e.Indicator, e.Need, e.Have)
}

// Is makes errors.Is(err, model.ErrInsufficientHistory) match.
func (e *InsufficientHistoryError) Is(target error) bool {
	return target == model.ErrInsufficientHistory
}

// Engine computes the requested indicators over a whole Series.
// It holds no state between calls: every Compute builds fresh indicators.
type Engine struct {
	cfg       Config
	requested []Name
}

// NewEngine creates an engine for the requested indicators.
func NewEngine(cfg Config, requested []Name) (*Engine, error) {
	cfg = cfg.withDefaults()
	if cfg.SMAPeriod < 1 || cfg.EMAPeriod < 1 || cfg.RSIPeriod < 1 ||
		cfg.MACDFast < 1 || cfg.MACDSlow < 1 || cfg.MACDSignal < 1 {
		return nil, fmt.Errorf("indicator periods must be positive: %+v", cfg)
	}
	if cfg.MACDFast >= cfg.MACDSlow {
		return nil, fmt.Errorf("MACD fast period %d must be below slow period %d", cfg.MACDFast, cfg.MACDSlow)
	}

	seen := make(map[Name]bool, len(requested))
	ordered := make([]Name, 0, len(requested))
	for _, n := range requested {
		if n == MACDSignal {
			n = MACD
		}
		parsed, err := ParseName(string(n))
		if err != nil {
			return nil, err
		}
		seen[parsed] = true
	}
	for _, n := range Requestable {
		if seen[n] {
			ordered = append(ordered, n)
		}
	}
	return &Engine{cfg: cfg, requested: ordered}, nil
}

// Requested returns the enabled indicators in canonical order.
func (e *Engine) Requested() []Name { return e.requested }

// MinHistory returns the number of candles the named indicator needs.
// MACD needs slow+signal so the crossover rule has two signal positions.
func (e *Engine) MinHistory(name Name) int {
	switch name {
	case SMA:
		return e.cfg.SMAPeriod
	case EMA:
		return e.cfg.EMAPeriod
	case RSI:
		return e.cfg.RSIPeriod + 1
	case MACD, MACDSignal:
		return e.cfg.MACDSlow + e.cfg.MACDSignal
	}
	return 0
}

// RequiredHistory returns the largest minimum window of the enabled indicators.
func (e *Engine) RequiredHistory() int {
	need := 0
	for _, n := range e.requested {
		need = max(need, e.MinHistory(n))
	}
	return need
}

// Compute derives the enabled indicators from the series closes.
//
// Indicators whose minimum window is not met are left out of the Set and
// reported through the returned error (every shortfall joined; each matches
// model.ErrInsufficientHistory). The Set still carries the indicators that
// could be computed.
func (e *Engine) Compute(s model.Series) (*Set, error) {
	closes := s.Closes()
	set := NewSet(len(closes))

	var errs []error
	for _, name := range e.requested {
		if need := e.MinHistory(name); len(closes) < need {
			errs = append(errs, &InsufficientHistoryError{Indicator: name, Need: need, Have: len(closes)})
			continue
		}
		if err := e.computeOne(set, name, closes); err != nil {
			return nil, err
		}
	}
	return set, errors.Join(errs...)
}

func (e *Engine) computeOne(set *Set, name Name, closes []float64) error {
	switch name {
	case SMA:
		return set.Put(SMA, "SMA_"+strconv.Itoa(e.cfg.SMAPeriod), trace(NewSMA(e.cfg.SMAPeriod), closes))
	case EMA:
		return set.Put(EMA, "EMA_"+strconv.Itoa(e.cfg.EMAPeriod), trace(NewEMA(e.cfg.EMAPeriod), closes))
	case RSI:
		return set.Put(RSI, "RSI_"+strconv.Itoa(e.cfg.RSIPeriod), trace(NewRSI(e.cfg.RSIPeriod), closes))
	case MACD:
		m := NewMACD(e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal)
		line := make(Line, len(closes))
		signal := make(Line, len(closes))
		for i, c := range closes {
			line[i], signal[i] = m.Next(c)
		}
		if err := set.Put(MACD, "MACD", line); err != nil {
			return err
		}
		return set.Put(MACDSignal, "MACD_signal", signal)
	}
	return fmt.Errorf("unknown indicator %q", name)
}

// trace feeds every value through ind, keeping the point at each position.
func trace(ind Indicator, xs []float64) Line {
	l := make(Line, len(xs))
	for i, x := range xs {
		l[i] = ind.Next(x)
	}
	return l
}
