package strategy

import (
	"fmt"

	"tradeloop/internal/indicator"
)

// Rule inspects an indicator Set and returns a Signal, or nil to skip.
type Rule interface {
	// Name returns the rule identifier.
	Name() RuleName

	// Evaluate looks at the newest (and, for transitions, prior) position.
	Evaluate(set *indicator.Set) *Signal

	// Requires returns the indicator the rule reads.
	Requires() indicator.Name
}

// Options tunes the built-in rules.
type Options struct {
	Oversold   float64 `yaml:"oversold"`
	Overbought float64 `yaml:"overbought"`

	// RSIEdgeTriggered makes the RSI rule fire only on the cycle where RSI
	// crosses a threshold instead of every cycle it stays beyond it.
	RSIEdgeTriggered bool `yaml:"rsi_edge_triggered"`
}

// DefaultOptions returns the 30/70 level-triggered configuration.
func DefaultOptions() Options {
	return Options{Oversold: 30, Overbought: 70}
}

// Evaluator runs the enabled rules in declaration order (RSI before MACD).
type Evaluator struct {
	rules []Rule
}

// NewEvaluator builds an evaluator for the named rules.
func NewEvaluator(names []RuleName, opts Options) (*Evaluator, error) {
	if opts.Oversold == 0 && opts.Overbought == 0 {
		d := DefaultOptions()
		opts.Oversold, opts.Overbought = d.Oversold, d.Overbought
	}
	if opts.Oversold < 0 || opts.Overbought > 100 || opts.Oversold >= opts.Overbought {
		return nil, fmt.Errorf("invalid RSI thresholds %.2f/%.2f", opts.Oversold, opts.Overbought)
	}

	enabled := make(map[RuleName]bool, len(names))
	for _, n := range names {
		rn, err := ParseRule(string(n))
		if err != nil {
			return nil, err
		}
		enabled[rn] = true
	}

	e := &Evaluator{}
	for _, n := range ruleOrder {
		if !enabled[n] {
			continue
		}
		switch n {
		case RuleRSI:
			e.rules = append(e.rules, NewRSIThreshold(opts.Oversold, opts.Overbought, opts.RSIEdgeTriggered))
		case RuleMACDCrossover:
			e.rules = append(e.rules, NewMACDCrossover())
		}
	}
	return e, nil
}

// Rules returns the enabled rules in evaluation order.
func (e *Evaluator) Rules() []Rule { return e.rules }

// Evaluate returns the signals of every rule that fired, in rule order.
func (e *Evaluator) Evaluate(set *indicator.Set) []Signal {
	var out []Signal
	for _, r := range e.rules {
		if sig := r.Evaluate(set); sig != nil {
			out = append(out, *sig)
		}
	}
	return out
}
