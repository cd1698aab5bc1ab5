// Package strategy evaluates rule-based trading signals over an indicator Set.
//
// Rules look only at the newest aligned position and, where a rule needs a
// transition, the position before it. A rule whose indicator is missing or
// still warming up contributes nothing; that is not an error.
package strategy

import (
	"fmt"
	"strings"

	"tradeloop/internal/model"
)

// Action represents a trading action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Side maps the action to an order side.
func (a Action) Side() model.Side {
	if a == ActionSell {
		return model.SideSell
	}
	return model.SideBuy
}

// RuleName identifies a signal rule.
type RuleName string

const (
	RuleRSI           RuleName = "RSI"
	RuleMACDCrossover RuleName = "MACD_CROSSOVER"
)

// ruleOrder is the declaration order signals are emitted in.
var ruleOrder = []RuleName{RuleRSI, RuleMACDCrossover}

// ParseRule accepts the rule names used in config files and by the dashboard
// ("RSI", "RSI Buy/Sell", "MACD", "MACD Crossover", "macd_crossover").
func ParseRule(s string) (RuleName, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch norm {
	case "RSI", "RSI_BUY/SELL", "RSI_THRESHOLD":
		return RuleRSI, nil
	case "MACD", "MACD_CROSSOVER":
		return RuleMACDCrossover, nil
	}
	return "", fmt.Errorf("unknown signal rule %q", s)
}

// Signal is a trade signal produced by one rule in one cycle.
type Signal struct {
	Action Action   `json:"action"`
	Rule   RuleName `json:"rule"`
	Reason string   `json:"reason"`
}

// String renders the signal the way the dashboard lists it,
// e.g. "Buy Signal (RSI below 30)".
func (s Signal) String() string {
	kind := "Buy"
	if s.Action == ActionSell {
		kind = "Sell"
	}
	return kind + " Signal (" + s.Reason + ")"
}
