package strategy

import (
	"strconv"

	"tradeloop/internal/indicator"
)

// RSIThreshold emits Buy below the oversold level and Sell above the
// overbought level. Values exactly on a level produce nothing.
//
// Level-triggered (default): re-evaluated from the latest value alone, so a
// sustained condition fires every cycle. Edge-triggered: fires only when the
// prior value was not already beyond the same level.
type RSIThreshold struct {
	oversold   float64
	overbought float64
	edge       bool
}

// NewRSIThreshold creates the RSI rule.
func NewRSIThreshold(oversold, overbought float64, edgeTriggered bool) *RSIThreshold {
	return &RSIThreshold{oversold: oversold, overbought: overbought, edge: edgeTriggered}
}

func (r *RSIThreshold) Name() RuleName            { return RuleRSI }
func (r *RSIThreshold) Requires() indicator.Name { return indicator.RSI }

func (r *RSIThreshold) Evaluate(set *indicator.Set) *Signal {
	line, ok := set.Line(indicator.RSI)
	if !ok {
		return nil
	}
	latest, ok := line.Last()
	if !ok {
		return nil
	}

	var prior float64
	if r.edge {
		if prior, ok = line.Prior(); !ok {
			return nil
		}
	}

	switch {
	case latest < r.oversold:
		if r.edge && prior < r.oversold {
			return nil
		}
		return &Signal{Action: ActionBuy, Rule: RuleRSI, Reason: "RSI below " + fmtLevel(r.oversold)}
	case latest > r.overbought:
		if r.edge && prior > r.overbought {
			return nil
		}
		return &Signal{Action: ActionSell, Rule: RuleRSI, Reason: "RSI above " + fmtLevel(r.overbought)}
	}
	return nil
}

func fmtLevel(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
