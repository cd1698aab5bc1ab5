package strategy

import "tradeloop/internal/indicator"

// MACDCrossover fires on the transition between the prior and latest
// positions:
//
// Buy:  MACD crosses above signal (prior MACD <= signal, latest MACD > signal)
// Sell: MACD crosses below signal (prior MACD >= signal, latest MACD < signal)
//
// Sustained separation or equality produces nothing.
type MACDCrossover struct{}

// NewMACDCrossover creates the MACD crossover rule.
func NewMACDCrossover() *MACDCrossover { return &MACDCrossover{} }

func (m *MACDCrossover) Name() RuleName            { return RuleMACDCrossover }
func (m *MACDCrossover) Requires() indicator.Name { return indicator.MACD }

func (m *MACDCrossover) Evaluate(set *indicator.Set) *Signal {
	macd, ok := set.Line(indicator.MACD)
	if !ok {
		return nil
	}
	signal, ok := set.Line(indicator.MACDSignal)
	if !ok {
		return nil
	}

	cur, ok1 := macd.Last()
	prev, ok2 := macd.Prior()
	curSig, ok3 := signal.Last()
	prevSig, ok4 := signal.Prior()
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil
	}

	if prev <= prevSig && cur > curSig {
		return &Signal{Action: ActionBuy, Rule: RuleMACDCrossover, Reason: "MACD crossover"}
	}
	if prev >= prevSig && cur < curSig {
		return &Signal{Action: ActionSell, Rule: RuleMACDCrossover, Reason: "MACD crossover"}
	}
	return nil
}
