package indicator

// MACDIndicator is EMA(fast) - EMA(slow) plus its signal line, an EMA of the MACD line
// fed only once the line exists.
type MACDIndicator struct {
	fast, slow, signal *EMAIndicator
}

func NewMACD(fast, slow, signal int) *MACDIndicator {
	return &MACDIndicator{fast: NewEMA(fast), slow: NewEMA(slow), signal: NewEMA(signal)}
}

// Next returns the MACD line and signal line at this position.
func (m *MACDIndicator) Next(price float64) (line, signal Point) {
	f, s := m.fast.Next(price), m.slow.Next(price)
	if !f.OK || !s.OK {
		return Point{}, Point{}
	}
	line = Point{V: f.V - s.V, OK: true}
	return line, m.signal.Next(line.V)
}
