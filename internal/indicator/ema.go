package indicator

// EMAIndicator is an exponential moving average with alpha = 2/(period+1). Its first
// value is the plain mean of the first period inputs.
type EMAIndicator struct {
	period int
	alpha  float64
	n      int
	acc    float64 // seed sum until n == period, the average afterwards
}

func NewEMA(period int) *EMAIndicator {
	return &EMAIndicator{period: period, alpha: 2 / float64(period+1)}
}

func (e *EMAIndicator) Next(price float64) Point {
	e.n++
	switch {
	case e.n < e.period:
		e.acc += price
		return Point{}
	case e.n == e.period:
		e.acc = (e.acc + price) / float64(e.period)
	default:
		e.acc = price*e.alpha + e.acc*(1-e.alpha)
	}
	return Point{V: e.acc, OK: true}
}
