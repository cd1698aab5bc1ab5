package indicator

// RSIIndicator is the Relative Strength Index over Wilder-smoothed gains and losses.
//
// The first value appears at position period (period+1 closes), seeded with
// the plain average of the first period deltas. A window with neither gains
// nor losses reads 50.
type RSIIndicator struct {
	gain, loss wilder
	prev       float64
	primed     bool
}

func NewRSI(period int) *RSIIndicator {
	return &RSIIndicator{gain: wilder{n: period}, loss: wilder{n: period}}
}

func (r *RSIIndicator) Next(price float64) Point {
	if !r.primed {
		r.prev, r.primed = price, true
		return Point{}
	}
	delta := price - r.prev
	r.prev = price

	ready := r.gain.add(max(delta, 0))
	r.loss.add(max(-delta, 0))
	if !ready {
		return Point{}
	}
	return Point{V: rsiValue(r.gain.avg, r.loss.avg), OK: true}
}

func rsiValue(avgGain, avgLoss float64) float64 {
	switch {
	case avgGain == 0 && avgLoss == 0:
		return 50
	case avgLoss == 0:
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// wilder is Wilder's smoothed average: the mean of the first n inputs, then
// avg = (avg*(n-1) + x) / n.
type wilder struct {
	n    int
	seen int
	avg  float64
}

// add folds x in and reports whether the average is seeded.
func (w *wilder) add(x float64) bool {
	w.seen++
	switch {
	case w.seen < w.n:
		w.avg += x
		return false
	case w.seen == w.n:
		w.avg = (w.avg + x) / float64(w.n)
	default:
		w.avg = (w.avg*float64(w.n-1) + x) / float64(w.n)
	}
	return true
}
