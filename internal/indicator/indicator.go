// Package indicator provides technical indicator calculations over candle data.
//
// Streaming indicators are fed one close at a time and answer with a Point
// for that position. The Engine replays a whole Series through fresh
// instances, so availability is explicit: an unavailable position is never a
// zero or a NaN that happens to compare false.
package indicator

// Indicator is a streaming indicator over closes.
type Indicator interface {
	// Next consumes the next close and returns the indicator at that position.
	Next(price float64) Point
}
