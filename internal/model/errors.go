package model

import "errors"

// Error kinds recovered at the trading loop boundary.
var (
	ErrDataFetch           = errors.New("data fetch failed")
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrOrderSubmission     = errors.New("order submission failed")
	ErrInvalidConfig       = errors.New("invalid loop configuration")
)
