package loop

// State is the loop's position in its cycle.
type State int32

const (
	StateIdle       State = iota // not started
	StatePolling                 // awaiting market data
	StateEvaluating              // computing indicators and signals
	StateActing                  // submitting orders
	StateSleeping                // cadence wait
	StateCancelled               // terminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StatePolling:
		return "POLLING"
	case StateEvaluating:
		return "EVALUATING"
	case StateActing:
		return "ACTING"
	case StateSleeping:
		return "SLEEPING"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
