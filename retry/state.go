package retry

// State is a retry loop state.
type State int

// Retry loop states.
const (
	Idle State = iota
	Attempting
	Retrying
	Succeeded
	FailedFatal
	FailedExhausted
	FailedTimeout
	Canceled
)

var stateNames = map[State]string{
	Idle:            "idle",
	Attempting:      "attempting",
	Retrying:        "retrying",
	Succeeded:       "succeeded",
	FailedFatal:     "failed_fatal",
	FailedExhausted: "failed_exhausted",
	FailedTimeout:   "failed_timeout",
	Canceled:        "canceled",
}

// String returns the state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the loop ends in s.
func (s State) Terminal() bool {
	switch s {
	case Succeeded, FailedFatal, FailedExhausted, FailedTimeout, Canceled:
		return true
	default:
		return false
	}
}
