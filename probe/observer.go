package probe

import "time"

// Op names the operation that produced an observation.
type Op string

const (
	OpResolve Op = "resolve"
	OpAssert  Op = "assert"
)

// Tick outcomes. Intermediate ticks that keep polling carry an empty outcome.
const (
	TickMatched         = "matched"
	TickTimeout         = "timeout"
	TickStrictViolation = "strict-violation"
	TickPass            = "pass"
	TickFail            = "fail"
)

// TickObservation is one poll tick as seen from the outside: what was
// queried, how many candidates showed up, and how the tick ended. The
// conformance harness collects these for golden traces and the recorder can
// persist them for post-mortem inspection of flaky resolutions.
type TickObservation struct {
	Op         Op        `json:"op"`
	OpID       string    `json:"op_id"`
	ModelPath  string    `json:"model_path,omitempty"`
	Selector   string    `json:"selector,omitempty"`
	Tick       int       `json:"tick"`
	At         time.Time `json:"at"`
	Candidates int       `json:"candidates"`
	Matched    int       `json:"matched"`
	Value      string    `json:"value,omitempty"`   // canonical rendering of the value read this tick
	Failure    string    `json:"failure,omitempty"` // failure code when the read failed
	Outcome    string    `json:"outcome,omitempty"`
}

// Observer receives one callback per poll tick. Implementations must not
// block; they run inline on the polling goroutine.
type Observer interface {
	ObserveTick(obs TickObservation)
}
