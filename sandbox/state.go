package sandbox

import "github.com/mtpscript/runtime/mtperr"

// State is one stage of the per-request context lifecycle (spec §4.8):
//
//	Fresh -> Bootstrapped -> Running -> {Completed|Trapped} -> Wiped -> Released
//
// Transitions are one-way; Trapped still requires Wiped before Released.
type State uint8

const (
	Fresh State = iota
	Bootstrapped
	Running
	Completed
	Trapped
	Wiped
	Released
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "Fresh"
	case Bootstrapped:
		return "Bootstrapped"
	case Running:
		return "Running"
	case Completed:
		return "Completed"
	case Trapped:
		return "Trapped"
	case Wiped:
		return "Wiped"
	case Released:
		return "Released"
	default:
		return "Unknown"
	}
}

// validTransitions is the one-way edge set the state machine enforces
// (spec §4.8): every edge here, and no others, is a legal transition.
var validTransitions = map[State]map[State]bool{
	// Bootstrap itself can fail partway (bad signature, malformed
	// metadata, an out-of-range gas limit) before a context ever
	// starts running guest code, so both pre-Running states can also
	// trap directly — spec §4.8 only promises Trapped is reachable
	// before any program byte executes, not that it is reachable only
	// from Running.
	Fresh:        {Bootstrapped: true, Trapped: true},
	Bootstrapped: {Running: true, Trapped: true},
	Running:      {Completed: true, Trapped: true},
	Completed:    {Wiped: true},
	Trapped:      {Wiped: true},
	Wiped:        {Released: true},
	Released:     {},
}

// transition moves the context from its current state to next,
// rejecting any edge not in validTransitions with mtperr.Internal —
// an illegal transition is a caller bug, never a request-dependent
// condition, so it is enforced by the type rather than by caller
// discipline (spec §4.8).
func (c *Context) transition(next State) error {
	allowed, ok := validTransitions[c.state]
	if !ok || !allowed[next] {
		return mtperr.New(mtperr.Internal, "illegal context transition %s -> %s", c.state, next)
	}
	c.state = next
	return nil
}

// State reports the context's current lifecycle state.
func (c *Context) State() State { return c.state }
