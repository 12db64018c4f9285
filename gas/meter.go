// Package gas implements the fixed per-opcode cost table and the
// 64-bit metering counter of spec §4.4: a deterministic exhaustion
// trap, never a recoverable mid-execution error.
package gas

import "github.com/mtpscript/runtime/mtperr"

// MinLimit and MaxLimit are the inclusive gas_limit bounds (spec §4.4,
// §6): a limit outside this range is rejected by the host before any
// execution starts, not metered against at runtime.
const (
	MinLimit uint64 = 1
	MaxLimit uint64 = 2_000_000_000
)

// Meter is a 64-bit budget counter initialised to gas_limit and
// decremented before each opcode executes. It never goes negative:
// Charge reports exhaustion instead of underflowing.
type Meter struct {
	remaining uint64
	used      uint64
	limit     uint64
}

// NewMeter validates limit against [MinLimit, MaxLimit] and returns a
// fresh Meter. An out-of-range limit is fatal before any execution
// (spec §4.4): it is the host's responsibility to have validated
// gas_limit at the §6 entry point, and NewMeter enforces it again here
// so the meter itself never runs with an invalid budget.
func NewMeter(limit uint64) (*Meter, error) {
	if limit < MinLimit || limit > MaxLimit {
		return nil, mtperr.New(mtperr.Internal, "gas_limit %d outside [%d, %d]", limit, MinLimit, MaxLimit)
	}
	return &Meter{remaining: limit, limit: limit}, nil
}

// Charge decrements the meter by op's fixed cost before the opcode
// executes. TailCall costs zero (spec §4.4) regardless of the cost
// table, by construction — OpTailCall's table entry is itself zero.
// On underflow it returns mtperr.GasExhausted and leaves the meter at
// zero; the caller must treat this as a trap, not retry the charge.
func (m *Meter) Charge(op Opcode) error {
	cost := Cost(op)
	if cost > m.remaining {
		remaining := m.remaining
		m.used = m.limit
		m.remaining = 0
		return mtperr.New(mtperr.GasExhausted, "gas exhausted charging opcode %d (cost %d, remaining %d)", op, cost, remaining)
	}
	m.remaining -= cost
	m.used += cost
	return nil
}

// Remaining reports the gas left in the budget.
func (m *Meter) Remaining() uint64 { return m.remaining }

// Used reports the gas spent so far, including the charge that
// triggered exhaustion (spec §8 property 3: gas_used is a pure
// function of inputs, and reducing gas_limit below gas_used converts
// success into GasExhausted deterministically).
func (m *Meter) Used() uint64 { return m.used }

// Limit reports the budget the meter was constructed with.
func (m *Meter) Limit() uint64 { return m.limit }
