package guest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mtpscript/runtime/gas"
	"github.com/mtpscript/runtime/mtperr"
	"github.com/mtpscript/runtime/value"
)

// fakeContext stands in for sandbox.Context in these unit tests: a
// real Meter for gas accounting and no real effect handlers:
// InvokeEffect only counts calls per effect name and returns the
// canned result in results, or the zero JSON when none is set.
type fakeContext struct {
	meter   *gas.Meter
	calls   map[string]int
	results map[string]value.JSON
}

func newFakeContext(limit uint64) *fakeContext {
	m, err := gas.NewMeter(limit)
	if err != nil {
		panic(err)
	}
	return &fakeContext{meter: m, calls: map[string]int{}, results: map[string]value.JSON{}}
}

func (f *fakeContext) Charge(op gas.Opcode) error { return f.meter.Charge(op) }

func (f *fakeContext) InvokeEffect(_ context.Context, _ string, _ uint64, name string, _ value.Value) (value.JSON, error) {
	f.calls[name]++
	if r, ok := f.results[name]; ok {
		return r, nil
	}
	return value.JSON{}, nil
}

func helloProgram() *Program {
	return &Program{Functions: map[string][]Instruction{
		"main": {
			{Op: OpPushInt, IntArg: 42},
			{Op: OpReturn},
		},
	}}
}

func TestExecuteHelloReturnsPushedInt(t *testing.T) {
	ctx := newFakeContext(10_000)
	result, err := Execute(context.Background(), ctx, helloProgram(), "main")
	require.NoError(t, err)
	require.Equal(t, int64(42), result.AsInt())
}

func TestExecuteDecimalAddCanonicalises(t *testing.T) {
	prog := &Program{Functions: map[string][]Instruction{
		"main": {
			{Op: OpPushDecimal, StrArg: "10.500"},
			{Op: OpPushDecimal, StrArg: "5.250"},
			{Op: OpAdd},
			{Op: OpReturn},
		},
	}}
	ctx := newFakeContext(10_000)
	result, err := Execute(context.Background(), ctx, prog, "main")
	require.NoError(t, err)
	require.Equal(t, "15.75", result.AsDecimal().String())
}

func TestExecuteTrapsOnGasExhaustion(t *testing.T) {
	instrs := make([]Instruction, 0, 2000)
	instrs = append(instrs, Instruction{Op: OpPushInt, IntArg: 0})
	for i := 0; i < 998; i++ {
		instrs = append(instrs, Instruction{Op: OpPushInt, IntArg: 1}, Instruction{Op: OpAdd})
	}
	instrs = append(instrs, Instruction{Op: OpReturn})
	prog := &Program{Functions: map[string][]Instruction{"main": instrs}}

	ctx := newFakeContext(500)
	_, err := Execute(context.Background(), ctx, prog, "main")
	require.Error(t, err)
	var mtpErr *mtperr.Error
	require.ErrorAs(t, err, &mtpErr)
	require.Equal(t, mtperr.GasExhausted, mtpErr.Kind)

	ctx2 := newFakeContext(500)
	_, err2 := Execute(context.Background(), ctx2, prog, "main")
	require.Error(t, err2)
	require.Equal(t, ctx.meter.Used(), ctx2.meter.Used(), "same program at the same limit must trap at the same used-gas point")
}

func TestExecuteCallEffectInvokesAndPushesResult(t *testing.T) {
	prog := &Program{Functions: map[string][]Instruction{
		"main": {
			{Op: OpPushString, StrArg: "hello"},
			{Op: OpCallEffect, StrArg: "Log"},
			{Op: OpReturn},
		},
	}}
	ctx := newFakeContext(10_000)
	_, err := Execute(context.Background(), ctx, prog, "main")
	require.NoError(t, err)
	require.Equal(t, 1, ctx.calls["Log"])
}

func TestExecuteMakeRecord1WrapsPoppedValue(t *testing.T) {
	prog := &Program{Functions: map[string][]Instruction{
		"main": {
			{Op: OpPushString, StrArg: "hi"},
			{Op: OpMakeRecord1, StrArg: "message"},
			{Op: OpCallEffect, StrArg: "Log"},
			{Op: OpReturn},
		},
	}}
	ctx := newFakeContext(10_000)
	_, err := Execute(context.Background(), ctx, prog, "main")
	require.NoError(t, err)
	require.Equal(t, 1, ctx.calls["Log"])
}

func TestExecuteSetFieldAddsToExistingRecord(t *testing.T) {
	prog := &Program{Functions: map[string][]Instruction{
		"main": {
			{Op: OpPushString, StrArg: "hi"},
			{Op: OpMakeRecord1, StrArg: "message"},
			{Op: OpPushString, StrArg: "info"},
			{Op: OpSetField, StrArg: "level"},
			{Op: OpCallEffect, StrArg: "Log"},
			{Op: OpReturn},
		},
	}}
	ctx := newFakeContext(10_000)
	_, err := Execute(context.Background(), ctx, prog, "main")
	require.NoError(t, err)
	require.Equal(t, 1, ctx.calls["Log"])
}

func TestExecuteSetFieldRejectsNonRecord(t *testing.T) {
	prog := &Program{Functions: map[string][]Instruction{
		"main": {
			{Op: OpPushInt, IntArg: 1},
			{Op: OpPushString, StrArg: "x"},
			{Op: OpSetField, StrArg: "y"},
			{Op: OpReturn},
		},
	}}
	ctx := newFakeContext(10_000)
	_, err := Execute(context.Background(), ctx, prog, "main")
	require.Error(t, err)
}

func TestExecuteParseJSONSurfacesDuplicateKey(t *testing.T) {
	prog := &Program{Functions: map[string][]Instruction{
		"main": {
			{Op: OpParseJSON, StrArg: `{"a":1,"a":2}`},
			{Op: OpPushInt, IntArg: 0},
			{Op: OpReturn},
		},
	}}
	ctx := newFakeContext(10_000)
	_, err := Execute(context.Background(), ctx, prog, "main")
	require.Error(t, err)
	var mtpErr *mtperr.Error
	require.ErrorAs(t, err, &mtpErr)
	require.Equal(t, mtperr.JSONDuplicateKey, mtpErr.Kind)
}

func TestProgramEncodeDecodeRoundTrips(t *testing.T) {
	prog := helloProgram()
	decoded, err := Decode(Encode(prog))
	require.NoError(t, err)
	require.Equal(t, prog.Functions["main"], decoded.Functions["main"])
}

func TestProgramEncodeDecodeRoundTripsEveryArgKind(t *testing.T) {
	prog := &Program{Functions: map[string][]Instruction{
		"main": {
			{Op: OpPushInt, IntArg: -7},
			{Op: OpPushDecimal, StrArg: "1.50"},
			{Op: OpPushString, StrArg: "hi"},
			{Op: OpMakeRecord1, StrArg: "message"},
			{Op: OpSetField, StrArg: "level"},
			{Op: OpCallEffect, StrArg: "Log"},
			{Op: OpParseJSON, StrArg: `{"a":1}`},
			{Op: OpAdd},
			{Op: OpReturn},
		},
	}}
	decoded, err := Decode(Encode(prog))
	require.NoError(t, err)
	require.Equal(t, prog.Functions["main"], decoded.Functions["main"])
}
