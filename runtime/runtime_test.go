package runtime

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/mtpscript/runtime/guest"
	"github.com/mtpscript/runtime/mtpcrypto"
	"github.com/mtpscript/runtime/mtperr"
	"github.com/mtpscript/runtime/reqres"
	"github.com/mtpscript/runtime/sandbox"
	"github.com/mtpscript/runtime/snapshot"
	"github.com/mtpscript/runtime/value"
)

// buildCore signs a program under a fresh key and returns both the
// core wired to verify it and the encoded snapshot bytes, standing in
// for a compiler + host bootstrap step that is out of scope here.
func buildCore(t *testing.T, prog *guest.Program, declaredEffects map[string][]string) (*Core, []byte) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	metaJSON, err := buildMetadataJSON("main", declaredEffects)
	require.NoError(t, err)
	programBytes := guest.Encode(prog)

	region := snapshot.SignedRegion(metaJSON, programBytes)
	sig, err := mtpcrypto.Sign(rand.Reader, priv, region)
	require.NoError(t, err)
	var sigArr [mtpcrypto.SignatureSize]byte
	copy(sigArr[:], sig)

	snapBytes := snapshot.Encode(metaJSON, programBytes, sigArr)

	cfg := sandbox.DefaultConfig()
	cfg.MemoryBudgetBytes = 64 * 1024
	core, err := New(cfg, &priv.PublicKey, nil, nil)
	require.NoError(t, err)
	return core, snapBytes
}

// buildCoreWithLogger is buildCore plus a caller-supplied logger, so a
// test can attach a hook and observe how many times an effect handler
// actually ran, not just whether the program returned without error.
func buildCoreWithLogger(t *testing.T, prog *guest.Program, declaredEffects map[string][]string, logger *logrus.Logger) (*Core, []byte) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	metaJSON, err := buildMetadataJSON("main", declaredEffects)
	require.NoError(t, err)
	programBytes := guest.Encode(prog)

	region := snapshot.SignedRegion(metaJSON, programBytes)
	sig, err := mtpcrypto.Sign(rand.Reader, priv, region)
	require.NoError(t, err)
	var sigArr [mtpcrypto.SignatureSize]byte
	copy(sigArr[:], sig)

	snapBytes := snapshot.Encode(metaJSON, programBytes, sigArr)

	cfg := sandbox.DefaultConfig()
	cfg.MemoryBudgetBytes = 64 * 1024
	core, err := New(cfg, &priv.PublicKey, nil, logger)
	require.NoError(t, err)
	return core, snapBytes
}

// countingHook counts log.Fire calls, standing in for an external
// assertion that a real handler (here, Log) ran a specific number of
// times, the way a fake DB/HTTP backend's call counter would for
// DbWrite/HttpOut.
type countingHook struct{ n int }

func (h *countingHook) Levels() []logrus.Level { return logrus.AllLevels }
func (h *countingHook) Fire(*logrus.Entry) error {
	h.n++
	return nil
}

// asyncLogCall builds the instruction sequence for one Async-wrapped
// Log call: Async's args record is {promiseHash, effect, innerArgs},
// assembled field by field since this engine's bytecode has no
// multi-field record literal opcode.
func asyncLogCall(promiseHash, message string) []guest.Instruction {
	return []guest.Instruction{
		{Op: guest.OpPushString, StrArg: promiseHash},
		{Op: guest.OpMakeRecord1, StrArg: "promiseHash"},
		{Op: guest.OpPushString, StrArg: "Log"},
		{Op: guest.OpSetField, StrArg: "effect"},
		{Op: guest.OpPushString, StrArg: message},
		{Op: guest.OpMakeRecord1, StrArg: "message"},
		{Op: guest.OpSetField, StrArg: "innerArgs"},
		{Op: guest.OpCallEffect, StrArg: "Async"},
	}
}

// buildMetadataJSON assembles the snapshot metadata blob through the
// JSON ADT and value.EmitCanonicalJSON; no encoding/json is used
// anywhere on the wire path (spec §4.1).
func buildMetadataJSON(entryPoint string, declaredEffects map[string][]string) ([]byte, error) {
	members := []value.JSONMember{
		{Key: "entryPoint", Value: value.JSONFromString(entryPoint)},
	}
	effectMembers := make([]value.JSONMember, 0, len(declaredEffects))
	for fn, names := range declaredEffects {
		items := make([]value.JSON, len(names))
		for i, n := range names {
			items[i] = value.JSONFromString(n)
		}
		effectMembers = append(effectMembers, value.JSONMember{Key: fn, Value: value.JSONArrayOf(items)})
	}
	members = append(members, value.JSONMember{Key: "declaredEffects", Value: value.JSONObjectOf(effectMembers)})
	return value.EmitCanonicalJSON(value.JSONObjectOf(members)), nil
}

func emptyRequest() reqres.Request { return reqres.Request{Method: reqres.GET, Path: "/"} }

// S1: func main(): Int { 42 }
func TestRunS1Hello(t *testing.T) {
	prog := &guest.Program{Functions: map[string][]guest.Instruction{
		"main": {{Op: guest.OpPushInt, IntArg: 42}, {Op: guest.OpReturn}},
	}}
	core, snapBytes := buildCore(t, prog, nil)

	result, err := core.Run(snapBytes, emptyRequest(), 10_000)
	require.NoError(t, err)
	require.Nil(t, result.Error)
	require.Equal(t, "42", string(result.ResponseBytes))
	require.Equal(t, value.SHA256([]byte("42")), result.ResponseSHA256)
	require.Equal(t, 200, result.StatusCode())

	result2, err := core.Run(snapBytes, emptyRequest(), 10_000)
	require.NoError(t, err)
	require.Equal(t, result.ResponseSHA256, result2.ResponseSHA256)
}

// S2: 10.50 + 5.25 canonicalises the same as 10.500 + 5.250.
func TestRunS2DecimalAddCanonicalises(t *testing.T) {
	mkProg := func(a, b string) *guest.Program {
		return &guest.Program{Functions: map[string][]guest.Instruction{
			"main": {
				{Op: guest.OpPushDecimal, StrArg: a},
				{Op: guest.OpPushDecimal, StrArg: b},
				{Op: guest.OpAdd},
				{Op: guest.OpReturn},
			},
		}}
	}

	core1, snap1 := buildCore(t, mkProg("10.50", "5.25"), nil)
	r1, err := core1.Run(snap1, emptyRequest(), 10_000)
	require.NoError(t, err)
	require.Equal(t, `"15.75"`, string(r1.ResponseBytes))

	core2, snap2 := buildCore(t, mkProg("10.500", "5.250"), nil)
	r2, err := core2.Run(snap2, emptyRequest(), 10_000)
	require.NoError(t, err)
	require.Equal(t, r1.ResponseBytes, r2.ResponseBytes)
}

// S3: parsing {"a":1,"a":2} fails with JsonDuplicateKey, status 400.
func TestRunS3DuplicateKeyIsStatus400(t *testing.T) {
	prog := &guest.Program{Functions: map[string][]guest.Instruction{
		"main": {
			{Op: guest.OpParseJSON, StrArg: `{"a":1,"a":2}`},
			{Op: guest.OpPushInt, IntArg: 0},
			{Op: guest.OpReturn},
		},
	}}
	core, snapBytes := buildCore(t, prog, nil)

	result, err := core.Run(snapBytes, emptyRequest(), 10_000)
	require.NoError(t, err)
	require.NotNil(t, result.Error)
	require.Equal(t, mtperr.JSONDuplicateKey, result.Error.Kind)
	require.Equal(t, 400, result.StatusCode())
}

// S4: ~1000 arithmetic ops against a gas_limit too small to finish;
// re-running at the same limit traps at the same point.
func TestRunS4GasTrapIsDeterministic(t *testing.T) {
	instrs := []guest.Instruction{{Op: guest.OpPushInt, IntArg: 0}}
	for i := 0; i < 1000; i++ {
		instrs = append(instrs, guest.Instruction{Op: guest.OpPushInt, IntArg: 1}, guest.Instruction{Op: guest.OpAdd})
	}
	instrs = append(instrs, guest.Instruction{Op: guest.OpReturn})
	prog := &guest.Program{Functions: map[string][]guest.Instruction{"main": instrs}}

	core, snapBytes := buildCore(t, prog, nil)
	r1, err := core.Run(snapBytes, emptyRequest(), 500)
	require.NoError(t, err)
	require.NotNil(t, r1.Error)
	require.Equal(t, mtperr.GasExhausted, r1.Error.Kind)
	require.Equal(t, 500, int(r1.GasUsed))

	core2, snapBytes2 := buildCore(t, prog, nil)
	r2, err := core2.Run(snapBytes2, emptyRequest(), 500)
	require.NoError(t, err)
	require.Equal(t, r1.GasUsed, r2.GasUsed)
	require.Equal(t, r1.ResponseBytes, r2.ResponseBytes)
}

// S5: a function without HttpOut in its declared set calling HttpOut
// fails with UndeclaredEffect and never reaches a backend.
func TestRunS5UndeclaredEffectBlocksCall(t *testing.T) {
	prog := &guest.Program{Functions: map[string][]guest.Instruction{
		"main": {
			{Op: guest.OpPushString, StrArg: "payload"},
			{Op: guest.OpCallEffect, StrArg: "HttpOut"},
			{Op: guest.OpReturn},
		},
	}}
	core, snapBytes := buildCore(t, prog, map[string][]string{"main": {"Log"}})

	result, err := core.Run(snapBytes, emptyRequest(), 10_000)
	require.NoError(t, err)
	require.NotNil(t, result.Error)
	require.Equal(t, mtperr.UndeclaredEffect, result.Error.Kind)
}

// S6: a program that calls HttpOut (here, Log, since it needs no
// network fixture) once and then awaits the same promise_hash again
// yields the same JSON for both calls, and the wrapped backend runs
// exactly once (spec §4.7 "cache key includes promise_hash" / §8
// acceptance scenario S6).
func TestRunS6ReplayCacheHitsOnce(t *testing.T) {
	var instrs []guest.Instruction
	instrs = append(instrs, asyncLogCall("ph-s6-replay", "hi")...)
	instrs = append(instrs, asyncLogCall("ph-s6-replay", "hi")...)
	instrs = append(instrs, guest.Instruction{Op: guest.OpReturn})
	prog := &guest.Program{Functions: map[string][]guest.Instruction{"main": instrs}}

	hook := &countingHook{}
	logger := logrus.New()
	logger.Out = io.Discard
	logger.AddHook(hook)

	core, snapBytes := buildCoreWithLogger(t, prog, map[string][]string{"main": {"Async"}}, logger)

	result, err := core.Run(snapBytes, emptyRequest(), 10_000)
	require.NoError(t, err)
	require.Nil(t, result.Error)
	require.Equal(t, 1, hook.n, "two awaits of the same promise_hash must invoke the backend exactly once")
}

func TestRunBadSignatureNeverExecutesAProgramByte(t *testing.T) {
	prog := &guest.Program{Functions: map[string][]guest.Instruction{
		"main": {{Op: guest.OpPushInt, IntArg: 1}, {Op: guest.OpReturn}},
	}}
	_, snapBytes := buildCore(t, prog, nil)

	otherPriv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	cfg := sandbox.DefaultConfig()
	cfg.MemoryBudgetBytes = 64 * 1024
	wrongCore, err := New(cfg, &otherPriv.PublicKey, nil, nil)
	require.NoError(t, err)

	result, err := wrongCore.Run(snapBytes, emptyRequest(), 10_000)
	require.NoError(t, err)
	require.NotNil(t, result.Error)
	require.Equal(t, mtperr.InvalidSignature, result.Error.Kind)
	require.Equal(t, uint64(0), result.GasUsed)
}
