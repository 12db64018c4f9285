// Package effect implements the closed effect registry and the
// per-request determinism cache of spec §4.6: every side-effecting
// call a guest function makes is declared in advance, looked up in a
// cache keyed by seed+continuation+call before it ever runs, and a
// cache hit never re-invokes the underlying handler.
package effect

import (
	"context"

	"github.com/mtpscript/runtime/mtperr"
	"github.com/mtpscript/runtime/value"
)

// Handler implements one named effect (DbRead, DbWrite, HttpOut, Log,
// Async — spec §4.7). It is never called directly by guest code; it
// is reached through Registry.Invoke, or, for the effect an Async call
// wraps, through the Async handler, which resolves it with
// Registry.Handler and calls it directly.
type Handler interface {
	Invoke(ctx context.Context, args value.Value) (value.JSON, error)
}

// CacheKey is the determinism cache key: SHA-256(seed ‖ be64(contID) ‖
// CBOR(name, args)) (spec §4.6), except for Async, which substitutes
// promise_hash for contID (spec §4.7) so repeated awaits of the same
// promise from different call sites collapse onto one entry.
type CacheKey [32]byte

// CacheEntry is one memoised effect result: exactly one of Result or
// Err is meaningful, mirroring the response envelope's own
// success-xor-error shape. Errors are cached like successes so a
// replay with the same seed sees the identical error (spec §4.6,
// "Propagation policy").
type CacheEntry struct {
	Result value.JSON
	Err    *mtperr.Error
}

// Registry is the closed, per-snapshot set of effect handlers, plus
// the per-function declared-effects table parsed out of the
// snapshot's metadata.
type Registry struct {
	handlers map[string]Handler
	declared map[string][]string // function name -> declared effect names
}

// NewRegistry builds an empty registry; handlers are attached with
// Register before the first Invoke.
func NewRegistry(declared map[string][]string) *Registry {
	return &Registry{handlers: map[string]Handler{}, declared: declared}
}

// Register attaches h under name. It is one-shot: registering the
// same name twice is a host bootstrap bug, unreachable once a
// sandbox.Context is wired correctly, and returns mtperr.Internal
// rather than silently overwriting a handler.
func (r *Registry) Register(name string, h Handler) error {
	if _, exists := r.handlers[name]; exists {
		return mtperr.New(mtperr.Internal, "effect %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// Handler returns the handler registered under name, if any. It lets
// an effect like Async resolve another effect by name without holding
// its own copy of the handler table.
func (r *Registry) Handler(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// declares reports whether fn's declared-effects set names name.
func (r *Registry) declares(fn, name string) bool {
	for _, n := range r.declared[fn] {
		if n == name {
			return true
		}
	}
	return false
}

// Invoke runs the named effect on behalf of fn, enforcing the
// declared-effects contract and the determinism cache (spec §4.6):
//
//  1. fn must have declared name, else mtperr.UndeclaredEffect (§8
//     property 8) — checked before any cache lookup or handler call.
//  2. key = SHA-256(seed ‖ be64(contID) ‖ CBOR(name, args)), or with
//     promise_hash standing in for contID when name is "Async"; a hit
//     in cache returns the memoised entry without ever calling h (§8
//     property 7).
//  3. On miss, the handler runs, its outcome is written into cache
//     under key, and is returned.
func (r *Registry) Invoke(
	ctx context.Context,
	cache map[CacheKey]CacheEntry,
	seed [32]byte,
	fn string,
	contID uint64,
	name string,
	args value.Value,
) (value.JSON, error) {
	if !r.declares(fn, name) {
		return value.JSON{}, mtperr.New(mtperr.UndeclaredEffect, "function %q invoked undeclared effect %q", fn, name)
	}

	key, err := computeCacheKey(seed, contID, name, args)
	if err != nil {
		return value.JSON{}, err
	}
	if entry, ok := cache[key]; ok {
		if entry.Err != nil {
			return value.JSON{}, entry.Err
		}
		return entry.Result, nil
	}

	h, ok := r.handlers[name]
	if !ok {
		return value.JSON{}, mtperr.New(mtperr.InvalidEffect, "no handler registered for effect %q", name)
	}

	result, invokeErr := h.Invoke(ctx, args)
	if invokeErr != nil {
		mtpErr, ok := invokeErr.(*mtperr.Error)
		if !ok {
			mtpErr = mtperr.Wrap(mtperr.Internal, invokeErr, "effect %q handler failed", name)
		}
		cache[key] = CacheEntry{Err: mtpErr}
		return value.JSON{}, mtpErr
	}
	cache[key] = CacheEntry{Result: result}
	return result, nil
}

func computeCacheKey(seed [32]byte, contID uint64, name string, args value.Value) (CacheKey, error) {
	callBytes, err := value.EmitCanonicalCBORCall(name, args)
	if err != nil {
		return CacheKey{}, err
	}

	// Async dedups on promise_hash, not on the awaiting call site (spec
	// §4.7: "cache key includes promise_hash"). Two different contIDs
	// awaiting the same promise must collapse onto one cache entry, so
	// contID is dropped from the hash input whenever the args carry a
	// promiseHash; every other effect keys on contID as before.
	if name == "Async" {
		if hash, ok := asyncPromiseHash(args); ok {
			buf := make([]byte, 0, 32+len(hash)+len(callBytes))
			buf = append(buf, seed[:]...)
			buf = append(buf, hash...)
			buf = append(buf, callBytes...)
			return CacheKey(value.SHA256(buf)), nil
		}
	}

	be := value.PutUint64BE(contID)
	buf := make([]byte, 0, 32+8+len(callBytes))
	buf = append(buf, seed[:]...)
	buf = append(buf, be[:]...)
	buf = append(buf, callBytes...)
	return CacheKey(value.SHA256(buf)), nil
}

// asyncPromiseHash extracts the promiseHash field an Async call's args
// record carries, if present. Absence falls back to the usual
// contID-keyed path rather than trapping here — effects.Async itself
// is what rejects a call missing the field.
func asyncPromiseHash(args value.Value) ([]byte, bool) {
	if args.Kind() != value.KindRecord {
		return nil, false
	}
	for _, f := range args.RecordFields() {
		if f.Name == "promiseHash" && f.Value.Kind() == value.KindString {
			return []byte(f.Value.AsString()), true
		}
	}
	return nil, false
}
