package effects

import (
	"context"

	"github.com/mtpscript/runtime/mtperr"
	"github.com/mtpscript/runtime/value"
)

// Handler is a local alias so this package doesn't need to import
// effect just to name the interface its own handlers also satisfy.
type Handler interface {
	Invoke(ctx context.Context, args value.Value) (value.JSON, error)
}

// Async wraps another named effect so its result is additionally
// reachable through the "Async" effect name (spec §4.7:
// Async(promise_hash, cont_id, args)). The handler itself only
// resolves and runs the wrapped effect; promiseHash exists on the args
// record so effect.Registry can key the determinism cache on it
// instead of the awaiting call site's contID — two different awaits of
// the same promise must collapse onto one cache entry and invoke the
// wrapped handler exactly once (spec §4.7 "cache key includes
// promise_hash"). A cache miss here blocks synchronously on the
// resolved inner handler; there is no concurrent execution model in
// this core (spec §1/§5: single synchronous guest thread per request).
type Async struct {
	// Resolve looks up the concrete Handler for an inner effect name
	// ("DbRead", "HttpOut", ...), the same handler table effect.Registry
	// holds. Async never maintains its own copy of that table.
	Resolve func(name string) (Handler, bool)
}

func (h Async) Invoke(ctx context.Context, args value.Value) (value.JSON, error) {
	if args.Kind() != value.KindRecord {
		return value.JSON{}, mtperr.New(mtperr.InvalidEffect, "Async args must be a record carrying promiseHash, effect and innerArgs")
	}
	var effectName, promiseHash string
	var inner value.Value
	haveName, haveArgs, haveHash := false, false, false
	for _, f := range args.RecordFields() {
		switch f.Name {
		case "promiseHash":
			if f.Value.Kind() == value.KindString {
				promiseHash, haveHash = f.Value.AsString(), true
			}
		case "effect":
			if f.Value.Kind() == value.KindString {
				effectName, haveName = f.Value.AsString(), true
			}
		case "innerArgs":
			inner, haveArgs = f.Value, true
		}
	}
	if !haveHash || promiseHash == "" {
		return value.JSON{}, mtperr.New(mtperr.InvalidEffect, "Async args missing non-empty promiseHash")
	}
	if !haveName || !haveArgs {
		return value.JSON{}, mtperr.New(mtperr.InvalidEffect, "Async args missing effect or innerArgs")
	}

	innerHandler, ok := h.Resolve(effectName)
	if !ok {
		return value.JSON{}, mtperr.New(mtperr.InvalidEffect, "Async: unknown inner effect %q", effectName)
	}
	return innerHandler.Invoke(ctx, inner)
}
