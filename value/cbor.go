package value

import (
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// canonicalCBOREncMode is built once: fxamacker/cbor's
// CanonicalEncOptions implements RFC 7049 §3.9 deterministic encoding
// (shortest-form integers, sorted map keys by encoded-bytes order, no
// indefinite-length items) exactly as spec §4.1 requires, the same way
// opal-lang-opal's core/planfmt.CanonicalPlan.MarshalBinary builds its
// encoder.
var canonicalCBOREncMode = sync.OnceValue(func() cbor.EncMode {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err) // only fails on a malformed options literal, never at runtime
	}
	return mode
})

// cborNative converts the JSON ADT into the plain Go values
// fxamacker/cbor knows how to encode deterministically: map[string]any
// for objects (canonical mode sorts the keys), []any for arrays, and
// the primitive Go types otherwise.
func cborNative(j JSON) any {
	switch j.kind {
	case JSONNull:
		return nil
	case JSONBool:
		return j.b
	case JSONInt:
		return j.i
	case JSONString:
		return j.s
	case JSONArray:
		out := make([]any, len(j.arr))
		for i, item := range j.arr {
			out[i] = cborNative(item)
		}
		return out
	case JSONObject:
		out := make(map[string]any, len(j.obj))
		for _, m := range j.obj {
			out[m.Key] = cborNative(m.Value)
		}
		return out
	default:
		return nil
	}
}

// EmitCanonicalCBOR renders j as canonical CBOR (spec §4.1, RFC 7049
// §3.9 deterministic encoding).
func EmitCanonicalCBOR(j JSON) ([]byte, error) {
	return canonicalCBOREncMode().Marshal(cborNative(j))
}

// EmitCanonicalCBORValue converts v to JSON first (so Decimal and the
// richer Value shapes get the same canonical string/object rendering
// CBOR and JSON output share) and then encodes that as canonical CBOR.
// Effect cache keys go through EmitCanonicalCBORCall, which applies the
// same conversion to a call's args.
func EmitCanonicalCBORValue(v Value) ([]byte, error) {
	j, err := ToJSON(v)
	if err != nil {
		return nil, err
	}
	return EmitCanonicalCBOR(j)
}

// EmitCanonicalCBORCall encodes an effect invocation's (name, args) for
// the determinism cache key, per spec §4.6:
// CBOR(effect_name, effect_args).
func EmitCanonicalCBORCall(name string, args Value) ([]byte, error) {
	argsJSON, err := ToJSON(args)
	if err != nil {
		return nil, err
	}
	call := map[string]any{
		"name": name,
		"args": cborNative(argsJSON),
	}
	return canonicalCBOREncMode().Marshal(call)
}
