package value

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/mtpscript/runtime/mtperr"
)

// Kind discriminates the Value sum type (spec §3 "Value").
type Kind uint8

const (
	KindInt Kind = iota
	KindString
	KindBool
	KindDecimal
	KindOption
	KindResult
	KindList
	KindMap
	KindRecord
	KindUnion
)

// MaxSafeInt/MinSafeInt bound the Value integer range (spec §3):
// [-(2^53-1), 2^53-1]. Wider values are IntegerOverflow, never
// silently widened.
const (
	MaxSafeInt int64 = (1 << 53) - 1
	MinSafeInt int64 = -MaxSafeInt
)

// MapKey is a primitive-only key for Value maps (spec §3): int,
// string, bool, or decimal. It is comparable so it can index a Go map
// directly, unlike Value itself (which carries a Decimal pointer).
type MapKey struct {
	kind Kind
	i    int64
	s    string
	b    bool
	dec  string // canonical decimal string, so equal decimals collide
}

func IntKey(i int64) MapKey     { return MapKey{kind: KindInt, i: i} }
func StringKey(s string) MapKey { return MapKey{kind: KindString, s: s} }
func BoolKey(b bool) MapKey     { return MapKey{kind: KindBool, b: b} }
func DecimalKey(d Decimal) MapKey {
	return MapKey{kind: KindDecimal, dec: d.String()}
}

// String renders a MapKey the way an object property name is derived
// from a non-string map key (spec §4.1's JSON object keys are always
// strings); used both by canonical-JSON conversion and by effect
// handlers that accept a guest map as a header/param bag.
func (k MapKey) String() string {
	switch k.kind {
	case KindInt:
		return strconv.FormatInt(k.i, 10)
	case KindString:
		return k.s
	case KindBool:
		if k.b {
			return "true"
		}
		return "false"
	case KindDecimal:
		return k.dec
	default:
		return ""
	}
}

// Field is one ordered field of a Record, ordered by source position
// (spec §3: "record ... ordered-field struct by source position").
type Field struct {
	Name  string
	Value Value
}

// Value is the tagged sum described in spec §3. Exactly one of the
// kind-specific fields is meaningful, selected by Kind. There is no
// reference identity: equality (Equal) is always structural.
type Value struct {
	kind Kind

	i   int64
	s   string
	b   bool
	dec Decimal

	// option
	some  bool
	inner *Value

	// result
	ok    bool
	rOk   *Value
	rErr  *Value

	list []Value

	mapKeys []MapKey
	mapVals []Value

	record []Field

	// union
	variant string
	payload *Value
}

func (v Value) Kind() Kind { return v.kind }

func Int(i int64) (Value, error) {
	if i < MinSafeInt || i > MaxSafeInt {
		return Value{}, mtperr.New(mtperr.IntegerOverflow, "integer %d outside safe range [%d,%d]", i, MinSafeInt, MaxSafeInt)
	}
	return Value{kind: KindInt, i: i}, nil
}

func String(s string) Value   { return Value{kind: KindString, s: s} }
func Bool(b bool) Value       { return Value{kind: KindBool, b: b} }
func DecimalValue(d Decimal) Value {
	return Value{kind: KindDecimal, dec: d}
}

func Some(v Value) Value { return Value{kind: KindOption, some: true, inner: &v} }
func None() Value         { return Value{kind: KindOption, some: false} }

func Ok(v Value) Value  { return Value{kind: KindResult, ok: true, rOk: &v} }
func Err(v Value) Value { return Value{kind: KindResult, ok: false, rErr: &v} }

// List builds a list Value, copying the slice so later mutation of the
// caller's slice cannot retroactively change the Value (no append-to-self
// cycles, spec §9).
func List(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// Map builds a map Value from parallel key/value slices of equal length.
func Map(keys []MapKey, vals []Value) (Value, error) {
	if len(keys) != len(vals) {
		return Value{}, mtperr.New(mtperr.Internal, "map keys/values length mismatch")
	}
	ck := make([]MapKey, len(keys))
	cv := make([]Value, len(vals))
	copy(ck, keys)
	copy(cv, vals)
	return Value{kind: KindMap, mapKeys: ck, mapVals: cv}, nil
}

// Record builds a record Value preserving field order exactly as given.
func Record(fields []Field) Value {
	cp := make([]Field, len(fields))
	copy(cp, fields)
	return Value{kind: KindRecord, record: cp}
}

// Union builds a tagged union variant with an associated payload.
func Union(variant string, payload Value) Value {
	return Value{kind: KindUnion, variant: variant, payload: &payload}
}

// AsInt, AsString, etc. are narrow accessors; callers are expected to
// check Kind first (the interpreter that drives this package does).
func (v Value) AsInt() int64         { return v.i }
func (v Value) AsString() string     { return v.s }
func (v Value) AsBool() bool         { return v.b }
func (v Value) AsDecimal() Decimal   { return v.dec }
func (v Value) IsSome() bool         { return v.some }
func (v Value) OptionValue() Value   { return *v.inner }
func (v Value) IsOk() bool           { return v.ok }
func (v Value) ResultOk() Value      { return *v.rOk }
func (v Value) ResultErr() Value     { return *v.rErr }
func (v Value) ListItems() []Value   { return v.list }
func (v Value) RecordFields() []Field { return v.record }
func (v Value) UnionVariant() string { return v.variant }
func (v Value) UnionPayload() Value  { return *v.payload }

// MapEntries returns the map's (key, value) pairs sorted by canonical
// key form, matching spec §3's "no map/set iteration is observable
// except in a fixed order (keys sorted by canonical form)".
func (v Value) MapEntries() []struct {
	Key MapKey
	Val Value
} {
	type entry struct {
		Key MapKey
		Val Value
	}
	out := make([]entry, len(v.mapKeys))
	for i := range v.mapKeys {
		out[i] = entry{Key: v.mapKeys[i], Val: v.mapVals[i]}
	}
	sort.Slice(out, func(i, j int) bool {
		return mapKeyLess(out[i].Key, out[j].Key)
	})
	result := make([]struct {
		Key MapKey
		Val Value
	}, len(out))
	for i, e := range out {
		result[i] = struct {
			Key MapKey
			Val Value
		}{e.Key, e.Val}
	}
	return result
}

func mapKeyLess(a, b MapKey) bool {
	if a.kind != b.kind {
		return a.kind < b.kind
	}
	switch a.kind {
	case KindInt:
		return a.i < b.i
	case KindString:
		return a.s < b.s
	case KindBool:
		return !a.b && b.b
	case KindDecimal:
		return a.dec < b.dec
	default:
		return false
	}
}

// Equal reports structural equality (spec §3: "No reference identity:
// == is structural").
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindInt:
		return a.i == b.i
	case KindString:
		return a.s == b.s
	case KindBool:
		return a.b == b.b
	case KindDecimal:
		return Cmp(a.dec, b.dec) == 0
	case KindOption:
		if a.some != b.some {
			return false
		}
		if !a.some {
			return true
		}
		return Equal(*a.inner, *b.inner)
	case KindResult:
		if a.ok != b.ok {
			return false
		}
		if a.ok {
			return Equal(*a.rOk, *b.rOk)
		}
		return Equal(*a.rErr, *b.rErr)
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		ae, be := a.MapEntries(), b.MapEntries()
		if len(ae) != len(be) {
			return false
		}
		for i := range ae {
			if ae[i].Key != be[i].Key || !Equal(ae[i].Val, be[i].Val) {
				return false
			}
		}
		return true
	case KindRecord:
		if len(a.record) != len(b.record) {
			return false
		}
		for i := range a.record {
			if a.record[i].Name != b.record[i].Name || !Equal(a.record[i].Value, b.record[i].Value) {
				return false
			}
		}
		return true
	case KindUnion:
		return a.variant == b.variant && Equal(*a.payload, *b.payload)
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindString:
		return v.s
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindDecimal:
		return v.dec.String()
	default:
		return fmt.Sprintf("<value kind=%d>", v.kind)
	}
}
