package value

import "github.com/mtpscript/runtime/mtperr"

// JSONKind discriminates the JSON ADT (spec §3 "JSON ADT"):
// null | bool | int | string | array | object.
type JSONKind uint8

const (
	JSONInt JSONKind = iota
	JSONNull
	JSONBool
	JSONString
	JSONArray
	JSONObject
)

// JSONMember is one key/value pair of a JSON object, kept in the order
// it was constructed or parsed (canonicalisation re-sorts a copy; it
// never reorders the ADT in place).
type JSONMember struct {
	Key   string
	Value JSON
}

// JSON is the JSON algebraic data type. Its zero value is the integer
// 0 (kind JSONInt, i == 0), never null: spec §3's invariant is that
// null can be constructed *only* by the JSON parser, so there is no
// exported zero-value-is-null trap and no NewJSONNull constructor for
// guest-observable code to call.
type JSON struct {
	kind JSONKind
	b    bool
	i    int64
	s    string
	arr  []JSON
	obj  []JSONMember
}

// JSONFromBool, JSONFromInt, JSONFromString, JSONArrayOf, JSONObjectOf
// are the only public constructors; none of them can produce null.
func JSONFromBool(b bool) JSON   { return JSON{kind: JSONBool, b: b} }
func JSONFromString(s string) JSON { return JSON{kind: JSONString, s: s} }

func JSONFromInt(i int64) (JSON, error) {
	if i < MinSafeInt || i > MaxSafeInt {
		return JSON{}, mtperr.New(mtperr.IntegerOverflow, "json integer %d outside safe range", i)
	}
	return JSON{kind: JSONInt, i: i}, nil
}

func JSONArrayOf(items []JSON) JSON {
	cp := make([]JSON, len(items))
	copy(cp, items)
	return JSON{kind: JSONArray, arr: cp}
}

func JSONObjectOf(members []JSONMember) JSON {
	cp := make([]JSONMember, len(members))
	copy(cp, members)
	return JSON{kind: JSONObject, obj: cp}
}

// jsonNull is called only by this package's parser and by ToJSON for
// an option's none case.
func jsonNull() JSON { return JSON{kind: JSONNull} }

func (j JSON) Kind() JSONKind      { return j.kind }
func (j JSON) IsNull() bool        { return j.kind == JSONNull }
func (j JSON) Bool() bool          { return j.b }
func (j JSON) Int() int64          { return j.i }
func (j JSON) Str() string         { return j.s }
func (j JSON) Array() []JSON       { return j.arr }
func (j JSON) Members() []JSONMember { return j.obj }

// Equal reports structural equality over the JSON ADT.
func (j JSON) Equal(o JSON) bool {
	if j.kind != o.kind {
		return false
	}
	switch j.kind {
	case JSONNull:
		return true
	case JSONBool:
		return j.b == o.b
	case JSONInt:
		return j.i == o.i
	case JSONString:
		return j.s == o.s
	case JSONArray:
		if len(j.arr) != len(o.arr) {
			return false
		}
		for i := range j.arr {
			if !j.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case JSONObject:
		if len(j.obj) != len(o.obj) {
			return false
		}
		am, bm := sortedMembers(j.obj), sortedMembers(o.obj)
		for i := range am {
			if am[i].Key != bm[i].Key || !am[i].Value.Equal(bm[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
