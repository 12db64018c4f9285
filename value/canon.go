package value

import (
	"github.com/mtpscript/runtime/mtperr"
)

// ToJSON converts an execution-time Value into the wire JSON ADT,
// following spec §4.1's canonical encoding rules: decimals render as
// their canonical string form, options/results/unions flatten to the
// shape a guest program's JSON.stringify would produce. Value itself
// never contains JSONNull — option's "none" case still needs an
// explicit representation on the wire, so it is represented as the
// JSON ADT's only legal null production site outside the parser.
func ToJSON(v Value) (JSON, error) {
	switch v.kind {
	case KindInt:
		return JSONFromInt(v.i)
	case KindString:
		return JSONFromString(v.s), nil
	case KindBool:
		return JSONFromBool(v.b), nil
	case KindDecimal:
		// The JSON ADT's only numeric node is JSONInt (spec §3: closed,
		// int-only), so a Decimal has no bare-number token to render
		// into — original_source's mtpscript_decimal_to_json emits an
		// unquoted number, which this ADT cannot express. Rendering the
		// canonical digit string as a JSON string is a deliberate,
		// accepted divergence from the original's wire bytes, not an
		// oversight.
		return JSONFromString(v.dec.String()), nil
	case KindOption:
		if !v.some {
			return jsonNull(), nil
		}
		return ToJSON(*v.inner)
	case KindResult:
		var inner Value
		var tag string
		if v.ok {
			inner, tag = *v.rOk, "ok"
		} else {
			inner, tag = *v.rErr, "err"
		}
		innerJSON, err := ToJSON(inner)
		if err != nil {
			return JSON{}, err
		}
		return JSONObjectOf([]JSONMember{{Key: tag, Value: innerJSON}}), nil
	case KindList:
		items := make([]JSON, len(v.list))
		for i, e := range v.list {
			j, err := ToJSON(e)
			if err != nil {
				return JSON{}, err
			}
			items[i] = j
		}
		return JSONArrayOf(items), nil
	case KindMap:
		entries := v.MapEntries()
		members := make([]JSONMember, len(entries))
		for i, e := range entries {
			j, err := ToJSON(e.Val)
			if err != nil {
				return JSON{}, err
			}
			members[i] = JSONMember{Key: e.Key.String(), Value: j}
		}
		return JSONObjectOf(members), nil
	case KindRecord:
		members := make([]JSONMember, len(v.record))
		for i, f := range v.record {
			j, err := ToJSON(f.Value)
			if err != nil {
				return JSON{}, err
			}
			members[i] = JSONMember{Key: f.Name, Value: j}
		}
		return JSONObjectOf(members), nil
	case KindUnion:
		payload, err := ToJSON(*v.payload)
		if err != nil {
			return JSON{}, err
		}
		return JSONObjectOf([]JSONMember{
			{Key: "variant", Value: JSONFromString(v.variant)},
			{Key: "value", Value: payload},
		}), nil
	default:
		return JSON{}, mtperr.New(mtperr.Internal, "unhandled value kind %d", v.kind)
	}
}
