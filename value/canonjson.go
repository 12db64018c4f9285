package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/mtpscript/runtime/mtperr"
)

// sortedMembers returns a copy of members sorted by UTF-16 code unit
// order of Key, the ordering canonical JSON requires (spec §4.1, §6).
func sortedMembers(members []JSONMember) []JSONMember {
	cp := make([]JSONMember, len(members))
	copy(cp, members)
	sort.SliceStable(cp, func(i, j int) bool {
		return utf16Less(cp[i].Key, cp[j].Key)
	})
	return cp
}

func utf16Less(a, b string) bool {
	au, bu := utf16.Encode([]rune(a)), utf16.Encode([]rune(b))
	n := len(au)
	if len(bu) < n {
		n = len(bu)
	}
	for i := 0; i < n; i++ {
		if au[i] != bu[i] {
			return au[i] < bu[i]
		}
	}
	return len(au) < len(bu)
}

// EmitCanonicalJSON renders j as canonical JSON (spec §4.1, RFC 8785
// discipline): UTF-8, no BOM, no insignificant whitespace, object keys
// sorted by UTF-16 code unit, \u escapes only below 0x20 and for " \,
// integers in shortest decimal.
func EmitCanonicalJSON(j JSON) []byte {
	var buf strings.Builder
	writeCanonical(&buf, j)
	return []byte(buf.String())
}

func writeCanonical(buf *strings.Builder, j JSON) {
	switch j.kind {
	case JSONNull:
		buf.WriteString("null")
	case JSONBool:
		if j.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case JSONInt:
		buf.WriteString(strconv.FormatInt(j.i, 10))
	case JSONString:
		writeCanonicalString(buf, j.s)
	case JSONArray:
		buf.WriteByte('[')
		for i, item := range j.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, item)
		}
		buf.WriteByte(']')
	case JSONObject:
		buf.WriteByte('{')
		for i, m := range sortedMembers(j.obj) {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, m.Key)
			buf.WriteByte(':')
			writeCanonical(buf, m.Value)
		}
		buf.WriteByte('}')
	}
}

func writeCanonicalString(buf *strings.Builder, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

// --- Parser -----------------------------------------------------------

// ParseJSON parses s as JSON, rejecting any object with a duplicate key
// (spec §4.1, §7: JsonDuplicateKey). Apart from ToJSON's rendering of
// an option's none case, it is the only producer of JSONNull.
func ParseJSON(s string) (JSON, error) {
	p := &jsonParser{in: s}
	p.skipWS()
	v, err := p.parseValue()
	if err != nil {
		return JSON{}, err
	}
	p.skipWS()
	if p.pos != len(p.in) {
		return JSON{}, mtperr.New(mtperr.ForbiddenSyntax, "trailing data after JSON value at offset %d", p.pos)
	}
	return v, nil
}

type jsonParser struct {
	in  string
	pos int
}

func (p *jsonParser) skipWS() {
	for p.pos < len(p.in) {
		switch p.in[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *jsonParser) peek() (byte, bool) {
	if p.pos >= len(p.in) {
		return 0, false
	}
	return p.in[p.pos], true
}

func (p *jsonParser) parseValue() (JSON, error) {
	c, ok := p.peek()
	if !ok {
		return JSON{}, mtperr.New(mtperr.ForbiddenSyntax, "unexpected end of JSON input")
	}
	switch {
	case c == '{':
		return p.parseObject()
	case c == '[':
		return p.parseArray()
	case c == '"':
		s, err := p.parseString()
		if err != nil {
			return JSON{}, err
		}
		return JSONFromString(s), nil
	case c == 't':
		return p.parseLiteral("true", JSONFromBool(true))
	case c == 'f':
		return p.parseLiteral("false", JSONFromBool(false))
	case c == 'n':
		return p.parseLiteral("null", jsonNull())
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	default:
		return JSON{}, mtperr.New(mtperr.ForbiddenSyntax, "unexpected character %q at offset %d", c, p.pos)
	}
}

func (p *jsonParser) parseLiteral(lit string, v JSON) (JSON, error) {
	if p.pos+len(lit) > len(p.in) || p.in[p.pos:p.pos+len(lit)] != lit {
		return JSON{}, mtperr.New(mtperr.ForbiddenSyntax, "invalid literal at offset %d", p.pos)
	}
	p.pos += len(lit)
	return v, nil
}

func (p *jsonParser) parseNumber() (JSON, error) {
	start := p.pos
	if c, ok := p.peek(); ok && c == '-' {
		p.pos++
	}
	for {
		c, ok := p.peek()
		if !ok || c < '0' || c > '9' {
			break
		}
		p.pos++
	}
	if c, ok := p.peek(); ok && (c == '.' || c == 'e' || c == 'E') {
		return JSON{}, mtperr.New(mtperr.ForbiddenSyntax, "non-integer JSON numbers are not supported (offset %d)", start)
	}
	n, err := strconv.ParseInt(p.in[start:p.pos], 10, 64)
	if err != nil {
		return JSON{}, mtperr.New(mtperr.IntegerOverflow, "json integer literal %q out of int64 range", p.in[start:p.pos])
	}
	return JSONFromInt(n)
}

func (p *jsonParser) parseString() (string, error) {
	if c, _ := p.peek(); c != '"' {
		return "", mtperr.New(mtperr.ForbiddenSyntax, "expected string at offset %d", p.pos)
	}
	p.pos++
	var sb strings.Builder
	for {
		c, ok := p.peek()
		if !ok {
			return "", mtperr.New(mtperr.ForbiddenSyntax, "unterminated JSON string")
		}
		if c == '"' {
			p.pos++
			return sb.String(), nil
		}
		if c == '\\' {
			p.pos++
			esc, ok := p.peek()
			if !ok {
				return "", mtperr.New(mtperr.ForbiddenSyntax, "unterminated escape sequence")
			}
			switch esc {
			case '"':
				sb.WriteByte('"')
				p.pos++
			case '\\':
				sb.WriteByte('\\')
				p.pos++
			case '/':
				sb.WriteByte('/')
				p.pos++
			case 'b':
				sb.WriteByte('\b')
				p.pos++
			case 'f':
				sb.WriteByte('\f')
				p.pos++
			case 'n':
				sb.WriteByte('\n')
				p.pos++
			case 'r':
				sb.WriteByte('\r')
				p.pos++
			case 't':
				sb.WriteByte('\t')
				p.pos++
			case 'u':
				r, err := p.parseUnicodeEscape()
				if err != nil {
					return "", err
				}
				sb.WriteRune(r)
			default:
				return "", mtperr.New(mtperr.ForbiddenSyntax, "invalid escape \\%c", esc)
			}
			continue
		}
		if c < 0x20 {
			return "", mtperr.New(mtperr.ForbiddenSyntax, "raw control character in JSON string")
		}
		r, size := utf8.DecodeRuneInString(p.in[p.pos:])
		sb.WriteRune(r)
		p.pos += size
	}
}

func (p *jsonParser) parseUnicodeEscape() (rune, error) {
	p.pos++ // consume 'u'
	hi, err := p.hex4()
	if err != nil {
		return 0, err
	}
	if utf16.IsSurrogate(rune(hi)) && p.pos+1 < len(p.in) && p.in[p.pos] == '\\' && p.in[p.pos+1] == 'u' {
		save := p.pos
		p.pos += 2
		lo, err := p.hex4()
		if err != nil {
			p.pos = save
			return rune(hi), nil
		}
		r := utf16.DecodeRune(rune(hi), rune(lo))
		if r != utf8.RuneError {
			return r, nil
		}
		p.pos = save
	}
	return rune(hi), nil
}

func (p *jsonParser) hex4() (uint16, error) {
	if p.pos+4 > len(p.in) {
		return 0, mtperr.New(mtperr.ForbiddenSyntax, "truncated \\u escape")
	}
	n, err := strconv.ParseUint(p.in[p.pos:p.pos+4], 16, 16)
	if err != nil {
		return 0, mtperr.New(mtperr.ForbiddenSyntax, "invalid \\u escape %q", p.in[p.pos:p.pos+4])
	}
	p.pos += 4
	return uint16(n), nil
}

func (p *jsonParser) parseArray() (JSON, error) {
	p.pos++ // '['
	var items []JSON
	p.skipWS()
	if c, ok := p.peek(); ok && c == ']' {
		p.pos++
		return JSONArrayOf(items), nil
	}
	for {
		p.skipWS()
		v, err := p.parseValue()
		if err != nil {
			return JSON{}, err
		}
		items = append(items, v)
		p.skipWS()
		c, ok := p.peek()
		if !ok {
			return JSON{}, mtperr.New(mtperr.ForbiddenSyntax, "unterminated array")
		}
		if c == ',' {
			p.pos++
			continue
		}
		if c == ']' {
			p.pos++
			return JSONArrayOf(items), nil
		}
		return JSON{}, mtperr.New(mtperr.ForbiddenSyntax, "expected ',' or ']' at offset %d", p.pos)
	}
}

func (p *jsonParser) parseObject() (JSON, error) {
	p.pos++ // '{'
	var members []JSONMember
	seen := make(map[string]bool)
	p.skipWS()
	if c, ok := p.peek(); ok && c == '}' {
		p.pos++
		return JSONObjectOf(members), nil
	}
	for {
		p.skipWS()
		key, err := p.parseString()
		if err != nil {
			return JSON{}, err
		}
		if seen[key] {
			return JSON{}, mtperr.New(mtperr.JSONDuplicateKey, "duplicate key %q", key)
		}
		seen[key] = true
		p.skipWS()
		c, ok := p.peek()
		if !ok || c != ':' {
			return JSON{}, mtperr.New(mtperr.ForbiddenSyntax, "expected ':' at offset %d", p.pos)
		}
		p.pos++
		p.skipWS()
		v, err := p.parseValue()
		if err != nil {
			return JSON{}, err
		}
		members = append(members, JSONMember{Key: key, Value: v})
		p.skipWS()
		c, ok = p.peek()
		if !ok {
			return JSON{}, mtperr.New(mtperr.ForbiddenSyntax, "unterminated object")
		}
		if c == ',' {
			p.pos++
			continue
		}
		if c == '}' {
			p.pos++
			return JSONObjectOf(members), nil
		}
		return JSON{}, mtperr.New(mtperr.ForbiddenSyntax, "expected ',' or '}' at offset %d", p.pos)
	}
}
