// Package value implements the canonical value model of spec §3–§4.1:
// arbitrary-precision decimals, the Value algebraic sum type, the JSON
// algebraic data type, and the canonical JSON/CBOR encoders used for
// every cross-request and cross-host digest.
package value

import (
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"github.com/mtpscript/runtime/mtperr"
)

// MaxScale is the largest scale a Decimal may carry (spec §3).
const MaxScale = 28

// divExtraPrecision is the fixed extra precision p added to the
// numerator before integer division, per spec §4.1 "div".
const divExtraPrecision = 8

// Decimal is significand·10^(-scale), significand signed and
// arbitrary precision, scale in [0, MaxScale]. The zero value is 0.
type Decimal struct {
	Significand *big.Int
	Scale       int32
}

// NewDecimal builds a Decimal from an int64 significand, validating
// scale range.
func NewDecimal(significand int64, scale int32) (Decimal, error) {
	return newDecimalBig(big.NewInt(significand), scale)
}

func newDecimalBig(sig *big.Int, scale int32) (Decimal, error) {
	if scale < 0 || scale > MaxScale {
		return Decimal{}, mtperr.New(mtperr.InvalidDecimal, "scale %d out of range [0,%d]", scale, MaxScale)
	}
	return Decimal{Significand: new(big.Int).Set(sig), Scale: scale}, nil
}

// ParseDecimal parses a decimal literal of the form "-?[0-9]+(\.[0-9]+)?".
// Any other shape, or a scale beyond MaxScale, is InvalidDecimal.
func ParseDecimal(s string) (Decimal, error) {
	if s == "" {
		return Decimal{}, mtperr.New(mtperr.InvalidDecimal, "empty decimal literal")
	}
	neg := false
	rest := s
	if rest[0] == '-' {
		neg = true
		rest = rest[1:]
	}
	intPart, fracPart, hasFrac := rest, "", false
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		intPart, fracPart, hasFrac = rest[:i], rest[i+1:], true
	}
	if intPart == "" || !isAllDigits(intPart) {
		return Decimal{}, mtperr.New(mtperr.InvalidDecimal, "malformed integer part in %q", s)
	}
	if hasFrac && (fracPart == "" || !isAllDigits(fracPart)) {
		return Decimal{}, mtperr.New(mtperr.InvalidDecimal, "malformed fractional part in %q", s)
	}
	scale := int32(len(fracPart))
	if scale > MaxScale {
		return Decimal{}, mtperr.New(mtperr.InvalidDecimal, "scale %d exceeds max %d in %q", scale, MaxScale, s)
	}
	digits := intPart + fracPart
	sig, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Decimal{}, mtperr.New(mtperr.InvalidDecimal, "malformed digits in %q", s)
	}
	if neg {
		sig.Neg(sig)
	}
	return Decimal{Significand: sig, Scale: scale}, nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (d Decimal) sig() *big.Int {
	if d.Significand == nil {
		return new(big.Int)
	}
	return d.Significand
}

func pow10(n int32) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// align brings a and b to a common scale by shifting the
// smaller-scale significand left, per spec §4.1 "add/sub"/"cmp".
func align(a, b Decimal) (*big.Int, *big.Int, int32) {
	as, bs := new(big.Int).Set(a.sig()), new(big.Int).Set(b.sig())
	scale := a.Scale
	if b.Scale > scale {
		scale = b.Scale
	}
	if d := scale - a.Scale; d > 0 {
		as.Mul(as, pow10(d))
	}
	if d := scale - b.Scale; d > 0 {
		bs.Mul(bs, pow10(d))
	}
	return as, bs, scale
}

// Add returns a+b, result scale = max(a.Scale, b.Scale). The common
// case — both aligned significands non-negative and within 256 bits —
// runs through a fixed-width uint256.Int addition (the teacher's own
// numeric type, repurposed from SSZ field encoding to decimal
// arithmetic) instead of math/big's general allocator; anything wider,
// or either operand negative, falls back to big.Int so precision is
// never bounded by the fast path.
func Add(a, b Decimal) (Decimal, error) {
	as, bs, scale := align(a, b)
	if sum, ok := addUint256Fast(as, bs); ok {
		return newDecimalBig(sum, scale)
	}
	return newDecimalBig(as.Add(as, bs), scale)
}

// addUint256Fast attempts x+y via uint256.Int when both operands are
// non-negative and fit in 256 bits and the sum does not overflow. It
// never mutates x or y.
func addUint256Fast(x, y *big.Int) (*big.Int, bool) {
	if x.Sign() < 0 || y.Sign() < 0 || x.BitLen() > 256 || y.BitLen() > 256 {
		return nil, false
	}
	var ux, uy uint256.Int
	if ux.SetFromBig(x) || uy.SetFromBig(y) {
		return nil, false
	}
	var sum uint256.Int
	if _, overflow := sum.AddOverflow(&ux, &uy); overflow {
		return nil, false
	}
	return sum.ToBig(), true
}

// Sub returns a-b, result scale = max(a.Scale, b.Scale).
func Sub(a, b Decimal) (Decimal, error) {
	as, bs, scale := align(a, b)
	return newDecimalBig(as.Sub(as, bs), scale)
}

// Mul returns a*b, result scale = a.Scale+b.Scale; a result scale above
// MaxScale is rejected with InvalidDecimal, the same way ParseDecimal
// rejects an out-of-range scale.
func Mul(a, b Decimal) (Decimal, error) {
	sig := new(big.Int).Mul(a.sig(), b.sig())
	return newDecimalBig(sig, a.Scale+b.Scale)
}

// Div returns a/b extended by divExtraPrecision digits of precision
// before integer division, per spec §4.1 "div". Division by zero is
// DecimalDivByZero, never a panic.
func Div(a, b Decimal) (Decimal, error) {
	if b.sig().Sign() == 0 {
		return Decimal{}, mtperr.New(mtperr.DecimalDivByZero, "division by zero")
	}
	num := new(big.Int).Mul(a.sig(), pow10(divExtraPrecision))
	q := new(big.Int).Quo(num, b.sig())
	return newDecimalBig(q, a.Scale+divExtraPrecision-b.Scale)
}

// Cmp compares a and b after aligning to a common scale.
func Cmp(a, b Decimal) int {
	as, bs, _ := align(a, b)
	return as.Cmp(bs)
}

// DecimalEqual reports structural equality (spec §3: "== is structural").
func DecimalEqual(a, b Decimal) bool { return Cmp(a, b) == 0 }

// String renders the shortest canonical form (spec §4.1): trailing
// fractional zeros stripped, bare integer when nothing fractional
// remains, zero is exactly "0".
func (d Decimal) String() string {
	sig := d.sig()
	if sig.Sign() == 0 {
		return "0"
	}
	scale := d.Scale
	s := new(big.Int).Set(sig)
	ten := big.NewInt(10)
	rem := new(big.Int)
	for scale > 0 {
		s.QuoRem(s, ten, rem)
		if rem.Sign() != 0 {
			s.Mul(s, ten)
			s.Add(s, rem)
			break
		}
		scale--
	}
	if scale == 0 {
		return s.String()
	}
	neg := s.Sign() < 0
	digits := new(big.Int).Abs(s).String()
	for int32(len(digits)) <= scale {
		digits = "0" + digits
	}
	intLen := int32(len(digits)) - scale
	out := digits[:intLen] + "." + digits[intLen:]
	if neg {
		out = "-" + out
	}
	return out
}
