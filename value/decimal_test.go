package value

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseDecimalStringRoundTrips(t *testing.T) {
	cases := []string{"0", "1", "-1", "10.50", "10.500", "0.01", "-0.01", "123456789012345678901234.0"}
	for _, s := range cases {
		d, err := ParseDecimal(s)
		require.NoErrorf(t, err, "parsing %q", s)
		back, err := ParseDecimal(d.String())
		require.NoErrorf(t, err, "reparsing %q", d.String())
		require.Truef(t, DecimalEqual(d, back), "%q did not round trip through %q", s, d.String())
	}
}

func TestDecimalAddCanonicalisesEqualValues(t *testing.T) {
	a, err := ParseDecimal("10.50")
	require.NoError(t, err)
	b, err := ParseDecimal("5.25")
	require.NoError(t, err)
	sum1, err := Add(a, b)
	require.NoError(t, err)

	a2, err := ParseDecimal("10.500")
	require.NoError(t, err)
	b2, err := ParseDecimal("5.250")
	require.NoError(t, err)
	sum2, err := Add(a2, b2)
	require.NoError(t, err)

	require.Equal(t, "15.75", sum1.String())
	require.Equal(t, sum1.String(), sum2.String())
}

// rapidDecimal generates an arbitrary Decimal within a range that keeps
// both the uint256 fast path and the big.Int fallback in Add reachable
// across a run (spec §4.1: both paths must agree).
func rapidDecimal(t *rapid.T, label string) Decimal {
	sig := rapid.Int64Range(-1_000_000_000_000, 1_000_000_000_000).Draw(t, label+"Sig")
	scale := rapid.Int32Range(0, MaxScale).Draw(t, label+"Scale")
	d, err := NewDecimal(sig, scale)
	if err != nil {
		t.Fatalf("constructing decimal: %v", err)
	}
	return d
}

// TestDecimalParseStringRoundTrip checks that any decimal's canonical
// string form re-parses to an equal value (spec §4.1 "string ... is the
// canonical, re-parseable form").
func TestDecimalParseStringRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := rapidDecimal(t, "d")
		reparsed, err := ParseDecimal(d.String())
		if err != nil {
			t.Fatalf("reparsing %q: %v", d.String(), err)
		}
		if !DecimalEqual(d, reparsed) {
			t.Fatalf("round trip changed value: %s -> %q -> %s", d.String(), d.String(), reparsed.String())
		}
	})
}

// TestDecimalAddIsCommutative checks spec §4.1's add semantics hold
// regardless of operand order, across both the uint256 fast path and
// the big.Int fallback.
func TestDecimalAddIsCommutative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapidDecimal(t, "a")
		b := rapidDecimal(t, "b")
		sum1, err := Add(a, b)
		if err != nil {
			t.Fatalf("a+b: %v", err)
		}
		sum2, err := Add(b, a)
		if err != nil {
			t.Fatalf("b+a: %v", err)
		}
		if !DecimalEqual(sum1, sum2) {
			t.Fatalf("Add not commutative: %s+%s=%s but %s+%s=%s", a.String(), b.String(), sum1.String(), b.String(), a.String(), sum2.String())
		}
	})
}

// TestDecimalTrailingZeroScalesCanonicaliseTheSame checks that two
// decimals differing only in trailing-zero scale (e.g. 10.50 vs 10.500)
// always render to the same canonical string (spec §8 property: "two decimal
// literals that differ only in trailing zero scale canonicalise to the
// same digits").
func TestDecimalTrailingZeroScalesCanonicaliseTheSame(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sig := rapid.Int64Range(-1_000_000_000, 1_000_000_000).Draw(t, "sig")
		scale := rapid.Int32Range(0, MaxScale-2).Draw(t, "scale")
		extraZeros := rapid.Int32Range(1, 2).Draw(t, "extraZeros")

		d, err := NewDecimal(sig, scale)
		if err != nil {
			t.Fatalf("building base decimal: %v", err)
		}

		widenedSig := new(big.Int).Mul(big.NewInt(sig), pow10(extraZeros))
		widened, err := newDecimalBig(widenedSig, scale+extraZeros)
		if err != nil {
			t.Fatalf("building widened decimal: %v", err)
		}

		if d.String() != widened.String() {
			t.Fatalf("trailing-zero scale changed canonical form: %s vs %s", d.String(), widened.String())
		}
	})
}
