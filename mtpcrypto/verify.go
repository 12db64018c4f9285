// Package mtpcrypto implements the crypto primitives of spec §4.2:
// ECDSA-P256 signature verification over a SHA-256 digest, used to
// gate snapshot loading and build-info authenticity.
package mtpcrypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"math/big"

	"github.com/mtpscript/runtime/value"
)

// SignatureSize is the fixed byte length of a verifiable signature:
// 32-byte big-endian r followed by 32-byte big-endian s (spec §4.2).
const SignatureSize = 64

// Verify checks an ECDSA-P256/SHA-256 signature over data. Any
// malformed input — wrong signature length, a zero scalar, or a point
// that fails to parse — returns false; no exception ever escapes (spec
// §4.2: "no exception escapes").
func Verify(data []byte, signature []byte, pub *ecdsa.PublicKey) bool {
	if pub == nil || pub.Curve != elliptic.P256() {
		return false
	}
	if len(signature) != SignatureSize {
		return false
	}
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:])
	if r.Sign() == 0 || s.Sign() == 0 {
		return false
	}
	order := pub.Curve.Params().N
	if r.Cmp(order) >= 0 || s.Cmp(order) >= 0 {
		return false
	}
	digest := value.SHA256(data)
	return ecdsa.Verify(pub, digest[:], r, s)
}

// Sign produces a raw r‖s signature over data's SHA-256 digest. It
// exists for test fixtures and the buildinfo/host-side snapshot signer
// — the execution core itself only ever verifies.
func Sign(randReader ecdsaRandReader, priv *ecdsa.PrivateKey, data []byte) ([]byte, error) {
	digest := value.SHA256(data)
	r, s, err := ecdsa.Sign(randReader, priv, digest[:])
	if err != nil {
		return nil, err
	}
	out := make([]byte, SignatureSize)
	r.FillBytes(out[:32])
	s.FillBytes(out[32:])
	return out, nil
}

// ecdsaRandReader is the minimal io.Reader surface ecdsa.Sign needs;
// named so callers don't have to import "io" just to pass crypto/rand.Reader.
type ecdsaRandReader interface {
	Read(p []byte) (n int, err error)
}
