// Package seed computes the per-request deterministic seed that roots
// every effect cache key (spec §4.5): 32 bytes derived from request
// identity, the snapshot's content hash, and the gas budget, never
// visible to guest code.
package seed

import "github.com/mtpscript/runtime/value"

// domainTag is folded into every seed so that a future protocol
// version with a different derivation can never collide with this
// one, even given identical request/snapshot/gas inputs.
const domainTag = "mtpscript-v5.1"

// Derive computes the 32-byte seed (spec §4.5):
//
//	SHA-256( ReqID ‖ AccID ‖ Version ‖ "mtpscript-v5.1" ‖ SnapHash ‖ ascii_no_leading_zero(GasLimit) )
//
// reqID, accID, and version are the request-identity strings the host
// adapter supplies; they are opaque to this package beyond their raw
// bytes.
func Derive(reqID, accID, version string, snapHash [32]byte, gasLimit uint64) [32]byte {
	buf := make([]byte, 0, len(reqID)+len(accID)+len(version)+len(domainTag)+32+20)
	buf = append(buf, reqID...)
	buf = append(buf, accID...)
	buf = append(buf, version...)
	buf = append(buf, domainTag...)
	buf = append(buf, snapHash[:]...)
	buf = appendASCIIUint64(buf, gasLimit)
	return value.SHA256(buf)
}

// appendASCIIUint64 appends n as decimal ASCII with no leading zero
// (spec §4.5's ascii_no_leading_zero), e.g. 0 -> "0", 500 -> "500".
func appendASCIIUint64(buf []byte, n uint64) []byte {
	if n == 0 {
		return append(buf, '0')
	}
	var tmp [20]byte
	i := len(tmp)
	for n > 0 {
		i--
		tmp[i] = byte('0' + n%10)
		n /= 10
	}
	return append(buf, tmp[i:]...)
}
