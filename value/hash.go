package value

import (
	"encoding/binary"
	"hash/fnv"

	sha256simd "github.com/minio/sha256-simd"
)

// FNV1a64 hashes data with 64-bit FNV-1a, used for fast interning and
// cache pre-hashing (spec §4.1). It is never used for anything that
// crosses a request or host boundary — SHA256 is the digest for that.
func FNV1a64(data []byte) uint64 {
	h := fnv.New64a()
	h.Write(data) //nolint:errcheck // hash.Hash.Write never errors
	return h.Sum64()
}

// SHA256 is the one hashing primitive every cross-request and
// cross-host identifier in the core is built from: the seed, the
// snapshot hash, the effect cache key, and the response digest (spec
// §4.1). It is backed by minio/sha256-simd, the teacher's own indirect
// dependency, wired in directly instead of left unused.
func SHA256(data []byte) [32]byte {
	return sha256simd.Sum256(data)
}

// PutUint64BE writes n as 8 big-endian bytes, the be64(...) helper
// spec §4.6 and §4.5 use when folding integers into a hash input.
func PutUint64BE(n uint64) [8]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return b
}
