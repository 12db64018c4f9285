// Package snapshot implements the signed, versioned .msqs artifact
// format of spec §3/§4.3: parse, verify signature, expose opaque
// program bytes plus metadata.
package snapshot

import (
	"crypto/ecdsa"
	"encoding/binary"
	"io"

	"github.com/mtpscript/runtime/mtpcrypto"
	"github.com/mtpscript/runtime/mtperr"
	"github.com/mtpscript/runtime/value"
)

// Magic is the fixed 4-byte marker every snapshot begins with.
var Magic = [4]byte{'M', 'S', 'Q', 'S'}

// CurrentVersion is the only snapshot format version this core
// understands; a snapshot is never accepted at a different version.
const CurrentVersion uint32 = 1

// headerSize is the fixed little-endian header layout of spec §4.3.
const headerSize = 20

// Header mirrors the 20-byte fixed header.
type Header struct {
	Magic        [4]byte
	Version      uint32
	MetadataLen  uint32
	ProgramLen   uint32
	SignatureLen uint32
}

// Snapshot is an owned, immutable, signature-verified artifact.
// Program is opaque to the core: it is never interpreted here, only
// handed onward to the guest execution engine.
type Snapshot struct {
	Header    Header
	Metadata  []byte
	Program   []byte
	Signature [mtpcrypto.SignatureSize]byte

	hash [32]byte // SHA-256 over magic‖version‖metadata‖program, cached on load
}

// Hash returns the snapshot's content hash (SnapHash in spec §3/§4.5),
// computed once at Load time over the signed region.
func (s *Snapshot) Hash() [32]byte { return s.hash }

// Load parses r as a .msqs artifact and verifies its ECDSA-P256
// signature against pub. A failed verification returns
// mtperr.InvalidSignature before a single program byte is consulted
// (spec §4.2, §8 property 10): the signature check runs against the
// raw signed region read directly off the header-described slice, not
// against anything that required interpreting Program first.
func Load(r io.Reader, pub *ecdsa.PublicKey) (*Snapshot, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, mtperr.Wrap(mtperr.Internal, err, "reading snapshot stream")
	}
	return Parse(raw, pub)
}

// Parse verifies and decodes a complete in-memory .msqs artifact.
func Parse(raw []byte, pub *ecdsa.PublicKey) (*Snapshot, error) {
	if len(raw) < headerSize {
		return nil, mtperr.New(mtperr.InvalidSignature, "snapshot shorter than fixed header")
	}
	var hdr Header
	copy(hdr.Magic[:], raw[0:4])
	hdr.Version = binary.LittleEndian.Uint32(raw[4:8])
	hdr.MetadataLen = binary.LittleEndian.Uint32(raw[8:12])
	hdr.ProgramLen = binary.LittleEndian.Uint32(raw[12:16])
	hdr.SignatureLen = binary.LittleEndian.Uint32(raw[16:20])

	if hdr.Magic != Magic {
		return nil, mtperr.New(mtperr.InvalidSignature, "bad magic %q", hdr.Magic)
	}
	if hdr.Version != CurrentVersion {
		return nil, mtperr.New(mtperr.InvalidSignature, "unsupported snapshot version %d", hdr.Version)
	}
	if hdr.SignatureLen != mtpcrypto.SignatureSize {
		return nil, mtperr.New(mtperr.InvalidSignature, "signature length %d != %d", hdr.SignatureLen, mtpcrypto.SignatureSize)
	}

	want := int64(headerSize) + int64(hdr.MetadataLen) + int64(hdr.ProgramLen) + int64(hdr.SignatureLen)
	if int64(len(raw)) != want {
		return nil, mtperr.New(mtperr.InvalidSignature, "snapshot length %d does not match header-declared %d", len(raw), want)
	}

	metaStart := headerSize
	metaEnd := metaStart + int(hdr.MetadataLen)
	progEnd := metaEnd + int(hdr.ProgramLen)
	sigEnd := progEnd + int(hdr.SignatureLen)

	// Signed region is exactly magic‖version‖metadata‖program (spec
	// §4.3): the three length fields at header offsets 8..20 frame the
	// file but are themselves excluded from the digest.
	signedRegion := make([]byte, 0, 8+int(hdr.MetadataLen)+int(hdr.ProgramLen))
	signedRegion = append(signedRegion, raw[0:8]...)
	signedRegion = append(signedRegion, raw[metaStart:progEnd]...)
	signature := raw[progEnd:sigEnd]

	if !mtpcrypto.Verify(signedRegion, signature, pub) {
		return nil, mtperr.New(mtperr.InvalidSignature, "snapshot signature verification failed")
	}

	snap := &Snapshot{
		Header:   hdr,
		Metadata: append([]byte(nil), raw[metaStart:metaEnd]...),
		Program:  append([]byte(nil), raw[metaEnd:progEnd]...),
		hash:     value.SHA256(signedRegion),
	}
	copy(snap.Signature[:], signature)
	return snap, nil
}

// Encode serialises header+metadata+program+signature back into the
// .msqs wire form (used by test fixtures and buildinfo tooling, never
// by the execution core itself — it only ever loads).
func Encode(metadata, program []byte, signature [mtpcrypto.SignatureSize]byte) []byte {
	out := make([]byte, headerSize, headerSize+len(metadata)+len(program)+mtpcrypto.SignatureSize)
	copy(out[0:4], Magic[:])
	binary.LittleEndian.PutUint32(out[4:8], CurrentVersion)
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(metadata)))
	binary.LittleEndian.PutUint32(out[12:16], uint32(len(program)))
	binary.LittleEndian.PutUint32(out[16:20], uint32(mtpcrypto.SignatureSize))
	out = append(out, metadata...)
	out = append(out, program...)
	out = append(out, signature[:]...)
	return out
}

// SignedRegion returns the exact bytes that must be signed to build a
// valid snapshot: magic‖version‖metadata‖program. The three
// length-prefix fields that otherwise live in the 20-byte header are
// deliberately not part of this digest (spec §4.3).
func SignedRegion(metadata, program []byte) []byte {
	region := make([]byte, 8, 8+len(metadata)+len(program))
	copy(region[0:4], Magic[:])
	binary.LittleEndian.PutUint32(region[4:8], CurrentVersion)
	region = append(region, metadata...)
	region = append(region, program...)
	return region
}

// Wipe securely overwrites the program region in place (called by
// sandbox.Context.Wipe as part of its multi-pass arena wipe, spec §4.8
// step 8). Metadata and Header are left alone — only the opaque
// program bytes are guest-reachable data that must never survive into
// the next context.
func (s *Snapshot) Wipe() {
	for i := range s.Program {
		s.Program[i] = 0
	}
}
