// Package buildinfo implements the signed build-info record attached
// to every snapshot (spec §3 "Build info"): who built it, from what
// source, with what compiler, signed the same way a snapshot is
// signed. Grounded on original_source/build_info_generator.c's
// create-then-sign-then-emit pipeline, ported from its no-op key to a
// real P-256 signature (SPEC_FULL.md Open Question (a)).
package buildinfo

import (
	"crypto/ecdsa"
	"encoding/hex"

	"github.com/mtpscript/runtime/mtpcrypto"
	"github.com/mtpscript/runtime/mtperr"
	"github.com/mtpscript/runtime/value"
)

// Info is the unsigned content of a build-info record.
type Info struct {
	BuildID         string
	Timestamp       string // RFC 3339; the compiler's clock, not ours
	SourceSHA256    string // hex-encoded SHA-256 over the compiler's source bundle
	CompilerVersion string
	EnvironmentTag  string
	Signature       [mtpcrypto.SignatureSize]byte
}

// New constructs an unsigned Info. Callers sign it with Sign before it
// is ever embedded in a snapshot's metadata.
func New(buildID, timestamp, sourceSHA256, compilerVersion, environmentTag string) Info {
	return Info{
		BuildID:         buildID,
		Timestamp:       timestamp,
		SourceSHA256:    sourceSHA256,
		CompilerVersion: compilerVersion,
		EnvironmentTag:  environmentTag,
	}
}

// signedFields returns the canonical-CBOR encoding of the fields that
// get signed — never the Signature field itself.
func (info Info) signedFields() ([]byte, error) {
	obj := []value.JSONMember{
		{Key: "buildId", Value: value.JSONFromString(info.BuildID)},
		{Key: "timestamp", Value: value.JSONFromString(info.Timestamp)},
		{Key: "sourceSha256", Value: value.JSONFromString(info.SourceSHA256)},
		{Key: "compilerVersion", Value: value.JSONFromString(info.CompilerVersion)},
		{Key: "environmentTag", Value: value.JSONFromString(info.EnvironmentTag)},
	}
	return value.EmitCanonicalCBOR(value.JSONObjectOf(obj))
}

// Sign signs info with priv, mirroring the snapshot's ECDSA-P256/SHA-256
// scheme, and returns the signed copy.
func Sign(info Info, priv *ecdsa.PrivateKey, randReader interface {
	Read(p []byte) (n int, err error)
}) (Info, error) {
	data, err := info.signedFields()
	if err != nil {
		return Info{}, err
	}
	sig, err := mtpcrypto.Sign(randReader, priv, data)
	if err != nil {
		return Info{}, mtperr.Wrap(mtperr.Internal, err, "signing build info")
	}
	copy(info.Signature[:], sig)
	return info, nil
}

// Verify checks info's signature against pub. A build-info record that
// fails verification is rejected the same way an unsigned snapshot is:
// mtperr.InvalidSignature, no partial trust extended to its fields.
func Verify(info Info, pub *ecdsa.PublicKey) error {
	data, err := info.signedFields()
	if err != nil {
		return err
	}
	if !mtpcrypto.Verify(data, info.Signature[:], pub) {
		return mtperr.New(mtperr.InvalidSignature, "build info signature verification failed")
	}
	return nil
}

// FromJSON decodes a build-info record out of a snapshot metadata
// object's "build" member.
func FromJSON(j value.JSON) (Info, error) {
	if j.Kind() != value.JSONObject {
		return Info{}, mtperr.New(mtperr.ForbiddenSyntax, "build info must be a JSON object")
	}
	var info Info
	for _, m := range j.Members() {
		switch m.Key {
		case "buildId":
			info.BuildID = stringField(m.Value)
		case "timestamp":
			info.Timestamp = stringField(m.Value)
		case "sourceSha256":
			info.SourceSHA256 = stringField(m.Value)
		case "compilerVersion":
			info.CompilerVersion = stringField(m.Value)
		case "environmentTag":
			info.EnvironmentTag = stringField(m.Value)
		case "signature":
			sig := stringField(m.Value)
			if len(sig) != 2*mtpcrypto.SignatureSize {
				return Info{}, mtperr.New(mtperr.InvalidSignature, "build info signature has wrong length")
			}
			if _, err := hex.Decode(info.Signature[:], []byte(sig)); err != nil {
				return Info{}, mtperr.Wrap(mtperr.InvalidSignature, err, "decoding build info signature")
			}
		}
	}
	return info, nil
}

func stringField(j value.JSON) string {
	if j.Kind() != value.JSONString {
		return ""
	}
	return j.Str()
}
