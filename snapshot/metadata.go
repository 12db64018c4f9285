package snapshot

import (
	"github.com/mtpscript/runtime/buildinfo"
	"github.com/mtpscript/runtime/mtperr"
	"github.com/mtpscript/runtime/value"
)

// Metadata is the decoded form of a snapshot's canonical-JSON metadata
// blob (spec §3 "Snapshot"): per-function declared effects plus the
// build info the compiler attached for audit.
type Metadata struct {
	Build           buildinfo.Info
	DeclaredEffects map[string][]string // function name -> declared effect names
	EntryPointName  string
}

// ParseMetadata decodes a snapshot's metadata blob. The blob is
// canonical JSON (spec §4.1); a duplicate key anywhere in it is
// JsonDuplicateKey, same as any other canonical-JSON input.
func ParseMetadata(raw []byte) (Metadata, error) {
	j, err := value.ParseJSON(string(raw))
	if err != nil {
		return Metadata{}, err
	}
	if j.Kind() != value.JSONObject {
		return Metadata{}, mtperr.New(mtperr.ForbiddenSyntax, "snapshot metadata must be a JSON object")
	}

	meta := Metadata{DeclaredEffects: map[string][]string{}}
	for _, m := range j.Members() {
		switch m.Key {
		case "entryPoint":
			if m.Value.Kind() == value.JSONString {
				meta.EntryPointName = m.Value.Str()
			}
		case "build":
			info, err := buildinfo.FromJSON(m.Value)
			if err != nil {
				return Metadata{}, err
			}
			meta.Build = info
		case "declaredEffects":
			if m.Value.Kind() != value.JSONObject {
				return Metadata{}, mtperr.New(mtperr.ForbiddenSyntax, "declaredEffects must be an object")
			}
			for _, fn := range m.Value.Members() {
				if fn.Value.Kind() != value.JSONArray {
					return Metadata{}, mtperr.New(mtperr.ForbiddenSyntax, "declaredEffects[%q] must be an array", fn.Key)
				}
				names := make([]string, 0, len(fn.Value.Array()))
				for _, e := range fn.Value.Array() {
					if e.Kind() != value.JSONString {
						return Metadata{}, mtperr.New(mtperr.ForbiddenSyntax, "declaredEffects[%q] entries must be strings", fn.Key)
					}
					names = append(names, e.Str())
				}
				meta.DeclaredEffects[fn.Key] = names
			}
		}
	}
	return meta, nil
}

// DeclaredEffectsFor returns the effect names function fn may invoke.
// An unknown function declares no effects at all — it may invoke none.
func (m Metadata) DeclaredEffectsFor(fn string) []string {
	return m.DeclaredEffects[fn]
}
