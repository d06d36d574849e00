// Package snapshot builds and canonicalizes structural component
// snapshots. Construction is total: payloads the extractor produced in
// an unknown shape are preserved verbatim in Raw and simply excluded
// from the typed mappings.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/uistack/comp-vs/internal/types"
)

// FromRaw constructs a Snapshot from an extracted payload. It never
// fails; malformed input yields a snapshot carrying only the key and
// the raw bytes.
func FromRaw(componentKey string, raw []byte) types.Snapshot {
	snap := types.Snapshot{
		ComponentKey: componentKey,
		Raw:          append(json.RawMessage{}, raw...),
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return snap
	}

	snap.PropertyDefinitions = parseProperties(payload)
	snap.VariablesUsed = parseVariables(payload)
	snap.Geometry = parseGeometry(payload)
	return snap
}

func parseProperties(payload map[string]any) map[string]types.PropertyDefinition {
	raw, ok := mapField(payload, "propertyDefinitions", "componentPropertyDefinitions")
	if !ok {
		return nil
	}

	defs := make(map[string]types.PropertyDefinition, len(raw))
	for name, value := range raw {
		entry, ok := value.(map[string]any)
		if !ok {
			// Shorthand form: the value is the default itself.
			defs[name] = types.PropertyDefinition{Default: stringify(value)}
			continue
		}
		def := types.PropertyDefinition{}
		if t, ok := entry["type"].(string); ok {
			def.Type = t
		}
		if d, ok := entry["defaultValue"]; ok {
			def.Default = stringify(d)
		} else if d, ok := entry["default"]; ok {
			def.Default = stringify(d)
		}
		if opts, ok := listField(entry, "variantOptions", "options"); ok {
			def.Options = opts
		}
		defs[name] = def
	}
	if len(defs) == 0 {
		return nil
	}
	return defs
}

func parseVariables(payload map[string]any) map[string]string {
	raw, ok := mapField(payload, "variablesUsed", "boundVariables")
	if !ok {
		return nil
	}

	vars := make(map[string]string, len(raw))
	for slot, value := range raw {
		switch v := value.(type) {
		case string:
			vars[slot] = v
		case map[string]any:
			if id, ok := v["id"].(string); ok {
				vars[slot] = id
			}
		}
	}
	if len(vars) == 0 {
		return nil
	}
	return vars
}

func parseGeometry(payload map[string]any) types.Geometry {
	geom := types.Geometry{}
	if w, ok := payload["width"].(float64); ok {
		geom.Width = w
	}
	if h, ok := payload["height"].(float64); ok {
		geom.Height = h
	}
	if l, ok := payload["layoutMode"].(string); ok {
		geom.Layout = l
	} else if l, ok := payload["layout"].(string); ok {
		geom.Layout = l
	}
	geom.Layout = strings.TrimSpace(geom.Layout)
	return geom
}

func mapField(payload map[string]any, names ...string) (map[string]any, bool) {
	for _, name := range names {
		if m, ok := payload[name].(map[string]any); ok {
			return m, true
		}
	}
	return nil, false
}

func listField(entry map[string]any, names ...string) ([]string, bool) {
	for _, name := range names {
		items, ok := entry[name].([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, stringify(item))
		}
		return out, true
	}
	return nil, false
}

// stringify renders an arbitrary decoded JSON value deterministically.
// encoding/json sorts map keys, which gives object values a stable form.
func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// CanonicalProperty renders one property definition as a single
// comparable line. Options are sorted so equality is order-independent.
func CanonicalProperty(def types.PropertyDefinition) string {
	opts := append([]string(nil), def.Options...)
	sort.Strings(opts)
	return "type=" + def.Type + " default=" + def.Default + " options=" + strings.Join(opts, "|")
}

// CanonicalGeometry renders the geometry summary as a comparable line.
func CanonicalGeometry(g types.Geometry) string {
	return formatFloat(g.Width) + "x" + formatFloat(g.Height) + " layout=" + strings.TrimSpace(g.Layout)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Canonical produces a totally ordered textual form of the snapshot's
// structural content. Two snapshots with the same canonical form are
// structurally identical regardless of Raw bytes or map iteration order.
func Canonical(s types.Snapshot) string {
	var b strings.Builder
	b.WriteString("component " + s.ComponentKey + "\n")

	for _, key := range sortedKeys(s.PropertyDefinitions) {
		b.WriteString("property " + key + " " + CanonicalProperty(s.PropertyDefinitions[key]) + "\n")
	}
	for _, slot := range sortedKeys(s.VariablesUsed) {
		b.WriteString("variable " + slot + " " + s.VariablesUsed[slot] + "\n")
	}
	b.WriteString("geometry " + CanonicalGeometry(s.Geometry) + "\n")
	return b.String()
}

// Equal reports structural equality per the snapshot contract: same
// component key and same canonicalized property and variable content.
// Geometry and Raw are excluded.
func Equal(a, b types.Snapshot) bool {
	if a.ComponentKey != b.ComponentKey {
		return false
	}
	if len(a.PropertyDefinitions) != len(b.PropertyDefinitions) {
		return false
	}
	for key, def := range a.PropertyDefinitions {
		other, ok := b.PropertyDefinitions[key]
		if !ok || CanonicalProperty(def) != CanonicalProperty(other) {
			return false
		}
	}
	if len(a.VariablesUsed) != len(b.VariablesUsed) {
		return false
	}
	for slot, id := range a.VariablesUsed {
		if b.VariablesUsed[slot] != id {
			return false
		}
	}
	return true
}

// Fingerprint returns the sha256 of the canonical form, a cheap
// identity for detecting unchanged snapshots.
func Fingerprint(s types.Snapshot) string {
	sum := sha256.Sum256([]byte(Canonical(s)))
	return hex.EncodeToString(sum[:])
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
