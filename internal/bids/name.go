// Package bids provides a structured model of BIDS filenames.
//
// A BIDS filename is a sequence of underscore-separated "key-value"
// entity tokens, a trailing suffix naming the modality (T1w, bold, ...),
// and an extension. The model parses a filename into its tokens, lets
// callers mutate individual tokens, and re-serializes deterministically.
// Unknown entity keys are preserved verbatim in their original positions,
// so transforms touch only the tokens they target.
package bids

import (
	"fmt"
	"strings"
)

// Entity keys used by the combine pipeline.
const (
	KeySubject   = "sub"
	KeySession   = "ses"
	KeyTask      = "task"
	KeyRun       = "run"
	KeyDirection = "dir"
)

// knownExtensions lists multi-dot extensions that filepath.Ext would
// split incorrectly. Longest match wins.
var knownExtensions = []string{".nii.gz", ".tar.gz", ".nii", ".json", ".tsv", ".bval", ".bvec"}

type entity struct {
	key   string
	value string
}

// Name is a parsed BIDS filename. The zero value is not usable; obtain
// one from ParseName. Name is a value type: mutating methods return a
// modified copy and never alias the receiver's token slice.
type Name struct {
	entities []entity
	suffix   string
	ext      string
}

// ParseName parses a BIDS filename into its entity tokens, suffix, and
// extension. Every token before the suffix must be of the form
// "key-value"; the final token is the suffix and must not contain a dash.
func ParseName(filename string) (Name, error) {
	if filename == "" {
		return Name{}, fmt.Errorf("bids: empty filename")
	}

	stem, ext := splitExtension(filename)
	if stem == "" {
		return Name{}, fmt.Errorf("bids: filename %q has no stem", filename)
	}

	tokens := strings.Split(stem, "_")
	n := Name{ext: ext}
	for i, tok := range tokens {
		key, value, found := strings.Cut(tok, "-")
		if !found {
			if i != len(tokens)-1 {
				return Name{}, fmt.Errorf("bids: malformed token %q in %q", tok, filename)
			}
			n.suffix = tok
			return n, nil
		}
		if key == "" || value == "" {
			return Name{}, fmt.Errorf("bids: malformed token %q in %q", tok, filename)
		}
		n.entities = append(n.entities, entity{key: key, value: value})
	}
	return Name{}, fmt.Errorf("bids: filename %q has no suffix", filename)
}

// splitExtension splits a filename into stem and extension, handling
// multi-dot extensions like .nii.gz.
func splitExtension(filename string) (stem, ext string) {
	for _, known := range knownExtensions {
		if strings.HasSuffix(filename, known) {
			return strings.TrimSuffix(filename, known), known
		}
	}
	if i := strings.LastIndex(filename, "."); i >= 0 {
		return filename[:i], filename[i:]
	}
	return filename, ""
}

// String re-serializes the name: entities in order, then the suffix,
// joined by underscores, then the extension.
func (n Name) String() string {
	var b strings.Builder
	for i, e := range n.entities {
		if i > 0 {
			b.WriteByte('_')
		}
		b.WriteString(e.key)
		b.WriteByte('-')
		b.WriteString(e.value)
	}
	if n.suffix != "" {
		if len(n.entities) > 0 {
			b.WriteByte('_')
		}
		b.WriteString(n.suffix)
	}
	b.WriteString(n.ext)
	return b.String()
}

// Suffix returns the modality suffix (e.g. "T1w", "bold").
func (n Name) Suffix() string { return n.suffix }

// Extension returns the extension including the leading dot.
func (n Name) Extension() string { return n.ext }

// Get returns the value of the named entity and whether it is present.
func (n Name) Get(key string) (string, bool) {
	for _, e := range n.entities {
		if e.key == key {
			return e.value, true
		}
	}
	return "", false
}

// Has reports whether the named entity is present.
func (n Name) Has(key string) bool {
	_, ok := n.Get(key)
	return ok
}

// Entities returns the entity tokens as a key→value map.
func (n Name) Entities() map[string]string {
	m := make(map[string]string, len(n.entities))
	for _, e := range n.entities {
		m[e.key] = e.value
	}
	return m
}

// clone returns a deep copy so mutating methods never share storage.
func (n Name) clone() Name {
	out := n
	out.entities = make([]entity, len(n.entities))
	copy(out.entities, n.entities)
	return out
}

// SetEntity replaces the value of an existing entity in place. If the
// entity is absent the name is returned unchanged and ok is false.
func (n Name) SetEntity(key, value string) (Name, bool) {
	out := n.clone()
	for i, e := range out.entities {
		if e.key == key {
			out.entities[i].value = value
			return out, true
		}
	}
	return n, false
}

// ReplaceEntity substitutes one entity token with another, keeping the
// original token's position. Used to swap the session token for a run
// token so the rewritten filename stays unique without reordering.
func (n Name) ReplaceEntity(oldKey, newKey, newValue string) (Name, bool) {
	out := n.clone()
	for i, e := range out.entities {
		if e.key == oldKey {
			out.entities[i] = entity{key: newKey, value: newValue}
			return out, true
		}
	}
	return n, false
}

// WithoutEntity removes the named entity token. Removing an absent
// entity is a no-op.
func (n Name) WithoutEntity(key string) Name {
	out := n.clone()
	for i, e := range out.entities {
		if e.key == key {
			out.entities = append(out.entities[:i], out.entities[i+1:]...)
			return out
		}
	}
	return n
}

// InsertEntityAfter inserts a new entity token immediately after the
// named anchor token. Returns ok=false (name unchanged) when the anchor
// is absent.
func (n Name) InsertEntityAfter(afterKey, key, value string) (Name, bool) {
	out := n.clone()
	for i, e := range out.entities {
		if e.key == afterKey {
			out.entities = append(out.entities, entity{})
			copy(out.entities[i+2:], out.entities[i+1:])
			out.entities[i+1] = entity{key: key, value: value}
			return out, true
		}
	}
	return n, false
}
