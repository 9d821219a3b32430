package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/petal-labs/spellbook/spell"
)

// Entry is one candidate read from a file together with its validation
// outcome. Exactly one of Spell and Err is meaningful.
type Entry struct {
	Index int
	Raw   json.RawMessage
	Spell spell.Spell
	Err   error
}

// Valid reports whether the entry passed validation.
func (e Entry) Valid() bool {
	return e.Err == nil
}

// Options controls how candidates are prepared before validation.
type Options struct {
	// AssignIDs gives candidates without an "id" a fresh random UUID.
	AssignIDs bool
}

// LoadFile reads path and validates every candidate in it. Read failures
// are returned as-is so callers can test them with os.ErrNotExist; decode
// failures are *ParseError. Per-candidate validation failures are reported on
// the entries, not as the returned error.
func LoadFile(path string, opts Options) ([]Entry, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return Load(data, path, opts)
}

// Load decodes data and validates every candidate in it. path selects the
// decoder and appears in error messages.
func Load(data []byte, path string, opts Options) ([]Entry, error) {
	jsonData, err := toJSON(data, path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	raws, err := candidates(jsonData, path)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(raws))
	for i, raw := range raws {
		if opts.AssignIDs {
			raw = withID(raw)
		}
		s, verr := spell.Parse(raw)
		entries = append(entries, Entry{Index: i, Raw: raw, Spell: s, Err: verr})
	}
	return entries, nil
}

// Spells returns the valid spells from entries in file order.
func Spells(entries []Entry) []spell.Spell {
	out := make([]spell.Spell, 0, len(entries))
	for _, e := range entries {
		if e.Valid() {
			out = append(out, e.Spell)
		}
	}
	return out
}

// Invalid returns the entries that failed validation.
func Invalid(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		if !e.Valid() {
			out = append(out, e)
		}
	}
	return out
}

func candidates(jsonData []byte, path string) ([]json.RawMessage, error) {
	shape, err := detect(jsonData, path)
	if err != nil {
		return nil, err
	}

	switch shape {
	case ShapeSingle:
		return []json.RawMessage{bytes.TrimSpace(jsonData)}, nil
	case ShapeList:
		var list []json.RawMessage
		if err := json.Unmarshal(jsonData, &list); err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
		return list, nil
	default:
		var doc struct {
			Spells []json.RawMessage `json:"spells"`
		}
		if err := json.Unmarshal(jsonData, &doc); err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
		return doc.Spells, nil
	}
}

// withID prepends a random "id" to an object that has none. Anything that is
// not an object is returned unchanged for the validator to reject.
func withID(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) < 2 || trimmed[0] != '{' {
		return raw
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return raw
	}
	if _, ok := probe["id"]; ok {
		return raw
	}

	idField, _ := json.Marshal(uuid.NewString())
	var buf bytes.Buffer
	buf.WriteString(`{"id":`)
	buf.Write(idField)
	rest := bytes.TrimSpace(trimmed[1:])
	if len(probe) > 0 {
		buf.WriteByte(',')
	}
	buf.Write(rest)
	return buf.Bytes()
}
