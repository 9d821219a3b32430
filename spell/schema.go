package spell

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Schema is an opaque JSON Schema document. It is kept as compact JSON so the
// author's key order survives into generated artifacts.
type Schema json.RawMessage

var emptyObject = []byte("{}")

// NewSchema encodes v (typically map[string]any) as a Schema.
func NewSchema(v any) (Schema, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return schemaFromJSON(buf.Bytes())
}

// MustSchema is NewSchema for literals known to be valid objects.
func MustSchema(v any) Schema {
	s, err := NewSchema(v)
	if err != nil {
		panic(err)
	}
	return s
}

func schemaFromJSON(data []byte) (Schema, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("spell: schema must be a JSON object")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, err
	}
	return Schema(unescapeHTML(buf.Bytes())), nil
}

// unescapeHTML turns the \u003c, \u003e and \u0026 escapes that encoding/json
// emits by default back into <, > and &. Other escapes are copied unchanged.
func unescapeHTML(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u00`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c != '\\' || i+1 >= len(data) {
			out = append(out, c)
			continue
		}
		if data[i+1] == 'u' && i+5 < len(data) {
			switch strings.ToLower(string(data[i+2 : i+6])) {
			case "003c":
				out = append(out, '<')
				i += 5
				continue
			case "003e":
				out = append(out, '>')
				i += 5
				continue
			case "0026":
				out = append(out, '&')
				i += 5
				continue
			}
		}
		// Keep the escape pair together so an escaped backslash is never
		// read as the start of another escape.
		out = append(out, c, data[i+1])
		i++
	}
	return out
}

// MarshalJSON implements json.Marshaler. A nil schema encodes as {}.
func (s Schema) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return emptyObject, nil
	}
	return []byte(s), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Schema) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*s = nil
		return nil
	}
	parsed, err := schemaFromJSON(data)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Indent renders the schema as two-space indented JSON.
func (s Schema) Indent() string {
	raw := []byte(s)
	if len(raw) == 0 {
		raw = emptyObject
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(emptyObject)
	}
	return buf.String()
}

// HasProperties reports whether the schema declares at least one entry under
// "properties".
func (s Schema) HasProperties() bool {
	if len(s) == 0 {
		return false
	}
	var doc struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(s, &doc); err != nil {
		return false
	}
	return len(doc.Properties) > 0
}

// Map decodes the schema into a generic map.
func (s Schema) Map() map[string]any {
	out := map[string]any{}
	if len(s) == 0 {
		return out
	}
	_ = json.Unmarshal(s, &out)
	return out
}
