// Package loader reads candidate spells from JSON or YAML files. A file holds
// a single spell object, a list of spells, or a document with a "spells" list.
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Shape identifies how candidates are laid out in a file.
type Shape string

const (
	ShapeSingle   Shape = "single"
	ShapeList     Shape = "list"
	ShapeDocument Shape = "document"
)

// ParseError reports a file that could not be decoded at all.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("loader: parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DetectShape decodes data (YAML when path has a .yaml or .yml extension,
// JSON otherwise) and reports its layout.
func DetectShape(data []byte, path string) (Shape, error) {
	jsonData, err := toJSON(data, path)
	if err != nil {
		return "", &ParseError{Path: path, Err: err}
	}
	return detect(jsonData, path)
}

func detect(jsonData []byte, path string) (Shape, error) {
	trimmed := bytes.TrimSpace(jsonData)
	if len(trimmed) == 0 {
		return "", &ParseError{Path: path, Err: fmt.Errorf("file is empty")}
	}
	switch trimmed[0] {
	case '[':
		return ShapeList, nil
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return "", &ParseError{Path: path, Err: err}
		}
		if raw, ok := probe["spells"]; ok && !hasKey(probe, "action") {
			if t := bytes.TrimSpace(raw); len(t) > 0 && t[0] == '[' {
				return ShapeDocument, nil
			}
		}
		return ShapeSingle, nil
	default:
		return "", &ParseError{Path: path, Err: fmt.Errorf("expected an object or a list of objects")}
	}
}

// isYAML returns true if the file path has a YAML extension.
func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func hasKey(m map[string]json.RawMessage, key string) bool {
	_, ok := m[key]
	return ok
}

// toJSON converts data to JSON bytes, handling YAML conversion if the path
// indicates a YAML file.
func toJSON(data []byte, path string) ([]byte, error) {
	if isYAML(path) {
		return YAMLToJSON(data)
	}
	if !json.Valid(data) {
		var probe any
		err := json.Unmarshal(data, &probe)
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return data, nil
}

// YAMLToJSON converts a YAML document to JSON, keeping mapping keys in
// document order so schema property order survives.
func YAMLToJSON(data []byte) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if doc.Kind == 0 {
		return nil, fmt.Errorf("parsing YAML: document is empty")
	}
	var buf bytes.Buffer
	if err := writeNode(&buf, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return buf.Bytes(), nil
}

func writeNode(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeNode(buf, n.Content[0])
	case yaml.AliasNode:
		return writeNode(buf, n.Alias)
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeNode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(n.Content[i].Value)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeNode(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case yaml.ScalarNode:
		return writeScalar(buf, n)
	default:
		return fmt.Errorf("line %d: unsupported YAML node", n.Line)
	}
}

func writeScalar(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.ShortTag() {
	case "!!null":
		buf.WriteString("null")
		return nil
	case "!!bool", "!!int", "!!float":
		var v any
		if err := n.Decode(&v); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		buf.Write(data)
		return nil
	default:
		data, err := json.Marshal(n.Value)
		if err != nil {
			return err
		}
		buf.Write(data)
		return nil
	}
}
