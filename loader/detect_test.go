package loader

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDetectShape(t *testing.T) {
	tests := []struct {
		name string
		data string
		path string
		want Shape
	}{
		{"json object", `{"name": "x"}`, "spell.json", ShapeSingle},
		{"json list", `[{"name": "x"}]`, "spells.json", ShapeList},
		{"json document", `{"spells": [{"name": "x"}]}`, "spells.json", ShapeDocument},
		{"yaml object", "name: x\n", "spell.yaml", ShapeSingle},
		{"yaml list", "- name: x\n- name: y\n", "spells.yml", ShapeList},
		{"yaml document", "spells:\n  - name: x\n", "spells.yaml", ShapeDocument},
		{"spells key on a spell", `{"spells": [], "action": {}}`, "spell.json", ShapeSingle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectShape([]byte(tt.data), tt.path)
			if err != nil {
				t.Fatalf("DetectShape() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DetectShape() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectShapeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		path string
	}{
		{"invalid json", `{not json`, "spell.json"},
		{"invalid yaml", "a: [unclosed", "spell.yaml"},
		{"scalar", `42`, "spell.json"},
		{"empty", ``, "spell.json"},
		{"empty yaml", ``, "spell.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DetectShape([]byte(tt.data), tt.path)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("DetectShape() error = %v, want *ParseError", err)
			}
			if perr.Path != tt.path {
				t.Errorf("ParseError.Path = %q, want %q", perr.Path, tt.path)
			}
		})
	}
}

func TestYAMLToJSONKeepsKeyOrder(t *testing.T) {
	data := []byte(`
type: object
properties:
  zeta: {type: string}
  alpha: {type: number}
required: [zeta]
`)
	got, err := YAMLToJSON(data)
	if err != nil {
		t.Fatalf("YAMLToJSON() error = %v", err)
	}
	want := `{"type":"object","properties":{"zeta":{"type":"string"},"alpha":{"type":"number"}},"required":["zeta"]}`
	if string(got) != want {
		t.Fatalf("YAMLToJSON() = %s, want %s", got, want)
	}
}

func TestYAMLToJSONScalars(t *testing.T) {
	data := []byte(`
count: 3
ratio: 1.5
enabled: true
missing: null
quoted: "42"
anchor: &a hello
alias: *a
`)
	got, err := YAMLToJSON(data)
	if err != nil {
		t.Fatalf("YAMLToJSON() error = %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(got, &m); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, got)
	}
	if m["count"] != float64(3) || m["ratio"] != 1.5 || m["enabled"] != true {
		t.Errorf("numeric/bool scalars = %v", m)
	}
	if v, ok := m["missing"]; !ok || v != nil {
		t.Errorf("missing = %v, want null", v)
	}
	if m["quoted"] != "42" {
		t.Errorf("quoted = %v, want string 42", m["quoted"])
	}
	if m["alias"] != "hello" {
		t.Errorf("alias = %v, want hello", m["alias"])
	}
}
