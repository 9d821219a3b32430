package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

const calculatorYAML = `
name: calculator
description: Performs basic arithmetic operations on two numbers. Supports addition, subtraction, multiplication, and division with proper error handling for division by zero.
action:
  type: script
  config:
    runtime: node
    code: |
      const { a, b } = input;
      return { result: a + b };
inputSchema:
  type: object
  properties:
    b: {type: number}
    a: {type: number}
outputSchema:
  type: object
`

const fetcherJSON = `{
  "id": "123e4567-e89b-12d3-a456-426614174000",
  "name": "github-fetcher",
  "description": "Fetches GitHub issues by repository and label. Useful for tracking bugs, features, and pull requests across multiple repositories.",
  "inputSchema": {"type": "object"},
  "outputSchema": {"type": "array"},
  "action": {"type": "http", "config": {"url": "https://api.github.com/repos/{{owner}}/{{repo}}/issues", "method": "GET"}}
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileSingleJSON(t *testing.T) {
	entries, err := LoadFile(writeFile(t, "spell.json", fetcherJSON), Options{})
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(entries) != 1 || !entries[0].Valid() {
		t.Fatalf("entries = %+v, want one valid entry", entries)
	}
	if entries[0].Spell.Name != "github-fetcher" {
		t.Fatalf("Name = %q", entries[0].Spell.Name)
	}
}

func TestLoadFileYAMLAssignsID(t *testing.T) {
	path := writeFile(t, "calculator.yaml", calculatorYAML)

	entries, err := LoadFile(path, Options{})
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if entries[0].Valid() {
		t.Fatal("entry without id should fail validation when ids are not assigned")
	}

	entries, err = LoadFile(path, Options{AssignIDs: true})
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if !entries[0].Valid() {
		t.Fatalf("entry error = %v", entries[0].Err)
	}
	if _, err := uuid.Parse(entries[0].Spell.ID); err != nil {
		t.Fatalf("assigned id %q is not a UUID: %v", entries[0].Spell.ID, err)
	}
	if got := string(entries[0].Spell.InputSchema); got != `{"type":"object","properties":{"b":{"type":"number"},"a":{"type":"number"}}}` {
		t.Fatalf("InputSchema = %s, want YAML key order", got)
	}
}

func TestLoadKeepsExistingID(t *testing.T) {
	entries, err := Load([]byte(fetcherJSON), "spell.json", Options{AssignIDs: true})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := entries[0].Spell.ID; got != "123e4567-e89b-12d3-a456-426614174000" {
		t.Fatalf("ID = %q, want original", got)
	}
}

func TestLoadListReportsInvalidEntries(t *testing.T) {
	data := "[" + fetcherJSON + `, {"name": "x"}, 7]`
	entries, err := Load([]byte(data), "spells.json", Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if got := len(Spells(entries)); got != 1 {
		t.Fatalf("len(Spells) = %d, want 1", got)
	}
	invalid := Invalid(entries)
	if len(invalid) != 2 || invalid[0].Index != 1 || invalid[1].Index != 2 {
		t.Fatalf("Invalid() = %+v", invalid)
	}
}

func TestLoadDocument(t *testing.T) {
	data := `{"spells": [` + fetcherJSON + `]}`
	entries, err := Load([]byte(data), "spells.json", Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(Spells(entries)) != 1 {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"), Options{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("LoadFile() error = %v, want os.ErrNotExist", err)
	}
}

func TestLoadParseError(t *testing.T) {
	_, err := Load([]byte("{broken"), "spell.json", Options{})
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Load() error = %v, want *ParseError", err)
	}
}

func TestWithID(t *testing.T) {
	tests := []struct {
		in      string
		changed bool
	}{
		{`{}`, true},
		{`{"name": "x"}`, true},
		{`{"id": "abc"}`, false},
		{`{"id": null}`, false},
		{`[1]`, false},
		{`"str"`, false},
	}
	for _, tt := range tests {
		got := string(withID([]byte(tt.in)))
		if changed := got != tt.in; changed != tt.changed {
			t.Errorf("withID(%s) = %s, changed = %v, want %v", tt.in, got, changed, tt.changed)
		}
	}
}
