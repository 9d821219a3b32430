// Package catalog ships ready-made example spells for quick starts.
package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/petal-labs/spellbook/loader"
	"github.com/petal-labs/spellbook/spell"
)

//go:embed examples/*.yaml
var examplesFS embed.FS

// Example is a spell template without an ID.
type Example struct {
	Name        string
	Description string
	Kind        spell.ActionKind
	raw         json.RawMessage
}

var (
	loadOnce sync.Once
	examples map[string]Example
	loadErr  error
)

func load() (map[string]Example, error) {
	loadOnce.Do(func() {
		examples, loadErr = parseExamples(examplesFS)
	})
	return examples, loadErr
}

func parseExamples(fsys fs.FS) (map[string]Example, error) {
	files, err := fs.Glob(fsys, "examples/*.yaml")
	if err != nil {
		return nil, err
	}
	out := make(map[string]Example, len(files))
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", file, err)
		}
		raw, err := loader.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("catalog: %s: %w", file, err)
		}
		var head struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Action      struct {
				Type spell.ActionKind `json:"type"`
			} `json:"action"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return nil, fmt.Errorf("catalog: %s: %w", file, err)
		}
		if want := strings.TrimSuffix(path.Base(file), ".yaml"); head.Name != want {
			return nil, fmt.Errorf("catalog: %s declares name %q", file, head.Name)
		}
		out[head.Name] = Example{
			Name:        head.Name,
			Description: head.Description,
			Kind:        head.Action.Type,
			raw:         raw,
		}
	}
	return out, nil
}

// Names returns the example names in sorted order.
func Names() []string {
	all, err := load()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Examples returns every example in name order.
func Examples() ([]Example, error) {
	all, err := load()
	if err != nil {
		return nil, err
	}
	out := make([]Example, 0, len(all))
	for _, name := range Names() {
		out = append(out, all[name])
	}
	return out, nil
}

// Get returns the named example.
func Get(name string) (Example, bool) {
	all, err := load()
	if err != nil {
		return Example{}, false
	}
	ex, ok := all[name]
	return ex, ok
}

// Instantiate validates the example as a spell with the given ID. An empty id
// gets a fresh random UUID.
func (e Example) Instantiate(id string) (spell.Spell, error) {
	if id == "" {
		id = uuid.NewString()
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(e.raw, &m); err != nil {
		return spell.Spell{}, fmt.Errorf("catalog: decode %s: %w", e.Name, err)
	}
	idJSON, err := json.Marshal(id)
	if err != nil {
		return spell.Spell{}, err
	}
	m["id"] = idJSON

	data, err := json.Marshal(m)
	if err != nil {
		return spell.Spell{}, fmt.Errorf("catalog: encode %s: %w", e.Name, err)
	}
	return spell.Parse(data)
}

// JSON returns the example in wire form, without an id.
func (e Example) JSON() json.RawMessage {
	return append(json.RawMessage(nil), e.raw...)
}
