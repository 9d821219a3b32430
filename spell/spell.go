// Package spell defines the Spell intermediate representation: the declarative
// description of one MCP tool, its action variants, and the validator that
// turns an arbitrary candidate value into a typed Spell.
package spell

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	MinNameLength        = 3
	MaxNameLength        = 50
	MinDescriptionLength = 100
	MaxDescriptionLength = 500
)

// Spell is a validated tool descriptor. Values returned by Validate and Parse
// satisfy every field constraint; a Spell is never mutated after creation.
type Spell struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	InputSchema  Schema `json:"inputSchema"`
	OutputSchema Schema `json:"outputSchema"`
	Action       Action `json:"-"`
}

type spellJSON struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	InputSchema  Schema          `json:"inputSchema"`
	OutputSchema Schema          `json:"outputSchema"`
	Action       json.RawMessage `json:"action"`
}

// MarshalJSON encodes the spell in its wire form, with the action as a
// {"type", "config"} envelope.
func (s Spell) MarshalJSON() ([]byte, error) {
	action, err := MarshalAction(s.Action)
	if err != nil {
		return nil, err
	}
	return json.Marshal(spellJSON{
		ID:           s.ID,
		Name:         s.Name,
		Description:  s.Description,
		InputSchema:  s.InputSchema,
		OutputSchema: s.OutputSchema,
		Action:       action,
	})
}

// UnmarshalJSON decodes the wire form structurally. It does not enforce field
// constraints; use Parse for that.
func (s *Spell) UnmarshalJSON(data []byte) error {
	var raw spellJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	action, err := UnmarshalAction(raw.Action)
	if err != nil {
		return err
	}
	*s = Spell{
		ID:           raw.ID,
		Name:         raw.Name,
		Description:  raw.Description,
		InputSchema:  raw.InputSchema,
		OutputSchema: raw.OutputSchema,
		Action:       action,
	}
	return nil
}

// PackageName is the derived npm package name.
func (s Spell) PackageName() string {
	return "spell-" + s.Name
}

// ImageName is the container image tag for the spell. Docker repository
// names must be lowercase, so the name is folded.
func (s Spell) ImageName() string {
	return strings.ToLower(s.PackageName())
}

func (s Spell) String() string {
	kind := "none"
	if s.Action != nil {
		kind = string(s.Action.Kind())
	}
	return fmt.Sprintf("%s (%s, %s)", s.Name, kind, s.ID)
}
