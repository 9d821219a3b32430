// Package codegen renders a validated spell into a runnable MCP server bundle.
package codegen

import (
	"errors"
	"sort"

	"github.com/petal-labs/spellbook/spell"
)

// Bundle file names.
const (
	FileDockerfile = "Dockerfile"
	FileManifest   = "package.json"
	FileServer     = "index.js"
	FileDocs       = "README.md"
)

// Bundle maps a fixed file name to its rendered contents.
type Bundle map[string]string

// Files returns the bundle file names in stable order.
func Files() []string {
	return []string{FileDockerfile, FileManifest, FileServer, FileDocs}
}

// Names returns the file names present in b, sorted.
func (b Bundle) Names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type renderFunc func(spell.Spell) (string, error)

var renderers = map[string]renderFunc{
	FileDockerfile: Dockerfile,
	FileManifest:   PackageJSON,
	FileServer:     ServerSource,
	FileDocs:       Readme,
}

// Generate validates candidate and renders all four bundle files. Validation
// failures are returned as *spell.ValidationError and no bundle is produced.
func Generate(candidate any) (Bundle, error) {
	s, err := spell.Validate(candidate)
	if err != nil {
		return nil, err
	}
	return Render(s)
}

// Render renders a spell that has already passed validation.
func Render(s spell.Spell) (Bundle, error) {
	if s.Action == nil {
		return nil, errors.New("codegen: spell has no action")
	}
	bundle := make(Bundle, len(renderers))
	for _, name := range Files() {
		content, err := renderers[name](s)
		if err != nil {
			return nil, err
		}
		bundle[name] = content
	}
	return bundle, nil
}
