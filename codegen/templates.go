package codegen

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/petal-labs/spellbook/spell"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("codegen").ParseFS(templateFS, "templates/*.tmpl"))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("codegen: render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Dockerfile renders the container build recipe. Only the fixed file names
// reach the output.
func Dockerfile(_ spell.Spell) (string, error) {
	return render("Dockerfile.tmpl", struct {
		BaseImage  string
		Manifest   string
		EntryPoint string
	}{
		BaseImage:  baseImage,
		Manifest:   FileManifest,
		EntryPoint: FileServer,
	})
}

type packageManifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Type         string            `json:"type"`
	Main         string            `json:"main"`
	Dependencies map[string]string `json:"dependencies"`
}

// PackageJSON renders the npm manifest for the generated server.
func PackageJSON(s spell.Spell) (string, error) {
	pkg := packageManifest{
		Name:    s.PackageName(),
		Version: packageVersion,
		Type:    "module",
		Main:    FileServer,
		Dependencies: map[string]string{
			mcpSDKPackage: mcpSDKVersion,
			ajvPackage:    ajvVersion,
		},
	}
	data, err := marshalIndent(pkg)
	if err != nil {
		return "", fmt.Errorf("codegen: render %s: %w", FileManifest, err)
	}
	return data + "\n", nil
}

type headerEntry struct {
	Name  string
	Value string
}

type httpSource struct {
	URL     string
	Method  string
	Headers []headerEntry
	Body    string
}

type scriptSource struct {
	Code string
}

type serverSource struct {
	Name           string
	Description    string
	InputSchema    string
	OutputSchema   string
	ValidateOutput bool
	Interpolate    bool
	AllowedHosts   string
	ServerVersion  string
	Defaults       runtimeDefaults
	HTTP           *httpSource
	Script         *scriptSource
}

// ServerSource renders index.js: an MCP stdio server exposing exactly one tool
// that runs the spell's action. Helpers are emitted only when the action uses
// them.
func ServerSource(s spell.Spell) (string, error) {
	data := serverSource{
		Name:           jsString(s.Name),
		Description:    jsString(s.Description),
		InputSchema:    s.InputSchema.Indent(),
		OutputSchema:   s.OutputSchema.Indent(),
		ValidateOutput: s.OutputSchema.HasProperties(),
		AllowedHosts:   jsString(DefaultAllowedHosts),
		ServerVersion:  jsString(serverVersion),
		Defaults:       defaults(),
	}

	spell.MatchAction(s.Action,
		func(a spell.HTTPAction) struct{} {
			data.Interpolate = a.NeedsInterpolation()
			data.HTTP = httpSourceOf(a)
			return struct{}{}
		},
		func(a spell.ScriptAction) struct{} {
			data.Script = &scriptSource{Code: jsString(a.Code)}
			return struct{}{}
		},
	)

	return render("index.js.tmpl", data)
}

func httpSourceOf(a spell.HTTPAction) *httpSource {
	src := &httpSource{
		URL:    valueOf(a.URL).JS(),
		Method: jsString(a.Method),
	}
	for _, name := range a.HeaderNames() {
		src.Headers = append(src.Headers, headerEntry{
			Name:  jsString(name),
			Value: valueOf(a.Headers[name]).JS(),
		})
	}
	if a.Body != "" && a.SendsBody() {
		src.Body = valueOf(a.Body).JS()
	}
	return src
}

type readmeData struct {
	Name         string
	Description  string
	Image        string
	Registration string
	InputSchema  string
	OutputSchema string
	Script       bool
	Defaults     runtimeDefaults
}

type mcpServerEntry struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// Readme renders the tool documentation.
func Readme(s spell.Spell) (string, error) {
	registration, err := marshalIndent(map[string]any{
		"mcpServers": map[string]mcpServerEntry{
			s.Name: {
				Command: "docker",
				Args:    []string{"run", "--rm", "-i", s.ImageName()},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("codegen: render %s: %w", FileDocs, err)
	}

	return render("README.md.tmpl", readmeData{
		Name:         s.Name,
		Description:  s.Description,
		Image:        s.ImageName(),
		Registration: registration,
		InputSchema:  s.InputSchema.Indent(),
		OutputSchema: s.OutputSchema.Indent(),
		Script: spell.MatchAction(s.Action,
			func(spell.HTTPAction) bool { return false },
			func(spell.ScriptAction) bool { return true },
		),
		Defaults: defaults(),
	})
}

func marshalIndent(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}
