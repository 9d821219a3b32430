package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/petal-labs/spellbook/codegen"
	"github.com/petal-labs/spellbook/config"
	"github.com/petal-labs/spellbook/spell"
	"github.com/petal-labs/spellbook/store"
)

// newTestRoot creates a fresh cobra root command wired to all subcommands.
// Each test gets an isolated command tree to avoid shared state.
func newTestRoot() *cobra.Command {
	return NewRootCmd("test")
}

// executeCommand runs a cobra command with the given args and captures stdout/stderr.
func executeCommand(root *cobra.Command, args ...string) (stdout, stderr string, err error) {
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)
	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

// run executes args against a fresh root.
func run(args ...string) (string, string, error) {
	return executeCommand(newTestRoot(), args...)
}

// writeTestFile creates a temporary file with the given content and returns its path.
func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// isolate points the store and output directory at a temp dir and hides any
// user config.
func isolate(t *testing.T) (storePath, outDir string) {
	t.Helper()
	dir := t.TempDir()
	storePath = filepath.Join(dir, "spells.json")
	outDir = filepath.Join(dir, "out")
	t.Setenv("HOME", dir)
	t.Setenv(config.EnvStoreDriver, "")
	t.Setenv(config.EnvStorePath, storePath)
	t.Setenv(config.EnvOutputDir, outDir)
	t.Setenv(config.EnvOTLPEndpoint, "")
	return storePath, outDir
}

func wantExitCode(t *testing.T, err error, code int) {
	t.Helper()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %v, want ExitError with code %d", err, code)
	}
	if exitErr.Code != code {
		t.Fatalf("exit code = %d (%s), want %d", exitErr.Code, exitErr.Message, code)
	}
}

const calculatorDescription = "Performs basic arithmetic operations on two numbers. Supports addition, subtraction, multiplication, and division with proper error handling for division by zero."

const calculatorJSON = `{
  "name": "calculator",
  "description": "` + calculatorDescription + `",
  "inputSchema": {"type": "object", "properties": {"a": {"type": "number"}, "b": {"type": "number"}}},
  "outputSchema": {"type": "object"},
  "action": {"type": "script", "config": {"runtime": "node", "code": "return { result: input.a + input.b };"}}
}`

const fetcherYAML = `spells:
  - name: issue-fetcher
    description: Fetches GitHub issues by repository and label. Useful for tracking bugs, features, and pull requests across multiple repositories.
    inputSchema:
      type: object
      properties:
        owner: {type: string}
        repo: {type: string}
    outputSchema:
      type: object
    action:
      type: http
      config:
        url: https://api.github.com/repos/{{owner}}/{{repo}}/issues
        method: GET
        headers:
          Accept: application/vnd.github+json
`

const invalidJSON = `{
  "name": "x",
  "description": "too short",
  "inputSchema": {},
  "outputSchema": {},
  "action": {"type": "grpc", "config": {}}
}`

func TestValidateValidFile(t *testing.T) {
	isolate(t)
	path := writeTestFile(t, "calculator.json", calculatorJSON)

	stdout, _, err := run("validate", "--assign-ids", path)
	if err != nil {
		t.Fatalf("validate error = %v\n%s", err, stdout)
	}
	if !strings.Contains(stdout, "Valid!") {
		t.Fatalf("stdout = %q, want Valid!", stdout)
	}
}

func TestValidateRequiresID(t *testing.T) {
	isolate(t)
	path := writeTestFile(t, "calculator.json", calculatorJSON)

	stdout, _, err := run("validate", path)
	wantExitCode(t, err, exitValidation)
	if !strings.Contains(stdout, "id [") {
		t.Fatalf("stdout = %q, want id diagnostic", stdout)
	}
}

func TestValidateInvalidFile(t *testing.T) {
	isolate(t)
	path := writeTestFile(t, "bad.json", invalidJSON)

	stdout, _, err := run("validate", "--assign-ids", "--no-color", path)
	wantExitCode(t, err, exitValidation)
	for _, want := range []string{"INVALID #1", "name [too_small]", "description [too_small]", "action.type"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestValidateJSONFormat(t *testing.T) {
	isolate(t)
	path := writeTestFile(t, "spells.yaml", fetcherYAML)

	stdout, _, err := run("validate", "--assign-ids", "--format", "json", path)
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	var reports []entryReport
	if err := json.Unmarshal([]byte(stdout), &reports); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if len(reports) != 1 || !reports[0].Valid || reports[0].Name != "issue-fetcher" {
		t.Fatalf("reports = %+v", reports)
	}
}

func TestValidateExitCodes(t *testing.T) {
	isolate(t)
	tests := []struct {
		name    string
		file    string
		content string
		code    int
	}{
		{name: "parse error", file: "bad.json", content: "{not json", code: exitInputParse},
		{name: "scalar", file: "scalar.json", content: "42", code: exitInputParse},
		{name: "empty document", file: "empty.json", content: `{"spells": []}`, code: exitWrongSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run("validate", writeTestFile(t, tt.file, tt.content))
			wantExitCode(t, err, tt.code)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, _, err := run("validate", filepath.Join(t.TempDir(), "nope.json"))
		wantExitCode(t, err, exitFileNotFound)
	})
}

func TestAddListShowRemove(t *testing.T) {
	storePath, _ := isolate(t)

	stdout, _, err := run("add", writeTestFile(t, "calculator.json", calculatorJSON))
	if err != nil {
		t.Fatalf("add error = %v", err)
	}
	if !strings.Contains(stdout, "Added calculator") {
		t.Fatalf("add output = %q", stdout)
	}
	if _, err := os.Stat(storePath); err != nil {
		t.Fatalf("store not written: %v", err)
	}

	stdout, _, err = run("list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(stdout, "NAME") || !strings.Contains(stdout, "calculator") || !strings.Contains(stdout, "script") {
		t.Fatalf("list output = %q", stdout)
	}

	stdout, _, err = run("show", "calculator")
	if err != nil {
		t.Fatalf("show error = %v", err)
	}
	s, err := spell.Parse([]byte(stdout))
	if err != nil {
		t.Fatalf("show output is not a valid spell: %v\n%s", err, stdout)
	}
	if s.Name != "calculator" {
		t.Fatalf("shown spell = %v", s)
	}

	_, _, err = run("remove", "calculator")
	if err != nil {
		t.Fatalf("remove error = %v", err)
	}
	stdout, _, err = run("list", "--format", "json")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if strings.TrimSpace(stdout) != "[]" {
		t.Fatalf("list after remove = %q, want []", stdout)
	}

	_, _, err = run("remove", "calculator")
	wantExitCode(t, err, exitFileNotFound)
	_, _, err = run("show", "calculator")
	wantExitCode(t, err, exitFileNotFound)
}

func TestAddDuplicateName(t *testing.T) {
	isolate(t)
	path := writeTestFile(t, "calculator.json", calculatorJSON)

	if _, _, err := run("add", path); err != nil {
		t.Fatalf("first add error = %v", err)
	}
	_, _, err := run("add", path)
	wantExitCode(t, err, exitConflict)

	if _, _, err := run("add", "--replace", path); err != nil {
		t.Fatalf("add --replace error = %v", err)
	}
	stdout, _, err := run("list", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	var listed []json.RawMessage
	if err := json.Unmarshal([]byte(stdout), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 {
		t.Fatalf("stored spells = %d, want 1", len(listed))
	}
}

func TestAddInvalidAddsNothing(t *testing.T) {
	storePath, _ := isolate(t)
	_, _, err := run("add", writeTestFile(t, "bad.json", invalidJSON))
	wantExitCode(t, err, exitValidation)
	if _, err := os.Stat(storePath); !os.IsNotExist(err) {
		t.Fatalf("store file exists after failed add: %v", err)
	}
}

func TestAddSpells(t *testing.T) {
	mk := func(id, name string) spell.Spell {
		return spell.Spell{ID: id, Name: name}
	}
	const (
		id1 = "00000000-0000-4000-8000-000000000001"
		id2 = "00000000-0000-4000-8000-000000000002"
	)

	t.Run("duplicate within input", func(t *testing.T) {
		err := addSpells(store.Collection{}, []spell.Spell{mk(id1, "a"), mk(id2, "a")}, false)
		wantExitCode(t, err, exitConflict)
	})
	t.Run("same id twice within input", func(t *testing.T) {
		c := store.Collection{}
		err := addSpells(c, []spell.Spell{mk(id1, "a"), mk(id1, "b")}, false)
		wantExitCode(t, err, exitConflict)
		if len(c) != 0 {
			t.Fatalf("collection changed: %v", c)
		}
	})
	t.Run("id reused by another name", func(t *testing.T) {
		c := store.Collection{id1: mk(id1, "a")}
		err := addSpells(c, []spell.Spell{mk(id1, "b")}, true)
		wantExitCode(t, err, exitConflict)
		if len(c) != 1 || c[id1].Name != "a" {
			t.Fatalf("collection changed: %v", c)
		}
	})
	t.Run("replace swaps id", func(t *testing.T) {
		c := store.Collection{id1: mk(id1, "a")}
		if err := addSpells(c, []spell.Spell{mk(id2, "a")}, true); err != nil {
			t.Fatal(err)
		}
		if _, ok := c[id1]; ok || c[id2].Name != "a" || len(c) != 1 {
			t.Fatalf("collection = %v", c)
		}
	})
}

func TestGenerateFromFile(t *testing.T) {
	_, outDir := isolate(t)
	path := writeTestFile(t, "spells.yaml", fetcherYAML)

	// Stored spells need IDs; a file passed to generate must carry them.
	_, _, err := run("generate", path)
	wantExitCode(t, err, exitValidation)
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Fatalf("output written for invalid input: %v", err)
	}

	withID := strings.Replace(fetcherYAML, "  - name: issue-fetcher", "  - id: 123e4567-e89b-12d3-a456-426614174000\n    name: issue-fetcher", 1)
	stdout, _, err := run("generate", writeTestFile(t, "spells.yaml", withID))
	if err != nil {
		t.Fatalf("generate error = %v\n%s", err, stdout)
	}
	if !strings.Contains(stdout, "Generated issue-fetcher") {
		t.Fatalf("stdout = %q", stdout)
	}
	for _, name := range codegen.Files() {
		if _, err := os.Stat(filepath.Join(outDir, "issue-fetcher", name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestGenerateFromStore(t *testing.T) {
	_, outDir := isolate(t)
	if _, _, err := run("examples", "--add"); err != nil {
		t.Fatalf("examples --add error = %v", err)
	}

	if _, _, err := run("generate", "--name", "calculator"); err != nil {
		t.Fatalf("generate --name error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "calculator", codegen.FileServer)); err != nil {
		t.Fatalf("calculator bundle missing: %v", err)
	}

	stdout, _, err := run("generate", "--all", "--parallel", "2")
	if err != nil {
		t.Fatalf("generate --all error = %v", err)
	}
	if strings.Count(stdout, "Generated ") != 3 {
		t.Fatalf("generate --all output = %q, want 3 bundles", stdout)
	}

	_, _, err = run("generate", "--name", "missing-spell")
	wantExitCode(t, err, exitFileNotFound)
}

func TestGenerateRequiresOneSource(t *testing.T) {
	isolate(t)
	_, _, err := run("generate")
	wantExitCode(t, err, exitInputParse)
	_, _, err = run("generate", "--all", "--name", "calculator")
	wantExitCode(t, err, exitInputParse)
}

func TestExamples(t *testing.T) {
	isolate(t)

	stdout, _, err := run("examples")
	if err != nil {
		t.Fatalf("examples error = %v", err)
	}
	for _, name := range []string{"calculator", "github-fetcher", "weather-api"} {
		if !strings.Contains(stdout, name) {
			t.Errorf("examples output missing %s", name)
		}
	}

	if _, _, err := run("examples", "--add", "calculator"); err != nil {
		t.Fatalf("examples --add error = %v", err)
	}
	stdout, _, err = run("examples", "--add")
	if err != nil {
		t.Fatalf("examples --add error = %v", err)
	}
	if !strings.Contains(stdout, "Skipped calculator") || strings.Count(stdout, "Added ") != 2 {
		t.Fatalf("examples --add output = %q", stdout)
	}

	stdout, _, err = run("examples", "--show", "weather-api")
	if err != nil {
		t.Fatal(err)
	}
	var defs []map[string]any
	if err := json.Unmarshal([]byte(stdout), &defs); err != nil || len(defs) != 1 || defs[0]["name"] != "weather-api" {
		t.Fatalf("examples --show = %q (%v)", stdout, err)
	}

	_, _, err = run("examples", "no-such-example")
	wantExitCode(t, err, exitFileNotFound)
}

func TestDocsRaw(t *testing.T) {
	isolate(t)
	if _, _, err := run("examples", "--add", "calculator"); err != nil {
		t.Fatal(err)
	}
	stdout, _, err := run("docs", "--raw", "calculator")
	if err != nil {
		t.Fatalf("docs error = %v", err)
	}
	if !strings.HasPrefix(stdout, "# calculator\n") {
		t.Fatalf("docs output = %q", stdout[:min(len(stdout), 80)])
	}
}

func TestDocsRendered(t *testing.T) {
	isolate(t)
	if _, _, err := run("examples", "--add", "calculator"); err != nil {
		t.Fatal(err)
	}
	stdout, _, err := run("docs", "--no-color", "calculator")
	if err != nil {
		t.Fatalf("docs error = %v", err)
	}
	if !strings.Contains(stdout, "calculator") || !strings.Contains(stdout, "Security Notice") {
		t.Fatalf("docs output = %q", stdout)
	}
}

func TestClear(t *testing.T) {
	isolate(t)
	if _, _, err := run("examples", "--add"); err != nil {
		t.Fatal(err)
	}

	_, _, err := run("clear")
	wantExitCode(t, err, exitInputParse)

	if _, _, err := run("clear", "--force"); err != nil {
		t.Fatalf("clear error = %v", err)
	}
	stdout, _, err := run("list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "No spells stored.") {
		t.Fatalf("list after clear = %q", stdout)
	}
}

func TestSQLiteStoreFlag(t *testing.T) {
	isolate(t)
	dbPath := filepath.Join(t.TempDir(), "spellbook.db")

	if _, _, err := run("--store-driver", "sqlite", "--store-path", dbPath, "examples", "--add", "weather-api"); err != nil {
		t.Fatalf("examples --add error = %v", err)
	}
	stdout, _, err := run("--store-driver", "sqlite", "--store-path", dbPath, "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(stdout, "weather-api") {
		t.Fatalf("list output = %q", stdout)
	}

	// The file store is untouched.
	stdout, _, err = run("list")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(stdout, "weather-api") {
		t.Fatalf("file store unexpectedly has weather-api: %q", stdout)
	}
}

func TestConfigFileErrors(t *testing.T) {
	isolate(t)
	path := writeTestFile(t, "spellbook.yaml", "store:\n  driver: postgres\n")
	_, _, err := run("--config", path, "list")
	wantExitCode(t, err, exitRuntime)

	_, _, err = run("--config", filepath.Join(t.TempDir(), "missing.yaml"), "list")
	wantExitCode(t, err, exitRuntime)
}

func TestProbeMissingBundle(t *testing.T) {
	isolate(t)
	if _, _, err := run("examples", "--add", "calculator"); err != nil {
		t.Fatal(err)
	}
	_, _, err := run("probe", "calculator")
	wantExitCode(t, err, exitFileNotFound)

	_, _, err = run("probe", "--call", "{bad", "calculator")
	wantExitCode(t, err, exitInputParse)
}

func TestServeAnswersOverStdio(t *testing.T) {
	isolate(t)
	root := newTestRoot()
	root.SetIn(strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{}}`,
	}, "\n") + "\n"))

	stdout, stderr, err := executeCommand(root, "serve")
	if err != nil {
		t.Fatalf("serve error = %v\n%s", err, stderr)
	}
	if !strings.Contains(stdout, `"create_spell"`) || !strings.Contains(stdout, `"list_spells"`) {
		t.Fatalf("serve stdout = %q", stdout)
	}
	if !strings.Contains(stderr, "spellbook mcp server listening") {
		t.Fatalf("serve stderr = %q, want startup log", stderr)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 3); got != "abc..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abc", 3); got != "abc" {
		t.Fatalf("truncate = %q", got)
	}
}
