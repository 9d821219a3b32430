package spell

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// NamePattern is the allowed character set for spell names.
var NamePattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

var (
	httpConfigKeys   = []string{"url", "method", "headers", "body"}
	scriptConfigKeys = []string{"runtime", "code"}
)

// Validate checks an arbitrary candidate and returns the typed Spell. The
// candidate may be raw JSON ([]byte, json.RawMessage) or any value that
// encodes to JSON, such as map[string]any or a Spell. On failure the error is
// a *ValidationError.
func Validate(candidate any) (Spell, error) {
	switch v := candidate.(type) {
	case []byte:
		return Parse(v)
	case json.RawMessage:
		return Parse(v)
	}
	data, err := json.Marshal(candidate)
	if err != nil {
		return Spell{}, &ValidationError{Diagnostics: []Diagnostic{{
			Path:    "$",
			Message: fmt.Sprintf("Candidate is not encodable as JSON: %v", err),
			Code:    CodeInvalidType,
		}}}
	}
	return Parse(data)
}

// Parse validates a JSON document describing one spell.
func Parse(data []byte) (Spell, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil || root == nil {
		msg := "Expected object, received " + jsonKind(data)
		if !json.Valid(data) {
			msg = "Invalid JSON"
		}
		return Spell{}, &ValidationError{Diagnostics: []Diagnostic{{Path: "$", Message: msg, Code: CodeInvalidType}}}
	}

	v := &validator{}
	s := Spell{
		ID:          v.id(root),
		Name:        v.name(root),
		Description: v.description(root),
	}
	s.InputSchema = v.schema(root, "inputSchema")
	s.OutputSchema = v.schema(root, "outputSchema")
	s.Action = v.action(root)

	if len(v.diags) > 0 {
		return Spell{}, &ValidationError{Diagnostics: v.diags}
	}
	return s, nil
}

type validator struct {
	diags []Diagnostic
}

func (v *validator) add(path, code, format string, args ...any) {
	v.diags = append(v.diags, Diagnostic{Path: path, Message: fmt.Sprintf(format, args...), Code: code})
}

// field returns the raw value for key and whether it was present.
func field(obj map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := obj[key]
	return raw, ok
}

func (v *validator) str(obj map[string]json.RawMessage, key, path string) (string, bool) {
	raw, ok := field(obj, key)
	if !ok {
		v.add(path, CodeInvalidType, "Required")
		return "", false
	}
	var out string
	if kind := jsonKind(raw); kind != "string" {
		v.add(path, CodeInvalidType, "Expected string, received %s", kind)
		return "", false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		v.add(path, CodeInvalidType, "Expected string, received %s", jsonKind(raw))
		return "", false
	}
	return out, true
}

func (v *validator) object(obj map[string]json.RawMessage, key, path string) (map[string]json.RawMessage, json.RawMessage, bool) {
	raw, ok := field(obj, key)
	if !ok {
		v.add(path, CodeInvalidType, "Required")
		return nil, nil, false
	}
	if kind := jsonKind(raw); kind != "object" {
		v.add(path, CodeInvalidType, "Expected object, received %s", kind)
		return nil, nil, false
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		v.add(path, CodeInvalidType, "Expected object, received %s", jsonKind(raw))
		return nil, nil, false
	}
	return out, raw, true
}

func (v *validator) id(root map[string]json.RawMessage) string {
	id, ok := v.str(root, "id", "id")
	if !ok {
		return ""
	}
	if !isUUID(id) {
		v.add("id", CodeInvalidString, "Invalid uuid")
	}
	return id
}

func (v *validator) name(root map[string]json.RawMessage) string {
	name, ok := v.str(root, "name", "name")
	if !ok {
		return ""
	}
	n := utf8.RuneCountInString(name)
	if n < MinNameLength {
		v.add("name", CodeTooSmall, "Name must be at least %d characters", MinNameLength)
	}
	if n > MaxNameLength {
		v.add("name", CodeTooBig, "Name must be at most %d characters", MaxNameLength)
	}
	if !NamePattern.MatchString(name) {
		v.add("name", CodeInvalidString, "Name must contain only letters, numbers, and hyphens")
	}
	return name
}

func (v *validator) description(root map[string]json.RawMessage) string {
	desc, ok := v.str(root, "description", "description")
	if !ok {
		return ""
	}
	n := utf8.RuneCountInString(desc)
	if n < MinDescriptionLength {
		v.add("description", CodeTooSmall, "Description must be at least %d characters", MinDescriptionLength)
	}
	if n > MaxDescriptionLength {
		v.add("description", CodeTooBig, "Description must be at most %d characters", MaxDescriptionLength)
	}
	return desc
}

func (v *validator) schema(root map[string]json.RawMessage, key string) Schema {
	_, raw, ok := v.object(root, key, key)
	if !ok {
		return nil
	}
	s, err := schemaFromJSON(raw)
	if err != nil {
		v.add(key, CodeInvalidType, "Expected object, received %s", jsonKind(raw))
		return nil
	}
	return s
}

func (v *validator) action(root map[string]json.RawMessage) Action {
	obj, _, ok := v.object(root, "action", "action")
	if !ok {
		return nil
	}

	var kind ActionKind
	if raw, present := field(obj, "type"); present {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			kind = ActionKind(s)
		}
	}
	if kind != ActionHTTP && kind != ActionScript {
		v.add("action.type", CodeInvalidDiscriminator, "Invalid discriminator value. Expected 'http' | 'script'")
		return nil
	}

	config, _, ok := v.object(obj, "config", "action.config")
	if !ok {
		return nil
	}

	switch kind {
	case ActionHTTP:
		v.unrecognizedKeys(config, httpConfigKeys, "action.config")
		return v.httpConfig(config)
	default:
		v.unrecognizedKeys(config, scriptConfigKeys, "action.config")
		return v.scriptConfig(config)
	}
}

func (v *validator) httpConfig(config map[string]json.RawMessage) Action {
	a := HTTPAction{}

	if u, ok := v.str(config, "url", "action.config.url"); ok {
		if !isAbsoluteURL(u) {
			v.add("action.config.url", CodeInvalidString, "Invalid url")
		}
		a.URL = u
	}

	if m, ok := v.str(config, "method", "action.config.method"); ok {
		if !slices.Contains(HTTPMethods, m) {
			v.add("action.config.method", CodeInvalidEnumValue,
				"Invalid enum value. Expected %s, received '%s'", quotedList(HTTPMethods), m)
		}
		a.Method = m
	}

	if _, present := field(config, "headers"); present {
		headers, _, ok := v.object(config, "headers", "action.config.headers")
		if ok {
			a.Headers = make(map[string]string, len(headers))
			keys := make([]string, 0, len(headers))
			for k := range headers {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				if val, ok := v.str(headers, k, "action.config.headers."+k); ok {
					a.Headers[k] = val
				}
			}
		}
	}

	if _, present := field(config, "body"); present {
		if body, ok := v.str(config, "body", "action.config.body"); ok {
			a.Body = body
		}
	}

	return a
}

func (v *validator) scriptConfig(config map[string]json.RawMessage) Action {
	a := ScriptAction{}

	var runtime string
	if raw, ok := field(config, "runtime"); ok {
		_ = json.Unmarshal(raw, &runtime)
	}
	if runtime != RuntimeNode {
		v.add("action.config.runtime", CodeInvalidLiteral, "Invalid literal value, expected %q", RuntimeNode)
	}
	a.Runtime = runtime

	if code, ok := v.str(config, "code", "action.config.code"); ok {
		if code == "" {
			v.add("action.config.code", CodeTooSmall, "Code must not be empty")
		}
		a.Code = code
	}

	return a
}

func (v *validator) unrecognizedKeys(obj map[string]json.RawMessage, allowed []string, path string) {
	var extra []string
	for k := range obj {
		if !slices.Contains(allowed, k) {
			extra = append(extra, k)
		}
	}
	if len(extra) == 0 {
		return
	}
	slices.Sort(extra)
	v.add(path, CodeUnrecognizedKeys, "Unrecognized key(s) in object: %s",
		strings.ReplaceAll(quotedList(extra), " | ", ", "))
}

func isUUID(s string) bool {
	// uuid.Parse also accepts braced, urn and unhyphenated forms; only the
	// canonical 36-character layout is a UUID-formatted string here.
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func isAbsoluteURL(s string) bool {
	if strings.TrimSpace(s) != s || s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.IsAbs() && (u.Host != "" || u.Opaque != "")
}

func quotedList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = "'" + item + "'"
	}
	return strings.Join(quoted, " | ")
}

// jsonKind names the JSON type of a raw value the way validation messages
// report it.
func jsonKind(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "undefined"
	}
	switch trimmed[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
