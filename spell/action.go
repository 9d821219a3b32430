package spell

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ActionKind is the discriminator of an action envelope.
type ActionKind string

const (
	ActionHTTP   ActionKind = "http"
	ActionScript ActionKind = "script"
)

// RuntimeNode is the only supported script runtime.
const RuntimeNode = "node"

// HTTP methods accepted by HTTP actions.
var HTTPMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}

// Action is what a spell does when invoked. The set of implementations is
// closed: only HTTPAction and ScriptAction satisfy it.
type Action interface {
	Kind() ActionKind
	sealed()
}

// HTTPAction calls an HTTP endpoint. URL, header values and Body may embed
// {{name}} placeholders that the generated server fills from tool input.
type HTTPAction struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// ScriptAction runs Code as the body of a function of one argument, input.
type ScriptAction struct {
	Runtime string `json:"runtime"`
	Code    string `json:"code"`
}

func (HTTPAction) Kind() ActionKind   { return ActionHTTP }
func (ScriptAction) Kind() ActionKind { return ActionScript }

func (HTTPAction) sealed()   {}
func (ScriptAction) sealed() {}

// SendsBody reports whether the method carries a request body.
func (a HTTPAction) SendsBody() bool {
	switch a.Method {
	case "POST", "PUT", "PATCH":
		return true
	}
	return false
}

// MatchAction dispatches on the action variant. Every consumer goes through
// it, so adding a variant changes this signature and every call site with it.
func MatchAction[T any](a Action, onHTTP func(HTTPAction) T, onScript func(ScriptAction) T) T {
	switch v := a.(type) {
	case HTTPAction:
		return onHTTP(v)
	case *HTTPAction:
		return onHTTP(*v)
	case ScriptAction:
		return onScript(v)
	case *ScriptAction:
		return onScript(*v)
	}
	panic(fmt.Sprintf("spell: unknown action type %T", a))
}

type actionEnvelope struct {
	Type   ActionKind      `json:"type"`
	Config json.RawMessage `json:"config"`
}

// MarshalAction encodes an action as {"type": ..., "config": {...}}.
func MarshalAction(a Action) ([]byte, error) {
	if a == nil {
		return nil, errors.New("spell: action is nil")
	}
	type encoded struct {
		data []byte
		err  error
	}
	config := MatchAction(a,
		func(h HTTPAction) encoded {
			h.Headers = cloneHeaders(h.Headers)
			data, err := json.Marshal(h)
			return encoded{data, err}
		},
		func(s ScriptAction) encoded {
			data, err := json.Marshal(s)
			return encoded{data, err}
		},
	)
	if config.err != nil {
		return nil, config.err
	}
	return json.Marshal(actionEnvelope{Type: a.Kind(), Config: config.data})
}

// UnmarshalAction decodes an action envelope without enforcing constraints.
func UnmarshalAction(data []byte) (Action, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, errors.New("spell: action is missing")
	}
	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("spell: decode action: %w", err)
	}
	switch env.Type {
	case ActionHTTP:
		var h HTTPAction
		if err := json.Unmarshal(env.Config, &h); err != nil {
			return nil, fmt.Errorf("spell: decode http config: %w", err)
		}
		return h, nil
	case ActionScript:
		var s ScriptAction
		if err := json.Unmarshal(env.Config, &s); err != nil {
			return nil, fmt.Errorf("spell: decode script config: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("spell: unknown action type %q", env.Type)
	}
}

// HeaderNames returns header keys in sorted order.
func (a HTTPAction) HeaderNames() []string {
	names := make([]string, 0, len(a.Headers))
	for name := range a.Headers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func cloneHeaders(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
