package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/petal-labs/spellbook/spell"
)

// Report is the outcome of probing one server.
type Report struct {
	Server   Implementation
	Tools    []Tool
	Problems []string
	Call     *CallResult
	Elapsed  time.Duration
}

// OK reports whether the server matched the spell.
func (r Report) OK() bool {
	return len(r.Problems) == 0
}

// Options controls a probe run.
type Options struct {
	// Arguments, when set, are sent in a tools/call after discovery.
	Arguments json.RawMessage
}

// Check drives an initialized-session smoke test against the server behind
// client: the server must advertise exactly one tool, named after s, whose
// input schema equals s.InputSchema. Protocol failures are returned as
// errors; mismatches are collected in the report.
func Check(ctx context.Context, client *Client, s spell.Spell, opts Options) (Report, error) {
	started := time.Now()
	report := Report{}

	handshake, err := client.Initialize(ctx)
	if err != nil {
		return report, err
	}
	report.Server = handshake.ServerInfo
	if handshake.ServerInfo.Name != s.Name {
		report.Problems = append(report.Problems,
			fmt.Sprintf("server name is %q, want %q", handshake.ServerInfo.Name, s.Name))
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		return report, err
	}
	report.Tools = tools
	report.Problems = append(report.Problems, compareTools(tools, s)...)

	if len(opts.Arguments) > 0 {
		result, err := client.CallTool(ctx, s.Name, opts.Arguments)
		if err != nil {
			return report, err
		}
		report.Call = &result
		if result.IsError {
			report.Problems = append(report.Problems, "tool call returned an error: "+result.Text())
		}
	}

	report.Elapsed = time.Since(started)
	return report, nil
}

func compareTools(tools []Tool, s spell.Spell) []string {
	if len(tools) != 1 {
		return []string{fmt.Sprintf("server advertises %d tools, want 1", len(tools))}
	}
	var problems []string
	tool := tools[0]
	if tool.Name != s.Name {
		problems = append(problems, fmt.Sprintf("tool name is %q, want %q", tool.Name, s.Name))
	}
	if tool.Description != s.Description {
		problems = append(problems, "tool description differs from the spell")
	}

	var got map[string]any
	if err := json.Unmarshal(tool.InputSchema, &got); err != nil {
		return append(problems, fmt.Sprintf("tool input schema is not an object: %v", err))
	}
	if diff := cmp.Diff(s.InputSchema.Map(), got); diff != "" {
		problems = append(problems, "tool input schema differs (-spell +server):\n"+diff)
	}
	return problems
}

// Run launches the server described by cfg, checks it against s and stops it.
func Run(ctx context.Context, cfg StdioConfig, s spell.Spell, opts Options) (Report, error) {
	transport, err := StartStdio(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	client := NewClient(transport)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Close(closeCtx)
	}()
	return Check(ctx, client, s, opts)
}
