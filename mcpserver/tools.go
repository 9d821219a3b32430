package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/petal-labs/spellbook/spell"
)

const (
	toolCreateSpell = "create_spell"
	toolListSpells  = "list_spells"

	listDescriptionWidth = 80
)

func createSpellTool() mcp.Tool {
	return mcp.NewTool(toolCreateSpell,
		mcp.WithDescription("Create a new MCP tool from a spell definition. Generates Dockerfile, package.json, index.js, and README.md."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description(fmt.Sprintf("Tool name in kebab-case (%d-%d characters)", spell.MinNameLength, spell.MaxNameLength)),
			mcp.MinLength(spell.MinNameLength),
			mcp.MaxLength(spell.MaxNameLength),
		),
		mcp.WithString("description",
			mcp.Required(),
			mcp.Description(fmt.Sprintf("Tool description (%d-%d characters)", spell.MinDescriptionLength, spell.MaxDescriptionLength)),
			mcp.MinLength(spell.MinDescriptionLength),
			mcp.MaxLength(spell.MaxDescriptionLength),
		),
		mcp.WithObject("inputSchema",
			mcp.Required(),
			mcp.Description("JSON Schema for tool input"),
		),
		mcp.WithObject("outputSchema",
			mcp.Required(),
			mcp.Description("JSON Schema for tool output"),
		),
		mcp.WithObject("action",
			mcp.Required(),
			mcp.Description("Action configuration (HTTP or Script)"),
			mcp.Properties(map[string]any{
				"type": map[string]any{
					"type":        "string",
					"enum":        []string{string(spell.ActionHTTP), string(spell.ActionScript)},
					"description": "Action type",
				},
				"config": map[string]any{
					"type":        "object",
					"description": "Action-specific configuration",
				},
			}),
		),
	)
}

func listSpellsTool() mcp.Tool {
	return mcp.NewTool(toolListSpells,
		mcp.WithDescription("List all created spells with their names and descriptions."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func (s *Server) handleCreateSpell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	created, err := s.CreateSpell(ctx, request.GetArguments())
	if err != nil {
		s.logger.Warn("create_spell failed", "error", err)
		return createErrorResult(err), nil
	}
	return mcp.NewToolResultText(createdMessage(created)), nil
}

func (s *Server) handleListSpells(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	spells, err := s.ListSpells(ctx)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Error loading spells", err), nil
	}
	return mcp.NewToolResultText(listMessage(spells)), nil
}

func createErrorResult(err error) *mcp.CallToolResult {
	if verr, ok := spell.AsValidationError(err); ok {
		var b strings.Builder
		b.WriteString("Spell validation failed:")
		for _, d := range verr.Diagnostics {
			fmt.Fprintf(&b, "\n  - %s: %s", d.Path, d.Message)
		}
		return mcp.NewToolResultError(b.String())
	}
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return mcp.NewToolResultError(fmt.Sprintf(
			"Spell with name %q already exists (id: %s).\n\nEach spell name must be unique. Choose a different name or delete the existing spell first.",
			dup.Name, dup.ExistingID,
		))
	}
	return mcp.NewToolResultErrorFromErr("Error creating spell", err)
}

func createdMessage(c Created) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Spell %q created successfully.\n\nGenerated files in %s:\n", c.Spell.Name, c.Dir)
	for _, f := range c.Files {
		fmt.Fprintf(&b, "  - %s\n", f)
	}
	image := c.Spell.ImageName()
	fmt.Fprintf(&b, "\nNext steps:\n")
	fmt.Fprintf(&b, "1. Run: docker build -t %s %s\n", image, c.Dir)
	fmt.Fprintf(&b, "2. Register it with your MCP client:\n")
	fmt.Fprintf(&b, "   {\n     \"mcpServers\": {\n       %q: {\n         \"command\": \"docker\",\n         \"args\": [\"run\", \"--rm\", \"-i\", %q]\n       }\n     }\n   }", c.Spell.Name, image)
	return b.String()
}

func listMessage(spells []spell.Spell) string {
	if len(spells) == 0 {
		return "No spells created yet.\n\nUse create_spell to create your first MCP tool."
	}
	plural := "s"
	if len(spells) == 1 {
		plural = ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Your spellbook (%d spell%s):\n", len(spells), plural)
	for _, sp := range spells {
		fmt.Fprintf(&b, "\n  %s\n     %s\n", sp.Name, truncate(sp.Description, listDescriptionWidth))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// truncate shortens s to n code points, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
