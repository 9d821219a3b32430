package cli

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	"github.com/spf13/cobra"

	"github.com/petal-labs/spellbook/codegen"
)

func newDocsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs <name>",
		Short: "Render the generated README of a stored spell",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().Bool("raw", false, "Print the Markdown source instead of rendering it")
	cmd.Flags().Int("width", 80, "Word wrap width")
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetBool("raw")
		width, _ := cmd.Flags().GetInt("width")

		s, err := a.findSpell(cmd, args[0])
		if err != nil {
			return err
		}
		readme, err := codegen.Readme(s)
		if err != nil {
			return exitError(exitRuntime, "rendering README: %v", err)
		}
		if raw {
			fmt.Fprint(cmd.OutOrStdout(), readme)
			return nil
		}

		style := glamour.WithAutoStyle()
		if a.noColor {
			style = glamour.WithStandardStyle(glamourstyles.NoTTYStyle)
		}
		renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
		if err != nil {
			return exitError(exitRuntime, "creating markdown renderer: %v", err)
		}
		rendered, err := renderer.Render(readme)
		if err != nil {
			return exitError(exitRuntime, "rendering markdown: %v", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), rendered)
		return nil
	})
	return cmd
}
