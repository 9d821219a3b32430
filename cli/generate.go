package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petal-labs/spellbook/bundle"
	"github.com/petal-labs/spellbook/loader"
	"github.com/petal-labs/spellbook/spell"
)

func newGenerateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [file]",
		Short: "Generate MCP server bundles",
		Long: `Generate writes Dockerfile, package.json, index.js and README.md for each
spell into <output>/<name>. Spells come from a file, from the store by name,
or from the whole store with --all.`,
		Args: cobra.MaximumNArgs(1),
	}
	cmd.Flags().StringSlice("name", nil, "Generate stored spells by name (repeatable)")
	cmd.Flags().Bool("all", false, "Generate every stored spell")
	cmd.Flags().Int("parallel", 0, "Maximum bundles written concurrently (default 4)")
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		names, _ := cmd.Flags().GetStringSlice("name")
		all, _ := cmd.Flags().GetBool("all")
		parallel, _ := cmd.Flags().GetInt("parallel")

		sources := 0
		for _, set := range []bool{len(args) == 1, len(names) > 0, all} {
			if set {
				sources++
			}
		}
		if sources != 1 {
			return exitError(exitInputParse, "specify exactly one of <file>, --name or --all")
		}

		var spells []spell.Spell
		switch {
		case len(args) == 1:
			entries, err := readSpellFile(args[0], loader.Options{})
			if err != nil {
				return err
			}
			if len(loader.Invalid(entries)) > 0 {
				printEntries(cmd.OutOrStdout(), a.styles, loader.Invalid(entries), "text")
				return exitError(exitValidation, "validation failed; nothing generated")
			}
			spells = loader.Spells(entries)
		case all:
			collection, err := a.loadSpells(cmd.Context())
			if err != nil {
				return err
			}
			spells = collection.Sorted()
			if len(spells) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No spells stored.")
				return nil
			}
		default:
			collection, err := a.loadSpells(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				s, ok := collection.FindByName(strings.TrimSpace(name))
				if !ok {
					return exitError(exitFileNotFound, "spell %q not found", name)
				}
				spells = append(spells, s)
			}
		}

		w := a.writer()
		w.Parallelism = parallel
		results, err := w.WriteAll(cmd.Context(), spells)
		printResults(cmd.OutOrStdout(), a.styles, results)
		if err != nil {
			return exitError(exitRuntime, "generating bundles: %v", err)
		}
		return nil
	})
	return cmd
}

func printResults(w io.Writer, st styles, results []bundle.Result) {
	for _, r := range results {
		fmt.Fprintf(w, "%s %s -> %s\n", st.ok.Render("Generated"), st.bold.Render(r.Spell), r.Dir)
		for _, f := range r.Files {
			fmt.Fprintf(w, "  %s\n", st.muted.Render(f))
		}
	}
}
