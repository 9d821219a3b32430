package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/petal-labs/spellbook/catalog"
	"github.com/petal-labs/spellbook/spell"
)

func newExamplesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "examples [name...]",
		Short: "List the built-in example spells, or add them to the store",
	}
	cmd.Flags().Bool("add", false, "Add the examples (all, or the named ones) to the store")
	cmd.Flags().Bool("show", false, "Print the example definitions as JSON")
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		add, _ := cmd.Flags().GetBool("add")
		show, _ := cmd.Flags().GetBool("show")

		examples, err := selectExamples(args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch {
		case add:
			collection, err := a.loadSpells(cmd.Context())
			if err != nil {
				return err
			}
			var added []spell.Spell
			for _, ex := range examples {
				if existing, ok := collection.FindByName(ex.Name); ok {
					fmt.Fprintf(out, "%s %s (already stored as %s)\n", a.styles.muted.Render("Skipped"), ex.Name, existing.ID)
					continue
				}
				s, err := ex.Instantiate("")
				if err != nil {
					return exitError(exitRuntime, "instantiating example %s: %v", ex.Name, err)
				}
				collection.Put(s)
				added = append(added, s)
			}
			if len(added) == 0 {
				return nil
			}
			if err := a.saveSpells(cmd.Context(), collection); err != nil {
				return err
			}
			for _, s := range added {
				fmt.Fprintf(out, "%s %s (%s)\n", a.styles.ok.Render("Added"), a.styles.bold.Render(s.Name), s.ID)
			}
			return nil
		case show:
			defs := make([]any, 0, len(examples))
			for _, ex := range examples {
				defs = append(defs, ex.JSON())
			}
			return writeJSON(cmd, defs)
		default:
			writer := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
			fmt.Fprintln(writer, "NAME\tACTION\tDESCRIPTION")
			for _, ex := range examples {
				fmt.Fprintf(writer, "%s\t%s\t%s\n", ex.Name, ex.Kind, truncate(ex.Description, listDescriptionWidth))
			}
			return writer.Flush()
		}
	})
	return cmd
}

func selectExamples(names []string) ([]catalog.Example, error) {
	if len(names) == 0 {
		examples, err := catalog.Examples()
		if err != nil {
			return nil, exitError(exitRuntime, "loading examples: %v", err)
		}
		return examples, nil
	}
	out := make([]catalog.Example, 0, len(names))
	for _, name := range names {
		ex, ok := catalog.Get(name)
		if !ok {
			return nil, exitError(exitFileNotFound, "unknown example %q (available: %v)", name, catalog.Names())
		}
		out = append(out, ex)
	}
	return out, nil
}
