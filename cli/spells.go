package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/petal-labs/spellbook/loader"
	"github.com/petal-labs/spellbook/spell"
	"github.com/petal-labs/spellbook/store"
)

const listDescriptionWidth = 60

func newAddCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Validate spells from a file and add them to the store",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().Bool("replace", false, "Replace stored spells that have the same name")
	cmd.Flags().Bool("generate", false, "Also generate bundles for the added spells")
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		replace, _ := cmd.Flags().GetBool("replace")
		generate, _ := cmd.Flags().GetBool("generate")
		out := cmd.OutOrStdout()

		entries, err := readSpellFile(args[0], loader.Options{AssignIDs: true})
		if err != nil {
			return err
		}
		if invalid := loader.Invalid(entries); len(invalid) > 0 {
			printEntries(out, a.styles, invalid, "text")
			return exitError(exitValidation, "validation failed; nothing added")
		}

		collection, err := a.loadSpells(cmd.Context())
		if err != nil {
			return err
		}
		added := loader.Spells(entries)
		if err := addSpells(collection, added, replace); err != nil {
			return err
		}
		if err := a.saveSpells(cmd.Context(), collection); err != nil {
			return err
		}
		for _, s := range added {
			fmt.Fprintf(out, "%s %s (%s)\n", a.styles.ok.Render("Added"), a.styles.bold.Render(s.Name), s.ID)
		}

		if generate {
			results, err := a.writer().WriteAll(cmd.Context(), added)
			printResults(out, a.styles, results)
			if err != nil {
				return exitError(exitRuntime, "generating bundles: %v", err)
			}
		}
		return nil
	})
	return cmd
}

// addSpells puts spells into collection, enforcing unique names and IDs. On
// conflict the collection is left unchanged.
func addSpells(collection store.Collection, spells []spell.Spell, replace bool) error {
	seen := make(map[string]bool, len(spells))
	seenIDs := make(map[string]string, len(spells))
	for _, s := range spells {
		if seen[s.Name] {
			return exitError(exitConflict, "spell name %q appears more than once in the input", s.Name)
		}
		seen[s.Name] = true
		if other, ok := seenIDs[s.ID]; ok {
			return exitError(exitConflict, "spell id %s is used by both %q and %q in the input", s.ID, other, s.Name)
		}
		seenIDs[s.ID] = s.Name

		if existing, ok := collection.FindByName(s.Name); ok && !replace {
			return exitError(exitConflict, "spell %q already exists (id: %s); use --replace to overwrite", s.Name, existing.ID)
		}
		if existing, ok := collection[s.ID]; ok && existing.Name != s.Name {
			return exitError(exitConflict, "spell id %s is already used by %q", s.ID, existing.Name)
		}
	}
	for _, s := range spells {
		collection.Remove(s.Name)
		collection.Put(s)
	}
	return nil
}

func newListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored spells",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().String("format", "text", "Output format: text | json")
	cmd.RunE = a.run(func(cmd *cobra.Command, _ []string) error {
		format, _ := cmd.Flags().GetString("format")
		collection, err := a.loadSpells(cmd.Context())
		if err != nil {
			return err
		}
		spells := collection.Sorted()

		if format == "json" {
			return writeJSON(cmd, spells)
		}
		if len(spells) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No spells stored.")
			return nil
		}

		writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
		fmt.Fprintln(writer, "NAME\tACTION\tID\tDESCRIPTION")
		for _, s := range spells {
			kind := "-"
			if s.Action != nil {
				kind = string(s.Action.Kind())
			}
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", s.Name, kind, s.ID, truncate(s.Description, listDescriptionWidth))
		}
		return writer.Flush()
	})
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a stored spell as JSON",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		s, err := a.findSpell(cmd, args[0])
		if err != nil {
			return err
		}
		return writeJSON(cmd, s)
	})
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remove <name>...",
		Aliases: []string{"rm"},
		Short:   "Remove spells from the store",
		Args:    cobra.MinimumNArgs(1),
	}
	cmd.Flags().Bool("bundle", false, "Also delete the generated bundle directories")
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		withBundle, _ := cmd.Flags().GetBool("bundle")
		collection, err := a.loadSpells(cmd.Context())
		if err != nil {
			return err
		}
		for _, name := range args {
			if _, ok := collection.FindByName(name); !ok {
				return exitError(exitFileNotFound, "spell %q not found", name)
			}
		}
		for _, name := range args {
			collection.Remove(name)
		}
		if err := a.saveSpells(cmd.Context(), collection); err != nil {
			return err
		}

		w := a.writer()
		for _, name := range args {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", a.styles.ok.Render("Removed"), name)
			if withBundle {
				if err := os.RemoveAll(w.Dir(name)); err != nil {
					return exitError(exitRuntime, "removing bundle for %s: %v", name, err)
				}
			}
		}
		return nil
	})
	return cmd
}

func newClearCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored spell",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().Bool("force", false, "Confirm deleting all spells")
	cmd.RunE = a.run(func(cmd *cobra.Command, _ []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			return exitError(exitInputParse, "refusing to clear the spell store without --force")
		}
		st, err := a.openStore()
		if err != nil {
			return err
		}
		if err := st.Clear(cmd.Context()); err != nil {
			return exitError(exitRuntime, "clearing spells: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Spell store cleared.")
		return nil
	})
	return cmd
}

func (a *app) findSpell(cmd *cobra.Command, name string) (spell.Spell, error) {
	collection, err := a.loadSpells(cmd.Context())
	if err != nil {
		return spell.Spell{}, err
	}
	s, ok := collection.FindByName(strings.TrimSpace(name))
	if !ok {
		return spell.Spell{}, exitError(exitFileNotFound, "spell %q not found", name)
	}
	return s, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return exitError(exitRuntime, "encoding output: %v", err)
	}
	return nil
}

// truncate shortens s to n code points, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
