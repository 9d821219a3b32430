package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/petal-labs/spellbook/loader"
)

func newValidateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a spell file without generating anything",
		Long:  "Validate a JSON or YAML file holding one spell, a list of spells, or a document with a top-level \"spells\" list.",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().String("format", "text", "Output format: text | json")
	cmd.Flags().Bool("assign-ids", false, "Assign random IDs to spells that have none before validating")
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		assign, _ := cmd.Flags().GetBool("assign-ids")

		entries, err := readSpellFile(args[0], loader.Options{AssignIDs: assign})
		if err != nil {
			return err
		}
		printEntries(cmd.OutOrStdout(), a.styles, entries, format)
		if len(loader.Invalid(entries)) > 0 {
			return exitError(exitValidation, "validation failed")
		}
		return nil
	})
	return cmd
}

// readSpellFile loads candidates from path and maps failures to exit codes.
func readSpellFile(path string, opts loader.Options) ([]loader.Entry, error) {
	entries, err := loader.LoadFile(path, opts)
	if err != nil {
		var parseErr *loader.ParseError
		switch {
		case errors.Is(err, os.ErrNotExist):
			return nil, exitError(exitFileNotFound, "file not found: %s", path)
		case errors.As(err, &parseErr):
			return nil, exitError(exitInputParse, "%v", err)
		default:
			return nil, exitError(exitRuntime, "%v", err)
		}
	}
	if len(entries) == 0 {
		return nil, exitError(exitWrongSchema, "no spells found in %s", path)
	}
	return entries, nil
}
