package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/petal-labs/spellbook/mcpserver"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the spellbook MCP server over stdio",
		Long: `Serve speaks MCP on stdin/stdout and exposes create_spell and list_spells.
Logs go to stderr. Register it with an MCP client as:

  {"mcpServers": {"spellbook": {"command": "spellbook", "args": ["serve"]}}}`,
		Args: cobra.NoArgs,
	}
	cmd.RunE = a.run(func(cmd *cobra.Command, _ []string) error {
		st, err := a.openStore()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := mcpserver.New(st, a.writer(),
			mcpserver.WithLogger(a.logger),
			mcpserver.WithVersion(a.version),
		)
		if err := srv.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
			return exitError(exitRuntime, "server error: %v", err)
		}
		return nil
	})
	return cmd
}
