package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/spellbook/probe"
)

func newProbeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe <name|dir>",
		Short: "Launch a generated server over stdio and check what it advertises",
		Long: `Probe starts a generated bundle, performs the MCP handshake and checks that
the server advertises exactly one tool named after the spell with the spell's
input schema. The bundle needs its npm dependencies installed, or use --docker
with an image built from it.`,
		Args: cobra.ExactArgs(1),
	}
	cmd.Flags().String("command", "node", "Command that starts the server")
	cmd.Flags().StringSlice("args", []string{"index.js"}, "Arguments for --command")
	cmd.Flags().Bool("docker", false, "Run the spell's container image instead of --command")
	cmd.Flags().String("call", "", "JSON arguments for a tools/call after discovery")
	cmd.Flags().Duration("timeout", 30*time.Second, "Probe timeout")
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		command, _ := cmd.Flags().GetString("command")
		commandArgs, _ := cmd.Flags().GetStringSlice("args")
		docker, _ := cmd.Flags().GetBool("docker")
		call, _ := cmd.Flags().GetString("call")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		name, dir := a.resolveBundle(args[0])
		s, err := a.findSpell(cmd, name)
		if err != nil {
			return err
		}

		opts := probe.Options{}
		if strings.TrimSpace(call) != "" {
			if !json.Valid([]byte(call)) {
				return exitError(exitInputParse, "--call is not valid JSON")
			}
			opts.Arguments = json.RawMessage(call)
		}

		cfg := probe.StdioConfig{Command: command, Args: commandArgs, Dir: dir}
		if docker {
			cfg = probe.StdioConfig{Command: "docker", Args: []string{"run", "--rm", "-i", s.ImageName()}}
		} else if _, err := os.Stat(dir); err != nil {
			return exitError(exitFileNotFound, "bundle directory not found: %s (run spellbook generate --name %s)", dir, s.Name)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		a.logger.Debug("probing server", "spell", s.Name, "command", cfg.Command, "dir", cfg.Dir)
		report, err := probe.Run(ctx, cfg, s, opts)
		if err != nil {
			return exitError(exitRuntime, "probe %s: %v", s.Name, err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Server: %s %s\n", report.Server.Name, report.Server.Version)
		for _, tool := range report.Tools {
			fmt.Fprintf(out, "Tool:   %s\n", tool.Name)
		}
		if report.Call != nil {
			fmt.Fprintf(out, "Call:   %s\n", report.Call.Text())
		}
		if !report.OK() {
			for _, p := range report.Problems {
				fmt.Fprintf(out, "%s %s\n", a.styles.err.Render("PROBLEM"), p)
			}
			return exitError(exitValidation, "server does not match spell %s", s.Name)
		}
		fmt.Fprintf(out, "%s (%s)\n", a.styles.ok.Render("OK"), report.Elapsed.Round(time.Millisecond))
		return nil
	})
	return cmd
}

// resolveBundle accepts a spell name or a bundle directory.
func (a *app) resolveBundle(arg string) (name, dir string) {
	if info, err := os.Stat(arg); err == nil && info.IsDir() {
		return filepath.Base(filepath.Clean(arg)), arg
	}
	return arg, a.writer().Dir(arg)
}
