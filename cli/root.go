// Package cli implements the spellbook command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/spellbook/bundle"
	"github.com/petal-labs/spellbook/config"
	spellotel "github.com/petal-labs/spellbook/otel"
	"github.com/petal-labs/spellbook/store"
)

const telemetryShutdownTimeout = 5 * time.Second

// NewRootCmd builds the spellbook command tree.
func NewRootCmd(version string) *cobra.Command {
	a := &app{version: version}

	root := &cobra.Command{
		Use:   "spellbook",
		Short: "Generate MCP server bundles from spells",
		Long:  "Spellbook turns declarative tool descriptions (spells) into runnable MCP server bundles.",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.Bool("verbose", false, "Enable verbose/debug logging")
	flags.Bool("quiet", false, "Suppress all output except errors")
	flags.Bool("no-color", false, "Disable colored output")
	flags.String("config", "", "Path to spellbook.yaml (default: ./spellbook.yaml, then ~/.spellbook/config.yaml)")
	flags.String("store-driver", "", "Spell store driver: file | sqlite")
	flags.String("store-path", "", "Spell store location")
	flags.StringP("output", "o", "", "Directory bundles are written under")

	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("spellbook version %s\n", version))

	root.AddCommand(
		newValidateCmd(a),
		newGenerateCmd(a),
		newAddCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newRemoveCmd(a),
		newClearCmd(a),
		newDocsCmd(a),
		newProbeCmd(a),
		newServeCmd(a),
		newExamplesCmd(a),
	)
	return root
}

// app holds what every command resolves from flags and config before it
// runs.
type app struct {
	version string

	cfg       config.Config
	logger    *slog.Logger
	styles    styles
	noColor   bool
	store     store.Store
	telemetry *spellotel.Telemetry
}

// run wraps a command body with setup and teardown of the shared state.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		if err := a.setup(cmd); err != nil {
			return err
		}
		defer func() {
			if cerr := a.teardown(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return fn(cmd, args)
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	flags := cmd.Flags()
	verbose, _ := flags.GetBool("verbose")
	quiet, _ := flags.GetBool("quiet")
	a.noColor, _ = flags.GetBool("no-color")

	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	a.styles = newStyles(cmd.OutOrStdout(), a.noColor)

	configPath, _ := flags.GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return exitError(exitRuntime, "loading config: %v", err)
	}
	if v, _ := flags.GetString("store-driver"); strings.TrimSpace(v) != "" {
		cfg.Store.Driver = v
	}
	if v, _ := flags.GetString("store-path"); strings.TrimSpace(v) != "" {
		cfg.Store.Path = v
	}
	if v, _ := flags.GetString("output"); strings.TrimSpace(v) != "" {
		cfg.Output.Dir = v
	}
	if err := cfg.Normalize(); err != nil {
		return exitError(exitRuntime, "invalid configuration: %v", err)
	}
	a.cfg = cfg
	if cfg.Path != "" {
		a.logger.Debug("config loaded", "path", cfg.Path)
	}

	a.telemetry, err = spellotel.Setup(cmd.Context(), spellotel.Config{
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return exitError(exitRuntime, "initializing telemetry: %v", err)
	}
	return nil
}

func (a *app) teardown() error {
	var closeErr error
	if a.store != nil {
		closeErr = store.Close(a.store)
		a.store = nil
	}
	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := a.telemetry.Shutdown(ctx); err != nil {
			a.logger.Warn("telemetry shutdown failed", "error", err)
		}
		a.telemetry = nil
	}
	if closeErr != nil {
		return exitError(exitRuntime, "closing spell store: %v", closeErr)
	}
	return nil
}

// openStore opens the configured store once per command.
func (a *app) openStore() (store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	st, err := store.Open(a.cfg.Store.Driver, a.cfg.StorePath(), store.WithLogger(a.logger))
	if err != nil {
		return nil, exitError(exitRuntime, "opening spell store: %v", err)
	}
	a.store = st
	return st, nil
}

// loadSpells opens the store and loads the collection, reporting skipped
// entries.
func (a *app) loadSpells(ctx context.Context) (store.Collection, error) {
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	loaded, err := st.Load(ctx)
	if err != nil {
		return nil, exitError(exitRuntime, "loading spells: %v", err)
	}
	if loaded.Skipped > 0 {
		a.logger.Warn("skipped invalid stored spells", "count", loaded.Skipped)
	}
	return loaded.Spells, nil
}

func (a *app) saveSpells(ctx context.Context, spells store.Collection) error {
	st, err := a.openStore()
	if err != nil {
		return err
	}
	if err := st.Save(ctx, spells); err != nil {
		return exitError(exitRuntime, "saving spells: %v", err)
	}
	return nil
}

func (a *app) writer() *bundle.Writer {
	return bundle.NewWriter(a.cfg.Output.Dir, a.logger)
}
