package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"treno/internal/config"
	"treno/internal/format"
	"treno/internal/journal"
	"treno/internal/logging"
	"treno/internal/persist"
	"treno/internal/store"
	"treno/internal/tui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type App struct {
	Dir        string
	Backend    string
	PrettyJSON bool
	Format     string
	LogLevel   string
	LogFile    string

	// Test hooks.
	now        func() time.Time
	isTerminal func() bool
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{})
}

func newRootCmd(app *App) *cobra.Command {
	if app.now == nil {
		app.now = time.Now
	}
	if app.isTerminal == nil {
		app.isTerminal = stdioIsTerminal
	}

	cmd := &cobra.Command{
		Use:          "treno",
		Short:        "Treno workout journal (TUI, web UI and scriptable CLI)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  treno

  # Serve the web UI on localhost
  treno web --addr 127.0.0.1:8787

  # Scriptable commands
  treno records list --date 2024-03-10
  treno records add --part legs --color green --note-md "squats **5x5**"
  treno export --format yaml
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand on a terminal => interactive TUI.
			if len(args) == 0 && app.isTerminal() {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", "", "Data directory (default: ~/.treno/data; env TRENO_DIR)")
	cmd.PersistentFlags().StringVar(&app.Backend, "backend", "", "Storage backend (sqlite|files|memory; env TRENO_BACKEND)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("TRENO_FORMAT", "json"), "Output format (json|yaml)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (debug|info|warn|error; env TRENO_LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&app.LogFile, "log-file", "", "Also write logs to this rotating file")

	cmd.AddCommand(newTUICmd(app))
	cmd.AddCommand(newWebCmd(app))
	cmd.AddCommand(newRecordsCmd(app))
	cmd.AddCommand(newDraftsCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newImportCmd(app))
	cmd.AddCommand(newMigrateCmd(app))
	cmd.AddCommand(newConfigCmd(app))

	return cmd
}

func stdioIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func newTUICmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, app)
		},
	}
}

func runTUI(cmd *cobra.Command, app *App) error {
	// The TUI owns the terminal; logs only go to --log-file.
	env, err := openEnv(cmd, app, true)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer env.Close()

	sess := env.session(cmd.Context(), app)
	return tui.Run(cmd.Context(), sess, tui.Options{Logger: env.log})
}

func resolveConfig(app *App) (config.Resolved, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Resolved{}, fmt.Errorf("load config: %w", err)
	}
	return config.Resolve(cfg, config.Overrides{
		DataDir:  app.Dir,
		Backend:  app.Backend,
		LogLevel: app.LogLevel,
		LogFile:  app.LogFile,
	})
}

// env is what one command invocation opens: the resolved config, a logger and
// the KV store. Close releases all of it.
type env struct {
	cfg      config.Resolved
	log      *slog.Logger
	kv       store.KV
	closeLog func() error
}

func openEnv(cmd *cobra.Command, app *App, quiet bool) (*env, error) {
	cfg, err := resolveConfig(app)
	if err != nil {
		return nil, err
	}
	log, closeLog, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
		Console: cmd.ErrOrStderr(),
		Quiet:   quiet,
	})
	if err != nil {
		return nil, err
	}
	kv, err := store.Open(cmd.Context(), store.Options{
		Backend:    store.Backend(cfg.Backend),
		Dir:        cfg.DataDir,
		QuotaBytes: cfg.QuotaBytes,
	})
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("open %s store in %s: %w", cfg.Backend, cfg.DataDir, err)
	}
	log.Debug("store opened", "backend", cfg.Backend, "dir", cfg.DataDir)
	return &env{cfg: cfg, log: log, kv: kv, closeLog: closeLog}, nil
}

func (e *env) Close() error {
	err := e.kv.Close()
	if cerr := e.closeLog(); err == nil {
		err = cerr
	}
	return err
}

func (e *env) session(ctx context.Context, app *App) *journal.Session {
	return journal.Open(ctx, e.kv, journal.Options{Logger: e.log, Now: app.now})
}

// adapter reports storage alerts on stderr.
func (e *env) adapter(cmd *cobra.Command) *persist.Adapter {
	return persist.New(e.kv, persist.Options{
		Logger: e.log,
		Alert: persist.AlertFunc(func(msg string) {
			fmt.Fprintln(cmd.ErrOrStderr(), msg)
		}),
	})
}

// flushAlerts prints whatever the session queued for the user.
func flushAlerts(cmd *cobra.Command, sess *journal.Session) {
	for _, msg := range sess.DrainAlerts() {
		fmt.Fprintln(cmd.ErrOrStderr(), msg)
	}
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
