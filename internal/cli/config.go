package cli

import (
	"treno/internal/config"
	"treno/internal/logging"

	"github.com/spf13/cobra"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}
	cmd.AddCommand(newConfigShowCmd(app))
	cmd.AddCommand(newConfigSetCmd(app))
	return cmd
}

func newConfigShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration (flags > env > file > defaults)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := resolveConfig(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": r})
		},
	}
}

func newConfigSetCmd(app *App) *cobra.Command {
	var dataDir, backend, logLevel, logFormat, logFile, webAddr string
	var quota int64

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Persist settings to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return writeErr(cmd, err)
			}
			flags := cmd.Flags()
			if flags.Changed("data-dir") {
				cfg.DataDir = dataDir
			}
			if flags.Changed("store") {
				cfg.Backend = backend
			}
			if flags.Changed("quota-bytes") {
				q := quota
				cfg.QuotaBytes = &q
			}
			if flags.Changed("level") {
				if _, err := logging.ParseLevel(logLevel); err != nil {
					return writeErr(cmd, err)
				}
				cfg.Log.Level = logLevel
			}
			if flags.Changed("log-format") {
				cfg.Log.Format = logFormat
			}
			if flags.Changed("file") {
				cfg.Log.File = logFile
			}
			if flags.Changed("addr") {
				cfg.Web.Addr = webAddr
			}
			// Reject values the next start would fail on.
			if _, err := config.Resolve(cfg, config.Overrides{}); err != nil {
				return writeErr(cmd, err)
			}
			if err := config.Save(cfg); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": cfg})
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Data directory")
	cmd.Flags().StringVar(&backend, "store", "", "Storage backend (sqlite|files|memory)")
	cmd.Flags().Int64Var(&quota, "quota-bytes", 0, "Storage quota in bytes (0 disables)")
	cmd.Flags().StringVar(&logLevel, "level", "", "Log level")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "Log format (text|json)")
	cmd.Flags().StringVar(&logFile, "file", "", "Rotating log file")
	cmd.Flags().StringVar(&webAddr, "addr", "", "Web UI bind address")
	return cmd
}
