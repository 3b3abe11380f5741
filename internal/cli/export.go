package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"treno/internal/format"
	"treno/internal/persist"

	"github.com/spf13/cobra"
)

func newExportCmd(app *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump all records and drafts",
		Example: strings.TrimSpace(`
treno export --pretty > backup.json
treno export --format yaml --output backup.yaml
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer env.Close()

			dump := env.adapter(cmd).Export(cmd.Context())
			if strings.TrimSpace(output) == "" {
				return writeOut(cmd, app, dump)
			}

			f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := format.Write(f, dump, app.Format, app.PrettyJSON); err != nil {
				_ = f.Close()
				return writeErr(cmd, err)
			}
			if err := f.Close(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": dumpSummary(dump, output)})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func newImportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace all records and drafts with a JSON dump",
		Long: strings.TrimSpace(`
Replace the stored records and drafts with a JSON dump.

Accepts the output of "treno export" (json) or a bare records mapping in
either the current or the legacy layout. Use - to read stdin.
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				defer f.Close()
				r = f
			}
			dump, err := persist.ReadDump(r)
			if err != nil {
				return writeErr(cmd, err)
			}

			env, err := openEnv(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer env.Close()

			if err := env.adapter(cmd).Import(cmd.Context(), dump); err != nil {
				return writeErr(cmd, err)
			}
			env.log.Info("import finished", "dates", len(dump.Records), "drafts", len(dump.EditBuffers))
			return writeOut(cmd, app, map[string]any{"data": dumpSummary(dump, args[0])})
		},
	}
	return cmd
}

func dumpSummary(d persist.Dump, path string) map[string]any {
	n := 0
	for _, b := range d.Records {
		n += len(b.Records)
	}
	return map[string]any{
		"path":    path,
		"dates":   len(d.Records),
		"records": n,
		"drafts":  len(d.EditBuffers),
	}
}

func newMigrateCmd(app *App) *cobra.Command {
	var removeLegacy bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Upgrade data stored under the legacy keys",
		Long: strings.TrimSpace(`
Copy records and drafts stored under the legacy "records" and "editBuffers"
keys to the current keys, and report what was found. Current data is never
overwritten. Loading the journal performs the same upgrade for records on
demand; this command makes it explicit.
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer env.Close()

			rep, err := env.adapter(cmd).Upgrade(cmd.Context(), removeLegacy)
			if err != nil {
				return writeErr(cmd, fmt.Errorf("migrate: %w", err))
			}
			return writeOut(cmd, app, map[string]any{"data": rep})
		},
	}

	cmd.Flags().BoolVar(&removeLegacy, "remove-legacy", false, "Delete the legacy keys afterwards")
	return cmd
}
