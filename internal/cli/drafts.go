package cli

import (
	"treno/internal/sanitize"

	"github.com/spf13/cobra"
)

type draftRow struct {
	Date  string `json:"date" yaml:"date"`
	Part  string `json:"part" yaml:"part"`
	Color string `json:"color" yaml:"color"`
	Note  string `json:"note" yaml:"note"`
	Text  string `json:"text" yaml:"text"`
}

func newDraftsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Unsaved record drafts (autosaved edit buffers)",
	}
	cmd.AddCommand(newDraftsListCmd(app))
	return cmd
}

func newDraftsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List drafts by date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer env.Close()

			sess := env.session(cmd.Context(), app)
			defer flushAlerts(cmd, sess)
			bufs := sess.EditBuffers()
			out := make([]draftRow, 0, len(bufs))
			for _, date := range bufs.Dates() {
				b := bufs[date]
				out = append(out, draftRow{Date: date, Part: b.Part, Color: b.Color, Note: b.Note, Text: sanitize.Text(b.Note)})
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
}
