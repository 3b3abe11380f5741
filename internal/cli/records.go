package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"treno/internal/imaging"
	"treno/internal/model"
	"treno/internal/records"
	"treno/internal/sanitize"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
)

// recordRow is the scriptable view of one record. Image data stays out of
// the output; only the count is reported.
type recordRow struct {
	Date   string `json:"date" yaml:"date"`
	Index  int    `json:"index" yaml:"index"`
	Part   string `json:"part" yaml:"part"`
	Color  string `json:"color" yaml:"color"`
	Note   string `json:"note" yaml:"note"`
	Text   string `json:"text" yaml:"text"`
	Images int    `json:"images" yaml:"images"`
}

func newRecordRow(date string, index int, rec model.WorkoutRecord) recordRow {
	return recordRow{
		Date:   date,
		Index:  index,
		Part:   rec.Part,
		Color:  rec.Color,
		Note:   rec.Note,
		Text:   sanitize.Text(rec.Note),
		Images: len(rec.Images),
	}
}

func recordRows(recs model.Records, date string) []recordRow {
	dates := recs.Dates()
	if date != "" {
		dates = []string{date}
	}
	out := []recordRow{}
	for _, d := range dates {
		for i, rec := range recs[d].Records {
			out = append(out, newRecordRow(d, i, rec))
		}
	}
	return out
}

func newRecordsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Workout record commands",
	}
	cmd.AddCommand(newRecordsListCmd(app))
	cmd.AddCommand(newRecordsAddCmd(app))
	cmd.AddCommand(newRecordsUpdateCmd(app))
	cmd.AddCommand(newRecordsDeleteCmd(app))
	cmd.AddCommand(newRecordsFindCmd(app))
	return cmd
}

func newRecordsListCmd(app *App) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records (all dates, or one with --date)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if strings.TrimSpace(date) != "" {
				k, err := parseDateFlag(app, date)
				if err != nil {
					return writeErr(cmd, err)
				}
				key = k
			}
			env, err := openEnv(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer env.Close()

			sess := env.session(cmd.Context(), app)
			defer flushAlerts(cmd, sess)
			return writeOut(cmd, app, map[string]any{"data": recordRows(sess.Records(), key)})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Only this date (YYYY-MM-DD or today)")
	return cmd
}

// recordFlags are the field flags shared by add and update.
type recordFlags struct {
	part       string
	color      string
	note       string
	noteMD     string
	images     []string
	clearImage bool
}

func (f *recordFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.part, "part", "", "Body part")
	cmd.Flags().StringVar(&f.color, "color", "", "Colour: palette id (red, green, ...) or hex value")
	cmd.Flags().StringVar(&f.note, "note", "", "Note as HTML (sanitized)")
	cmd.Flags().StringVar(&f.noteMD, "note-md", "", "Note as Markdown (rendered and sanitized)")
	cmd.Flags().StringArrayVar(&f.images, "image", nil, "Attach an image file (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("note", "note-md")
}

// apply copies every flag the user set onto rec.
func (f *recordFlags) apply(ctx context.Context, cmd *cobra.Command, rec model.WorkoutRecord) (model.WorkoutRecord, error) {
	flags := cmd.Flags()
	if flags.Changed("part") {
		rec.Part = f.part
	}
	if flags.Changed("color") {
		c, ok := model.ResolveColor(f.color)
		if !ok {
			return rec, errInvalidFlag("color", f.color, paletteIDs())
		}
		rec.Color = c
	}
	switch {
	case flags.Changed("note"):
		rec.Note = f.note
	case flags.Changed("note-md"):
		rec.Note = sanitize.FromMarkdown(f.noteMD)
	}
	if f.clearImage {
		rec.Images = []string{}
	}
	for _, path := range f.images {
		uri, err := loadImage(ctx, path)
		if err != nil {
			return rec, err
		}
		if rec.Images, err = records.AppendImage(rec.Images, uri); err != nil {
			return rec, fmt.Errorf("%s: %w", path, err)
		}
	}
	return rec, nil
}

func loadImage(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	uri, err := imaging.Process(ctx, f)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return uri, nil
}

func paletteIDs() string {
	ids := make([]string, 0, len(model.Palette))
	for _, c := range model.Palette {
		ids = append(ids, c.ID)
	}
	return strings.Join(ids, "|") + " or a palette hex value"
}

func newRecordsAddCmd(app *App) *cobra.Command {
	var date string
	var f recordFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a record",
		Example: strings.TrimSpace(`
treno records add --part legs --color green --note-md "squats 5x5"
treno records add --date 2024-03-09 --part back --image ./rows.jpg
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseDateFlag(app, date)
			if err != nil {
				return writeErr(cmd, err)
			}
			rec, err := f.apply(cmd.Context(), cmd, model.WorkoutRecord{Images: []string{}})
			if err != nil {
				return writeErr(cmd, err)
			}

			env, err := openEnv(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer env.Close()

			sess := env.session(cmd.Context(), app)
			defer flushAlerts(cmd, sess)
			if err := sess.Commit(cmd.Context(), key, nil, rec); err != nil {
				return writeErr(cmd, err)
			}
			day := sess.Records()[key].Records
			i := len(day) - 1
			return writeOut(cmd, app, map[string]any{"data": newRecordRow(key, i, day[i])})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Record date (YYYY-MM-DD or today; default today)")
	f.register(cmd)
	return cmd
}

func newRecordsUpdateCmd(app *App) *cobra.Command {
	var date string
	var index int
	var f recordFlags

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update fields of an existing record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseDateFlag(app, date)
			if err != nil {
				return writeErr(cmd, err)
			}

			env, err := openEnv(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer env.Close()

			sess := env.session(cmd.Context(), app)
			defer flushAlerts(cmd, sess)
			day := sess.Records()[key].Records
			if index < 0 || index >= len(day) {
				return writeErr(cmd, errNotFound("record", model.SwipeID(key, index)))
			}
			rec, err := f.apply(cmd.Context(), cmd, day[index].Clone())
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := sess.Commit(cmd.Context(), key, &index, rec); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": newRecordRow(key, index, sess.Records()[key].Records[index])})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Record date (YYYY-MM-DD or today)")
	cmd.Flags().IntVar(&index, "index", 0, "Record index within the date (0-based)")
	cmd.Flags().BoolVar(&f.clearImage, "clear-images", false, "Remove existing images before attaching --image files")
	f.register(cmd)
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

func newRecordsDeleteCmd(app *App) *cobra.Command {
	var date string
	var index int

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseDateFlag(app, date)
			if err != nil {
				return writeErr(cmd, err)
			}

			env, err := openEnv(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer env.Close()

			sess := env.session(cmd.Context(), app)
			defer flushAlerts(cmd, sess)
			if err := sess.Delete(cmd.Context(), key, index); err != nil {
				if errors.Is(err, records.ErrIndexOutOfRange) {
					err = errNotFound("record", model.SwipeID(key, index))
				}
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"date":      key,
					"index":     index,
					"deleted":   true,
					"remaining": len(sess.Records()[key].Records),
				},
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Record date (YYYY-MM-DD or today)")
	cmd.Flags().IntVar(&index, "index", 0, "Record index within the date (0-based)")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

type findRow struct {
	recordRow `yaml:",inline"`
	Score     int `json:"score" yaml:"score"`
}

func newRecordsFindCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "find <query>",
		Short: "Fuzzy-find records by body part and note text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer env.Close()

			sess := env.session(cmd.Context(), app)
			defer flushAlerts(cmd, sess)
			rows := recordRows(sess.Records(), "")
			return writeOut(cmd, app, map[string]any{"data": findRecords(rows, args[0], limit)})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum matches (0 = all)")
	return cmd
}

// findRecords ranks rows best match first.
func findRecords(rows []recordRow, query string, limit int) []findRow {
	targets := make([]string, len(rows))
	for i, r := range rows {
		targets[i] = strings.TrimSpace(r.Part + " " + strings.ReplaceAll(r.Text, "\n", " "))
	}
	out := []findRow{}
	for _, m := range fuzzy.Find(strings.TrimSpace(query), targets) {
		out = append(out, findRow{recordRow: rows[m.Index], Score: m.Score})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// parseDateFlag accepts YYYY-MM-DD or "today"; empty means today.
func parseDateFlag(app *App, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "today") {
		return model.FormatDateKey(app.now()), nil
	}
	t, err := model.ParseDateKey(s)
	if err != nil {
		return "", err
	}
	return model.FormatDateKey(t), nil
}
