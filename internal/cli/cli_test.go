package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"treno/internal/config"
	"treno/internal/persist"
	"treno/internal/store"
)

var testNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)

// isolate points config and data at temp dirs so no test touches ~/.treno.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv(config.EnvConfigDir, t.TempDir())
	t.Setenv(config.EnvDataDir, "")
	t.Setenv(config.EnvBackend, "")
	t.Setenv(config.EnvLogLevel, "")
	t.Setenv("TRENO_FORMAT", "")
	return t.TempDir()
}

func runCLI(t *testing.T, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()
	return runCLIContext(t, context.Background(), args)
}

func runCLIContext(t *testing.T, ctx context.Context, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := newRootCmd(&App{
		now:        func() time.Time { return testNow },
		isTerminal: func() bool { return false },
	})

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	e := cmd.ExecuteContext(ctx)
	return outBuf.Bytes(), errBuf.Bytes(), e
}

func mustRun(t *testing.T, args ...string) map[string]any {
	t.Helper()
	stdout, stderr, err := runCLI(t, args)
	if err != nil {
		t.Fatalf("command failed: treno %v\nerr: %v\nstderr:\n%s\nstdout:\n%s", args, err, stderr, stdout)
	}
	var env map[string]any
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("unmarshal stdout: %v\nstdout:\n%s", err, stdout)
	}
	if _, ok := env["data"]; !ok {
		t.Fatalf("expected data key; got %v", env)
	}
	return env
}

func dataList(t *testing.T, env map[string]any) []map[string]any {
	t.Helper()
	xs, ok := env["data"].([]any)
	if !ok {
		t.Fatalf("expected data list; got %#v", env["data"])
	}
	out := make([]map[string]any, 0, len(xs))
	for _, x := range xs {
		out = append(out, x.(map[string]any))
	}
	return out
}

func TestRecordsLifecycle(t *testing.T) {
	dir := isolate(t)
	base := []string{"--dir", dir, "--backend", "files"}
	args := func(xs ...string) []string { return append(append([]string{}, base...), xs...) }

	added := mustRun(t, args("records", "add", "--part", "legs", "--color", "green", "--note-md", "squats **5x5**")...)
	row := added["data"].(map[string]any)
	if row["date"] != "2024-03-10" || row["index"] != float64(0) || row["color"] != "#2ecc71" {
		t.Fatalf("unexpected added row: %#v", row)
	}
	if !strings.Contains(row["text"].(string), "squats") {
		t.Fatalf("expected rendered note text, got %#v", row["text"])
	}

	mustRun(t, args("records", "add", "--date", "2024-03-10", "--part", "back")...)
	mustRun(t, args("records", "add", "--date", "2024-03-08", "--note", "<p>run</p><script>x()</script>")...)

	all := dataList(t, mustRun(t, args("records", "list")...))
	if len(all) != 3 || all[0]["date"] != "2024-03-08" {
		t.Fatalf("list = %#v", all)
	}
	if all[0]["note"] != "<p>run</p>" {
		t.Fatalf("expected sanitized note, got %#v", all[0]["note"])
	}
	if all[0]["color"] != "#e74c3c" {
		t.Fatalf("expected default colour, got %#v", all[0]["color"])
	}

	upd := mustRun(t, args("records", "update", "--date", "2024-03-10", "--index", "1", "--color", "blue")...)
	if r := upd["data"].(map[string]any); r["part"] != "back" || r["color"] != "#1A2996" {
		t.Fatalf("unexpected update row: %#v", r)
	}

	del := mustRun(t, args("records", "delete", "--date", "2024-03-08", "--index", "0")...)
	if d := del["data"].(map[string]any); d["remaining"] != float64(0) {
		t.Fatalf("unexpected delete result: %#v", d)
	}
	day := dataList(t, mustRun(t, args("records", "list", "--date", "2024-03-08")...))
	if len(day) != 0 {
		t.Fatalf("expected pruned date, got %#v", day)
	}

	_, stderr, err := runCLI(t, args("records", "delete", "--date", "2024-03-08", "--index", "0"))
	if err == nil || !strings.Contains(string(stderr), "record not found: 2024-03-08-0") {
		t.Fatalf("expected not found; err=%v stderr=%s", err, stderr)
	}
}

func TestRecordsAdd_RejectsEmptyAndUnknownColour(t *testing.T) {
	dir := isolate(t)

	_, stderr, err := runCLI(t, []string{"--dir", dir, "--backend", "files", "records", "add", "--note", "<p> </p>"})
	if err == nil || !strings.Contains(string(stderr), "Enter a body part, a note, or an image.") {
		t.Fatalf("expected empty record error; err=%v stderr=%s", err, stderr)
	}

	_, stderr, err = runCLI(t, []string{"--dir", dir, "--backend", "files", "records", "add", "--part", "x", "--color", "teal"})
	if err == nil || !strings.Contains(string(stderr), `invalid --color "teal"`) {
		t.Fatalf("expected colour error; err=%v stderr=%s", err, stderr)
	}
}

func TestRecordsAdd_AttachesImages(t *testing.T) {
	dir := isolate(t)

	path := filepath.Join(t.TempDir(), "photo.png")
	img := image.NewRGBA(image.Rect(0, 0, 800, 200))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}

	env := mustRun(t, "--dir", dir, "--backend", "files", "records", "add", "--part", "arms", "--image", path, "--image", path)
	if r := env["data"].(map[string]any); r["images"] != float64(2) {
		t.Fatalf("expected 2 images, got %#v", r)
	}

	_, stderr, err := runCLI(t, []string{"--dir", dir, "--backend", "files", "records", "add", "--part", "x",
		"--image", path, "--image", path, "--image", path, "--image", path})
	if err == nil || !strings.Contains(string(stderr), "You can attach up to 3 images.") {
		t.Fatalf("expected image cap error; err=%v stderr=%s", err, stderr)
	}
}

func TestRecordsFind_RanksFuzzyMatches(t *testing.T) {
	dir := isolate(t)
	base := []string{"--dir", dir, "--backend", "files"}

	mustRun(t, append(base, "records", "add", "--date", "2024-03-01", "--part", "legs", "--note", "<p>back squats</p>")...)
	mustRun(t, append(base, "records", "add", "--date", "2024-03-02", "--part", "chest", "--note", "<p>bench press</p>")...)

	got := dataList(t, mustRun(t, append(base, "records", "find", "bnch")...))
	if len(got) != 1 || got[0]["part"] != "chest" {
		t.Fatalf("find = %#v", got)
	}
	if _, ok := got[0]["score"]; !ok {
		t.Fatalf("expected score in %#v", got[0])
	}
}

func TestDraftsList(t *testing.T) {
	dir := isolate(t)
	ctx := context.Background()

	kv, err := store.OpenFiles(dir, 0)
	if err != nil {
		t.Fatalf("OpenFiles: %v", err)
	}
	if err := kv.Set(ctx, persist.KeyEditBuffers, `{"2024-03-09":{"part":"core","note":"<p>plank</p>","color":"#f1c40f"},"bad":3}`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got := dataList(t, mustRun(t, "--dir", dir, "--backend", "files", "drafts", "list"))
	if len(got) != 1 || got[0]["date"] != "2024-03-09" || got[0]["text"] != "plank" {
		t.Fatalf("drafts = %#v", got)
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	dir := isolate(t)
	mustRun(t, "--dir", dir, "--backend", "files", "records", "add", "--part", "legs")

	backup := filepath.Join(t.TempDir(), "backup.json")
	sum := mustRun(t, "--dir", dir, "--backend", "files", "export", "--output", backup)
	if d := sum["data"].(map[string]any); d["records"] != float64(1) {
		t.Fatalf("export summary = %#v", d)
	}

	other := t.TempDir()
	imp := mustRun(t, "--dir", other, "--backend", "files", "import", backup)
	if d := imp["data"].(map[string]any); d["dates"] != float64(1) || d["records"] != float64(1) {
		t.Fatalf("import summary = %#v", d)
	}
	got := dataList(t, mustRun(t, "--dir", other, "--backend", "files", "records", "list"))
	if len(got) != 1 || got[0]["part"] != "legs" {
		t.Fatalf("imported records = %#v", got)
	}

	stdout, _, err := runCLI(t, []string{"--dir", other, "--backend", "files", "--format", "yaml", "export"})
	if err != nil {
		t.Fatalf("yaml export: %v", err)
	}
	if !strings.Contains(string(stdout), "records:") || !strings.Contains(string(stdout), "part: legs") {
		t.Fatalf("unexpected yaml export:\n%s", stdout)
	}
}

func TestMigrate_ReportsLegacyUpgrade(t *testing.T) {
	dir := isolate(t)
	ctx := context.Background()

	kv, err := store.OpenFiles(dir, 0)
	if err != nil {
		t.Fatalf("OpenFiles: %v", err)
	}
	if err := kv.Set(ctx, persist.LegacyKeyRecords, `{"2023-01-02":[{"part":"legs","color":"#2ecc71","note":"","images":[]}]}`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	env := mustRun(t, "--dir", dir, "--backend", "files", "migrate", "--remove-legacy")
	rep := env["data"].(map[string]any)
	if rep["migrated"] != true || rep["legacyDates"] != float64(1) || rep["legacyRemoved"] != true {
		t.Fatalf("report = %#v", rep)
	}
	if _, ok, _ := kv.Get(ctx, persist.LegacyKeyRecords); ok {
		t.Fatalf("expected legacy key removed")
	}
	got := dataList(t, mustRun(t, "--dir", dir, "--backend", "files", "records", "list"))
	if len(got) != 1 || got[0]["date"] != "2023-01-02" {
		t.Fatalf("records after migrate = %#v", got)
	}
}

func TestConfigShowAndSet(t *testing.T) {
	dir := isolate(t)

	env := mustRun(t, "--dir", dir, "--backend", "memory", "config", "show")
	r := env["data"].(map[string]any)
	if r["dataDir"] != dir || r["backend"] != "memory" || r["webAddr"] != config.DefaultWebAddr {
		t.Fatalf("config show = %#v", r)
	}

	mustRun(t, "config", "set", "--store", "files", "--addr", "127.0.0.1:9999", "--quota-bytes", "0")
	r = mustRun(t, "config", "show")["data"].(map[string]any)
	if r["backend"] != "files" || r["webAddr"] != "127.0.0.1:9999" || r["quotaBytes"] != float64(0) {
		t.Fatalf("config show after set = %#v", r)
	}

	_, _, err := runCLI(t, []string{"config", "set", "--store", "tape"})
	if err == nil {
		t.Fatalf("expected invalid backend to be rejected")
	}
}

func TestRoot_NonTerminalPrintsHelp(t *testing.T) {
	isolate(t)

	stdout, _, err := runCLI(t, nil)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if !strings.Contains(string(stdout), "Usage:") || !strings.Contains(string(stdout), "records") {
		t.Fatalf("expected help output, got:\n%s", stdout)
	}
}

func TestWeb_StartsAndStopsWithContext(t *testing.T) {
	dir := isolate(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stdout, stderr, err := runCLIContext(t, ctx, []string{"--dir", dir, "--backend", "memory", "web", "--addr", "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("web: %v\nstderr:\n%s", err, stderr)
	}
	var env map[string]any
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("unmarshal: %v\nstdout:\n%s", err, stdout)
	}
	d := env["data"].(map[string]any)
	if url, _ := d["url"].(string); !strings.HasPrefix(url, "http://127.0.0.1:") {
		t.Fatalf("unexpected url %#v", d["url"])
	}
}

func TestParseDateFlag(t *testing.T) {
	t.Parallel()

	app := &App{now: func() time.Time { return testNow }}
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: "2024-03-10"},
		{in: "today", want: "2024-03-10"},
		{in: " 2024-02-29 ", want: "2024-02-29"},
		{in: "2024-02-30", wantErr: true},
		{in: "10/03/2024", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseDateFlag(app, tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("parseDateFlag(%q) = %q, %v", tt.in, got, err)
		}
	}
}
