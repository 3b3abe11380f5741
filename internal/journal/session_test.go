package journal

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"treno/internal/gesture"
	"treno/internal/imaging"
	"treno/internal/model"
	"treno/internal/persist"
	"treno/internal/records"
	"treno/internal/store"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	s   *Session
	kv  *store.Memory
	clk *fakeClock
}

func newFixture(t *testing.T, quota int64, seed model.Records, opts Options) fixture {
	t.Helper()
	ctx := context.Background()
	kv := store.NewMemory(quota)
	if seed != nil {
		if err := persist.New(kv, persist.Options{}).SaveRecords(ctx, seed); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	clk := &fakeClock{t: time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)}
	opts.Now = clk.Now
	return fixture{s: Open(ctx, kv, opts), kv: kv, clk: clk}
}

func seedDay(key string, parts ...string) model.Records {
	recs := make([]model.WorkoutRecord, 0, len(parts))
	for _, p := range parts {
		recs = append(recs, model.WorkoutRecord{Part: p, Color: "#2ecc71", Note: "<p>" + p + "</p>", Images: []string{}})
	}
	return model.Records{key: {Records: recs}}
}

func stored(t *testing.T, kv store.KV) (model.Records, model.EditBuffers) {
	t.Helper()
	return persist.New(kv, persist.Options{}).Load(context.Background())
}

func TestSave_ValidationAndCommit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, 0, nil, Options{})

	f.s.StartAdd()
	err := f.s.Save(ctx)
	if !errors.Is(err, records.ErrEmptyRecord) {
		t.Fatalf("Save on empty form = %v, want ErrEmptyRecord", err)
	}
	if alerts := f.s.DrainAlerts(); !reflect.DeepEqual(alerts, []string{records.ErrEmptyRecord.Error()}) {
		t.Fatalf("alerts = %v", alerts)
	}
	if f.s.Mode() != ModeForm {
		t.Fatalf("failed save should keep the form open")
	}

	f.s.SetPart(ctx, "chest")
	if err := f.s.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if f.s.Mode() != ModeCalendar {
		t.Fatalf("mode = %v, want calendar", f.s.Mode())
	}

	recs, bufs := stored(t, f.kv)
	want := model.Records{"2024-03-10": {Records: []model.WorkoutRecord{{Part: "chest", Color: model.DefaultColor, Note: model.EmptyNote, Images: []string{}}}}}
	if !reflect.DeepEqual(recs, want) {
		t.Fatalf("stored records:\n got: %#v\nwant: %#v", recs, want)
	}
	if len(bufs) != 0 {
		t.Fatalf("draft should be dropped on save, got %#v", bufs)
	}
}

func TestSave_UpdatesInPlace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, 0, seedDay("2024-03-10", "back", "legs"), Options{})

	if err := f.s.StartEdit(1); err != nil {
		t.Fatalf("StartEdit: %v", err)
	}
	v := f.s.View()
	if v.Form == nil || v.Form.Index != 1 || v.Form.Part != "legs" || v.Form.Note != "<p>legs</p>" {
		t.Fatalf("form = %#v", v.Form)
	}
	f.s.SetPart(ctx, "squats")
	if err := f.s.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got := f.s.Records()["2024-03-10"].Records
	if len(got) != 2 || got[0].Part != "back" || got[1].Part != "squats" {
		t.Fatalf("records = %#v", got)
	}
}

func TestEditBuffer_AutosaveAndRestore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, 0, nil, Options{})

	f.s.StartAdd()
	f.s.SetPart(ctx, "legs")
	if err := f.s.SetColor(ctx, "blue"); err != nil {
		t.Fatalf("SetColor: %v", err)
	}
	if err := f.s.SetColor(ctx, "teal"); !errors.Is(err, ErrUnknownColor) {
		t.Fatalf("SetColor(teal) = %v", err)
	}
	f.s.InputNote(ctx, "<p>squat 100</p><script>x</script>")
	f.s.Back()

	_, bufs := stored(t, f.kv)
	want := model.EditBuffer{Part: "legs", Note: "<p>squat 100</p>", Color: "#1A2996"}
	if bufs["2024-03-10"] != want {
		t.Fatalf("stored draft = %#v", bufs["2024-03-10"])
	}

	f.s.StartAdd()
	v := f.s.View()
	if v.Form.Part != "legs" || v.Form.Color != "#1A2996" || v.Form.Note != "<p>squat 100</p>" {
		t.Fatalf("restored form = %#v", v.Form)
	}
}

func TestEditBuffer_NotWrittenWhenFormOpens(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0, seedDay("2024-03-10", "back"), Options{})

	f.s.StartAdd()
	_ = f.s.StartEdit(0)
	if _, ok, _ := f.kv.Get(context.Background(), persist.KeyEditBuffers); ok {
		t.Fatalf("opening a form should not write a draft")
	}
}

func TestComposition_DefersInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, 0, nil, Options{})

	f.s.StartAdd()
	rev := f.s.View().Form.NoteRevision

	f.s.CompositionStart()
	f.s.InputNote(ctx, "<p>ka</p>")
	if got := f.s.View().Form.Note; got != "" {
		t.Fatalf("input during composition should be ignored, note = %q", got)
	}
	f.s.CompositionEnd(ctx, "<p>kanji</p>")
	v := f.s.View()
	if v.Form.Note != "<p>kanji</p>" || v.Form.Composing {
		t.Fatalf("after composition: %#v", v.Form)
	}
	if v.Form.NoteRevision != rev {
		t.Fatalf("typed input must not bump the revision")
	}

	f.s.PasteNote(ctx, "", "a\nb", "")
	v = f.s.View()
	if v.Form.Note != "<p>kanji</p>a<br>b" {
		t.Fatalf("after paste note = %q", v.Form.Note)
	}
	if v.Form.NoteRevision == rev {
		t.Fatalf("paste should bump the revision")
	}
}

func TestImages_CapAndErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fail := false
	proc := func(ctx context.Context, r io.Reader) (string, error) {
		if fail {
			return "", imaging.ErrDecode
		}
		b, _ := io.ReadAll(r)
		return "data:image/jpeg;base64," + string(b), nil
	}
	f := newFixture(t, 0, nil, Options{Images: proc})
	f.s.StartAdd()

	for _, name := range []string{"a", "b", "c"} {
		if err := f.s.AddImage(ctx, strings.NewReader(name)); err != nil {
			t.Fatalf("AddImage(%s): %v", name, err)
		}
	}
	if err := f.s.AddImage(ctx, strings.NewReader("d")); !errors.Is(err, records.ErrTooManyImages) {
		t.Fatalf("4th AddImage = %v", err)
	}
	if got := f.s.View().Form.Images; len(got) != 3 || got[2] != "data:image/jpeg;base64,c" {
		t.Fatalf("images = %v", got)
	}

	fail = true
	if err := f.s.AddImage(ctx, strings.NewReader("x")); !errors.Is(err, imaging.ErrDecode) {
		t.Fatalf("AddImage with broken image = %v", err)
	}
	want := []string{records.ErrTooManyImages.Error(), msgImageLoadFailed}
	if got := f.s.DrainAlerts(); !reflect.DeepEqual(got, want) {
		t.Fatalf("alerts = %v, want %v", got, want)
	}

	f.s.RemoveImage(0)
	if got := f.s.View().Form.Images; len(got) != 2 || got[0] != "data:image/jpeg;base64,b" {
		t.Fatalf("after remove = %v", got)
	}
}

func TestStorageAlertsAreThrottled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, 8, nil, Options{})

	f.s.StartAdd()
	f.s.SetPart(ctx, "a")
	f.s.SetPart(ctx, "b")
	if got := f.s.DrainAlerts(); len(got) != 1 {
		t.Fatalf("alerts = %v, want exactly one", got)
	}
	f.clk.Advance(persist.WarnCooldown)
	f.s.SetPart(ctx, "c")
	if got := f.s.DrainAlerts(); len(got) != 1 {
		t.Fatalf("alerts after cooldown = %v", got)
	}
	if f.s.View().Form.Part != "c" {
		t.Fatalf("in-memory state stays authoritative when storage fails")
	}
}

func touch(id int, x float64, at time.Time) gesture.Event {
	return gesture.Event{Source: gesture.SourcePointer, PointerID: id, Device: gesture.DeviceTouch, X: x, Y: 10, HasPos: true, Time: at}
}

func TestGestures_TapEditsAndSwipeOpens(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0, seedDay("2024-03-10", "back", "legs"), Options{})

	f.s.PointerDown(0, touch(1, 200, f.clk.t))
	f.s.PointerMove(touch(1, 150, f.clk.t))
	if got := f.s.Release(0, touch(1, 150, f.clk.t)); got != gesture.OutcomeSwipeEnd {
		t.Fatalf("Release = %v", got)
	}
	v := f.s.View()
	if v.Cards[0].State != gesture.StateOpen || v.Cards[0].Offset != -gesture.ActionWidth {
		t.Fatalf("card 0 = %+v", v.Cards[0])
	}

	f.s.TapOutside()
	if f.s.View().Cards[0].State != gesture.StateClosed {
		t.Fatalf("tap outside should close the card")
	}

	f.clk.Advance(time.Second)
	f.s.PointerDown(1, touch(2, 100, f.clk.t))
	if got := f.s.Release(1, touch(2, 100, f.clk.t)); got != gesture.OutcomeEdit {
		t.Fatalf("tap = %v, want edit", got)
	}
	v = f.s.View()
	if v.Mode != ModeForm || v.Form.Index != 1 || v.Form.Part != "legs" {
		t.Fatalf("tap should open the form on record 1: %#v", v.Form)
	}
}

func TestSelectDateClosesOpenCard(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0, seedDay("2024-03-10", "back"), Options{})

	f.s.PointerDown(0, touch(1, 200, f.clk.t))
	f.s.PointerMove(touch(1, 100, f.clk.t))
	f.s.Release(0, touch(1, 100, f.clk.t))
	f.s.SelectDate(time.Date(2024, 3, 10, 15, 0, 0, 0, time.Local))
	if f.s.View().Cards[0].State != gesture.StateClosed {
		t.Fatalf("selecting a date should close the open card")
	}
}

func TestDelete_CancelAndConfirm(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, 0, seedDay("2024-03-10", "back"), Options{})

	if err := f.s.RequestDelete(0); err != nil {
		t.Fatalf("RequestDelete: %v", err)
	}
	v := f.s.View()
	want := DeleteTarget{DateKey: "2024-03-10", Index: 0, SwipeID: "2024-03-10-0", DateLabel: "Mar 10, 2024"}
	if v.Delete == nil || *v.Delete != want {
		t.Fatalf("pending target = %#v", v.Delete)
	}
	f.s.CancelDelete()
	if f.s.View().Delete != nil || len(f.s.Records()["2024-03-10"].Records) != 1 {
		t.Fatalf("cancel must not mutate records")
	}

	if err := f.s.RequestDelete(3); !errors.Is(err, ErrNoRecord) {
		t.Fatalf("RequestDelete(3) = %v", err)
	}

	_ = f.s.RequestDelete(0)
	if err := f.s.ConfirmDelete(ctx); err != nil {
		t.Fatalf("ConfirmDelete: %v", err)
	}
	if _, ok := f.s.Records()["2024-03-10"]; ok {
		t.Fatalf("deleting the last record should remove the date")
	}
	recs, _ := stored(t, f.kv)
	if len(recs) != 0 {
		t.Fatalf("stored records = %#v", recs)
	}
	if err := f.s.ConfirmDelete(ctx); err != nil {
		t.Fatalf("ConfirmDelete without target = %v", err)
	}
}

func TestDelete_ResetsFormEditingThatRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, 0, seedDay("2024-03-10", "back", "legs"), Options{})

	_ = f.s.StartEdit(1)
	f.s.SetPart(ctx, "draft")
	_ = f.s.RequestDelete(1)
	if err := f.s.ConfirmDelete(ctx); err != nil {
		t.Fatalf("ConfirmDelete: %v", err)
	}
	v := f.s.View()
	if v.Mode != ModeCalendar || v.Form != nil {
		t.Fatalf("expected calendar view after deleting the edited record, got %v %#v", v.Mode, v.Form)
	}
	if _, ok := f.s.EditBuffers()["2024-03-10"]; ok {
		t.Fatalf("deleting a record drops its date's draft")
	}

	f.s.StartAdd()
	v = f.s.View()
	if v.Form.Part != "" || v.Form.Color != model.DefaultColor || v.Form.Note != "" || len(v.Form.Images) != 0 {
		t.Fatalf("form not reset: %#v", v.Form)
	}
}

func TestDelete_OtherRecordKeepsForm(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, 0, seedDay("2024-03-10", "back", "legs"), Options{})

	_ = f.s.StartEdit(1)
	if err := f.s.Delete(ctx, "2024-03-10", 0); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if f.s.Mode() != ModeForm {
		t.Fatalf("deleting another record should keep the form open")
	}
}

func TestCommit_NormalizesRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, 0, nil, Options{})

	rec := model.WorkoutRecord{Part: "arms", Note: "<script>x</script>"}
	if err := f.s.Commit(ctx, "2024-01-02", nil, rec); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got := f.s.Records()["2024-01-02"].Records[0]
	want := model.WorkoutRecord{Part: "arms", Color: model.DefaultColor, Note: model.EmptyNote, Images: []string{}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("record = %#v", got)
	}

	idx := 4
	if err := f.s.Commit(ctx, "2024-01-02", &idx, rec); !errors.Is(err, records.ErrIndexOutOfRange) {
		t.Fatalf("Commit out of range = %v", err)
	}
}

// gatedPersister blocks the first SaveRecords call until release is closed
// and remembers the last mapping written.
type gatedPersister struct {
	entered chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
	last  model.Records
}

func (p *gatedPersister) SaveRecords(_ context.Context, recs model.Records) error {
	p.mu.Lock()
	p.calls++
	first := p.calls == 1
	p.mu.Unlock()
	if first {
		close(p.entered)
		<-p.release
	}
	p.mu.Lock()
	p.last = recs
	p.mu.Unlock()
	return nil
}

func (p *gatedPersister) SaveEditBuffers(context.Context, model.EditBuffers) error { return nil }

func TestCommit_ConcurrentWritesLandInOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	p := &gatedPersister{entered: make(chan struct{}), release: make(chan struct{})}
	s := New(p, model.Records{}, model.EditBuffers{}, Options{})

	first := make(chan error, 1)
	go func() { first <- s.Commit(ctx, "2024-03-10", nil, model.WorkoutRecord{Part: "first"}) }()
	<-p.entered

	second := make(chan error, 1)
	go func() { second <- s.Commit(ctx, "2024-03-10", nil, model.WorkoutRecord{Part: "second"}) }()
	// Let the second commit get as far as it can while the first write is stuck.
	time.Sleep(20 * time.Millisecond)
	close(p.release)

	if err := <-first; err != nil {
		t.Fatalf("first Commit: %v", err)
	}
	if err := <-second; err != nil {
		t.Fatalf("second Commit: %v", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if got := len(p.last["2024-03-10"].Records); got != 2 {
		t.Fatalf("last written mapping has %d records, want 2", got)
	}
	if got := len(s.Records()["2024-03-10"].Records); got != 2 {
		t.Fatalf("in-memory records = %d, want 2", got)
	}
}

func TestSubscribe(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0, nil, Options{})

	ch, cancel := f.s.Subscribe()
	f.s.ChangeMonth(1)
	select {
	case <-ch:
	default:
		t.Fatalf("expected a change signal")
	}
	if got := model.FormatDateKey(f.s.Selected()); got != "2024-04-10" {
		t.Fatalf("selected = %s", got)
	}

	cancel()
	f.s.ChangeMonth(-1)
	select {
	case <-ch:
		t.Fatalf("no signal expected after cancel")
	default:
	}
}
