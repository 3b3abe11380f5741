package persist

import (
	"reflect"
	"testing"

	"treno/internal/model"
)

func TestMigrateRecords_LegacyArrayShape(t *testing.T) {
	t.Parallel()

	raw := `{"2024-01-01": [
		{"part":"chest","color":"#e74c3c","note":"<p>a</p>","images":[]},
		{"part":"legs","color":"#2ecc71","note":"<p>b</p>"}
	]}`
	got, err := MigrateRecords([]byte(raw))
	if err != nil {
		t.Fatalf("MigrateRecords: %v", err)
	}
	want := model.Records{
		"2024-01-01": {Records: []model.WorkoutRecord{
			{Part: "chest", Color: "#e74c3c", Note: "<p>a</p>", Images: []string{}},
			{Part: "legs", Color: "#2ecc71", Note: "<p>b</p>", Images: []string{}},
		}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("migrated mismatch:\n got: %#v\nwant: %#v", got, want)
	}
}

func TestMigrateRecords_MixedAndMalformed(t *testing.T) {
	t.Parallel()

	raw := `{
		"2024-01-01": {"records": [{"part":"back"}]},
		"2024-01-02": "not an array",
		"2024-01-03": 42,
		"2024-01-04": {"records": "nope"},
		"2024-01-05": {"other": []},
		"2024-01-06": [],
		"2024-01-07": [1, "x", null, {"part": 5}, {"part":"arms"}],
		"2024-01-08": null
	}`
	got, err := MigrateRecords([]byte(raw))
	if err != nil {
		t.Fatalf("MigrateRecords: %v", err)
	}
	want := model.Records{
		"2024-01-01": {Records: []model.WorkoutRecord{{Part: "back", Images: []string{}}}},
		"2024-01-07": {Records: []model.WorkoutRecord{{Part: "arms", Images: []string{}}}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("migrated mismatch:\n got: %#v\nwant: %#v", got, want)
	}
}

func TestMigrateRecords_NonObjectTopLevel(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`[]`, `"str"`, `null`, `7`} {
		got, err := MigrateRecords([]byte(raw))
		if err != nil {
			t.Fatalf("MigrateRecords(%s): unexpected error %v", raw, err)
		}
		if len(got) != 0 {
			t.Fatalf("MigrateRecords(%s) = %#v; want empty", raw, got)
		}
	}
}

func TestMigrateRecords_CorruptJSON(t *testing.T) {
	t.Parallel()

	if _, err := MigrateRecords([]byte(`{"2024-01-01": [`)); err == nil {
		t.Fatalf("expected syntax error")
	}
}

func TestDecodeEditBuffers_DropsMalformed(t *testing.T) {
	t.Parallel()

	got, err := DecodeEditBuffers([]byte(`{"2024-01-01":{"part":"p","note":"n","color":"#000000"},"2024-01-02":"x","2024-01-03":{"part":1}}`))
	if err != nil {
		t.Fatalf("DecodeEditBuffers: %v", err)
	}
	want := model.EditBuffers{"2024-01-01": {Part: "p", Note: "n", Color: "#000000"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v; want %#v", got, want)
	}
}
