package store

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func openBackends(t *testing.T, quota int64) map[string]KV {
	t.Helper()
	ctx := context.Background()

	files, err := OpenFiles(t.TempDir(), quota)
	if err != nil {
		t.Fatalf("OpenFiles: %v", err)
	}
	sq, err := OpenSQLite(ctx, t.TempDir(), quota)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })

	return map[string]KV{
		"memory": NewMemory(quota),
		"files":  files,
		"sqlite": sq,
	}
}

func TestKV_GetSetRemove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, kv := range openBackends(t, 0) {
		if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
			t.Fatalf("%s: Get(missing) = ok=%v err=%v", name, ok, err)
		}
		if err := kv.Set(ctx, "treno_records_v1", `{"a":1}`); err != nil {
			t.Fatalf("%s: Set: %v", name, err)
		}
		if err := kv.Set(ctx, "a/b key", "x"); err != nil {
			t.Fatalf("%s: Set odd key: %v", name, err)
		}
		v, ok, err := kv.Get(ctx, "treno_records_v1")
		if err != nil || !ok || v != `{"a":1}` {
			t.Fatalf("%s: Get = %q ok=%v err=%v", name, v, ok, err)
		}
		keys, err := kv.Keys(ctx)
		if err != nil {
			t.Fatalf("%s: Keys: %v", name, err)
		}
		if !reflect.DeepEqual(keys, []string{"a/b key", "treno_records_v1"}) {
			t.Fatalf("%s: Keys = %v", name, keys)
		}
		if err := kv.Remove(ctx, "a/b key"); err != nil {
			t.Fatalf("%s: Remove: %v", name, err)
		}
		if err := kv.Remove(ctx, "never-set"); err != nil {
			t.Fatalf("%s: Remove(missing): %v", name, err)
		}
		if _, ok, _ := kv.Get(ctx, "a/b key"); ok {
			t.Fatalf("%s: key still present after Remove", name)
		}
	}
}

func TestKV_QuotaKeepsPreviousValue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, kv := range openBackends(t, 64) {
		if err := kv.Set(ctx, "k", "small"); err != nil {
			t.Fatalf("%s: Set small: %v", name, err)
		}
		err := kv.Set(ctx, "k", strings.Repeat("x", 100))
		if !errors.Is(err, ErrQuotaExceeded) {
			t.Fatalf("%s: expected ErrQuotaExceeded, got %v", name, err)
		}
		v, _, _ := kv.Get(ctx, "k")
		if v != "small" {
			t.Fatalf("%s: previous value lost: %q", name, v)
		}
		// Overwriting a key does not count its old value against the quota.
		if err := kv.Set(ctx, "k", strings.Repeat("y", 60)); err != nil {
			t.Fatalf("%s: overwrite within quota: %v", name, err)
		}
	}
}

func TestParseBackend(t *testing.T) {
	t.Parallel()

	if b, err := ParseBackend(""); err != nil || b != BackendSQLite {
		t.Fatalf("default backend = %q, %v", b, err)
	}
	if b, err := ParseBackend(" Files "); err != nil || b != BackendFiles {
		t.Fatalf("ParseBackend(Files) = %q, %v", b, err)
	}
	if _, err := ParseBackend("redis"); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
