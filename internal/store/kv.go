package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultQuotaBytes matches the per-origin budget browsers give local storage.
const DefaultQuotaBytes int64 = 5 * 1024 * 1024

var ErrQuotaExceeded = errors.New("storage quota exceeded")

// KV is a string-keyed, string-valued store. Implementations must leave the
// previous value in place when Set fails.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendFiles  Backend = "files"
	BackendMemory Backend = "memory"
)

func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return BackendSQLite, nil
	case BackendSQLite, BackendFiles, BackendMemory:
		return b, nil
	default:
		return "", fmt.Errorf("unknown storage backend: %s (expected sqlite|files|memory)", s)
	}
}

type Options struct {
	Backend Backend
	Dir     string
	// QuotaBytes caps len(key)+len(value) summed over all keys; 0 disables it.
	QuotaBytes int64
}

func Open(ctx context.Context, opts Options) (KV, error) {
	backend, err := ParseBackend(string(opts.Backend))
	if err != nil {
		return nil, err
	}
	switch backend {
	case BackendMemory:
		return NewMemory(opts.QuotaBytes), nil
	case BackendFiles:
		return OpenFiles(opts.Dir, opts.QuotaBytes)
	default:
		return OpenSQLite(ctx, opts.Dir, opts.QuotaBytes)
	}
}

func entrySize(key, value string) int64 {
	return int64(len(key) + len(value))
}

func checkQuota(quota, usedByOthers int64, key, value string) error {
	if quota <= 0 {
		return nil
	}
	if need := usedByOthers + entrySize(key, value); need > quota {
		return fmt.Errorf("set %s: %w (%d of %d bytes)", key, ErrQuotaExceeded, need, quota)
	}
	return nil
}
