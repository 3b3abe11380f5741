package store

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const fileValueSuffix = ".value"

// Files keeps one file per key under Dir. Writes go through a temp file and
// a rename so a crash never leaves a half-written value behind.
type Files struct {
	Dir string

	mu    sync.Mutex
	quota int64
}

func OpenFiles(dir string, quotaBytes int64) (*Files, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("files store: dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Files{Dir: filepath.Clean(dir), quota: quotaBytes}, nil
}

func (s *Files) path(key string) string {
	return filepath.Join(s.Dir, url.PathEscape(key)+fileValueSuffix)
}

func (s *Files) Get(_ context.Context, key string) (string, bool, error) {
	b, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(b), true, nil
}

func (s *Files) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quota > 0 {
		used, err := s.usedExcept(ctx, key)
		if err != nil {
			return err
		}
		if err := checkQuota(s.quota, used, key, value); err != nil {
			return err
		}
	}
	return AtomicWriteFile(s.Dir, "kv.*.tmp", s.path(key), []byte(value), 0o600)
}

func (s *Files) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Files) Keys(_ context.Context) ([]string, error) {
	ents, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileValueSuffix) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, fileValueSuffix))
		if err != nil {
			continue
		}
		out = append(out, key)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Files) Close() error { return nil }

func (s *Files) usedExcept(ctx context.Context, key string) (int64, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return 0, err
	}
	var used int64
	for _, k := range keys {
		if k == key {
			continue
		}
		st, err := os.Stat(s.path(k))
		if err != nil {
			continue
		}
		used += int64(len(k)) + st.Size()
	}
	return used, nil
}
