package store

import (
	"context"
	"sort"
	"sync"
)

type Memory struct {
	mu    sync.RWMutex
	quota int64
	m     map[string]string
}

func NewMemory(quotaBytes int64) *Memory {
	return &Memory{quota: quotaBytes, m: map[string]string{}}
}

func (s *Memory) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *Memory) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var used int64
	for k, v := range s.m {
		if k != key {
			used += entrySize(k, v)
		}
	}
	if err := checkQuota(s.quota, used, key, value); err != nil {
		return err
	}
	s.m[key] = value
	return nil
}

func (s *Memory) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}

func (s *Memory) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.m))
	for k := range s.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Memory) Close() error { return nil }
