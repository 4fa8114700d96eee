// Package state persists the scheduler's run state in a key-value
// property store with string values. The backend is DSN-selected:
// Postgres for postgres:// DSNs, SQLite (modernc, cgo-free) for
// everything else, plus an in-memory store for tests.
package state

import "context"

// PropertyStore is the durable string key-value store behind RunState.
type PropertyStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Memory is the in-memory PropertyStore used by tests.
type Memory struct {
	m map[string]string
}

func NewMemory() *Memory {
	return &Memory{m: make(map[string]string)}
}

func (s *Memory) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *Memory) Set(_ context.Context, key, value string) error {
	s.m[key] = value
	return nil
}

func (s *Memory) Delete(_ context.Context, key string) error {
	delete(s.m, key)
	return nil
}

func (s *Memory) Close() error { return nil }
