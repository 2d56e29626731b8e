// internal/checkpoint/store.go
package checkpoint

import (
	"context"
	"fmt"
	"sync"
)

// Store is the key-value surface the syncer needs for per-repository
// progress. Implementations must treat a missing key as absence, not an
// error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Close()
}

// Key builds the checkpoint key for a repository. The layout is shared with
// older deployments and must stay stable.
func Key(system, repo string) string {
	return fmt.Sprintf("%s-%s-pushed_at", system, repo)
}

// Memory is an in-process Store used by tests and available as a throwaway
// backend. Safe for concurrent use so the status API can read it while a
// sync cycle writes.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Close() {}
