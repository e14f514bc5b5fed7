// Package storage provides the endpoint's persistent state: the
// non-volatile key/value area holding the session id, and the single
// response audio file.
package storage

import (
	"sync"

	"github.com/hammamikhairi/talkbox/internal/domain"
	"github.com/hammamikhairi/talkbox/internal/logger"
)

// Compile-time interface check.
var _ domain.KV = (*MemoryKV)(nil)

// MemoryKV is a volatile key/value area. It backs tests and -ephemeral
// runs. Safe for concurrent access.
type MemoryKV struct {
	mu     sync.RWMutex
	spaces map[string]map[string]string
	log    *logger.Logger
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV(log *logger.Logger) *MemoryKV {
	return &MemoryKV{
		spaces: make(map[string]map[string]string),
		log:    log,
	}
}

// Get returns the value under namespace/key.
func (s *MemoryKV) Get(namespace, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.spaces[namespace][key]
	if !ok {
		s.log.Debug("kv miss: %s/%s", namespace, key)
		return "", domain.ErrNotFound
	}
	return v, nil
}

// Put stores value under namespace/key. Overwrites if it already exists.
func (s *MemoryKV) Put(namespace, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.spaces[namespace]
	if !ok {
		ns = make(map[string]string)
		s.spaces[namespace] = ns
	}
	ns[key] = value
	s.log.Debug("kv put: %s/%s (%d bytes)", namespace, key, len(value))
	return nil
}

// Close is a no-op; the contents stay readable.
func (s *MemoryKV) Close() error { return nil }
