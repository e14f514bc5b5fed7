package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hammamikhairi/talkbox/internal/domain"
	"github.com/hammamikhairi/talkbox/internal/logger"
)

// NVSFile is the database file name inside the data directory.
const NVSFile = "nvs.db"

var _ domain.KV = (*BoltKV)(nil)

// BoltKV is the non-volatile key/value area, one bbolt bucket per
// namespace. Every Put is committed before it returns, so values survive
// power loss.
type BoltKV struct {
	db  *bolt.DB
	log *logger.Logger
}

// OpenBoltKV opens (or creates) dir/nvs.db.
func OpenBoltKV(dir string, log *logger.Logger) (*BoltKV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("nvs: create %s: %w", dir, err)
	}
	path := filepath.Join(dir, NVSFile)
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("nvs: open %s: %w", path, err)
	}
	log.Debug("nvs: opened %s", path)
	return &BoltKV{db: db, log: log}, nil
}

// Get returns the value under namespace/key.
func (s *BoltKV) Get(namespace, key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return domain.ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return domain.ErrNotFound
		}
		value = string(v) // v is only valid inside the transaction
		return nil
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

// Put stores value under namespace/key.
func (s *BoltKV) Put(namespace, key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("nvs: put %s/%s: %w", namespace, key, err)
	}
	s.log.Debug("nvs: put %s/%s (%d bytes)", namespace, key, len(value))
	return nil
}

// Close releases the database file lock.
func (s *BoltKV) Close() error { return s.db.Close() }
