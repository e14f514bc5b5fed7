package storage

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/google/uuid"

	"github.com/hammamikhairi/talkbox/internal/domain"
	"github.com/hammamikhairi/talkbox/internal/logger"
)

// SessionStore caches the conversation id in RAM and mirrors it to the
// key/value area. It is read once at boot and touched only by the
// controller afterwards.
type SessionStore struct {
	kv      domain.KV
	log     *logger.Logger
	current string
}

// NewSessionStore wraps kv.
func NewSessionStore(kv domain.KV, log *logger.Logger) *SessionStore {
	return &SessionStore{kv: kv, log: log}
}

// Load reads the persisted id into RAM. A missing key is not an error.
func (s *SessionStore) Load() error {
	v, err := s.kv.Get(domain.SessionNamespace, domain.SessionKey)
	switch {
	case err == nil:
		if !ValidSessionID(v) {
			s.log.Warn("ignoring malformed stored session id (%d bytes)", len(v))
			return nil
		}
		s.current = v
		s.log.Info("loaded session: %s", v)
	case errors.Is(err, domain.ErrNotFound):
		s.log.Info("no saved session")
	default:
		return fmt.Errorf("load session: %w", err)
	}
	return nil
}

// Current returns the cached id, possibly empty.
func (s *SessionStore) Current() string { return s.current }

// Update persists id when it is non-empty, well-formed and differs from
// the cached value. It reports whether anything was written.
func (s *SessionStore) Update(id string) (bool, error) {
	if id == "" || id == s.current {
		return false, nil
	}
	if !ValidSessionID(id) {
		s.log.Warn("server sent a malformed session id (%d bytes), keeping %q", len(id), s.current)
		return false, nil
	}
	if err := s.kv.Put(domain.SessionNamespace, domain.SessionKey, id); err != nil {
		return false, fmt.Errorf("save session: %w", err)
	}
	s.current = id
	s.log.Info("saved session: %s", id)
	return true, nil
}

// ValidSessionID reports whether id fits the key/value slot: non-empty,
// at most 64 bytes, printable ASCII.
func ValidSessionID(id string) bool {
	if id == "" || len(id) > domain.MaxSessionID {
		return false
	}
	for _, r := range id {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// DeviceID returns the persisted device id, generating and storing a new
// random one on first boot. A non-empty override wins and is not stored.
func DeviceID(kv domain.KV, override string, log *logger.Logger) (string, error) {
	if override != "" {
		return override, nil
	}
	v, err := kv.Get(domain.SessionNamespace, domain.DeviceIDKey)
	if err == nil && v != "" {
		return v, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("load device id: %w", err)
	}

	id := uuid.NewString()
	if err := kv.Put(domain.SessionNamespace, domain.DeviceIDKey, id); err != nil {
		return "", fmt.Errorf("save device id: %w", err)
	}
	log.Info("generated device id %s", id)
	return id, nil
}
