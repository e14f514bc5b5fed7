package storage

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/hammamikhairi/talkbox/internal/domain"
	"github.com/hammamikhairi/talkbox/internal/logger"
)

func quiet() *logger.Logger { return logger.New(logger.LevelOff, nil) }

// kvContract runs the same checks against every KV backend.
func kvContract(t *testing.T, kv domain.KV) {
	t.Helper()

	// Missing.
	if _, err := kv.Get("voice_asst", "session_id"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Put / Get.
	if err := kv.Put("voice_asst", "session_id", "abc"); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, err := kv.Get("voice_asst", "session_id")
	if err != nil || v != "abc" {
		t.Fatalf("get = %q, %v", v, err)
	}

	// Overwrite.
	if err := kv.Put("voice_asst", "session_id", "def"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if v, _ := kv.Get("voice_asst", "session_id"); v != "def" {
		t.Fatalf("after overwrite got %q", v)
	}

	// Namespaces are separate.
	if _, err := kv.Get("other", "session_id"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("namespace leak: %v", err)
	}
}

func TestMemoryKV(t *testing.T) {
	kvContract(t, NewMemoryKV(quiet()))
}

func TestBoltKV(t *testing.T) {
	dir := t.TempDir()
	kv, err := OpenBoltKV(dir, quiet())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	kvContract(t, kv)
	if err := kv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopen: the value survived.
	kv, err = OpenBoltKV(dir, quiet())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer kv.Close()
	if v, err := kv.Get("voice_asst", "session_id"); err != nil || v != "def" {
		t.Fatalf("after reopen = %q, %v", v, err)
	}
}

func TestSessionStoreUpdate(t *testing.T) {
	kv := NewMemoryKV(quiet())
	s := NewSessionStore(kv, quiet())
	if err := s.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Current() != "" {
		t.Fatalf("expected empty session, got %q", s.Current())
	}

	tests := []struct {
		id      string
		changed bool
		want    string
	}{
		{"", false, ""},
		{"abc", true, "abc"},
		{"abc", false, "abc"},
		{strings.Repeat("x", 65), false, "abc"},
		{"bad\nid", false, "abc"},
		{strings.Repeat("y", 64), true, strings.Repeat("y", 64)},
	}
	for _, tt := range tests {
		changed, err := s.Update(tt.id)
		if err != nil {
			t.Fatalf("update %q: %v", tt.id, err)
		}
		if changed != tt.changed || s.Current() != tt.want {
			t.Fatalf("update %q: changed=%v current=%q", tt.id, changed, s.Current())
		}
	}
}

func TestSessionSurvivesReboot(t *testing.T) {
	dir := t.TempDir()
	kv, err := OpenBoltKV(dir, quiet())
	if err != nil {
		t.Fatal(err)
	}
	s := NewSessionStore(kv, quiet())
	if _, err := s.Update("abc"); err != nil {
		t.Fatal(err)
	}
	kv.Close()

	kv, err = OpenBoltKV(dir, quiet())
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()
	s = NewSessionStore(kv, quiet())
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	if s.Current() != "abc" {
		t.Fatalf("after reboot session = %q", s.Current())
	}
}

func TestDeviceID(t *testing.T) {
	kv := NewMemoryKV(quiet())

	id, err := DeviceID(kv, "", quiet())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("generated id %q is not a uuid: %v", id, err)
	}
	again, _ := DeviceID(kv, "", quiet())
	if again != id {
		t.Fatalf("device id changed: %q then %q", id, again)
	}
	if got, _ := DeviceID(kv, "bench-1", quiet()); got != "bench-1" {
		t.Fatalf("override ignored: %q", got)
	}
}

func TestResponseStoreOverwrite(t *testing.T) {
	s := NewResponseStore(t.TempDir(), domain.ResponseFile, quiet())
	if err := s.Reset(); err != nil {
		t.Fatalf("reset on empty dir: %v", err)
	}

	write := func(data string) {
		t.Helper()
		f, err := s.Create()
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(f, data); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}

	write(strings.Repeat("a", 500))
	write(strings.Repeat("b", 200))
	if s.Size() != 200 {
		t.Fatalf("size after second write = %d", s.Size())
	}
	b, _ := os.ReadFile(s.Path())
	if strings.Contains(string(b), "a") {
		t.Fatal("bytes of the first reply leaked into the second")
	}

	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}
	if s.Size() != 0 {
		t.Fatal("reset left the file behind")
	}
}
