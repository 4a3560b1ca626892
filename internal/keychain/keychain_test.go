package keychain

import (
	"bytes"
	"errors"
	"testing"

	"github.com/benaskins/credmock/internal/metrics"
)

// Unit tests use MemoryStore; no macOS Keychain interaction needed.

var _ Store = (*MemoryStore)(nil)

func testStore() *MemoryStore {
	return NewMemoryStore(nil)
}

func TestAddAndFind(t *testing.T) {
	s := testStore()

	if err := s.AddSecret("svc", "user", []byte("hello-world")); err != nil {
		t.Fatalf("AddSecret: %v", err)
	}

	val, err := s.FindSecret("svc", "user")
	if err != nil {
		t.Fatalf("FindSecret: %v", err)
	}
	if string(val) != "hello-world" {
		t.Errorf("expected 'hello-world', got %q", val)
	}
}

func TestFindNotFound(t *testing.T) {
	s := testStore()

	_, err := s.FindSecret("svc", "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if st, _ := StatusOf(err); st != StatusItemNotFound {
		t.Errorf("expected status %d, got %d", StatusItemNotFound, st)
	}
}

func TestFindIsKeyedByServiceAndAccount(t *testing.T) {
	s := testStore()

	s.AddSecret("svc-a", "user", []byte("a"))
	s.AddSecret("svc-b", "user", []byte("b"))

	if _, err := s.FindSecret("svc-a", "other"); err == nil {
		t.Error("expected error for different account")
	}
	val, _ := s.FindSecret("svc-b", "user")
	if string(val) != "b" {
		t.Errorf("expected 'b', got %q", val)
	}
}

func TestAddOverwrites(t *testing.T) {
	s := testStore()

	s.AddSecret("svc", "overwrite", []byte("first"))
	s.AddSecret("svc", "overwrite", []byte("second"))

	val, err := s.FindSecret("svc", "overwrite")
	if err != nil {
		t.Fatalf("FindSecret: %v", err)
	}
	if string(val) != "second" {
		t.Errorf("expected 'second', got %q", val)
	}
}

func TestAddCopiesInput(t *testing.T) {
	s := testStore()

	secret := []byte("original")
	s.AddSecret("svc", "user", secret)
	secret[0] = 'X'

	val, _ := s.FindSecret("svc", "user")
	if string(val) != "original" {
		t.Errorf("expected 'original', got %q", val)
	}
	val[0] = 'Y'
	again, _ := s.FindSecret("svc", "user")
	if string(again) != "original" {
		t.Errorf("stored value mutated through returned slice: %q", again)
	}
}

func TestAddEmptySecretPanics(t *testing.T) {
	s := testStore()

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrEmptySecret) {
			t.Fatalf("expected ErrEmptySecret panic, got %v", r)
		}
		if len(s.List()) != 0 {
			t.Error("empty secret must not be stored")
		}
	}()
	s.AddSecret("svc", "user", nil)
}

func TestEncryptionPasswordStable(t *testing.T) {
	s := testStore()

	first := s.EncryptionPassword()
	if len(first) != encryptionPasswordSize {
		t.Fatalf("expected %d bytes, got %d", encryptionPasswordSize, len(first))
	}
	second := s.EncryptionPassword()
	if !bytes.Equal(first, second) {
		t.Error("expected the same password on repeated calls")
	}

	stored, err := s.FindSecret(EncryptionService, EncryptionAccount)
	if err != nil {
		t.Fatalf("FindSecret: %v", err)
	}
	if !bytes.Equal(first, stored) {
		t.Error("expected the password to be stored as an item")
	}
}

func TestEncryptionPasswordUsesStoredItem(t *testing.T) {
	s := testStore()

	s.AddSecret(EncryptionService, EncryptionAccount, []byte("preset"))
	if got := s.EncryptionPassword(); string(got) != "preset" {
		t.Errorf("expected 'preset', got %q", got)
	}
}

func TestList(t *testing.T) {
	s := testStore()

	s.AddSecret("svc", "list-b", []byte("val"))
	s.AddSecret("svc", "list-a", []byte("val"))
	s.AddSecret("other", "list-c", []byte("val"))

	listed := s.List()
	want := []string{"other/list-c", "svc/list-a", "svc/list-b"}
	if len(listed) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(listed))
	}
	for i := range want {
		if listed[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, listed[i], want[i])
		}
	}
}

func TestMemoryStoreEmitsEvents(t *testing.T) {
	var c metrics.Counter
	s := NewMemoryStore(&c)

	s.AddSecret("svc", "user", []byte("v"))
	s.FindSecret("svc", "user")
	s.FindSecret("svc", "missing")
	s.EncryptionPassword()
	s.List()

	if c.Count() != 4 {
		t.Errorf("expected 4 events, got %d", c.Count())
	}
}
