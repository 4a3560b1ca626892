package keychain

import (
	"crypto/rand"
	"fmt"
	"sort"
	"sync"

	"github.com/benaskins/credmock/internal/metrics"
)

// encryptionPasswordSize is the length of a generated encryption password.
const encryptionPasswordSize = 32

type itemKey struct {
	service, account string
}

func (k itemKey) String() string { return k.service + "/" + k.account }

// MemoryStore is an in-memory implementation of Store. Unlike MockStore it
// keeps what it is given, so tests can round-trip secrets through it.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[itemKey][]byte
	sink  metrics.Sink
}

// NewMemoryStore creates an empty in-memory store. A nil sink discards
// access events.
func NewMemoryStore(sink metrics.Sink) *MemoryStore {
	if sink == nil {
		sink = metrics.Nop
	}
	return &MemoryStore{items: make(map[itemKey][]byte), sink: sink}
}

func (s *MemoryStore) FindSecret(service, account string) ([]byte, error) {
	s.sink.RecordAccess()
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.items[itemKey{service, account}]
	if !ok {
		return nil, &StatusError{Status: StatusItemNotFound}
	}
	return clone(val), nil
}

// AddSecret stores secret, replacing any existing item. Like MockStore it
// panics on an empty secret.
func (s *MemoryStore) AddSecret(service, account string, secret []byte) error {
	s.sink.RecordAccess()
	if len(secret) == 0 {
		panic(fmt.Errorf("keychain memory store: add %s/%s: %w", service, account, ErrEmptySecret))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[itemKey{service, account}] = clone(secret)
	return nil
}

// EncryptionPassword returns the stored encryption password, generating
// and storing a random one on first use.
func (s *MemoryStore) EncryptionPassword() []byte {
	s.sink.RecordAccess()
	key := itemKey{EncryptionService, EncryptionAccount}

	s.mu.Lock()
	defer s.mu.Unlock()
	if val, ok := s.items[key]; ok {
		return clone(val)
	}
	val := newEncryptionPassword()
	s.items[key] = val
	return clone(val)
}

// List returns the "service/account" keys of all stored items, sorted.
func (s *MemoryStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)
	return keys
}

func newEncryptionPassword() []byte {
	b := make([]byte, encryptionPasswordSize)
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(b)
	return b
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
