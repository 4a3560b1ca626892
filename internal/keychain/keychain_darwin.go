//go:build darwin

package keychain

import (
	"errors"
	"fmt"
	"log/slog"

	gokeychain "github.com/keybase/go-keychain"

	"github.com/benaskins/credmock/internal/metrics"
)

// SystemStore reads and writes generic passwords in the macOS Keychain.
type SystemStore struct {
	sink metrics.Sink
}

// NewSystemStore creates a Keychain-backed store. A nil sink discards
// access events.
func NewSystemStore(sink metrics.Sink) *SystemStore {
	if sink == nil {
		sink = metrics.Nop
	}
	return &SystemStore{sink: sink}
}

func (s *SystemStore) FindSecret(service, account string) ([]byte, error) {
	s.sink.RecordAccess()
	data, err := gokeychain.GetGenericPassword(service, account, "", "")
	if err != nil {
		return nil, toStatusError(err)
	}
	// GetGenericPassword reports a missing item as (nil, nil).
	if data == nil {
		return nil, &StatusError{Status: StatusItemNotFound}
	}
	return data, nil
}

// AddSecret stores secret, replacing any existing item (update = delete + add).
func (s *SystemStore) AddSecret(service, account string, secret []byte) error {
	s.sink.RecordAccess()
	if len(secret) == 0 {
		panic(fmt.Errorf("keychain: add %s/%s: %w", service, account, ErrEmptySecret))
	}
	return s.put(service, account, secret)
}

// EncryptionPassword returns the stored encryption password, creating a
// random one on first use. It returns nil if the Keychain cannot be read
// or written.
func (s *SystemStore) EncryptionPassword() []byte {
	s.sink.RecordAccess()
	data, err := gokeychain.GetGenericPassword(EncryptionService, EncryptionAccount, "", "")
	if err != nil {
		slog.Error("reading encryption password", "error", err)
		return nil
	}
	if len(data) > 0 {
		return data
	}
	data = newEncryptionPassword()
	if err := s.put(EncryptionService, EncryptionAccount, data); err != nil {
		slog.Error("storing encryption password", "error", err)
		return nil
	}
	return data
}

func (s *SystemStore) put(service, account string, secret []byte) error {
	if err := gokeychain.DeleteGenericPasswordItem(service, account); err != nil &&
		!errors.Is(err, gokeychain.ErrorItemNotFound) {
		return toStatusError(err)
	}

	item := gokeychain.NewGenericPassword(service, account, fmt.Sprintf("credmock: %s", account), secret, "")
	item.SetSynchronizable(gokeychain.SynchronizableNo)
	item.SetAccessible(gokeychain.AccessibleWhenUnlockedThisDeviceOnly)

	if err := gokeychain.AddItem(item); err != nil {
		return toStatusError(err)
	}
	return nil
}

// toStatusError maps a platform keychain error to its status code. Other
// errors are returned unchanged.
func toStatusError(err error) error {
	var kerr gokeychain.Error
	if errors.As(err, &kerr) {
		return &StatusError{Status: Status(kerr)}
	}
	return err
}
