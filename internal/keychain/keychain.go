// Package keychain models a platform credential store and provides test
// doubles for it.
//
// Items are generic passwords addressed by a (service, account) pair:
//   - Service: the owning application (e.g. "com.example.wallet")
//   - Account: the item name within that service (e.g. "alice")
//
// MockStore is a configurable stand-in for unit tests, MemoryStore is a
// stateful in-memory fake, and SystemStore talks to the macOS Keychain.
// All of them satisfy Store, so code under test can be handed any of them.
package keychain

import "errors"

var (
	// ErrNotFound matches any StatusError carrying StatusItemNotFound.
	ErrNotFound = errors.New("secret not found")

	// ErrEmptySecret is wrapped by the panic raised when AddSecret is given
	// a zero-length secret.
	ErrEmptySecret = errors.New("secret must not be empty")
)

const (
	// EncryptionService and EncryptionAccount address the item that holds
	// the store-wide encryption password.
	EncryptionService = "com.credmock.encryption"
	EncryptionAccount = "encryption-password"
)

// Store is the operation surface shared by every credential store.
type Store interface {
	FindSecret(service, account string) ([]byte, error)
	AddSecret(service, account string, secret []byte) error
	EncryptionPassword() []byte
}
