package keychain

import (
	"fmt"

	"github.com/benaskins/credmock/internal/metrics"
)

// fixedSecret is what every successful FindSecret and every
// EncryptionPassword call on a MockStore returns.
var fixedSecret = []byte("mock-keychain-password")

// MockStore is a configurable credential store for tests.
//
// FindSecret succeeds or fails according to the status set with
// SetFindStatus, and AddSecret records that it was called. Identifiers are
// never inspected. Each production operation emits one access event to the
// configured sink; the test-control methods emit nothing.
//
// A MockStore is not safe for concurrent use. Create one per test.
type MockStore struct {
	findStatus Status
	addCalled  bool
	sink       metrics.Sink
}

// MockOption configures a MockStore.
type MockOption func(*MockStore)

// WithSink routes access events to sink.
func WithSink(sink metrics.Sink) MockOption {
	return func(m *MockStore) {
		if sink != nil {
			m.sink = sink
		}
	}
}

// WithFindStatus sets the initial find status.
func WithFindStatus(s Status) MockOption {
	return func(m *MockStore) { m.findStatus = s }
}

// NewMockStore creates a mock whose finds succeed and whose add flag is unset.
func NewMockStore(opts ...MockOption) *MockStore {
	m := &MockStore{findStatus: StatusSuccess, sink: metrics.Nop}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FindSecret returns the fixed secret when the configured status is
// StatusSuccess, and a *StatusError carrying that status otherwise.
func (m *MockStore) FindSecret(service, account string) ([]byte, error) {
	m.sink.RecordAccess()
	if m.findStatus != StatusSuccess {
		return nil, &StatusError{Status: m.findStatus}
	}
	return FixedSecret(), nil
}

// AddSecret marks the mock as added-to and reports success. It panics when
// secret is empty: that is a broken test, not a store failure.
func (m *MockStore) AddSecret(service, account string, secret []byte) error {
	m.sink.RecordAccess()
	if len(secret) == 0 {
		panic(fmt.Errorf("keychain mock: add %s/%s: %w", service, account, ErrEmptySecret))
	}
	m.addCalled = true
	return nil
}

// EncryptionPassword returns the fixed secret.
func (m *MockStore) EncryptionPassword() []byte {
	m.sink.RecordAccess()
	return FixedSecret()
}

// SetFindStatus sets the status the next FindSecret calls will report.
func (m *MockStore) SetFindStatus(s Status) {
	m.findStatus = s
}

// FindStatus returns the currently configured find status.
func (m *MockStore) FindStatus() Status {
	return m.findStatus
}

// AddCalled reports whether AddSecret has ever been called with a valid secret.
func (m *MockStore) AddCalled() bool {
	return m.addCalled
}

// FixedSecret returns a copy of the value served by every MockStore.
func FixedSecret() []byte {
	out := make([]byte, len(fixedSecret))
	copy(out, fixedSecret)
	return out
}
