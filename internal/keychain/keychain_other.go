//go:build !darwin

package keychain

import "github.com/benaskins/credmock/internal/metrics"

// NewSystemStore returns a MemoryStore on non-darwin platforms.
// The macOS Keychain is not available outside of macOS; secrets are
// stored in memory only and will not persist across restarts.
func NewSystemStore(sink metrics.Sink) *MemoryStore {
	return NewMemoryStore(sink)
}
