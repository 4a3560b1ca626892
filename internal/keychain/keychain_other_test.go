//go:build !darwin

package keychain

import (
	"errors"
	"testing"

	"github.com/benaskins/credmock/internal/metrics"
)

func TestSystemStoreFallsBackToMemory(t *testing.T) {
	var c metrics.Counter
	s := NewSystemStore(&c)

	if _, err := s.FindSecret("svc", "user"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.AddSecret("svc", "user", []byte("v")); err != nil {
		t.Fatalf("AddSecret: %v", err)
	}
	if val, _ := s.FindSecret("svc", "user"); string(val) != "v" {
		t.Errorf("expected 'v', got %q", val)
	}
	if c.Count() != 3 {
		t.Errorf("expected 3 events, got %d", c.Count())
	}
}
