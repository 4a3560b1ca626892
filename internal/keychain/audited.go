package keychain

import (
	"fmt"
	"log/slog"

	"github.com/benaskins/credmock/internal/audit"
)

// AuditedStore wraps a Store and writes an audit entry for every operation.
type AuditedStore struct {
	inner  Store
	audit  *audit.Logger
	actor  string // "cli", "scenario", "test"
	logger *slog.Logger
}

// NewAuditedStore wraps an existing store with audit logging.
func NewAuditedStore(inner Store, auditLog *audit.Logger, actor string) *AuditedStore {
	return &AuditedStore{
		inner:  inner,
		audit:  auditLog,
		actor:  actor,
		logger: slog.With("component", "keychain"),
	}
}

func (s *AuditedStore) FindSecret(service, account string) ([]byte, error) {
	val, err := s.inner.FindSecret(service, account)
	s.log(audit.ActionFind, service, account, err)
	if err != nil {
		return nil, fmt.Errorf("audited store find %s/%s: %w", service, account, err)
	}
	return val, nil
}

func (s *AuditedStore) AddSecret(service, account string, secret []byte) error {
	err := s.inner.AddSecret(service, account, secret)
	s.log(audit.ActionAdd, service, account, err)
	if err != nil {
		return fmt.Errorf("audited store add %s/%s: %w", service, account, err)
	}
	return nil
}

func (s *AuditedStore) EncryptionPassword() []byte {
	val := s.inner.EncryptionPassword()
	s.log(audit.ActionEncryptionPassword, "", "", nil)
	return val
}

// log is best-effort: a failure to write the audit entry never fails the
// operation.
func (s *AuditedStore) log(action audit.Action, service, account string, opErr error) {
	entry := audit.Entry{
		Action:  action,
		Service: service,
		Account: account,
		Actor:   s.actor,
	}
	if opErr != nil {
		entry.Error = opErr.Error()
		st, ok := StatusOf(opErr)
		if !ok {
			st = StatusUnknown
		}
		entry.Status = int32(st)
	}
	if err := s.audit.Log(entry); err != nil {
		s.logger.Warn("audit log write failed", "action", action, "error", err)
	}
}
