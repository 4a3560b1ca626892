package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/benaskins/credmock/internal/keychain"
	"github.com/benaskins/credmock/internal/metrics"
)

// Options configure a run.
type Options struct {
	// Sink receives access events in addition to the run's own counter.
	Sink metrics.Sink
	// Wrap, if set, decorates the mock before the steps drive it (e.g. with
	// an AuditedStore). Test-control steps always go to the mock itself.
	Wrap   func(keychain.Store) keychain.Store
	Logger *slog.Logger
}

// Failure describes one step whose outcome did not match.
type Failure struct {
	Step    int // 1-based
	Op      Op
	Message string
}

func (f Failure) String() string {
	return fmt.Sprintf("step %d (%s): %s", f.Step, f.Op, f.Message)
}

// Result is the outcome of running one scenario.
type Result struct {
	Name     string
	Path     string
	Failures []Failure
	// Accesses is the number of access events the run produced.
	Accesses int64
}

// Passed reports whether every step matched its expectation.
func (r *Result) Passed() bool { return len(r.Failures) == 0 }

// Run executes sc against a fresh MockStore. Steps keep running after a
// failed expectation so a result lists every mismatch.
func Run(sc *Scenario, opts Options) *Result {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scenario", "scenario", sc.Name)

	var counter metrics.Counter
	mock := keychain.NewMockStore(keychain.WithSink(metrics.Tee(&counter, opts.Sink)))
	var store keychain.Store = mock
	if opts.Wrap != nil {
		store = opts.Wrap(mock)
	}

	res := &Result{Name: sc.Name, Path: sc.Path}
	for i, st := range sc.Steps {
		for _, msg := range runStep(mock, store, st) {
			f := Failure{Step: i + 1, Op: st.Op, Message: msg}
			logger.Debug("step failed", "step", f.Step, "op", f.Op, "reason", msg)
			res.Failures = append(res.Failures, f)
		}
	}
	res.Accesses = counter.Count()

	logger.Info("scenario finished", "passed", res.Passed(), "failures", len(res.Failures), "accesses", res.Accesses)
	return res
}

// RunAll runs each scenario with its own mock.
func RunAll(scenarios []*Scenario, opts Options) []*Result {
	results := make([]*Result, 0, len(scenarios))
	for _, sc := range scenarios {
		results = append(results, Run(sc, opts))
	}
	return results
}

func runStep(mock *keychain.MockStore, store keychain.Store, st Step) []string {
	exp := st.Expect
	if exp == nil {
		exp = &Expect{}
	}

	switch st.Op {
	case OpConfigure:
		mock.SetFindStatus(*st.Status)
		return nil

	case OpFind:
		data, err := store.FindSecret(st.Service, st.Account)
		var msgs []string
		if m := checkStatus(exp.Status, err); m != "" {
			msgs = append(msgs, m)
		}
		if err == nil && exp.Secret != nil && !bytes.Equal(data, exp.Secret) {
			msgs = append(msgs, fmt.Sprintf("secret = %x, want %x", data, []byte(exp.Secret)))
		}
		if err != nil && data != nil {
			msgs = append(msgs, "failed find returned data")
		}
		return msgs

	case OpAdd:
		out := addSecret(store, st)
		switch {
		case out.panicked != nil:
			return []string{fmt.Sprintf("add panicked: %v", out.panicked)}
		case out.violation != nil && !exp.ContractViolation:
			return []string{fmt.Sprintf("unexpected contract violation: %v", out.violation)}
		case out.violation == nil && exp.ContractViolation:
			return []string{"expected contract violation, add returned normally"}
		case out.violation != nil:
			return nil
		}
		if m := checkStatus(exp.Status, out.err); m != "" {
			return []string{m}
		}
		return nil

	case OpPassword:
		pw := store.EncryptionPassword()
		if exp.Secret != nil && !bytes.Equal(pw, exp.Secret) {
			return []string{fmt.Sprintf("password = %x, want %x", pw, []byte(exp.Secret))}
		}
		return nil

	case OpAddCalled:
		if got := mock.AddCalled(); got != *exp.AddCalled {
			return []string{fmt.Sprintf("add_called = %t, want %t", got, *exp.AddCalled)}
		}
		return nil
	}
	return []string{fmt.Sprintf("unknown op %q", st.Op)}
}

type addOutcome struct {
	err       error
	violation error // empty-secret panic
	panicked  any   // any other panic
}

// addSecret calls AddSecret, turning a panic into a value.
func addSecret(store keychain.Store, st Step) (out addOutcome) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(error); ok && errors.Is(e, keychain.ErrEmptySecret) {
			out.violation = e
			return
		}
		out.panicked = r
	}()
	out.err = store.AddSecret(st.Service, st.Account, st.Secret)
	return out
}

// checkStatus compares err's status with want, which defaults to success.
func checkStatus(want *keychain.Status, err error) string {
	expected := keychain.StatusSuccess
	if want != nil {
		expected = *want
	}
	got, ok := keychain.StatusOf(err)
	if !ok {
		return fmt.Sprintf("error %v carries no status, want %s", err, expected)
	}
	if got != expected {
		return fmt.Sprintf("status = %s, want %s", got, expected)
	}
	return ""
}
