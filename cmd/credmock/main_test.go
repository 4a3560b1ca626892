package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benaskins/credmock/internal/audit"
	"github.com/benaskins/credmock/internal/config"
	"github.com/benaskins/credmock/internal/keychain"
)

const scenarioDir = "../../internal/scenario/testdata"

func TestNewTelemetryBuildsSinks(t *testing.T) {
	auditPath := filepath.Join(t.TempDir(), "audit.log")
	tel, err := newTelemetry(&config.Config{
		AuditLog: auditPath,
		Sinks:    []string{config.SinkCounter, config.SinkPrometheus, config.SinkAudit},
	})
	require.NoError(t, err)
	defer tel.Close()

	require.NotNil(t, tel.counter)
	require.NotNil(t, tel.registry)
	require.NotNil(t, tel.audit)

	mock, store := newMock(tel, keychain.StatusSuccess)
	_, err = store.FindSecret("svc", "user")
	require.NoError(t, err)
	assert.False(t, mock.AddCalled())
	assert.Equal(t, int64(1), tel.counter.Count())

	families, err := tel.registry.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, float64(1), families[0].GetMetric()[0].GetCounter().GetValue())

	data, err := os.ReadFile(auditPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// one credential_access from the sink, one credential_find from the wrapper
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], string(audit.ActionAccess))
	assert.Contains(t, lines[1], string(audit.ActionFind))
}

func TestNewTelemetryEmpty(t *testing.T) {
	tel, err := newTelemetry(&config.Config{})
	require.NoError(t, err)
	defer tel.Close()

	mock, store := newMock(tel, keychain.StatusItemNotFound)
	assert.Same(t, mock, store)

	_, err = store.FindSecret("svc", "user")
	assert.ErrorIs(t, err, keychain.ErrNotFound)
}

func TestNewTelemetryRejectsInvalidConfig(t *testing.T) {
	tests := map[string]*config.Config{
		"audit sink without log": {Sinks: []string{config.SinkAudit}},
		"unknown sink":           {Sinks: []string{"statsd"}},
	}
	for name, c := range tests {
		t.Run(name, func(t *testing.T) {
			tel, err := newTelemetry(c)
			assert.Error(t, err)
			assert.Nil(t, tel)
		})
	}
}

func TestRunOnceTestdata(t *testing.T) {
	cfg = &config.Config{}
	t.Cleanup(func() { cfg = nil })

	assert.NoError(t, runOnce([]string{scenarioDir}, true))
}

func TestRunOnceReportsFailures(t *testing.T) {
	cfg = &config.Config{}
	t.Cleanup(func() { cfg = nil })

	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := "name: bad\nsteps:\n  - op: find\n    expect:\n      status: -1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	err := runOnce([]string{path}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 scenario(s) failed")
}

func TestRunOnceNoScenarios(t *testing.T) {
	cfg = &config.Config{}
	t.Cleanup(func() { cfg = nil })

	err := runOnce([]string{t.TempDir()}, true)
	assert.Error(t, err)
}

func TestReadSecretHex(t *testing.T) {
	b, err := readSecret([]string{"deadbeef"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, b)

	_, err = readSecret([]string{"xyz"})
	assert.Error(t, err)
}

func TestCommandStoreSystemFlag(t *testing.T) {
	tel, err := newTelemetry(&config.Config{})
	require.NoError(t, err)
	defer tel.Close()

	cmd := &cobra.Command{}
	cmd.Flags().Bool("system", false, "")

	mock, store := commandStore(cmd, tel, keychain.StatusSuccess)
	require.NotNil(t, mock)
	assert.Same(t, mock, store)

	require.NoError(t, cmd.Flags().Set("system", "true"))
	mock, store = commandStore(cmd, tel, keychain.StatusSuccess)
	assert.Nil(t, mock)
	assert.NotNil(t, store)
}

func TestWatchScenariosSerializesReruns(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var active, maxActive, runs atomic.Int32
	done := make(chan struct{}, 2)
	rerun := func() {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(3 * watcherDebounce)
		active.Add(-1)
		runs.Add(1)
		done <- struct{}{}
	}

	watchErr := make(chan error, 1)
	go func() { watchErr <- watchScenarios(ctx, []string{dir}, rerun) }()
	time.Sleep(200 * time.Millisecond)

	write := func(name string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("name: x\n"), 0644))
	}
	write("a.yaml")
	// let the first rerun start, then trigger a second while it is running
	time.Sleep(watcherDebounce + 300*time.Millisecond)
	write("b.yaml")

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Fatalf("timed out waiting for rerun %d", i+1)
		}
	}
	assert.Equal(t, int32(1), maxActive.Load())
	assert.Equal(t, int32(2), runs.Load())

	cancel()
	assert.NoError(t, <-watchErr)
}
