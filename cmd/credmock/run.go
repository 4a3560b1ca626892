package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/benaskins/credmock/internal/keychain"
	"github.com/benaskins/credmock/internal/scenario"
)

const watcherDebounce = 500 * time.Millisecond

type runResult struct {
	Path     string   `json:"path"`
	Name     string   `json:"name"`
	Passed   bool     `json:"passed"`
	Accesses int64    `json:"accesses"`
	Failures []string `json:"failures,omitempty"`
}

var runCmd = &cobra.Command{
	Use:   "run <file-or-dir>...",
	Short: "Run scenario files against a fresh mock",
	Long:  "Load YAML scenarios from files or directories and run each one against its own mock credential store.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScenarios,
}

func init() {
	runCmd.Flags().Bool("watch", false, "Re-run scenarios when files change")
	rootCmd.AddCommand(runCmd)
}

func runScenarios(cmd *cobra.Command, args []string) error {
	watch, _ := cmd.Flags().GetBool("watch")
	jsonOut, _ := cmd.Flags().GetBool("json")

	if !watch {
		return runOnce(args, jsonOut)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := runOnce(args, jsonOut); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return watchScenarios(ctx, args, func() {
		if err := runOnce(args, jsonOut); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	})
}

func runOnce(paths []string, jsonOut bool) error {
	scs, err := scenario.LoadPaths(paths)
	if err != nil {
		return err
	}
	if len(scs) == 0 {
		return fmt.Errorf("no scenarios found in %v", paths)
	}

	tel, err := newTelemetry(cfg)
	if err != nil {
		return err
	}
	defer tel.Close()

	results := scenario.RunAll(scs, scenario.Options{
		Sink: tel.sink,
		Wrap: func(s keychain.Store) keychain.Store { return tel.wrap(s, "scenario") },
	})

	out := make([]runResult, 0, len(results))
	failed := 0
	for _, r := range results {
		rr := runResult{Path: r.Path, Name: r.Name, Passed: r.Passed(), Accesses: r.Accesses}
		for _, f := range r.Failures {
			rr.Failures = append(rr.Failures, f.String())
		}
		if !rr.Passed {
			failed++
		}
		out = append(out, rr)
	}

	if jsonOut {
		if err := printJSON(out); err != nil {
			return err
		}
	} else {
		printResults(out)
		tel.report()
	}

	if failed > 0 {
		return fmt.Errorf("%d scenario(s) failed", failed)
	}
	return nil
}

func printResults(results []runResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RESULT\tSCENARIO\tACCESSES\tFILE")
	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", status, r.Name, r.Accesses, r.Path)
	}
	w.Flush()

	for _, r := range results {
		for _, f := range r.Failures {
			fmt.Fprintf(os.Stderr, "FAIL  %s: %s\n", r.Name, f)
		}
	}
}

// watchScenarios calls rerun after scenario files change. It blocks until
// the context is cancelled.
func watchScenarios(ctx context.Context, paths []string, rerun func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, p := range paths {
		dir := p
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			dir = filepath.Dir(p)
		}
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}

	logger := slog.With("component", "watcher")
	logger.Info("watching scenarios for changes", "paths", paths)

	var debounceTimer *time.Timer
	// Held while a rerun fired from a timer goroutine is running.
	var runMu sync.Mutex

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if ext := filepath.Ext(event.Name); ext != ".yaml" && ext != ".yml" {
				continue
			}
			logger.Debug("scenario file changed", "file", event.Name, "op", event.Op)

			// Debounce: reset timer on each event
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watcherDebounce, func() {
				runMu.Lock()
				defer runMu.Unlock()
				logger.Info("re-running scenarios after file change")
				rerun()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("file watcher error", "error", err)
		}
	}
}
