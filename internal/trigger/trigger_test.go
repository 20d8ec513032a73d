package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/finbeat/finbeat/internal/recurrence"
	"github.com/finbeat/finbeat/internal/runlock"
)

type mockRunner struct {
	mu     sync.Mutex
	calls  int
	result recurrence.RunResult
	err    error
}

func (m *mockRunner) RunPendingExecutions(ctx context.Context) (recurrence.RunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.result, m.err
}

func (m *mockRunner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockGuard struct {
	mu    sync.Mutex
	calls int
	err   error // returned instead of running fn when set
}

func (m *mockGuard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.calls++
	err := m.err
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return fn(ctx)
}

type mockScanner struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockScanner) Scan(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.err
}

func newTestEngine(runner Runner, guard RunGuard) *Engine {
	return New(Config{
		RunSchedule:      "5 0 * * *",
		DebtScanSchedule: "0 8 * * *",
		JobTimeout:       time.Second,
	}, runner, guard)
}

func TestRunExecution_InvokesRunnerUnderGuard(t *testing.T) {
	runner := &mockRunner{}
	guard := &mockGuard{}
	e := newTestEngine(runner, guard)

	e.runExecution()

	if guard.calls != 1 {
		t.Errorf("expected 1 guard acquisition, got %d", guard.calls)
	}
	if runner.callCount() != 1 {
		t.Errorf("expected 1 runner call, got %d", runner.callCount())
	}
}

func TestRunExecution_SkipsWhenLockHeld(t *testing.T) {
	runner := &mockRunner{}
	guard := &mockGuard{err: runlock.ErrRunInProgress}
	e := newTestEngine(runner, guard)

	// Must not panic or invoke the runner.
	e.runExecution()

	if runner.callCount() != 0 {
		t.Errorf("runner should not run when the lock is held, got %d calls", runner.callCount())
	}
}

func TestRunExecution_RunnerErrorDoesNotPanic(t *testing.T) {
	runner := &mockRunner{err: errors.New("db down")}
	guard := &mockGuard{}
	e := newTestEngine(runner, guard)

	e.runExecution()

	if runner.callCount() != 1 {
		t.Errorf("expected 1 runner call, got %d", runner.callCount())
	}
}

func TestRunDebtScan_InvokesScanner(t *testing.T) {
	scanner := &mockScanner{}
	e := newTestEngine(&mockRunner{}, &mockGuard{}).WithDebtScanner(scanner)

	e.runDebtScan()

	if scanner.calls != 1 {
		t.Errorf("expected 1 scan, got %d", scanner.calls)
	}
}

func TestStart_InvalidRunScheduleFails(t *testing.T) {
	e := New(Config{
		RunSchedule:      "not a cron",
		DebtScanSchedule: "0 8 * * *",
	}, &mockRunner{}, &mockGuard{})

	if err := e.Start(); err == nil {
		t.Fatal("expected error for invalid run schedule")
	}
}

func TestStart_InvalidDebtScheduleFails(t *testing.T) {
	e := New(Config{
		RunSchedule:      "5 0 * * *",
		DebtScanSchedule: "bogus",
	}, &mockRunner{}, &mockGuard{}).WithDebtScanner(&mockScanner{})

	if err := e.Start(); err == nil {
		t.Fatal("expected error for invalid debt scan schedule")
	}
}

func TestStartStop_Lifecycle(t *testing.T) {
	e := newTestEngine(&mockRunner{}, &mockGuard{})

	if err := e.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	e.Stop()
}

func TestNew_DefaultJobTimeout(t *testing.T) {
	e := New(Config{RunSchedule: "5 0 * * *"}, &mockRunner{}, &mockGuard{})
	if e.config.JobTimeout != DefaultJobTimeout {
		t.Errorf("expected default job timeout %v, got %v", DefaultJobTimeout, e.config.JobTimeout)
	}
}
