// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package supervisor spawns, monitors, restarts, and gracefully stops the
// child daemon process, enforcing stale-PID recovery before a fresh spawn
// (spec.md §4.2). It also supports connect mode, where the daemon is assumed
// already running at a given RPC URL.
package supervisor

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-cmd/cmd"

	"github.com/qtumproject/qtumd-node/config"
	"github.com/qtumproject/qtumd-node/errs"
	"github.com/qtumproject/qtumd-node/internal/logging"
)

var log = logging.New("supervisor")

// Timeouts, matching spec.md §5 defaults.
const (
	StartRetryInterval = 5 * time.Second
	StartRetryAttempts = 60
	SpawnStopTime      = 10 * time.Second
	ShutdownTimeout    = 15 * time.Second
	SpawnRestartTime   = 5 * time.Second

	DefaultReindexProgress = 0.9999
)

// Mode selects how the supervisor obtains a daemon: Spawn manages a local
// child process, Connect assumes one is already running, Both does both.
type Mode int

const (
	ModeSpawn Mode = iota
	ModeConnect
	ModeBoth
)

// ProcessRecord is present only in spawn mode: the resolved executable,
// data directory, daemon config path, and the live child-process handle.
type ProcessRecord struct {
	ExecPath string
	DataDir  string
	ConfPath string
	Opts     *config.DaemonConfig

	cmd *cmd.Cmd
}

// TipLoader fetches the daemon's best-block hash; implemented by the RPC
// client wrapper. It is injected so the supervisor never imports rpcclient
// types directly, keeping it free to run in connect-only configurations.
type TipLoader func(ctx context.Context) (string, error)

// VerificationProgressFn returns the daemon's getblockchaininfo
// verificationprogress, used to drive the post-reindex wait.
type VerificationProgressFn func(ctx context.Context) (float64, error)

// Supervisor owns the lifecycle of zero or more spawned daemons.
type Supervisor struct {
	mode     Mode
	stopping chan struct{}

	onReady func(*ProcessRecord)
	onError func(error)
}

// New constructs a Supervisor. onReady is invoked once the daemon's tip has
// been loaded successfully (and, if reindexing, once verification progress
// clears the threshold); onError is invoked for unrecoverable failures with
// no caller to report them to directly (spec.md §7 propagation policy).
func New(mode Mode, onReady func(*ProcessRecord), onError func(error)) *Supervisor {
	return &Supervisor{mode: mode, stopping: make(chan struct{}), onReady: onReady, onError: onError}
}

// Stop sets the stopping flag; it is gated in, never cleared, and checked by
// every retry loop, timer, and respawn attempt (spec.md §5).
func (s *Supervisor) Stop() {
	select {
	case <-s.stopping:
	default:
		close(s.stopping)
	}
}

func (s *Supervisor) isStopping() bool {
	select {
	case <-s.stopping:
		return true
	default:
		return false
	}
}

// Spawn starts (or restarts) the daemon described by opts, clearing any
// stale PID first, then blocks the calling goroutine's retry/poll loops in
// background goroutines and returns immediately once the child is launched.
func (s *Supervisor) Spawn(ctx context.Context, execPath string, opts *config.DaemonConfig, network string, pidPath string, loadTip TipLoader, verificationProgress VerificationProgressFn) {
	if err := s.clearStalePID(pidPath); err != nil {
		s.fail(err)
		return
	}

	args := []string{"--conf=" + opts.Path, "--datadir=" + opts.DataDir}
	switch network {
	case "testnet":
		args = append(args, "--testnet")
	case "regtest":
		args = append(args, "--regtest")
	}

	child := cmd.NewCmd(execPath, args...)
	statusCh := child.Start()

	rec := &ProcessRecord{ExecPath: execPath, DataDir: opts.DataDir, ConfPath: opts.Path, Opts: opts, cmd: child}

	go s.awaitReady(ctx, rec, loadTip, verificationProgress)
	go s.watchExit(ctx, statusCh, execPath, opts, network, pidPath, loadTip, verificationProgress)
}

// awaitReady polls the daemon's RPC endpoint for its tip, retrying at
// StartRetryInterval for up to StartRetryAttempts, then — if the config
// recorded reindex=1 — waits for verificationprogress to clear the
// threshold before declaring the record ready.
func (s *Supervisor) awaitReady(ctx context.Context, rec *ProcessRecord, loadTip TipLoader, verificationProgress VerificationProgressFn) {
	for attempt := 0; attempt < StartRetryAttempts; attempt++ {
		if s.isStopping() {
			return
		}
		if _, err := loadTip(ctx); err != nil {
			var rpcErr *errs.RPCError
			if errors.As(err, &rpcErr) && rpcErr.Retryable() {
				log.Debug("daemon warming up", "attempt", attempt)
			} else {
				log.Debug("tip load failed, retrying", "attempt", attempt, "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(StartRetryInterval):
			}
			continue
		}

		if rec.Opts.Reindex {
			if err := s.waitForReindex(ctx, verificationProgress, rec.Opts.ReindexWait); err != nil {
				s.fail(err)
				return
			}
		}

		if s.onReady != nil {
			s.onReady(rec)
		}
		return
	}
	s.fail(&errs.SupervisorError{Reason: "daemon did not become responsive after " + strconv.Itoa(StartRetryAttempts) + " attempts"})
}

func (s *Supervisor) waitForReindex(ctx context.Context, verificationProgress VerificationProgressFn, waitSeconds int) error {
	interval := time.Duration(waitSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	for {
		if s.isStopping() {
			return nil
		}
		progress, err := verificationProgress(ctx)
		if err == nil && progress >= DefaultReindexProgress {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// watchExit waits for the child to exit; if the supervisor is not shutting
// down, it waits SpawnRestartTime and respawns.
func (s *Supervisor) watchExit(ctx context.Context, statusCh <-chan cmd.Status, execPath string, opts *config.DaemonConfig, network, pidPath string, loadTip TipLoader, verificationProgress VerificationProgressFn) {
	<-statusCh
	if s.isStopping() {
		return
	}
	log.Warn("daemon exited unexpectedly, scheduling respawn", "delay", SpawnRestartTime)
	select {
	case <-ctx.Done():
		return
	case <-time.After(SpawnRestartTime):
	}
	if s.isStopping() {
		return
	}
	s.Spawn(ctx, execPath, opts, network, pidPath, loadTip, verificationProgress)
}

// GracefulStop sends the platform's graceful-termination signal and waits up
// to ShutdownTimeout for the child to exit.
func (s *Supervisor) GracefulStop(rec *ProcessRecord) error {
	done := make(chan error, 1)
	go func() { done <- rec.cmd.Stop() }()

	select {
	case err := <-done:
		return err
	case <-time.After(ShutdownTimeout):
		return &errs.SupervisorError{Reason: "graceful stop timed out after " + ShutdownTimeout.String()}
	}
}

// clearStalePID reads the PID file (if any) and, if it names a live
// process, sends a graceful termination signal and polls for exit up to
// SpawnStopTime. "No such process" errors are swallowed.
func (s *Supervisor) clearStalePID(pidPath string) error {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return nil // unreadable PID file is not fatal to a fresh spawn
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return nil
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}

	if err := proc.Signal(syscall.Signal(0)); err != nil {
		// No such process: nothing stale to clean up.
		return nil
	}

	if err := proc.Signal(syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Debug("signal to stale pid failed", "pid", pid, "error", err)
	}

	deadline := time.Now().Add(SpawnStopTime)
	for time.Now().Before(deadline) {
		if err := proc.Signal(syscall.Signal(0)); err != nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return &errs.SupervisorError{Reason: "stale pid " + pidStr + " did not exit in time"}
}

func (s *Supervisor) fail(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}
