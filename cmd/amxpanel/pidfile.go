package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const pidFileName = "amxpanel.pid"

var errNotRunning = errors.New("daemon is not running")

// pidFile guards against two daemons sharing a data directory.
type pidFile struct {
	path string
}

func newPIDFile(dataDir string) *pidFile {
	return &pidFile{path: filepath.Join(dataDir, pidFileName)}
}

// read returns the recorded PID, or 0 when there is none.
func (p *pidFile) read() (int, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid: %w", err)
	}
	return pid, nil
}

func (p *pidFile) remove() error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	return nil
}

// running returns the live daemon's PID. A stale file is removed.
func (p *pidFile) running() (int, bool) {
	pid, err := p.read()
	if err != nil || pid == 0 {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil || proc.Signal(syscall.Signal(0)) != nil {
		p.remove()
		return 0, false
	}
	return pid, true
}

// acquire fails when another daemon holds the directory, else records
// this process.
func (p *pidFile) acquire() error {
	if pid, ok := p.running(); ok && pid != os.Getpid() {
		return fmt.Errorf("daemon already running (pid=%d)", pid)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create pid dir: %w", err)
	}
	if err := os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// runStop sends SIGTERM to the running daemon.
func runStop() error {
	pf := newPIDFile(loadConfig().DataDir)
	pid, ok := pf.running()
	if !ok {
		return errNotRunning
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send SIGTERM to %d: %w", pid, err)
	}
	fmt.Printf("sent SIGTERM to %d\n", pid)
	return nil
}
