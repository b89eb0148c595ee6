package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	pidFileName    = "pathwatch.pid"
	statusFileName = "status.json"
)

// CheckRunning reports whether a daemon holds the PID file in dataDir
// and, if so, its PID. A stale PID file counts as not running.
func CheckRunning(dataDir string) (bool, int) {
	data, err := os.ReadFile(filepath.Join(dataDir, pidFileName))
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}
	// Signal 0 probes for existence without touching the process.
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return false, 0
	}
	return true, pid
}

// SendStop delivers SIGTERM to the running daemon.
func SendStop(dataDir string) error {
	running, pid := CheckRunning(dataDir)
	if !running {
		return fmt.Errorf("daemon is not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send signal: %w", err)
	}
	return nil
}

// Status is the daemon state serialized for out-of-process inspection.
type Status struct {
	Running       bool      `json:"running"`
	PID           int       `json:"pid"`
	StartTime     time.Time `json:"start_time"`
	WebPort       int       `json:"web_port"`
	ActiveTargets int       `json:"active_targets"`
}

// WriteStatusFile persists the daemon status to dataDir.
func WriteStatusFile(dataDir string, status *Status) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dataDir, statusFileName), data, 0644)
}

// ReadStatusFile loads the last written daemon status from dataDir.
func ReadStatusFile(dataDir string) (*Status, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, statusFileName))
	if err != nil {
		return nil, err
	}
	var s Status
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
