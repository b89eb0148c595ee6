package main

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/pathwatch/internal/daemon"
)

var foreground bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the pathwatch daemon",
	Long:  "Start the pathwatch daemon to monitor the configured targets.",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false,
		"Run in foreground instead of daemonizing")
}

func runStart(cmd *cobra.Command, args []string) error {
	running, pid := daemon.CheckRunning(cfg.DataDir)
	if running {
		fmt.Printf("Daemon is already running (PID %d)\n", pid)
		return nil
	}

	if foreground {
		return runForeground()
	}
	return runBackground()
}

func runForeground() error {
	d, err := daemon.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}
	fmt.Printf("Pathwatch started. API on http://localhost:%d. Press Ctrl+C to stop.\n", cfg.WebPort)
	return d.Run()
}

// runBackground re-executes the binary with --foreground in a new
// session, detached from the terminal.
func runBackground() error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"start", "--foreground"}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}

	logPath := filepath.Join(cfg.DataDir, "daemon.out")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	procAttr := &os.ProcAttr{
		Dir:   "/",
		Env:   os.Environ(),
		Files: []*os.File{nil, logFile, logFile},
		Sys: &syscall.SysProcAttr{
			Setsid: true,
		},
	}

	proc, err := os.StartProcess(executable, append([]string{executable}, args...), procAttr)
	if err != nil {
		return fmt.Errorf("failed to start daemon process: %w", err)
	}
	if err := proc.Release(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to release process: %v\n", err)
	}

	fmt.Printf("Pathwatch daemon started (PID %d)\n", proc.Pid)
	fmt.Printf("API: http://localhost:%d\n", cfg.WebPort)
	fmt.Printf("Logs: %s\n", cfg.LogDir)
	return nil
}
