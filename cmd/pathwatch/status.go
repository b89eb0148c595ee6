package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/pathwatch/internal/daemon"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  "Show the current status of the pathwatch daemon.",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	running, pid := daemon.CheckRunning(cfg.DataDir)

	if running {
		fmt.Printf("Daemon:  running (PID %d)\n", pid)
	} else {
		fmt.Println("Daemon:  stopped")
	}

	sf, err := daemon.ReadStatusFile(cfg.DataDir)
	if err != nil || !running {
		return nil
	}

	fmt.Printf("Started: %s\n", sf.StartTime.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Uptime:  %s\n", time.Since(sf.StartTime).Round(time.Second))
	fmt.Printf("API:     http://localhost:%d\n", sf.WebPort)
	fmt.Printf("Targets: %d active\n", sf.ActiveTargets)
	return nil
}
