package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/pathwatch/internal/model"
	"github.com/user/pathwatch/internal/storage"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Manage monitored targets",
}

var (
	targetLabel       string
	targetPacketType  string
	targetPacketSize  int
	targetMaxHops     int
	targetTimeoutSec  float64
	targetIntervalSec float64
	targetFinalOnly   bool
)

var targetsAddCmd = &cobra.Command{
	Use:   "add <host>",
	Short: "Add a target and start monitoring it",
	Args:  cobra.ExactArgs(1),
	RunE:  runTargetsAdd,
}

var targetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all targets",
	RunE:  runTargetsList,
}

var targetsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a target and its history",
	Args:  cobra.ExactArgs(1),
	RunE:  runTargetsRemove,
}

var targetsPauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Pause monitoring of a target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTargetActive(args[0], false)
	},
}

var targetsResumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume monitoring of a paused target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTargetActive(args[0], true)
	},
}

func init() {
	targetsAddCmd.Flags().StringVar(&targetLabel, "label", "", "Human-readable label")
	targetsAddCmd.Flags().StringVar(&targetPacketType, "packet-type", "", "Probe packet type (icmp, udp, tcp)")
	targetsAddCmd.Flags().IntVar(&targetPacketSize, "packet-size", 0, "Probe payload size in bytes")
	targetsAddCmd.Flags().IntVar(&targetMaxHops, "max-hops", 0, "Maximum TTL to probe")
	targetsAddCmd.Flags().Float64Var(&targetTimeoutSec, "timeout", 0, "Per-probe timeout in seconds")
	targetsAddCmd.Flags().Float64Var(&targetIntervalSec, "interval", 0, "Seconds between trace runs")
	targetsAddCmd.Flags().BoolVar(&targetFinalOnly, "final-hop-only", false, "Probe only the destination, skipping intermediate hops")

	targetsCmd.AddCommand(targetsAddCmd)
	targetsCmd.AddCommand(targetsListCmd)
	targetsCmd.AddCommand(targetsRemoveCmd)
	targetsCmd.AddCommand(targetsPauseCmd)
	targetsCmd.AddCommand(targetsResumeCmd)
}

func parseTargetID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid target id %q", raw)
	}
	return id, nil
}

func runTargetsAdd(cmd *cobra.Command, args []string) error {
	host := args[0]

	if daemonRunning() {
		payload := map[string]any{"host": host, "label": targetLabel}
		if targetPacketType != "" {
			payload["packet_type"] = targetPacketType
		}
		if targetPacketSize > 0 {
			payload["packet_size"] = targetPacketSize
		}
		if targetMaxHops > 0 {
			payload["max_hops"] = targetMaxHops
		}
		if targetTimeoutSec > 0 {
			payload["timeout_s"] = targetTimeoutSec
		}
		if targetIntervalSec > 0 {
			payload["trace_interval_s"] = targetIntervalSec
		}
		if targetFinalOnly {
			payload["final_hop_only"] = true
		}
		var created model.Target
		if err := apiRequest(http.MethodPost, "/api/targets", payload, &created); err != nil {
			return err
		}
		fmt.Printf("Target %d added: %s\n", created.ID, created.Host)
		return nil
	}

	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	probe := cfg.ProbeDefaults()
	if targetPacketType != "" {
		probe.PacketType = model.PacketType(targetPacketType)
	}
	switch probe.PacketType {
	case model.PacketICMP, model.PacketUDP, model.PacketTCP:
	default:
		return fmt.Errorf("unknown packet type %q", targetPacketType)
	}
	if targetPacketSize > 0 {
		probe.PacketSize = targetPacketSize
	}
	if targetMaxHops > 0 {
		probe.MaxHops = targetMaxHops
	}
	if targetTimeoutSec > 0 {
		probe.Timeout = time.Duration(targetTimeoutSec * float64(time.Second))
	}
	if targetIntervalSec > 0 {
		probe.TraceInterval = time.Duration(targetIntervalSec * float64(time.Second))
	}
	if targetFinalOnly {
		probe.FinalHopOnly = true
	}

	t := &model.Target{
		Host:      host,
		Label:     targetLabel,
		Active:    true,
		CreatedAt: time.Now().UTC(),
		Probe:     probe,
	}
	if err := storage.NewTargetStorage(db).Create(context.Background(), t); err != nil {
		return err
	}
	fmt.Printf("Target %d added: %s (daemon not running, monitoring starts with it)\n", t.ID, t.Host)
	return nil
}

func runTargetsList(cmd *cobra.Command, args []string) error {
	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	targets, err := storage.NewTargetStorage(db).List(context.Background())
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		fmt.Println("No targets configured")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tHOST\tLABEL\tSTATE\tTYPE\tINTERVAL")
	for _, t := range targets {
		state := "active"
		if !t.Active {
			state = "paused"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Host, t.Label, state, t.Probe.PacketType, t.Probe.TraceInterval)
	}
	return w.Flush()
}

func runTargetsRemove(cmd *cobra.Command, args []string) error {
	id, err := parseTargetID(args[0])
	if err != nil {
		return err
	}

	if daemonRunning() {
		if err := apiRequest(http.MethodDelete, fmt.Sprintf("/api/targets/%d", id), nil, nil); err != nil {
			return err
		}
		fmt.Printf("Target %d removed\n", id)
		return nil
	}

	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	deleted, err := storage.NewTargetStorage(db).Delete(context.Background(), id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("target %d not found", id)
	}
	fmt.Printf("Target %d removed\n", id)
	return nil
}

func setTargetActive(raw string, active bool) error {
	id, err := parseTargetID(raw)
	if err != nil {
		return err
	}
	verb := "paused"
	action := "pause"
	if active {
		verb = "resumed"
		action = "resume"
	}

	if daemonRunning() {
		path := fmt.Sprintf("/api/targets/%d/%s", id, action)
		if err := apiRequest(http.MethodPost, path, nil, nil); err != nil {
			return err
		}
		fmt.Printf("Target %d %s\n", id, verb)
		return nil
	}

	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.NewTargetStorage(db).SetActive(context.Background(), id, active); err != nil {
		return err
	}
	fmt.Printf("Target %d %s\n", id, verb)
	return nil
}
