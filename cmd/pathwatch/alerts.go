package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/pathwatch/internal/model"
	"github.com/user/pathwatch/internal/storage"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Manage alert rules and view alert history",
}

var (
	alertTargetID int64
	alertMetric   string
	alertOperator string
	alertThresh   float64
	alertDuration int
	alertHop      string
	alertAction   string
	alertConfig   string
	alertLimit    int
)

var alertsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an alert rule for a target",
	RunE:  runAlertsAdd,
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alert rules for a target",
	RunE:  runAlertsList,
}

var alertsRemoveCmd = &cobra.Command{
	Use:   "remove <rule-id>",
	Short: "Remove an alert rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertsRemove,
}

var alertsEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent alert events for a target",
	RunE:  runAlertsEvents,
}

func init() {
	alertsAddCmd.Flags().Int64Var(&alertTargetID, "target", 0, "Target ID (required)")
	alertsAddCmd.Flags().StringVar(&alertMetric, "metric", "", "Metric: packet_loss_pct, avg_rtt_ms, cur_rtt_ms (required)")
	alertsAddCmd.Flags().StringVar(&alertOperator, "operator", ">", "Comparison operator: >, <, >=, <=")
	alertsAddCmd.Flags().Float64Var(&alertThresh, "threshold", 0, "Threshold value (required)")
	alertsAddCmd.Flags().IntVar(&alertDuration, "duration", 1, "Consecutive matching samples before firing")
	alertsAddCmd.Flags().StringVar(&alertHop, "hop", "final", "Hop selector: any, final, or a hop address")
	alertsAddCmd.Flags().StringVar(&alertAction, "action", "log", "Action: webhook, email, log, command")
	alertsAddCmd.Flags().StringVar(&alertConfig, "action-config", "", "Action configuration as JSON")
	alertsAddCmd.MarkFlagRequired("target")
	alertsAddCmd.MarkFlagRequired("metric")
	alertsAddCmd.MarkFlagRequired("threshold")

	alertsListCmd.Flags().Int64Var(&alertTargetID, "target", 0, "Target ID (required)")
	alertsListCmd.MarkFlagRequired("target")

	alertsEventsCmd.Flags().Int64Var(&alertTargetID, "target", 0, "Target ID (required)")
	alertsEventsCmd.Flags().IntVar(&alertLimit, "limit", 20, "Number of events to show")
	alertsEventsCmd.MarkFlagRequired("target")

	alertsCmd.AddCommand(alertsAddCmd)
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsRemoveCmd)
	alertsCmd.AddCommand(alertsEventsCmd)
}

func runAlertsAdd(cmd *cobra.Command, args []string) error {
	switch alertMetric {
	case model.MetricLossPct, model.MetricAvgRTT, model.MetricCurRTT:
	default:
		return fmt.Errorf("unknown metric %q", alertMetric)
	}
	switch alertOperator {
	case ">", "<", ">=", "<=":
	default:
		return fmt.Errorf("unknown operator %q", alertOperator)
	}
	switch model.ActionType(alertAction) {
	case model.ActionWebhook, model.ActionEmail, model.ActionLog, model.ActionCommand:
	default:
		return fmt.Errorf("unknown action %q", alertAction)
	}

	var actionConfig json.RawMessage
	if alertConfig != "" {
		if !json.Valid([]byte(alertConfig)) {
			return fmt.Errorf("action config is not valid JSON")
		}
		actionConfig = json.RawMessage(alertConfig)
	}

	if daemonRunning() {
		payload := map[string]any{
			"metric":           alertMetric,
			"operator":         alertOperator,
			"threshold":        alertThresh,
			"duration_samples": alertDuration,
			"hop":              alertHop,
			"action":           alertAction,
		}
		if actionConfig != nil {
			payload["action_config"] = actionConfig
		}
		var created model.AlertRule
		path := fmt.Sprintf("/api/targets/%d/alerts", alertTargetID)
		if err := apiRequest(http.MethodPost, path, payload, &created); err != nil {
			return err
		}
		fmt.Printf("Rule %d added: target %d %s %s %g on %s\n",
			created.ID, alertTargetID, alertMetric, alertOperator, alertThresh, alertHop)
		return nil
	}

	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := context.Background()

	target, err := storage.NewTargetStorage(db).Get(ctx, alertTargetID)
	if err != nil {
		return err
	}
	if target == nil {
		return fmt.Errorf("target %d not found", alertTargetID)
	}

	rule := &model.AlertRule{
		TargetID:        alertTargetID,
		Metric:          alertMetric,
		Operator:        alertOperator,
		Threshold:       alertThresh,
		DurationSamples: alertDuration,
		Hop:             alertHop,
		Action:          model.ActionType(alertAction),
		ActionConfig:    actionConfig,
		Enabled:         true,
	}
	if err := storage.NewAlertStorage(db).CreateRule(ctx, rule); err != nil {
		return err
	}
	fmt.Printf("Rule %d added: %s %s %s %g on %s\n",
		rule.ID, target.Host, alertMetric, alertOperator, alertThresh, alertHop)
	return nil
}

func runAlertsList(cmd *cobra.Command, args []string) error {
	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	rules, err := storage.NewAlertStorage(db).Rules(context.Background(), alertTargetID, false)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		fmt.Println("No alert rules configured")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMETRIC\tCONDITION\tSAMPLES\tHOP\tACTION\tENABLED")
	for _, r := range rules {
		fmt.Fprintf(w, "%d\t%s\t%s %g\t%d\t%s\t%s\t%t\n",
			r.ID, r.Metric, r.Operator, r.Threshold, r.DurationSamples, r.Hop, r.Action, r.Enabled)
	}
	return w.Flush()
}

func runAlertsRemove(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid rule id %q", args[0])
	}

	if daemonRunning() {
		if err := apiRequest(http.MethodDelete, fmt.Sprintf("/api/alerts/%d", id), nil, nil); err != nil {
			return err
		}
		fmt.Printf("Rule %d removed\n", id)
		return nil
	}

	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	deleted, err := storage.NewAlertStorage(db).DeleteRule(context.Background(), id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("rule %d not found", id)
	}
	fmt.Printf("Rule %d removed\n", id)
	return nil
}

func runAlertsEvents(cmd *cobra.Command, args []string) error {
	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	events, err := storage.NewAlertStorage(db).Events(context.Background(), alertTargetID, alertLimit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No alert events recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AT\tKIND\tRULE\tMETRIC\tVALUE\tMESSAGE")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%.2f\t%s\n",
			ev.At.Local().Format("2006-01-02 15:04:05"), ev.Kind, ev.RuleID, ev.Metric, ev.Value, ev.Message)
	}
	return w.Flush()
}
