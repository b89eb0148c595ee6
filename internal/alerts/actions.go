package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/smtp"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/pathwatch/internal/model"
)

// ActionDispatcher routes alert events to their configured action. One
// failed action affects neither other rules nor the evaluator's state.
type ActionDispatcher struct {
	logger *zap.Logger
	client *http.Client
}

// NewActionDispatcher creates the production dispatcher.
func NewActionDispatcher(logger *zap.Logger) *ActionDispatcher {
	return &ActionDispatcher{
		logger: logger,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Dispatch executes the rule's action for the given event.
func (d *ActionDispatcher) Dispatch(ctx context.Context, rule model.AlertRule, event model.AlertEvent) error {
	switch rule.Action {
	case model.ActionWebhook:
		return d.sendWebhook(ctx, rule.ActionConfig, event)
	case model.ActionEmail:
		return d.sendEmail(rule.ActionConfig, event)
	case model.ActionLog:
		return d.appendLog(rule.ActionConfig, event)
	case model.ActionCommand:
		return d.runCommand(ctx, rule.ActionConfig, event)
	case "":
		return nil
	default:
		return fmt.Errorf("unknown alert action type: %s", rule.Action)
	}
}

// Async wraps Dispatch in a goroutine so the evaluator's transition
// never waits on action I/O. Errors are logged only.
func (d *ActionDispatcher) Async() Dispatcher {
	return dispatchFunc(func(ctx context.Context, rule model.AlertRule, event model.AlertEvent) error {
		go func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			if err := d.Dispatch(ctx, rule, event); err != nil {
				d.logger.Warn("alert action failed",
					zap.Int64("rule_id", rule.ID),
					zap.String("action", string(rule.Action)),
					zap.Error(err))
			}
		}()
		return nil
	})
}

type dispatchFunc func(ctx context.Context, rule model.AlertRule, event model.AlertEvent) error

func (f dispatchFunc) Dispatch(ctx context.Context, rule model.AlertRule, event model.AlertEvent) error {
	return f(ctx, rule, event)
}

func (d *ActionDispatcher) sendWebhook(ctx context.Context, raw json.RawMessage, event model.AlertEvent) error {
	var cfg model.WebhookConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("webhook config: %w", err)
	}
	if cfg.URL == "" {
		return errors.New("webhook url missing")
	}

	body, _ := json.Marshal(event)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook non-2xx: %d", resp.StatusCode)
	}
	return nil
}

func (d *ActionDispatcher) sendEmail(raw json.RawMessage, event model.AlertEvent) error {
	var cfg model.EmailConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("email config: %w", err)
	}
	if cfg.SMTPAddr == "" || len(cfg.To) == 0 {
		return errors.New("email config incomplete")
	}

	subject := fmt.Sprintf("[pathwatch] %s: %s", event.Kind, event.Metric)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		cfg.From, strings.Join(cfg.To, ", "), subject, event.Message)

	return smtp.SendMail(cfg.SMTPAddr, nil, cfg.From, cfg.To, []byte(msg))
}

func (d *ActionDispatcher) appendLog(raw json.RawMessage, event model.AlertEvent) error {
	var cfg model.LogConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	if cfg.Path == "" {
		return errors.New("log path missing")
	}

	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "%s %s\n", event.At.Format(time.RFC3339), event.Message)
	return err
}

func (d *ActionDispatcher) runCommand(ctx context.Context, raw json.RawMessage, event model.AlertEvent) error {
	var cfg model.CommandConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("command config: %w", err)
	}
	if cfg.Command == "" {
		return errors.New("command missing")
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("PATHWATCH_ALERT_KIND=%s", event.Kind),
		fmt.Sprintf("PATHWATCH_ALERT_METRIC=%s", event.Metric),
		fmt.Sprintf("PATHWATCH_ALERT_VALUE=%g", event.Value),
		fmt.Sprintf("PATHWATCH_ALERT_TARGET=%d", event.TargetID),
		fmt.Sprintf("PATHWATCH_ALERT_MESSAGE=%s", event.Message),
	)
	return cmd.Run()
}
