package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/user/pathwatch/internal/daemon"
)

// The mutating commands go through the daemon's API when it is running,
// so its scheduler stays in step with storage. With no daemon they fall
// back to writing the database directly.

var apiClient = &http.Client{Timeout: 10 * time.Second}

func daemonRunning() bool {
	running, _ := daemon.CheckRunning(cfg.DataDir)
	return running
}

func apiURL(path string) string {
	return fmt.Sprintf("http://localhost:%d%s", cfg.WebPort, path)
}

func apiRequest(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, apiURL(path), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := apiClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon API unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("daemon API: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
