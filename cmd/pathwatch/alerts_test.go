package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/pathwatch/internal/model"
	"github.com/user/pathwatch/internal/util"
)

// fakeDaemon points the API client at a local test server and drops a
// live PID file so daemonRunning() reports true.
func fakeDaemon(t *testing.T, handler http.Handler) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "pathwatch.pid"),
		[]byte(strconv.Itoa(os.Getpid())), 0644))

	prev := cfg
	cfg = &util.Config{DataDir: dir, WebPort: port}
	t.Cleanup(func() { cfg = prev })
}

func TestAlertsAddGoesThroughRunningDaemon(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	fakeDaemon(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(model.AlertRule{ID: 7, TargetID: 3})
	}))

	alertTargetID = 3
	alertMetric = model.MetricLossPct
	alertOperator = ">"
	alertThresh = 20
	alertDuration = 2
	alertHop = model.HopFinal
	alertAction = "log"
	alertConfig = ""

	require.NoError(t, runAlertsAdd(alertsAddCmd, nil))

	assert.Equal(t, "POST /api/targets/3/alerts", gotPath)
	assert.Equal(t, model.MetricLossPct, gotBody["metric"])
	assert.Equal(t, float64(2), gotBody["duration_samples"])
}

func TestAlertsRemoveGoesThroughRunningDaemon(t *testing.T) {
	var gotPath string
	fakeDaemon(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, runAlertsRemove(alertsRemoveCmd, []string{"7"}))
	assert.Equal(t, "DELETE /api/alerts/7", gotPath)
}

func TestAlertsRemoveDaemonError(t *testing.T) {
	fakeDaemon(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rule not found", http.StatusNotFound)
	}))

	err := runAlertsRemove(alertsRemoveCmd, []string{"99"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule not found")
}
