package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  log_level: debug
account:
  initial_equity: 50000
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, ":9980", cfg.App.HTTPAddr)
	assert.Equal(t, "paper", cfg.Venue.Name)
	assert.Equal(t, 5, cfg.Venue.StatusPollSeconds)
	assert.Equal(t, 60, cfg.Venue.ReconcileSeconds)
	assert.InDelta(t, 50000, cfg.Account.InitialEquity, 1e-9)
	assert.Equal(t, "configs/risk_policy.yaml", cfg.Risk.PolicyPath)
}

func TestLoadRejectsBadIntervals(t *testing.T) {
	path := writeConfig(t, `
venue:
  status_poll_seconds: 30
  reconcile_seconds: 10
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reconcile_seconds")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = Load("  ")
	assert.Error(t, err)
}

func TestRiskPolicyValidate(t *testing.T) {
	good := DefaultRiskPolicy()
	assert.NoError(t, good.Validate())

	bad := DefaultRiskPolicy()
	bad.DailyLossPct = 0
	assert.Error(t, bad.Validate())

	bad = DefaultRiskPolicy()
	bad.MinOrderQty = 10
	bad.MaxOrderQty = 1
	assert.Error(t, bad.Validate())
}
