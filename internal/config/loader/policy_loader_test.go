package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const policyBody = `
risk_per_trade_pct: 0.01
min_reward_risk: 2.0
daily_loss_pct: 0.02
max_open_positions: 3
price_band_pct: 0.05
min_order_qty: 0.001
max_order_qty: 100
max_pending_per_open: 2
max_drawdown_pct: 0.10
single_position_loss_pct: 0.05
stop_proximity_pct: 0.005
`

func TestLoaderReadsPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk_policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(policyBody), 0o644))

	l, err := NewPolicyLoader(path)
	require.NoError(t, err)

	p := l.Current()
	assert.InDelta(t, 0.01, p.RiskPerTradePct, 1e-9)
	assert.InDelta(t, 2.0, p.MinRewardRisk, 1e-9)
	assert.Equal(t, 3, p.MaxOpenPositions)
}

func TestLoaderFallsBackToDefaults(t *testing.T) {
	l, err := NewPolicyLoader(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	p := l.Current()
	assert.InDelta(t, 0.02, p.RiskPerTradePct, 1e-9)
	assert.Equal(t, 5, p.MaxOpenPositions)
}

func TestLoaderReloadsOnFileChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk_policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(policyBody), 0o644))

	l, err := NewPolicyLoader(path)
	require.NoError(t, err)
	require.NoError(t, l.Watch())
	defer l.Close()

	updated := strings.Replace(policyBody, "risk_per_trade_pct: 0.01", "risk_per_trade_pct: 0.03", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	assert.Eventually(t, func() bool {
		return l.Current().RiskPerTradePct == 0.03
	}, 5*time.Second, 50*time.Millisecond)
}

func TestLoaderKeepsPreviousOnInvalidReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk_policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(policyBody), 0o644))

	l, err := NewPolicyLoader(path)
	require.NoError(t, err)
	require.NoError(t, l.Watch())
	defer l.Close()

	require.NoError(t, os.WriteFile(path, []byte("daily_loss_pct: 0\n"), 0o644))
	time.Sleep(2 * reloadDebounce)

	assert.InDelta(t, 0.02, l.Current().DailyLossPct, 1e-9, "invalid file must not replace the active policy")
}
