// Package loader watches the risk policy file and swaps the active
// policy atomically on change, so limit adjustments take effect without
// restarting the process.
package loader

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"tradecore/internal/config"
	"tradecore/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const reloadDebounce = 500 * time.Millisecond

// PolicyLoader serves the current RiskPolicy. Current() is safe for
// concurrent use from the validator and the risk monitor.
type PolicyLoader struct {
	path string

	mu      sync.RWMutex
	current config.RiskPolicy

	watcher *fsnotify.Watcher
	timerMu sync.Mutex
	timer   *time.Timer
}

// NewPolicyLoader reads the policy file once; a missing file falls back
// to the built-in defaults with a warning rather than failing startup.
func NewPolicyLoader(path string) (*PolicyLoader, error) {
	l := &PolicyLoader{path: path, current: config.DefaultRiskPolicy()}
	policy, err := readPolicyFile(path)
	if err != nil {
		logger.Warnf("risk policy: %v, using defaults", err)
	} else {
		l.current = policy
	}
	return l, nil
}

func (l *PolicyLoader) Current() config.RiskPolicy {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Watch starts the fsnotify watcher on the policy file's directory.
// Editors replace files instead of writing in place, so watching the
// directory and filtering by name is the reliable approach.
func (l *PolicyLoader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("risk policy watcher: %w", err)
	}
	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("risk policy watch %s: %w", dir, err)
	}
	l.watcher = watcher
	go l.watchLoop()
	logger.Infof("risk policy: watching %s", l.path)
	return nil
}

func (l *PolicyLoader) Close() error {
	if l.watcher == nil {
		return nil
	}
	return l.watcher.Close()
}

func (l *PolicyLoader) watchLoop() {
	target := filepath.Clean(l.path)
	for {
		select {
		case ev, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			l.scheduleReload()
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("risk policy watcher error: %v", err)
		}
	}
}

// scheduleReload debounces bursts of fs events from a single save.
func (l *PolicyLoader) scheduleReload() {
	l.timerMu.Lock()
	defer l.timerMu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(reloadDebounce, l.reload)
}

func (l *PolicyLoader) reload() {
	policy, err := readPolicyFile(l.path)
	if err != nil {
		logger.Warnf("risk policy reload failed, keeping previous: %v", err)
		return
	}
	l.mu.Lock()
	l.current = policy
	l.mu.Unlock()
	logger.Infof("risk policy reloaded: risk_per_trade=%.4f daily_loss=%.4f max_positions=%d",
		policy.RiskPerTradePct, policy.DailyLossPct, policy.MaxOpenPositions)
}

func readPolicyFile(path string) (config.RiskPolicy, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return config.RiskPolicy{}, fmt.Errorf("reading %s: %w", path, err)
	}
	policy := config.DefaultRiskPolicy()
	if err := v.Unmarshal(&policy, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return config.RiskPolicy{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := policy.Validate(); err != nil {
		return config.RiskPolicy{}, fmt.Errorf("invalid policy in %s: %w", path, err)
	}
	return policy, nil
}
