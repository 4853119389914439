package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/password-policy/internal/policy"
	"github.com/jwalitptl/password-policy/pkg/logger"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, policy.DefaultConfig(), cfg.Policy)
	assert.Equal(t, "policy:admin", cfg.Auth.AdminRole)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "/metrics", cfg.Monitoring.MetricsPath)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
server:
  port: 9090
  read_timeout: 3s
policy:
  minimum_length: 12
  maximum_length: 128
  require_special_chars: true
  special_characters: "!?"
  password_history_size: 10
  custom_error_messages:
    uppercase: "Add a capital letter."
redis:
  enabled: true
  url: redis://cache:6379/1
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 12, cfg.Policy.MinimumLength)
	assert.Equal(t, 128, cfg.Policy.MaximumLength)
	assert.True(t, cfg.Policy.RequireSpecialChars)
	assert.True(t, cfg.Policy.RequireUppercase)
	assert.Equal(t, "!?", cfg.Policy.SpecialCharacters)
	assert.Equal(t, 10, cfg.Policy.PasswordHistorySize)
	assert.Equal(t, map[policy.RuleKey]string{policy.RuleUppercase: "Add a capital letter."}, cfg.Policy.CustomErrorMessages)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.ToBrokerConfig().URL)
	assert.Equal(t, "password-policy.updates", cfg.Redis.Channel)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "policy:\n  minimum_length: 12\n")
	t.Setenv("PWPOLICY_POLICY_MINIMUM_LENGTH", "16")
	t.Setenv("PWPOLICY_SERVER_PORT", "7070")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Policy.MinimumLength)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"inverted bounds":   "policy:\n  minimum_length: 70\n  maximum_length: 64\n",
		"unknown rule":      "policy:\n  custom_error_messages:\n    shoe_size: big\n",
		"bad port":          "server:\n  port: 0\n",
		"bad log format":    "log:\n  format: xml\n",
		"bad log level":     "log:\n  level: loud\n",
		"redis without url": "redis:\n  enabled: true\n  url: \"\"\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, t.TempDir(), body))
			assert.Error(t, err)
		})
	}
}

func TestLogSettingsFromFileOverrideBootstrap(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "log:\n  level: warn\n  format: json\n")
	boot := &Bootstrap{LogLevel: "info", LogFormat: "console"}

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, LogConfig{Level: "warn", Format: "json"}, cfg.Log)

	lc := cfg.Log.LoggerConfig(boot)
	assert.Equal(t, logger.WarnLevel, lc.Level)
	assert.Equal(t, "json", lc.Format)
}

func TestLogSettingsFallBackToBootstrap(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "policy:\n  minimum_length: 10\n")
	boot := &Bootstrap{LogLevel: "debug", LogFormat: "console"}

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Log.Level)

	lc := cfg.Log.LoggerConfig(boot)
	assert.Equal(t, logger.DebugLevel, lc.Level)
	assert.Equal(t, "console", lc.Format)
}

func TestLogSettingsFromEnv(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "log:\n  format: console\n")
	t.Setenv("PWPOLICY_LOG_FORMAT", "json")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoadBootstrap(t *testing.T) {
	t.Setenv("PWPOLICY_CONFIG_FILE", "/etc/pwpolicy/config.yaml")
	t.Setenv("PWPOLICY_LOG_LEVEL", "debug")

	b, err := LoadBootstrap()
	require.NoError(t, err)
	assert.Equal(t, "/etc/pwpolicy/config.yaml", b.ConfigFile)
	assert.Equal(t, "debug", b.LogLevel)
	assert.Equal(t, "console", b.LogFormat)
}

func TestWatcherReloadsPolicy(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "policy:\n  minimum_length: 10\n")

	cfg, w, err := NewWatcher(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Policy.MinimumLength)

	var (
		mu   sync.Mutex
		seen []int
	)
	w.Start(func(p policy.Config) {
		mu.Lock()
		seen = append(seen, p.MinimumLength)
		mu.Unlock()
	})

	// An invalid policy is skipped, then a valid one is applied.
	require.NoError(t, os.WriteFile(path, []byte("policy:\n  minimum_length: 99\n"), 0o600))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("policy:\n  minimum_length: 14\n"), 0o600))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1] == 14
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.NotContains(t, seen, 99)
	mu.Unlock()
}
