package gwconfig_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oxidecomputer/spgw/gwconfig"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "sp:\n  address: fe80::1\n  interface: eth0\n")
	cfg, err := gwconfig.Load(path)
	require.NoError(t, err)
	require.Equal(t, "fe80::1", cfg.SP.Address)
	require.Equal(t, 22222, cfg.SP.Port)
	require.Equal(t, 5, cfg.SP.MaxAttempts)
	require.Equal(t, 2*time.Second, cfg.SP.PerAttemptTimeout)
	require.True(t, cfg.Metrics.Enabled)
}

func TestLoadRequiresSPAddress(t *testing.T) {
	path := writeConfig(t, "sp:\n  port: 1234\n")
	_, err := gwconfig.Load(path)
	require.Error(t, err)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "sp:\n  address: fe80::2\n  max_attempts: 9\nlog:\n  level: debug\n  json: true\n")
	cfg, err := gwconfig.Load(path)
	require.NoError(t, err)
	require.Equal(t, 9, cfg.SP.MaxAttempts)
	require.Equal(t, "debug", cfg.Log.Level)
	require.True(t, cfg.Log.JSON)
}
