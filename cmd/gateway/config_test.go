package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigFromFile(t *testing.T) {
	path := writeConfig(t, `{
		"ejbca": {
			"host": "ca.example.org",
			"port": 8443,
			"bundle_path": "/etc/gateway/credentials.p12",
			"bundle_password": "from-file"
		},
		"server": {"listen_address": ":9000", "renewal_key_file": "/etc/gateway/renewal-key.pem"},
		"database": {"type": "sqlite", "dsn": "/tmp/audit.db"},
		"rate_limit": 100,
		"log_level": "debug"
	}`)

	cfg, err := configFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "ca.example.org", cfg.EJBCA.Host)
	assert.Equal(t, 8443, cfg.EJBCA.Port)
	assert.Equal(t, "from-file", cfg.EJBCA.BundlePassword)
	assert.Equal(t, ":9000", cfg.Server.ListenAddr)
	assert.Equal(t, "/etc/gateway/renewal-key.pem", cfg.Server.RenewalKeyFile)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, 100, cfg.RateLimit)
}

func TestConfigEnvOverrides(t *testing.T) {
	t.Setenv(envBundlePassword, "from-env")
	t.Setenv(envDatabaseDSN, "/var/lib/gateway/audit.db")

	path := writeConfig(t, `{
		"ejbca": {
			"host": "ca.example.org",
			"bundle_path": "/etc/gateway/credentials.p12",
			"bundle_password": "from-file"
		}
	}`)

	cfg, err := configFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.EJBCA.BundlePassword)
	require.NotNil(t, cfg.Database)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "/var/lib/gateway/audit.db", cfg.Database.DSN)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing ejbca section", `{}`, "missing the ejbca section"},
		{"missing host", `{"ejbca": {"bundle_path": "/x.p12"}}`, "missing ejbca.host"},
		{"missing bundle path", `{"ejbca": {"host": "ca"}}`, "missing ejbca.bundle_path"},
		{"malformed json", `{`, "unexpected end"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := configFromFile(writeConfig(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
