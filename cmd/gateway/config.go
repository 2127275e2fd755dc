package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// Environment variables overriding file-based secrets.
const (
	envBundlePassword = "EJBCA_BUNDLE_PASSWORD"
	envDatabaseDSN    = "GATEWAY_DB_DSN"
)

// config contains the gateway configuration.
type config struct {
	EJBCA     *ejbcaConfig    `json:"ejbca"`
	Server    *serverConfig   `json:"server,omitempty"`
	Database  *databaseConfig `json:"database,omitempty"`
	RateLimit int             `json:"rate_limit"`
	LogLevel  string          `json:"log_level"`
	Logfile   string          `json:"log_file"`
}

// ejbcaConfig contains the remote CA connection settings.
type ejbcaConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	Protocol       string `json:"protocol"`
	BundlePath     string `json:"bundle_path"`
	BundlePassword string `json:"bundle_password"`
	Timeout        int    `json:"timeout"`
}

// serverConfig contains the HTTP listener settings. RenewalKeyFile names
// a PEM private key used to sign replacement CSRs for the certificate
// renewal endpoint; renewal stays disabled without it.
type serverConfig struct {
	ListenAddr     string `json:"listen_address"`
	RenewalKeyFile string `json:"renewal_key_file,omitempty"`
}

// databaseConfig contains the audit store settings. When absent, audit
// storage is disabled.
type databaseConfig struct {
	Type string `json:"type"`
	DSN  string `json:"dsn"`
}

// configFromFile returns a new gateway configuration from a JSON-encoded
// configuration file, with secret overrides applied from the environment.
func configFromFile(filename string) (*config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.EJBCA == nil {
		return nil, fmt.Errorf("configuration is missing the ejbca section")
	}
	if cfg.EJBCA.Host == "" {
		return nil, fmt.Errorf("configuration is missing ejbca.host")
	}
	if cfg.EJBCA.BundlePath == "" {
		return nil, fmt.Errorf("configuration is missing ejbca.bundle_path")
	}

	if password := os.Getenv(envBundlePassword); password != "" {
		cfg.EJBCA.BundlePassword = password
	}
	if dsn := os.Getenv(envDatabaseDSN); dsn != "" {
		if cfg.Database == nil {
			cfg.Database = &databaseConfig{Type: "sqlite"}
		}
		cfg.Database.DSN = dsn
	}

	return &cfg, nil
}

const sample = `{
    "ejbca": {
        "host": "ca.example.org",
        "port": 8443,
        "protocol": "https",
        "bundle_path": "/etc/gateway/credentials.p12",
        "bundle_password": "set via EJBCA_BUNDLE_PASSWORD instead",
        "timeout": 30
    },
    "server": {
        "listen_address": ":8000",
        "renewal_key_file": "/etc/gateway/renewal-key.pem"
    },
    "database": {
        "type": "sqlite",
        "dsn": "/var/lib/gateway/audit.db"
    },
    "rate_limit": 150,
    "log_level": "info",
    "log_file": "/var/log/gateway.log"
}`

// sampleConfig outputs a sample configuration file.
func sampleConfig() {
	fmt.Println(sample)
}
