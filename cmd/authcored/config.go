package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aptos-labs/authcore/internal/verify/oidc"
)

// Config is the demo host's static configuration: listen address, the
// privileged-operation bearer token, and the OIDC issuer key sets to
// bootstrap (spec §3 "Issuer key set", §6 update_keys/get_keys).
type Config struct {
	ListenAddr      string           `yaml:"listen_addr"`
	PrivilegedToken string           `yaml:"privileged_token"`
	OIDCIssuers     []IssuerKeysYAML `yaml:"oidc_issuers"`
}

// IssuerKeysYAML is one issuer's bootstrap key set (spec §3: exactly
// oidc.KeySetSize keys per issuer).
type IssuerKeysYAML struct {
	Issuer string     `yaml:"issuer"`
	Keys   []oidc.Key `yaml:"keys"`
}

// DefaultConfig returns the configuration used when no -config file is
// given.
func DefaultConfig() Config {
	return Config{ListenAddr: ":8080"}
}

// LoadConfig reads and parses a YAML config file at path.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("authcored: read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("authcored: parse config: %w", err)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	return cfg, nil
}
