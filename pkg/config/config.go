// Package config loads engine configuration: process-level settings
// from environment variables, detector and policy tunables from an
// optional YAML overrides file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/veracity-labs/veracity/pkg/confidence"
	"github.com/veracity-labs/veracity/pkg/deception"
	"github.com/veracity-labs/veracity/pkg/ledger"
)

// Config holds process configuration.
type Config struct {
	LogLevel     string
	AuditLogPath string
	ProfileDB    string // SQLite path; empty means in-memory profiles
	OTLPEndpoint string

	Confidence confidence.Tunables
	Deception  deception.Tunables
	Ledger     ledger.Tunables
}

// Load loads configuration from environment variables, with every
// tunable at its hand-tuned default.
func Load() *Config {
	logLevel := os.Getenv("VERACITY_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	auditPath := os.Getenv("VERACITY_AUDIT_LOG")
	profileDB := os.Getenv("VERACITY_PROFILE_DB")
	otlp := os.Getenv("VERACITY_OTLP_ENDPOINT")

	return &Config{
		LogLevel:     logLevel,
		AuditLogPath: auditPath,
		ProfileDB:    profileDB,
		OTLPEndpoint: otlp,

		Confidence: confidence.DefaultTunables(),
		Deception:  deception.DefaultTunables(),
		Ledger:     ledger.DefaultTunables(),
	}
}

// overrides is the YAML shape of a tunables file. Sections and keys
// are optional; decoding lands on the defaults in place, so anything
// absent keeps its hand-tuned value.
type overrides struct {
	Confidence *confidence.Tunables `yaml:"confidence"`
	Deception  *deception.Tunables  `yaml:"deception"`
	Ledger     *ledger.Tunables     `yaml:"ledger"`
}

// LoadFile loads environment configuration and then applies tunable
// overrides from a YAML file.
func LoadFile(path string) (*Config, error) {
	cfg := Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}

	o := overrides{
		Confidence: &cfg.Confidence,
		Deception:  &cfg.Deception,
		Ledger:     &cfg.Ledger,
	}
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	if cfg.Confidence.TimingProfiles == nil {
		cfg.Confidence.TimingProfiles = confidence.DefaultTimingProfiles()
	}
	return cfg, nil
}
