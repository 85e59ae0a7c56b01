package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prisvakt/compliance-service/internal/compliance"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadFromYAML(t, "")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "NO", cfg.Compliance.CountryCode)
	assert.Equal(t, 110, cfg.Compliance.MaxSaleDays)
	assert.Equal(t, 28, cfg.Compliance.MinGapDays)
	assert.Equal(t, 6*time.Hour, cfg.Scan.Interval)
	assert.Equal(t, "compliance.changed", cfg.Kafka.Topic)
}

func TestLoadFromFile(t *testing.T) {
	cfg, err := loadFromYAML(t, `
server:
  port: 8080
compliance:
  max_sale_days: 56
  min_gap_days: 30
scan:
  interval: 1h
`)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Scan.Interval)

	rs, err := cfg.Compliance.RuleSet()
	require.NoError(t, err)
	assert.Equal(t, compliance.CountryNorway, rs.CountryCode)
	require.Len(t, rs.Rules, 3)
	assert.Equal(t, 56, *rs.Rules[1].Parameters.MaxSaleDays)
	assert.Equal(t, 30, *rs.Rules[2].Parameters.MinGapDays)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("PRICE_COMPLIANCE_SCAN_CONCURRENCY", "3")

	cfg, err := loadFromYAML(t, "")
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, 3, cfg.Scan.Concurrency)
	assert.Equal(t, "postgres://env/db", GetDatabaseURL())
}

func TestRuleSetFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
country_code: no
rules:
  - rule_type: saleDuration
    parameters:
      max_sale_days: 56
`), 0o644))

	rs, err := ComplianceConfig{RulesFile: path, LookbackDays: 45}.RuleSet()
	require.NoError(t, err)
	require.Len(t, rs.Rules, 1)
	assert.Equal(t, "NO", rs.CountryCode)
	// the file has no reference price rule, so the configured lookback applies
	assert.Equal(t, 45, rs.Defaults.LookbackDays)
	assert.Equal(t, 45, rs.LookbackDays())
}

func loadFromYAML(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return Load(path)
}
