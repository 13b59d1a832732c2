// internal/common/config/loader_test.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
app:
  name: test
camunda:
  broker_address: "localhost:26500"
database:
  postgres:
    host: localhost
    database: jobmatch
    user: tester
  redis:
    address: "localhost:6379"
%s
`

func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(minimalConfig, extra)), 0o644))
	return path
}

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 0.6, cfg.Scoring.SkillWeight)
	assert.Equal(t, 0.25, cfg.Scoring.LocationWeight)
	assert.Equal(t, 0.15, cfg.Scoring.SalaryWeight)
	assert.Equal(t, 3, cfg.Lifecycle.MaxSubmissionAttempts)
	assert.Equal(t, 30, cfg.Lifecycle.SubmissionDeadlineMin)
	assert.Equal(t, 168, cfg.Outreach.CooldownHours)
	assert.Equal(t, 2, cfg.Outreach.MaxAttempts)
}

func TestLoadFromFileRejectsBadWeightSum(t *testing.T) {
	path := writeConfig(t, `
scoring:
  skill_weight: 0.6
  location_weight: 0.25
  salary_weight: 0.25
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1.0")
}

func TestLoadFromFileRejectsNegativeWeight(t *testing.T) {
	path := writeConfig(t, `
scoring:
  skill_weight: 1.2
  location_weight: -0.1
  salary_weight: -0.1
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-negative")
}

func TestLoadFromFileAcceptsCustomWeights(t *testing.T) {
	path := writeConfig(t, `
scoring:
  skill_weight: 0.5
  location_weight: 0.3
  salary_weight: 0.2
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Scoring.SkillWeight)
}

func TestGetWorkerConfigFallback(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"rank-jobs": {Enabled: false, MaxJobsActive: 2, Timeout: 1000},
	}}

	known := GetWorkerConfig(cfg, "rank-jobs")
	assert.False(t, known.Enabled)
	assert.Equal(t, 2, known.MaxJobsActive)

	fallback := GetWorkerConfig(cfg, "unconfigured")
	assert.True(t, fallback.Enabled)
	assert.Equal(t, 5, fallback.MaxJobsActive)

	assert.False(t, IsWorkerEnabled(cfg, "rank-jobs"))
	assert.True(t, IsWorkerEnabled(cfg, "unconfigured"))
}
