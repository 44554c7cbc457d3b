// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: ${TEST_DB_HOST}
    database: risk
    user: risk
  redis:
    address: localhost:6379
workers:
  generate-action-plan:
    enabled: true
`

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	t.Setenv("TEST_DB_HOST", "db.internal")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "risk-analyses", cfg.Database.Elasticsearch.AnalysisIndex)

	assert.Equal(t, 3, cfg.Scheduler.Concurrency)
	assert.Equal(t, 10, cfg.Scheduler.BatchSize)
	assert.Equal(t, 3, cfg.Scheduler.MaxRetries)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 15 * time.Second}, cfg.Scheduler.Backoff())
	assert.Equal(t, 600, cfg.Cache.CriteriaTTL)
	assert.False(t, cfg.Observability.Tracing.Enabled)
	assert.Equal(t, 1.0, cfg.Observability.Tracing.SampleRate)

	w := GetWorkerConfig(cfg, "generate-action-plan")
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing broker",
			body: `
database:
  postgres: {host: db, database: risk, user: risk}
  redis: {address: localhost:6379}
`,
		},
		{
			name: "elasticsearch enabled without addresses",
			body: `
camunda: {broker_address: localhost:26500}
database:
  postgres: {host: db, database: risk, user: risk}
  redis: {address: localhost:6379}
  elasticsearch: {enabled: true}
`,
		},
		{
			name: "email enabled without sender",
			body: `
camunda: {broker_address: localhost:26500}
database:
  postgres: {host: db, database: risk, user: risk}
  redis: {address: localhost:6379}
notifications:
  email: {enabled: true}
`,
		},
		{
			name: "tracing enabled without collector",
			body: `
camunda: {broker_address: localhost:26500}
database:
  postgres: {host: db, database: risk, user: risk}
  redis: {address: localhost:6379}
observability:
  tracing: {enabled: true}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestWorkerConfigFallbacks(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"check-action-plan-requirement": {Enabled: false},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "check-action-plan-requirement"))
	assert.True(t, IsWorkerEnabled(cfg, "enqueue-assessment-processing"))
	assert.Equal(t, 5, GetWorkerConfig(cfg, "enqueue-assessment-processing").MaxJobsActive)
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}
