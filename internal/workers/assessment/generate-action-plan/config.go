// internal/workers/assessment/generate-action-plan/config.go
package generateactionplan

import (
	"time"

	"psychosocial-workers/internal/common/config"
)

// Generation loads, scores and persists in one call, so the default timeout
// is wider than the intake workers'.
type Config struct {
	Timeout time.Duration
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Config{
		Timeout: timeout,
	}
}
