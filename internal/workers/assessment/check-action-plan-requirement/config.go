// internal/workers/assessment/check-action-plan-requirement/config.go
package checkactionplanrequirement

import (
	"time"

	"psychosocial-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Config{
		Timeout: timeout,
	}
}
