// internal/workers/compat-report/config.go
package compatreport

import "time"

type Config struct {
	TaskType string
	Timeout  time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		TaskType: TaskType,
		Timeout:  60 * time.Second,
	}
}
