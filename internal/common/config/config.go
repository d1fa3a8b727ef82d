package config

import (
	"strings"
	"time"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Gemini  GeminiConfig  `mapstructure:"gemini"`
	Report  ReportConfig  `mapstructure:"report"`
	Camunda CamundaConfig `mapstructure:"camunda"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Logging LoggingConfig `mapstructure:"logging"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Debug   bool          `mapstructure:"debug_soulverse"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type GeminiConfig struct {
	APIKey        string           `mapstructure:"api_key"`
	Model         string           `mapstructure:"model"`
	AllowedModels []string         `mapstructure:"allowed_models"`
	BaseURL       string           `mapstructure:"base_url"`
	APIVersion    string           `mapstructure:"api_version"`
	Timeout       int              `mapstructure:"timeout"`     // milliseconds, per attempt
	MaxRetries    int              `mapstructure:"max_retries"` // capped at 1
	RetryDelay    int              `mapstructure:"retry_delay"` // milliseconds
	Generation    GenerationConfig `mapstructure:"generation"`
}

// HasKey reports whether an upstream credential is configured.
func (g GeminiConfig) HasKey() bool {
	return strings.TrimSpace(g.APIKey) != ""
}

type GenerationConfig struct {
	Temperature      float64 `mapstructure:"temperature"`
	TopP             float64 `mapstructure:"top_p"`
	TopK             int     `mapstructure:"top_k"`
	MaxOutputTokens  int     `mapstructure:"max_output_tokens"`
	ResponseMimeType string  `mapstructure:"response_mime_type"`
}

type ReportConfig struct {
	InsightsMax int `mapstructure:"insights_max"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type WorkerConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	TaskType      string `mapstructure:"task_type"`
	MaxJobsActive int    `mapstructure:"max_jobs_active"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
