package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultModel      = "gemini-1.5-flash"
	DefaultBaseURL    = "https://generativelanguage.googleapis.com"
	DefaultAPIVersion = "v1"
	DefaultTaskType   = "compat-report"
)

// DefaultAllowedModels is the model allow-list used when none is configured.
var DefaultAllowedModels = []string{"gemini-1.5-flash", "gemini-1.5-pro", "gemini-pro", "gemini-pro-vision"}

// Load reads .env, an optional config.yaml and the environment, in that order of precedence
// from lowest to highest.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	return loadFrom(v)
}

func loadFrom(v *viper.Viper) (*Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// bindEnv registers keys whose env name differs from the dotted key, and keys that must be
// visible to Unmarshal without a config file.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("gemini.api_key", "GOOGLE_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("gemini.model", "GEMINI_MODEL")
	_ = v.BindEnv("gemini.base_url", "GEMINI_BASE_URL")
	_ = v.BindEnv("gemini.api_version", "GEMINI_API_VERSION")
	_ = v.BindEnv("gemini.timeout", "GEMINI_TIMEOUT")
	_ = v.BindEnv("report.insights_max", "REPORT_INSIGHTS_MAX")
	_ = v.BindEnv("debug_soulverse", "DEBUG_SOULVERSE")
	_ = v.BindEnv("server.address", "SERVER_ADDRESS")
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT")
	_ = v.BindEnv("worker.enabled", "WORKER_ENABLED")
	_ = v.BindEnv("camunda.broker_address", "CAMUNDA_BROKER_ADDRESS", "ZEEBE_ADDRESS")
	_ = v.BindEnv("tracing.jaeger_endpoint", "JAEGER_ENDPOINT")
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.Gemini.APIKey == "" {
		for _, name := range []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"} {
			if val := os.Getenv(name); val != "" {
				cfg.Gemini.APIKey = val
				break
			}
		}
	}
	cfg.Gemini.APIKey = strings.TrimSpace(cfg.Gemini.APIKey)
	cfg.Gemini.Model = NormalizeModel(cfg.Gemini.Model)
}

// NormalizeModel trims the name and strips a leading "models/" resource prefix.
func NormalizeModel(model string) string {
	return strings.TrimPrefix(strings.TrimSpace(model), "models/")
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "soulverse"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	// Server defaults
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}

	// Gemini defaults
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = DefaultModel
	}
	if len(cfg.Gemini.AllowedModels) == 0 {
		cfg.Gemini.AllowedModels = append([]string(nil), DefaultAllowedModels...)
	}
	if cfg.Gemini.BaseURL == "" {
		cfg.Gemini.BaseURL = DefaultBaseURL
	}
	cfg.Gemini.BaseURL = strings.TrimRight(cfg.Gemini.BaseURL, "/")
	if cfg.Gemini.APIVersion == "" {
		cfg.Gemini.APIVersion = DefaultAPIVersion
	}
	if cfg.Gemini.Timeout <= 0 {
		cfg.Gemini.Timeout = 20000
	}
	// A negative value disables the retry; zero means unset.
	switch {
	case cfg.Gemini.MaxRetries < 0:
		cfg.Gemini.MaxRetries = 0
	case cfg.Gemini.MaxRetries == 0, cfg.Gemini.MaxRetries > 1:
		cfg.Gemini.MaxRetries = 1
	}
	if cfg.Gemini.RetryDelay <= 0 {
		cfg.Gemini.RetryDelay = 300
	}

	gen := &cfg.Gemini.Generation
	if gen.Temperature == 0 {
		gen.Temperature = 0.6
	}
	if gen.TopP == 0 {
		gen.TopP = 0.9
	}
	if gen.TopK == 0 {
		gen.TopK = 40
	}
	if gen.MaxOutputTokens == 0 {
		gen.MaxOutputTokens = 800
	}
	if gen.ResponseMimeType == "" {
		gen.ResponseMimeType = "application/json"
	}

	// Report defaults
	switch {
	case cfg.Report.InsightsMax <= 0:
		cfg.Report.InsightsMax = 3
	case cfg.Report.InsightsMax < 3:
		cfg.Report.InsightsMax = 3
	case cfg.Report.InsightsMax > 5:
		cfg.Report.InsightsMax = 5
	}

	// Worker defaults
	if cfg.Worker.TaskType == "" {
		cfg.Worker.TaskType = DefaultTaskType
	}
	if cfg.Worker.MaxJobsActive == 0 {
		cfg.Worker.MaxJobsActive = 5
	}
	if cfg.Worker.Timeout == 0 {
		cfg.Worker.Timeout = 60000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Tracing.SampleRatio <= 0 || cfg.Tracing.SampleRatio > 1 {
		cfg.Tracing.SampleRatio = 1
	}
}

// validateConfig rejects settings the process cannot start with. A missing credential or an
// unknown model is not one of them; both are reported per request.
func validateConfig(cfg *Config) error {
	if cfg.Worker.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when worker.enabled is set")
	}
	if !strings.HasPrefix(cfg.Gemini.BaseURL, "http://") && !strings.HasPrefix(cfg.Gemini.BaseURL, "https://") {
		return fmt.Errorf("gemini.base_url must be an http(s) URL, got %q", cfg.Gemini.BaseURL)
	}
	return nil
}
