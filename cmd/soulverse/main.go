// cmd/soulverse/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"soulverse/internal/common/config"
	httpclient "soulverse/internal/common/http"
	"soulverse/internal/common/logger"
	"soulverse/internal/common/observability"
	"soulverse/internal/gemini"
	"soulverse/internal/service"
)

const serviceName = "soulverse"

var rootCmd = &cobra.Command{
	Use:   "soulverse",
	Short: "SOULVERSE compatibility report service",
	Long: `Generates couple compatibility reports from birth data, MBTI and blood type.

Available subcommands:
  serve  - Run the HTTP API (POST/GET /compat)
  worker - Run the Zeebe job worker for compat-report jobs
  report - Generate one report and print it as JSON`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(serveCmd, workerCmd, reportCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the wired dependency graph shared by all subcommands.
type app struct {
	cfg    *config.Config
	zapLog *zap.Logger
	log    logger.Logger
	obs    *observability.Observability
	http   *httpclient.Client
	compat *service.CompatService
}

// newApp wires the shared graph. quiet discards all log output, for commands whose stdout
// is the result.
func newApp(quiet bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	zapLog, log := newLoggers(cfg, quiet)

	obs := observability.New(serviceName, observability.TracingConfig{
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		SampleRatio:    cfg.Tracing.SampleRatio,
	}, log)

	// Per-attempt deadlines are enforced by the gemini client; the transport timeout only
	// guards against a stuck connection.
	httpClient := httpclient.NewClient(2*config.GetDuration(cfg.Gemini.Timeout) + time.Second)

	client := gemini.NewClient(gemini.Config{
		APIKey:     cfg.Gemini.APIKey,
		Model:      cfg.Gemini.Model,
		BaseURL:    cfg.Gemini.BaseURL,
		APIVersion: cfg.Gemini.APIVersion,
		Timeout:    config.GetDuration(cfg.Gemini.Timeout),
		MaxRetries: cfg.Gemini.MaxRetries,
		RetryDelay: config.GetDuration(cfg.Gemini.RetryDelay),
		Generation: gemini.GenerationConfig{
			Temperature:      cfg.Gemini.Generation.Temperature,
			TopP:             cfg.Gemini.Generation.TopP,
			TopK:             cfg.Gemini.Generation.TopK,
			MaxOutputTokens:  cfg.Gemini.Generation.MaxOutputTokens,
			ResponseMimeType: cfg.Gemini.Generation.ResponseMimeType,
		},
	}, httpClient, log, obs)

	compat := service.NewCompatService(service.Config{
		Model:         cfg.Gemini.Model,
		AllowedModels: cfg.Gemini.AllowedModels,
		HasKey:        cfg.Gemini.HasKey(),
		InsightsMax:   cfg.Report.InsightsMax,
		Debug:         cfg.Debug,
	}, client, log, obs)

	log.Info("configuration loaded", map[string]interface{}{
		"model":       cfg.Gemini.Model,
		"apiVersion":  cfg.Gemini.APIVersion,
		"hasKey":      cfg.Gemini.HasKey(),
		"insightsMax": cfg.Report.InsightsMax,
		"debug":       cfg.Debug,
	})

	return &app{
		cfg:    cfg,
		zapLog: zapLog,
		log:    log,
		obs:    obs,
		http:   httpClient,
		compat: compat,
	}, nil
}

func newLoggers(cfg *config.Config, quiet bool) (*zap.Logger, logger.Logger) {
	if quiet {
		return zap.NewNop(), logger.NewNoOpLogger()
	}
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Debug)
	return zapLog, logger.NewZapAdapter(zapLog)
}

func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.obs.Shutdown(ctx)
	a.http.CloseIdleConnections()
	_ = a.zapLog.Sync()
}
