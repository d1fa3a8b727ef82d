package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"soulverse/internal/common/camunda"
	"soulverse/internal/common/config"
	compatreport "soulverse/internal/workers/compat-report"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the compat-report job worker",
	Long: `Connect to the Zeebe gateway and complete compat-report jobs.

Job variables use the same field names as the POST /compat body. Completed jobs receive
compatTopic and compatReport; failures carry errorCode and errorDetails.`,
	RunE: runWorker,
}

// compatWorker owns the gateway connection and the open job worker.
type compatWorker struct {
	client *camunda.Client
	worker *camunda.CamundaWorker
}

func (w *compatWorker) Close() {
	w.worker.Stop()
	_ = w.client.Close()
}

func startCompatWorker(ctx context.Context, a *app) (*compatWorker, error) {
	if a.cfg.Camunda.BrokerAddress == "" {
		return nil, errors.New("camunda.broker_address is required to run the worker")
	}

	client, err := camunda.Connect(ctx, &camunda.ClientConfig{
		GatewayAddress:         a.cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(a.cfg.Camunda.RequestTimeout),
	}, a.log)
	if err != nil {
		return nil, err
	}
	a.log.Info("Zeebe client connected successfully", map[string]interface{}{
		"gateway": a.cfg.Camunda.BrokerAddress,
	})

	handler := compatreport.NewHandler(&compatreport.Config{
		TaskType: a.cfg.Worker.TaskType,
		Timeout:  config.GetDuration(a.cfg.Worker.Timeout),
	}, a.compat, a.log, a.obs)

	w := camunda.StartWorker(client.GetClient(), camunda.WorkerOptions{
		TaskType:      a.cfg.Worker.TaskType,
		MaxJobsActive: a.cfg.Worker.MaxJobsActive,
		Timeout:       config.GetDuration(a.cfg.Worker.Timeout),
	}, handler.Handle, a.log)

	return &compatWorker{client: client, worker: w}, nil
}

func runWorker(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := startCompatWorker(ctx, a)
	if err != nil {
		return err
	}

	<-ctx.Done()
	a.log.Info("Shutdown signal received, stopping worker", nil)
	w.Close()
	a.log.Info("Worker stopped", nil)
	return nil
}
