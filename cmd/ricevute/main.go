package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"ricevute/internal/amqp"
	"ricevute/internal/cli"
	apphttp "ricevute/internal/http"
	"ricevute/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	cfg := cli.LoadAndValidateConfig(logger)
	res := cli.InitBackend(logger, cfg)

	// AMQP is optional: without it the app runs, it just does not announce
	// saved reorders to the sync worker.
	var publisher services.SyncPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, taxonomy sync messages disabled", "error", err)
		} else {
			amqpClient = client
			publisher = client
		}
	}

	session, err := services.NewTaxonomySession(context.Background(), res.Backend, publisher)
	if err != nil {
		logger.Error("Failed to load taxonomy", "error", err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, session, services.NewReceiptService(res.Backend), cfg.DialogTTL)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		srv.Stop()
		if amqpClient != nil {
			amqpClient.Close()
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting ricevute server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
