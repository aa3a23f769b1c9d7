package main

import (
	"context"
	"errors"
	"os"
	"time"

	"ledgerbot/internal/amqp"
	"ledgerbot/internal/cli"
	"ledgerbot/internal/log"
	"ledgerbot/internal/middleware/ratelimit"
	"ledgerbot/internal/services"
	"ledgerbot/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	if err := cfg.ValidateAMQP(); err != nil {
		logger.Error("AMQP transport not configured", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Starting ledger-worker",
		log.FieldOperation, log.OpStartup,
		"backend", cfg.DataBackend,
		"queue", cfg.AMQPCommandQueue)

	store := cli.OpenBackend(context.Background(), logger, cfg)

	amqpClient, err := amqp.NewClient(amqp.Config{
		URL:              cfg.AMQPURL,
		Exchange:         cfg.AMQPExchange,
		CommandQueue:     cfg.AMQPCommandQueue,
		ReplyQueue:       cfg.AMQPReplyQueue,
		EventsRoutingKey: cfg.AMQPEventsRoutingKey,
	})
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	service := services.NewLedgerService(store.Ledger,
		services.WithLocation(cfg.Location()),
		services.WithEventPublisher(amqpClient))
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
	commandWorker := worker.NewCommandWorker(service, amqpClient, limiter)

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, func(context.Context) {
		limiter.Stop()
		if err := amqpClient.Close(); err != nil {
			logger.Error("AMQP close error", log.FieldError, err)
		}
		if err := store.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err)
		}
	})

	if store.Caches != nil {
		go store.Caches.Run(ctx, time.Minute)
	}

	logger.Info("Consuming commands", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPCommandQueue)
	if err := amqpClient.ConsumeCommands(ctx, commandWorker.HandleCommand); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Command consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
}
