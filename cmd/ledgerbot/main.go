package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ledgerbot/internal/amqp"
	"ledgerbot/internal/cli"
	"ledgerbot/internal/discord"
	apphttp "ledgerbot/internal/http"
	"ledgerbot/internal/log"
	"ledgerbot/internal/middleware/ratelimit"
	"ledgerbot/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	if err := cfg.ValidateDiscord(); err != nil {
		logger.Error("Discord transport not configured", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Starting ledgerbot",
		log.FieldOperation, log.OpStartup,
		"backend", cfg.DataBackend,
		"reminder_hour", cfg.ReminderHour,
		"timezone", cfg.Location().String())

	bootCtx := context.Background()
	store := cli.OpenBackend(bootCtx, logger, cfg)

	serviceOpts := []services.Option{services.WithLocation(cfg.Location())}
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(amqp.Config{
			URL:              cfg.AMQPURL,
			Exchange:         cfg.AMQPExchange,
			CommandQueue:     cfg.AMQPCommandQueue,
			ReplyQueue:       cfg.AMQPReplyQueue,
			EventsRoutingKey: cfg.AMQPEventsRoutingKey,
		})
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without ledger events", log.FieldError, err)
		} else {
			serviceOpts = append(serviceOpts, services.WithEventPublisher(amqpClient))
			logger.Info("Ledger events enabled", "exchange", cfg.AMQPExchange, "routing_key", cfg.AMQPEventsRoutingKey)
		}
	}
	service := services.NewLedgerService(store.Ledger, serviceOpts...)

	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
	botOpts := []discord.Option{discord.WithLimiter(limiter)}
	if cfg.DiscordChannelID != "" {
		botOpts = append(botOpts, discord.WithReminderChannel(cfg.DiscordChannelID))
	}
	bot, err := discord.New(cfg.DiscordBotToken, service, botOpts...)
	if err != nil {
		logger.Error("Failed to create Discord bot", log.FieldError, err)
		os.Exit(1)
	}
	if err := bot.Open(bootCtx); err != nil {
		logger.Error("Failed to connect to Discord", log.FieldError, err)
		os.Exit(1)
	}

	httpOpts := []apphttp.Option{
		apphttp.WithRateLimit(cfg.RateLimitPerMinute),
		apphttp.WithLogger(logger.WithComponent(log.ComponentHTTP)),
	}
	if store.Ready != nil {
		httpOpts = append(httpOpts, apphttp.WithReadiness(store.Ready))
	}
	srv := apphttp.NewServer(":"+cfg.Port, service, httpOpts...)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 20

	ctx, done := cli.GracefulShutdown(logger, 15*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := bot.Close(); err != nil {
			logger.Error("Discord close error", log.FieldError, err)
		}
		limiter.Stop()
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if err := store.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.DiscordChannelID != "" {
		reminders := services.NewReminderProcessor(service, bot, services.DailyAtChecker{Hour: cfg.ReminderHour})
		g.Go(func() error {
			reminders.Run(gctx, cfg.ReminderCheckInterval)
			return nil
		})
	} else {
		logger.Warn("DISCORD_CHANNEL_ID not set, daily reminder disabled")
	}
	if store.Caches != nil {
		g.Go(func() error {
			store.Caches.Run(gctx, time.Minute)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("ledgerbot stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
}
