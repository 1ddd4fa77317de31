package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"dotproduct/internal/amqp"
	"dotproduct/internal/auth"
	"dotproduct/internal/cli"
	"dotproduct/internal/config"
	apphttp "dotproduct/internal/http"
	"dotproduct/internal/log"
	"dotproduct/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger(nil).Error("Configuration validation failed",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	addr := cfg.Addr()

	repo, err := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	var publisher services.Publisher = amqp.NopPublisher{}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, domain events disabled", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("Publishing domain events", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP_URL not set, domain events disabled")
	}

	authSvc, err := auth.NewService(repo, auth.Config{
		SessionTTL:       cfg.SessionTTL,
		BcryptCost:       cfg.BcryptCost,
		IdentityCacheTTL: cfg.IdentityCacheTTL,
	}, logger)
	if err != nil {
		return err
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               addr,
		Auth:               authSvc,
		Finance:            services.NewFinanceService(repo, publisher, logger),
		Logger:             logger,
		Ping:               repo.Ping,
		SessionCookieName:  cfg.SessionCookieName,
		CSRFCookieName:     cfg.CSRFCookieName,
		CookieSecure:       cfg.CookieSecure,
		CSRFEnforce:        cfg.CSRFEnforce,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AuthRateLimit:      cfg.AuthRateLimit,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting dotproduct server", "addr", addr, log.FieldOperation, log.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return authSvc.RunJanitor(gctx, cfg.SessionCleanupInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
			return err
		}
		return nil
	})

	return g.Wait()
}
