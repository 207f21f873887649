package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"smartcash/internal/api"
	"smartcash/internal/config"
	"smartcash/internal/events"
	apphttp "smartcash/internal/http"
	"smartcash/internal/ledger"
	"smartcash/internal/log"
	"smartcash/internal/session"
	"smartcash/internal/storage"
)

func main() {
	// Load .env for local development; absent in production is fine.
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
	if err != nil {
		logger.Error("Failed to open session storage", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer repo.Close()

	sessions := session.NewStore(repo, cfg.SessionTTL, logger)
	defer sessions.Close()
	sessions.OnExpire(func() {
		logger.Info("Session expired, user forcibly signed out",
			log.FieldOperation, log.OpExpire)
	})

	// Restore a persisted session so a restart within the TTL stays signed in.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if sess, err := sessions.Restore(startupCtx); err != nil {
		logger.Warn("Failed to restore persisted session", log.FieldError, err.Error())
	} else if sess != nil {
		logger.Info("Restored persisted session",
			log.FieldOperation, log.OpRestore,
			log.FieldUserID, sess.User.ID)
	}
	startupCancel()

	client := api.NewClient(cfg.APIBaseURL, cfg.APITimeout, logger)

	// Event publishing is optional; without a broker URL mutations simply
	// are not announced.
	var publisher ledger.Publisher
	if cfg.AMQPURL != "" {
		eventsClient, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP broker", log.FieldError, err.Error())
			os.Exit(1)
		}
		defer eventsClient.Close()
		publisher = eventsClient
		logger.Info("Event publishing enabled",
			log.FieldExchange, cfg.AMQPExchange,
			log.FieldQueue, cfg.AMQPQueue)
	}

	vm := ledger.NewViewModel(client, publisher, logger)

	srv := apphttp.NewServer(":"+cfg.Port, sessions, vm, client, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received",
			log.FieldOperation, log.OpShutdown,
			"signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		cancel()
	}()

	logger.Info("Starting smartcash server",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"api_base_url", cfg.APIBaseURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error())
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
