package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xoobay/agent-commerce/internal/arbiter/config"
	"github.com/xoobay/agent-commerce/internal/arbiter/httpapi"
	"github.com/xoobay/agent-commerce/internal/arbiter/service"
	"github.com/xoobay/agent-commerce/internal/arbiter/store"
	"github.com/xoobay/agent-commerce/internal/events"
	"github.com/xoobay/agent-commerce/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if cfg.Environment == "development" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting arbitration agent",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"store", cfg.StoreType,
		"confirmation_timeout", cfg.ConfirmationTimeout,
	)

	var caseStore store.CaseStore
	if cfg.StoreType == "mongo" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			slog.Error("failed to connect to mongodb", "error", err)
			os.Exit(1)
		}
		if err := mongoClient.Ping(ctx, nil); err != nil {
			slog.Error("failed to ping mongodb", "error", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mongoClient.Disconnect(ctx); err != nil {
				slog.Error("failed to disconnect mongodb", "error", err)
			}
		}()

		mongoStore := store.NewMongoCaseStore(mongoClient, cfg.MongoDB, "cases")
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			slog.Warn("failed to create indexes", "error", err)
		}
		caseStore = mongoStore
		slog.Info("using mongodb store", "uri", cfg.MongoURI, "db", cfg.MongoDB)
	} else {
		caseStore = store.NewMemoryCaseStore()
		slog.Info("using in-memory store")
	}

	notifier := notify.NewNotifier(cfg.AgentName, 30*time.Second, notify.RetryConfig{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.RetryDelay,
		MaxBackoff:     cfg.RetryMaxDelay,
	})

	publisher := events.NewPublisher(cfg.AgentName)
	publisher.RegisterEndpoint(events.EventCaseDecided, cfg.CaseEventsWebhookURL)
	publisher.RegisterEndpoint(events.EventCaseEscalated, cfg.CaseEventsWebhookURL)
	publisher.RegisterEndpoint(events.EventCaseExecuted, cfg.CaseEventsWebhookURL)

	svc := service.New(caseStore, notifier, publisher, cfg.ConfirmationTimeout)
	router := httpapi.NewRouter(svc, cfg.AgentName)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
