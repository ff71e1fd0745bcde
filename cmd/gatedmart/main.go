// Package main запускает HTTP-сервер бота маркетплейса.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/gatedmart/internal/bot"
	"github.com/mmeshcher/gatedmart/internal/cart"
	"github.com/mmeshcher/gatedmart/internal/config"
	"github.com/mmeshcher/gatedmart/internal/handler"
	"github.com/mmeshcher/gatedmart/internal/i18n"
	"github.com/mmeshcher/gatedmart/internal/messenger"
	"github.com/mmeshcher/gatedmart/internal/middleware"
	"github.com/mmeshcher/gatedmart/internal/model"
	"github.com/mmeshcher/gatedmart/internal/repository"
	"github.com/mmeshcher/gatedmart/internal/service"
)

const sessionTTL = 24 * time.Hour

type store interface {
	service.Repository
	repository.ItemWriter
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var repo store
	if cfg.DatabaseURI != "" {
		repo, err = repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
	} else {
		sugar.Warn("DATABASE_URI is empty, data is kept in memory")
		repo = repository.NewMemoryRepository()
	}

	if cfg.CatalogFile != "" {
		n, err := repository.SeedCatalogFile(context.Background(), repo, cfg.CatalogFile)
		if err != nil {
			sugar.Fatalw("catalog loading error", "error", err.Error())
		}
		sugar.Infow("catalog loaded", "items", n)
	}

	var sessions cart.Store = cart.NewMemoryStore()
	if cfg.RedisAddress != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		sessions = cart.NewRedisStore(rdb, sessionTTL)
	}

	svc := service.NewService(repo, sessions, cfg.AdminID, model.Language(cfg.DefaultLanguage))
	defer svc.Close()

	client := messenger.NewClient(cfg.BotAPIAddress, cfg.BotToken, logger)
	b := bot.New(svc, client, i18n.MustLoad(), logger)

	auth := middleware.NewWebhookAuth(cfg.WebhookSecret)
	if !auth.Enabled() {
		sugar.Warn("WEBHOOK_SECRET is empty, webhook requests are not authenticated")
	}

	h := handler.NewHandler(b, logger, auth)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting gatedmart server", "addr", cfg.RunAddress, "admin", cfg.AdminID)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
