// Package main запускает HTTP-сервер сервиса ресторана.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/restaurant-system/internal/config"
	"github.com/mmeshcher/restaurant-system/internal/handler"
	"github.com/mmeshcher/restaurant-system/internal/middleware"
	"github.com/mmeshcher/restaurant-system/internal/payment"
	"github.com/mmeshcher/restaurant-system/internal/repository"
	"github.com/mmeshcher/restaurant-system/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	// Без адреса платёжной системы пополнения зачисляются сразу.
	var gateway service.PaymentGateway
	if cfg.PaymentSystemAddress != "" {
		gateway = payment.NewClient(cfg.PaymentSystemAddress)
	}

	svc := service.NewService(repo, gateway, logger, cfg.DeliveryFee)
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.ManagerEmail != "" && cfg.ManagerPassword != "" {
		if err := svc.EnsureManager(ctx, cfg.ManagerEmail, cfg.ManagerPassword); err != nil {
			sugar.Fatalw("manager bootstrap error", "error", err.Error())
		}
		sugar.Infow("manager account ready", "email", cfg.ManagerEmail)
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фоновой сверки пополнений
	g.Go(func() error {
		svc.RunDepositReconciler(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting restaurant server", "addr", cfg.RunAddress, "deliveryFee", cfg.DeliveryFee.String())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

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
