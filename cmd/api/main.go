package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jihongxing/influencer-giveaway/internal/app"
	"github.com/jihongxing/influencer-giveaway/internal/clock"
	"github.com/jihongxing/influencer-giveaway/internal/config"
	"github.com/jihongxing/influencer-giveaway/internal/metrics"
	"github.com/jihongxing/influencer-giveaway/internal/storage/postgres"
	transporthttp "github.com/jihongxing/influencer-giveaway/internal/transport/http"
	"github.com/jihongxing/influencer-giveaway/migrations"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	logger := newLogger(cfg.Environment)
	defer func() { _ = logger.Sync() }()

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	clk := clock.NewSystem()

	stockRepo := postgres.NewItemRepository(pool)
	stockSvc := app.NewStockService(stockRepo, clk, logger, m)

	orderRepo := postgres.NewOrderRepository(pool)
	orderSvc := app.NewOrderService(orderRepo, stockSvc, clk, logger, m,
		app.FeePolicy{
			PackagingFeePerUnit: cfg.PackagingFeePerUnit,
			DefaultBaseShipping: cfg.DefaultBaseShipping,
			PlatformFeePercent:  cfg.PlatformFeePercent,
		},
		app.WithPaymentWindow(cfg.PaymentWindow),
	)

	paymentRepo := postgres.NewPaymentRepository(pool)
	dispatcher := app.NewLogDispatcher(logger)
	paymentSvc := app.NewPaymentService(paymentRepo, stockSvc, dispatcher, clk, logger, m)

	adminRepo := postgres.NewAdminRepository(pool)
	adminSvc := app.NewAdminService(adminRepo, clk)

	accessRepo := postgres.NewAccessRepository(pool)
	accessSvc := app.NewAccessService(accessRepo, clk)

	reaper := app.NewReaper(orderSvc, clk, logger, m, cfg.ReaperInterval)
	watchdog := app.NewWatchdog(paymentRepo, clk, logger, m, cfg.WatchdogInterval, cfg.ShippingSLA)

	sweepCtx, stopSweeps := context.WithCancel(context.Background())
	defer stopSweeps()
	go reaper.Start(sweepCtx)
	go watchdog.Start(sweepCtx)

	handler := transporthttp.NewRouter(transporthttp.Services{
		Orders:      orderSvc,
		Payments:    paymentSvc,
		Admin:       adminSvc,
		Access:      accessSvc,
		OrderReaper: reaper,
		Watchdog:    watchdog,
	}, logger, parseCSV(cfg.CORSOrigins))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	logger.Info("api listening", zap.String("port", cfg.Port))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	stopSweeps()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(environment string) *zap.Logger {
	var logger *zap.Logger
	var err error
	if environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	return logger
}

func parseCSV(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
