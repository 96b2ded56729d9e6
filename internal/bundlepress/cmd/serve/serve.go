// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

// Package serve wires the full service together and runs it: database,
// redis queue, resilience gate, provider factory, background loops and the
// HTTP surface, with graceful shutdown on SIGINT/SIGTERM.
package serve

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/innovationmech/bundlepress/internal/bundlepress/config"
	"github.com/innovationmech/bundlepress/internal/bundlepress/db"
	orderhandler "github.com/innovationmech/bundlepress/internal/bundlepress/handler/http/order"
	trackinghandler "github.com/innovationmech/bundlepress/internal/bundlepress/handler/http/tracking"
	webhookhandler "github.com/innovationmech/bundlepress/internal/bundlepress/handler/http/webhook"
	"github.com/innovationmech/bundlepress/internal/bundlepress/provider"
	"github.com/innovationmech/bundlepress/internal/bundlepress/queue"
	"github.com/innovationmech/bundlepress/internal/bundlepress/repository"
	"github.com/innovationmech/bundlepress/internal/bundlepress/router"
	"github.com/innovationmech/bundlepress/internal/bundlepress/service/fulfillment"
	"github.com/innovationmech/bundlepress/internal/bundlepress/service/reconcile"
	"github.com/innovationmech/bundlepress/internal/bundlepress/service/retry"
	"github.com/innovationmech/bundlepress/pkg/logger"
	"github.com/innovationmech/bundlepress/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the bundlepress fulfillment server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			logger.InitLogger()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	log := logger.GetLogger()
	log.Info("starting bundlepress server")

	cfg := config.GetConfig()

	database := db.GetDB()
	if err := db.AutoMigrate(database); err != nil {
		log.Error("database migration failed", zap.Error(err))
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	gateMetrics := resilience.NewGateMetrics(registry)

	breaker, err := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "provider",
		FailureThreshold: cfg.Resilience.FailureThreshold,
		Cooldown:         cfg.CooldownDuration(),
		MaxProbes:        1,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.GetLogger().Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			gateMetrics.ObserveState(name, to)
		},
	})
	if err != nil {
		return err
	}
	limiter := resilience.NewRateLimiter(cfg.Resilience.RateLimitMax, cfg.RateWindowDuration())
	gate := resilience.NewGate(breaker, limiter, gateMetrics)

	trackingRepo := repository.NewTrackingRepository(database)
	settingRepo := repository.NewSettingRepository(database)
	factory := provider.NewFactory(settingRepo, gate, cfg)

	jobs := queue.NewQueue(rdb)
	svc := fulfillment.NewService(trackingRepo, factory, jobs, cfg.BalanceFloor)
	worker := fulfillment.NewWorker(svc, jobs)
	settlement := reconcile.NewSettlementLog(registry)
	reconciler := reconcile.NewReconciler(trackingRepo, factory, settlement, settlement, cfg.CallDelay())
	scheduler := retry.NewScheduler(trackingRepo, factory, resilience.DefaultSchedule(), cfg.Retry.MaxAttempts)

	engine, err := router.New(registry,
		orderhandler.NewRouteRegistrar(orderhandler.NewController(svc)),
		trackinghandler.NewRouteRegistrar(trackinghandler.NewController(trackingRepo, scheduler, factory)),
		webhookhandler.NewRouteRegistrar(webhookhandler.NewController(trackingRepo, factory, reconciler, cfg.Webhook.Secret)),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go worker.Run(ctx)
	go reconciler.Run(ctx, cfg.SweepInterval())
	go scheduler.Run(ctx, cfg.SweepInterval())

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: engine,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Error("http server failed", zap.Error(err))
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
		return err
	}
	log.Info("server stopped")
	return nil
}
