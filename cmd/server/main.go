// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal service
// packages.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vouchsafe/internal/artifact"
	"vouchsafe/internal/contractor"
	contractorHandler "vouchsafe/internal/contractor/handler"
	"vouchsafe/internal/platform/config"
	"vouchsafe/internal/platform/httpserver"
	"vouchsafe/internal/platform/logger"
	"vouchsafe/internal/platform/metrics"
	platformredis "vouchsafe/internal/platform/redis"
	"vouchsafe/internal/store"
	httptransport "vouchsafe/internal/transport/http"
	"vouchsafe/internal/voucher"
	voucherHandler "vouchsafe/internal/voucher/handler"
)

const redemptionLockTTL = 30 * time.Second

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "error", err.Error())
		os.Exit(1)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	client := store.NewClient(cfg.Store, m)

	artifacts, err := artifact.NewStore(cfg.ImageDir)
	if err != nil {
		log.Error("could not prepare image directory", "error", err.Error())
		os.Exit(1)
	}

	// The in-process lock covers a single worker; point REDIS_URL at a shared
	// instance when running more than one.
	var locker voucher.Locker = voucher.NewKeyedMutex()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("could not connect to redis", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		locker = voucher.NewRedisLocker(redisClient.Client, redemptionLockTTL)
		log.Info("redemption locking via redis")
	}

	contractors := contractor.NewService(client, log, m)
	vouchers := voucher.NewService(client, contractors, artifacts, locker, log, m, cfg.PublicBaseURL)

	router := httptransport.NewRouter(log,
		contractorHandler.New(contractors, log),
		voucherHandler.New(vouchers, artifacts, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting vouchsafe", "addr", cfg.Addr, "image_dir", cfg.ImageDir)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
		os.Exit(1)
	}
}
