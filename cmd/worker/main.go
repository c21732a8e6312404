// Package main runs the background job worker (certificate email delivery).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/acm-certify/backend/config"
	"github.com/acm-certify/backend/internal/certificates"
	"github.com/acm-certify/backend/internal/dispatch"
	"github.com/acm-certify/backend/internal/worker"
	"github.com/acm-certify/backend/pkg/database"
	"github.com/acm-certify/backend/pkg/queue"
	"github.com/acm-certify/backend/pkg/redis"
	"github.com/acm-certify/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	media, err := storage.NewMedia(cfg.Certificates.MediaDir)
	if err != nil {
		logger.Fatal("media dir", zap.Error(err))
	}

	mailer, err := dispatch.NewSMTPMailer(cfg.Email)
	if err != nil {
		logger.Fatal("mailer", zap.Error(err))
	}

	certRepo := certificates.NewRepository(pool)
	dispatcher := dispatch.NewDispatcher(certRepo, mailer, media,
		cfg.Email.MaxConcurrent, time.Duration(cfg.Email.SendDelayMS)*time.Millisecond, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewEmailProcessor(dispatcher, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
