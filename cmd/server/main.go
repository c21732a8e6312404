// Package main runs the certificate platform HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/acm-certify/backend/config"
	"github.com/acm-certify/backend/internal/auth"
	"github.com/acm-certify/backend/internal/certificates"
	"github.com/acm-certify/backend/internal/dispatch"
	"github.com/acm-certify/backend/internal/middleware"
	"github.com/acm-certify/backend/internal/render"
	"github.com/acm-certify/backend/internal/templates"
	"github.com/acm-certify/backend/internal/verify"
	"github.com/acm-certify/backend/internal/worker"
	"github.com/acm-certify/backend/internal/workshops"
	"github.com/acm-certify/backend/pkg/database"
	"github.com/acm-certify/backend/pkg/queue"
	"github.com/acm-certify/backend/pkg/redis"
	"github.com/acm-certify/backend/pkg/response"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			TemplatesBucket:      cfg.AWS.TemplatesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	media, err := storage.NewMedia(cfg.Certificates.MediaDir)
	if err != nil {
		logger.Fatal("media dir", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)
	if err := auth.Bootstrap(ctx, authRepo, cfg.Admin.Email, cfg.Admin.Password, logger); err != nil {
		logger.Fatal("bootstrap admin", zap.Error(err))
	}

	// Workshops
	workshopRepo := workshops.NewRepository(pool)
	workshopHandler := workshops.NewHandler(workshopRepo, logger)

	// Templates
	templateRepo := templates.NewRepository(pool)
	templateHandler := templates.NewHandler(templateRepo, workshopRepo, s3Client, logger)

	// Rendering
	fonts, err := render.NewFontCache(cfg.Certificates.FontsDir, logger)
	if err != nil {
		logger.Fatal("fonts", zap.Error(err))
	}
	compositor := render.NewCompositor(media, fonts,
		time.Duration(cfg.Certificates.FetchTimeoutSec)*time.Second, logger)

	// Certificates
	certRepo := certificates.NewRepository(pool)
	generator := certificates.NewGenerator(certRepo, templateRepo, compositor,
		cfg.Certificates.GenerateWorkers, logger)
	ingestor := certificates.NewIngestor(certRepo, cfg.Certificates.CodePrefix, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	certHandler := certificates.NewHandler(certRepo, workshopRepo, generator, ingestor,
		media, jobQueue, cfg.Certificates.CodePrefix, cfg.Certificates.DefaultInstructor, logger)
	verifyHandler := verify.NewHandler(certRepo, media, logger)

	// Email delivery
	mailer, err := dispatch.NewSMTPMailer(cfg.Email)
	if err != nil {
		logger.Fatal("mailer", zap.Error(err))
	}
	dispatcher := dispatch.NewDispatcher(certRepo, mailer, media,
		cfg.Email.MaxConcurrent, time.Duration(cfg.Email.SendDelayMS)*time.Millisecond, logger)
	emailProcessor := worker.NewEmailProcessor(dispatcher, jobQueue, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Generated certificate images
	router.Static("/media", media.Root())

	// Auth (public)
	router.POST("/api/auth/login", authHandler.Login)

	// Public certificate endpoints
	router.GET("/api/certificates/verify/:code", verifyHandler.Verify)
	router.GET("/api/certificates/search", verifyHandler.Search)
	router.GET("/api/certificates/download/:code", verifyHandler.Download)
	router.GET("/api/workshops", workshopHandler.List)
	router.GET("/api/workshops/:id", workshopHandler.GetByID)
	router.GET("/api/workshops/:id/templates", templateHandler.List)

	// Admin API (JWT required)
	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService))
	{
		// Workshops
		api.POST("/workshops", workshopHandler.Create)
		api.PATCH("/workshops/:id", workshopHandler.Update)
		api.DELETE("/workshops/:id", workshopHandler.Delete)

		// Templates
		api.POST("/workshops/:id/templates", templateHandler.Save)
		api.DELETE("/workshops/:id/templates/:templateID", templateHandler.Delete)
		api.POST("/workshops/:id/templates/upload", templateHandler.UploadImage)

		// Certificates
		api.POST("/certificates", certHandler.Create)
		api.GET("/certificates", certHandler.List)
		api.GET("/certificates/stats", certHandler.Stats)
		api.POST("/certificates/bulk-create", certHandler.BulkCreate)
		api.POST("/certificates/import-csv", certHandler.ImportCSV)
		api.GET("/certificates/:id", certHandler.GetByID)
		api.PATCH("/certificates/:id", certHandler.Update)
		api.DELETE("/certificates/:id", certHandler.Delete)
		api.POST("/certificates/generate/:id", certHandler.Generate)
		api.POST("/certificates/generate-workshop/:workshopID", certHandler.GenerateWorkshop)
		api.GET("/certificates/download-zip/:workshopID", certHandler.DownloadZip)
		api.POST("/certificates/send-email/:id", certHandler.SendEmail)
		api.POST("/certificates/send-workshop-emails/:workshopID", certHandler.SendWorkshopEmails)
		api.GET("/certificates/email-status/:workshopID", certHandler.EmailStatus)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (certificate email delivery)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go emailProcessor.Run(workerCtx)
	logger.Info("email worker started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
