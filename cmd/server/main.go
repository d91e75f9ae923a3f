package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/student-records-api/internal/handler"
	"github.com/noah-isme/student-records-api/internal/repository"
	"github.com/noah-isme/student-records-api/internal/router"
	"github.com/noah-isme/student-records-api/internal/service"
	"github.com/noah-isme/student-records-api/pkg/cache"
	"github.com/noah-isme/student-records-api/pkg/config"
	"github.com/noah-isme/student-records-api/pkg/database"
	"github.com/noah-isme/student-records-api/pkg/logger"
)

// @title Student Management API
// @version 1.0.0
// @description Create, read, update and delete student records.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintln(os.Stderr, verr.Error())
			os.Exit(1)
		}
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	accessLog, err := logger.NewAccess(cfg, logr)
	if err != nil {
		logr.Fatal("failed to open access log", zap.String("path", cfg.Log.AccessLogPath), zap.Error(err))
	}

	logr.Info("starting student management api",
		zap.String("env", cfg.Env),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
	)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStartup()

	pool := database.NewManager(cfg.Database, logr)
	if _, err := pool.Connect(startupCtx); err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	if !pool.TestConnection(startupCtx) {
		_ = pool.Close()
		logr.Fatal("database test query failed")
	}

	metrics := service.NewMetricsService(pool)

	var rdb *redis.Client
	if cfg.Cache.Enabled {
		rdb, err = cache.NewRedis(startupCtx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, student cache disabled", zap.Error(err))
			rdb = nil
		}
	}
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(rdb, "student-records"), metrics, cfg.Cache.TTL, logr, rdb != nil)

	studentRepo := repository.NewStudentRepository(pool, metrics)
	studentSvc := service.NewStudentService(studentRepo, cacheSvc, validator.New(), logr)
	exportSvc := service.NewExportService(studentRepo, logr, nil, nil)

	engine := router.Setup(cfg, router.Handlers{
		Students: handler.NewStudentHandler(studentSvc, exportSvc),
		System:   handler.NewMetricsHandler(metrics, pool, cfg.APIPrefix),
	}, metrics, accessLog)

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Info("server listening", zap.String("addr", srv.Addr), zap.String("api", cfg.APIPrefix+"/students"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logr.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	if err := pool.Close(); err != nil {
		logr.Error("database close failed", zap.Error(err))
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logr.Error("redis close failed", zap.Error(err))
		}
	}
	logr.Info("server stopped")
}
