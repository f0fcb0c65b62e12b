package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/charity-tasks-api/api/swagger"
	"github.com/noah-isme/charity-tasks-api/internal/handler"
	"github.com/noah-isme/charity-tasks-api/internal/repository"
	"github.com/noah-isme/charity-tasks-api/internal/service"
	"github.com/noah-isme/charity-tasks-api/pkg/cache"
	"github.com/noah-isme/charity-tasks-api/pkg/config"
	"github.com/noah-isme/charity-tasks-api/pkg/database"
	"github.com/noah-isme/charity-tasks-api/pkg/logger"
)

// @title Charity Tasks API
// @version 1.0.0
// @description Task matching between charities and benefactors
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()

	var cacheRepo *repository.CacheRepository
	if cfg.ActorCache.Enabled {
		client, err := cache.NewRedis(context.Background(), cfg.Redis, 5*time.Second)
		if err != nil {
			logr.Warn("actor cache disabled, redis unavailable", zap.Error(err))
		} else {
			cacheRepo = repository.NewCacheRepository(client, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}
	var cacheStore service.CacheRepository
	if cacheRepo != nil {
		cacheStore = cacheRepo
	}
	cacheSvc := service.NewCacheService(cacheStore, metrics, cfg.ActorCache.TTL, logr, cacheRepo != nil)

	validate := validator.New()
	users := repository.NewUserRepository(db)
	accountSvc := service.NewAccountService(
		users,
		repository.NewCharityRepository(db),
		repository.NewBenefactorRepository(db),
		cacheSvc,
		cfg.ActorCache.TTL,
		validate,
		logr,
	)
	taskSvc := service.NewTaskService(repository.NewTaskRepository(db), users, metrics, validate, logr)
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})

	router := handler.NewRouter(handler.RouterDeps{
		Config:   cfg,
		Logger:   logr,
		Tokens:   authSvc,
		Actors:   accountSvc,
		Accounts: accountSvc,
		Tasks:    taskSvc,
		Metrics:  metrics,
		Store:    db,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "db", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
