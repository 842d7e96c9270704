package app

import (
	"context"
	"fmt"
	"time"

	"ipgate/internal/config"
	"ipgate/internal/repository"
	"ipgate/internal/service"

	"github.com/hibiken/asynq"
)

type App struct {
	Config           *config.Config
	RedisRepo        *repository.RedisRepository
	AuthService      *service.AuthService
	APIKeyService    *service.APIKeyService
	BlacklistService *service.BlacklistService
	LogService       *service.LogService
	Scheduler        *service.SchedulerService
	RedisOpts        asynq.RedisClientOpt
	asynqClient      *asynq.Client
}

func Bootstrap(cfg *config.Config) (*App, error) {
	redisRepo := repository.NewRedisRepository(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword, cfg.RedisDB,
		time.Duration(cfg.StoreTimeoutSecs)*time.Second)
	if err := redisRepo.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	redisOpts := asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisOpts)

	authService := service.NewAuthService(cfg)
	apiKeyService := service.NewAPIKeyService(redisRepo, nil)
	blacklistService := service.NewBlacklistService(redisRepo)
	blacklistService.Warm(context.Background())
	logService := service.NewLogService(redisRepo, asynqClient)
	scheduler := service.NewSchedulerService(redisRepo, logService, cfg.LogRetentionDays)

	return &App{
		Config:           cfg,
		RedisRepo:        redisRepo,
		AuthService:      authService,
		APIKeyService:    apiKeyService,
		BlacklistService: blacklistService,
		LogService:       logService,
		Scheduler:        scheduler,
		RedisOpts:        redisOpts,
		asynqClient:      asynqClient,
	}, nil
}

func (a *App) Close() {
	if a.asynqClient != nil {
		_ = a.asynqClient.Close()
	}
}
