package service

import (
	"context"
	"time"

	"ipgate/internal/repository"

	zlog "github.com/rs/zerolog/log"
)

// SchedulerService runs the periodic log retention sweep. A redis lock keeps
// replicas from sweeping at the same time.
type SchedulerService struct {
	redisRepo     *repository.RedisRepository
	logSvc        *LogService
	retentionDays int
}

func NewSchedulerService(r *repository.RedisRepository, logSvc *LogService, retentionDays int) *SchedulerService {
	return &SchedulerService{redisRepo: r, logSvc: logSvc, retentionDays: retentionDays}
}

func (s *SchedulerService) Start() {
	ticker := time.NewTicker(6 * time.Hour)
	go func() {
		for range ticker.C {
			s.runCleanup()
		}
	}()
}

func (s *SchedulerService) runCleanup() {
	ctx := context.Background()
	acquired, _ := s.redisRepo.AcquireLock(ctx, "lock_log_cleanup", 30*time.Minute)
	if !acquired {
		return
	}
	defer func() { _ = s.redisRepo.ReleaseLock(ctx, "lock_log_cleanup") }()

	deleted, err := s.logSvc.Cleanup(ctx, s.retentionDays)
	if err != nil {
		zlog.Error().Err(err).Msg("Scheduled log cleanup failed")
		return
	}
	if deleted > 0 {
		zlog.Info().Int("deleted", deleted).Int("retention_days", s.retentionDays).Msg("Scheduled log cleanup complete")
	}
}
