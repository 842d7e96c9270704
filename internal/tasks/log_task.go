package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ipgate/internal/metrics"
	"ipgate/internal/models"
	"ipgate/internal/repository"

	"github.com/hibiken/asynq"
)

const (
	TypeLogWrite   = "log:write"
	TypeLogCleanup = "log:cleanup"
)

type LogCleanupPayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewLogWriteTask wraps a fully built log entry for asynchronous persistence.
// Log writes are fire-and-forget relative to the request that produced them.
func NewLogWriteTask(entry models.LogEntry) (*asynq.Task, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeLogWrite, payload, asynq.MaxRetry(3), asynq.Timeout(10*time.Second)), nil
}

func NewLogCleanupTask(retentionDays int) (*asynq.Task, error) {
	payload, err := json.Marshal(LogCleanupPayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeLogCleanup, payload, asynq.MaxRetry(1), asynq.Timeout(2*time.Minute)), nil
}

// LogWriteHandler persists queued log entries to the KV store.
type LogWriteHandler struct {
	redisRepo *repository.RedisRepository
}

func NewLogWriteHandler(r *repository.RedisRepository) *LogWriteHandler {
	return &LogWriteHandler{redisRepo: r}
}

func (h *LogWriteHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var entry models.LogEntry
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if err := h.redisRepo.PutLog(ctx, entry); err != nil {
		metrics.MetricLogWrites.WithLabelValues("failed").Inc()
		return fmt.Errorf("persist log entry %s: %v", entry.ID, err)
	}
	metrics.MetricLogWrites.WithLabelValues("success").Inc()
	return nil
}

// Cleaner is the subset of the log service the cleanup task needs.
type Cleaner interface {
	Cleanup(ctx context.Context, retentionDays int) (int, error)
}

// LogCleanupHandler runs the scheduled retention sweep.
type LogCleanupHandler struct {
	cleaner Cleaner
}

func NewLogCleanupHandler(c Cleaner) *LogCleanupHandler {
	return &LogCleanupHandler{cleaner: c}
}

func (h *LogCleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p LogCleanupPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if p.RetentionDays <= 0 {
		p.RetentionDays = 30
	}
	_, err := h.cleaner.Cleanup(ctx, p.RetentionDays)
	return err
}
