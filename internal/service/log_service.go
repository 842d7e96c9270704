package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"ipgate/internal/metrics"
	"ipgate/internal/models"
	"ipgate/internal/repository"
	"ipgate/internal/tasks"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	zlog "github.com/rs/zerolog/log"
)

// Operation types recorded in the audit log.
const (
	OpBlacklistAdd    = "blacklist_add"
	OpBlacklistRemove = "blacklist_remove"
	OpBlacklistCheck  = "blacklist_check"
	OpBlacklistGet    = "blacklist_get"

	OpAPIKeyCreate = "apikey_create"
	OpAPIKeyDelete = "apikey_delete"
	OpAPIKeyUpdate = "apikey_update"
	OpAPIKeyList   = "apikey_list"
	OpAPIKeyVerify = "apikey_verify"

	OpAuthLogin       = "auth_login"
	OpAuthTokenVerify = "auth_token_verify"
	OpPermissionCheck = "permission_check"

	OpSystemError = "system_error"

	OpLogsView     = "logs_view"
	OpLogsCleanup  = "logs_cleanup"
	OpLogsClearAll = "logs_clear_all"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusPending = "pending"
)

const (
	LevelDebug    = "debug"
	LevelInfo     = "info"
	LevelWarn     = "warn"
	LevelError    = "error"
	LevelCritical = "critical"
)

const logPrefix = "log:"

// LogFilter narrows List results. Zero values mean "no constraint".
type LogFilter struct {
	OperationType string
	Operator      string
	Status        string
	StartTime     int64 // unix ms, inclusive
	EndTime       int64 // unix ms, inclusive
	Query         string
}

// LogService writes and queries the append-only operation log. Writes are
// fire-and-forget: when an asynq client is configured they are enqueued for a
// worker, otherwise written directly. Record never returns an error to its
// caller; a failed log write must not fail the request it is attached to.
type LogService struct {
	redisRepo   *repository.RedisRepository
	asynqClient *asynq.Client
	now         func() time.Time
}

func NewLogService(r *repository.RedisRepository, client *asynq.Client) *LogService {
	return &LogService{
		redisRepo:   r,
		asynqClient: client,
		now:         time.Now,
	}
}

func newLogID(ts time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return logPrefix + strconv.FormatInt(ts.UnixMilli(), 10) + "_" + suffix
}

// timestampFromID extracts the unix-ms timestamp embedded in a log key, so
// retention sweeps and time filters can run without fetching entry bodies.
func timestampFromID(id string) (int64, bool) {
	rest := strings.TrimPrefix(id, logPrefix)
	if idx := strings.IndexByte(rest, '_'); idx > 0 {
		rest = rest[:idx]
	}
	ts, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// Record fills in id, timestamp and formatted time, then performs a single
// write. Failures are only surfaced as diagnostics.
func (s *LogService) Record(ctx context.Context, entry models.LogEntry) {
	now := s.now().UTC()
	entry.ID = newLogID(now)
	entry.Timestamp = now.UnixMilli()
	entry.FormattedTime = now.Format("2006-01-02 15:04:05")
	if entry.Operator == "" {
		entry.Operator = "system"
	}
	if entry.Status == "" {
		entry.Status = StatusSuccess
	}
	if entry.Level == "" {
		entry.Level = LevelInfo
	}
	if entry.Message == "" {
		entry.Message = "operation: " + entry.OperationType
	}

	if s.asynqClient != nil {
		task, err := tasks.NewLogWriteTask(entry)
		if err == nil {
			if _, err = s.asynqClient.Enqueue(task); err == nil {
				return
			}
		}
		zlog.Warn().Err(err).Str("op", entry.OperationType).Msg("Failed to enqueue log write, falling back to direct write")
	}

	if err := s.redisRepo.PutLog(ctx, entry); err != nil {
		metrics.MetricLogWrites.WithLabelValues("failed").Inc()
		zlog.Error().Err(err).Str("op", entry.OperationType).Msg("Failed to write operation log")
		return
	}
	metrics.MetricLogWrites.WithLabelValues("success").Inc()
}

// Success records a completed operation.
func (s *LogService) Success(ctx context.Context, opType, operator string, req models.LogRequest, details map[string]interface{}) {
	s.Record(ctx, models.LogEntry{
		OperationType: opType,
		Operator:      operator,
		Status:        StatusSuccess,
		Level:         LevelInfo,
		Details:       details,
		Request:       req,
	})
}

// Failure records a failed operation with its error.
func (s *LogService) Failure(ctx context.Context, opType, operator string, req models.LogRequest, err error, details map[string]interface{}) {
	var le *models.LogError
	if err != nil {
		le = &models.LogError{Message: err.Error()}
	}
	s.Record(ctx, models.LogEntry{
		OperationType: opType,
		Operator:      operator,
		Status:        StatusFailed,
		Level:         LevelError,
		Details:       details,
		Error:         le,
		Request:       req,
	})
}

// List returns entries matching the filter, newest first, with the total
// match count for pagination.
func (s *LogService) List(ctx context.Context, filter LogFilter, page, pageSize int) ([]models.LogEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}

	keys, err := s.redisRepo.ListLogKeys(ctx)
	if err != nil {
		return nil, 0, err
	}

	type keyedTS struct {
		key string
		ts  int64
	}
	candidates := make([]keyedTS, 0, len(keys))
	for _, k := range keys {
		ts, ok := timestampFromID(k)
		if !ok {
			continue
		}
		if filter.StartTime != 0 && ts < filter.StartTime {
			continue
		}
		if filter.EndTime != 0 && ts > filter.EndTime {
			continue
		}
		candidates = append(candidates, keyedTS{key: k, ts: ts})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ts > candidates[j].ts })

	matched := make([]models.LogEntry, 0, len(candidates))
	for _, c := range candidates {
		entry, err := s.redisRepo.GetLog(ctx, c.key)
		if err != nil {
			continue // entry deleted between scan and fetch
		}
		if filter.OperationType != "" && entry.OperationType != filter.OperationType {
			continue
		}
		if filter.Operator != "" && entry.Operator != filter.Operator {
			continue
		}
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		if filter.Query != "" && !entryMatchesQuery(entry, filter.Query) {
			continue
		}
		matched = append(matched, *entry)
	}

	total := len(matched)
	start := (page - 1) * pageSize
	if start >= total {
		return []models.LogEntry{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func entryMatchesQuery(entry *models.LogEntry, q string) bool {
	q = strings.ToLower(q)
	if strings.Contains(strings.ToLower(entry.Message), q) {
		return true
	}
	if strings.Contains(strings.ToLower(entry.Operator), q) {
		return true
	}
	if strings.Contains(strings.ToLower(entry.OperationType), q) {
		return true
	}
	if strings.Contains(strings.ToLower(entry.Request.Path), q) {
		return true
	}
	if entry.Error != nil && strings.Contains(strings.ToLower(entry.Error.Message), q) {
		return true
	}
	return false
}

// Cleanup deletes entries older than retentionDays and records the sweep.
func (s *LogService) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	cutoff := s.now().UTC().Add(-time.Duration(retentionDays) * 24 * time.Hour).UnixMilli()

	keys, err := s.redisRepo.ListLogKeys(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, k := range keys {
		ts, ok := timestampFromID(k)
		if !ok || ts >= cutoff {
			continue
		}
		if err := s.redisRepo.DeleteLog(ctx, k); err != nil {
			zlog.Warn().Err(err).Str("key", k).Msg("Failed to delete expired log entry")
			continue
		}
		deleted++
	}

	s.Record(ctx, models.LogEntry{
		OperationType: OpLogsCleanup,
		Details: map[string]interface{}{
			"retentionDays": retentionDays,
			"cutoffTime":    cutoff,
			"deletedCount":  deleted,
			"action":        "cleanup_expired",
		},
	})
	return deleted, nil
}

// ClearAll deletes every entry. Its own record is written after the sweep so
// it survives.
func (s *LogService) ClearAll(ctx context.Context) (int, error) {
	keys, err := s.redisRepo.ListLogKeys(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, k := range keys {
		if err := s.redisRepo.DeleteLog(ctx, k); err != nil {
			zlog.Warn().Err(err).Str("key", k).Msg("Failed to delete log entry")
			continue
		}
		deleted++
	}

	s.Record(ctx, models.LogEntry{
		OperationType: OpLogsClearAll,
		Details: map[string]interface{}{
			"clearedCount": deleted,
			"action":       "clear_all",
		},
	})
	return deleted, nil
}
