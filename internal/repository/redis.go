package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ipgate/internal/metrics"
	"ipgate/internal/models"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound means the key genuinely does not exist in the store.
	ErrNotFound = errors.New("record not found")
	// ErrStoreUnavailable means the store could not be reached in time.
	// Callers must treat it differently from ErrNotFound.
	ErrStoreUnavailable = errors.New("store unavailable")
)

const (
	blacklistKey = "blacklist"
	apiKeyPrefix = "apikey:"
	keyIndexKey  = "apikeys_list"
	logPrefix    = "log:"
)

type RedisRepository struct {
	client  *redis.Client
	timeout time.Duration
}

func NewRedisRepository(host string, port int, password string, db int, timeout time.Duration) *RedisRepository {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &RedisRepository{client: rdb, timeout: timeout}
}

func (r *RedisRepository) GetClient() *redis.Client {
	return r.client
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) trackDuration(op string, start time.Time) {
	metrics.MetricRedisDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (r *RedisRepository) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, r.timeout)
}

// classify maps driver errors onto the repository taxonomy. redis.Nil is an
// absence, everything else (timeouts, refused connections) is unavailability.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// GetBlacklist returns the single serialized IP list. A missing record is an
// empty list, not an error.
func (r *RedisRepository) GetBlacklist(ctx context.Context) ([]string, error) {
	defer r.trackDuration("GetBlacklist", time.Now())
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	val, err := r.client.Get(cctx, blacklistKey).Result()
	if errors.Is(err, redis.Nil) {
		return []string{}, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	var ips []string
	if err := json.Unmarshal([]byte(val), &ips); err != nil {
		return nil, fmt.Errorf("decode blacklist: %w", err)
	}
	return ips, nil
}

// SaveBlacklist overwrites the whole list. There is no compare-and-swap:
// concurrent get-modify-put sequences are last-write-wins.
func (r *RedisRepository) SaveBlacklist(ctx context.Context, ips []string) error {
	defer r.trackDuration("SaveBlacklist", time.Now())
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	data, err := json.Marshal(ips)
	if err != nil {
		return err
	}
	return classify(r.client.Set(cctx, blacklistKey, data, 0).Err())
}

func (r *RedisRepository) GetAPIKey(ctx context.Context, key string) (*models.APIKey, error) {
	defer r.trackDuration("GetAPIKey", time.Now())
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	val, err := r.client.Get(cctx, apiKeyPrefix+key).Result()
	if err != nil {
		return nil, classify(err)
	}
	var rec models.APIKey
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("decode api key record: %w", err)
	}
	return &rec, nil
}

func (r *RedisRepository) PutAPIKey(ctx context.Context, rec models.APIKey) error {
	defer r.trackDuration("PutAPIKey", time.Now())
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return classify(r.client.Set(cctx, apiKeyPrefix+rec.Key, data, 0).Err())
}

func (r *RedisRepository) DeleteAPIKey(ctx context.Context, key string) error {
	defer r.trackDuration("DeleteAPIKey", time.Now())
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	n, err := r.client.Del(cctx, apiKeyPrefix+key).Result()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetKeyIndex returns the list of known key strings, kept so listing does not
// require a full store scan.
func (r *RedisRepository) GetKeyIndex(ctx context.Context) ([]string, error) {
	defer r.trackDuration("GetKeyIndex", time.Now())
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	val, err := r.client.Get(cctx, keyIndexKey).Result()
	if errors.Is(err, redis.Nil) {
		return []string{}, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	var keys []string
	if err := json.Unmarshal([]byte(val), &keys); err != nil {
		return nil, fmt.Errorf("decode key index: %w", err)
	}
	return keys, nil
}

func (r *RedisRepository) SaveKeyIndex(ctx context.Context, keys []string) error {
	defer r.trackDuration("SaveKeyIndex", time.Now())
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	data, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return classify(r.client.Set(cctx, keyIndexKey, data, 0).Err())
}

func (r *RedisRepository) PutLog(ctx context.Context, entry models.LogEntry) error {
	defer r.trackDuration("PutLog", time.Now())
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return classify(r.client.Set(cctx, entry.ID, data, 0).Err())
}

func (r *RedisRepository) GetLog(ctx context.Context, id string) (*models.LogEntry, error) {
	defer r.trackDuration("GetLog", time.Now())
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	val, err := r.client.Get(cctx, id).Result()
	if err != nil {
		return nil, classify(err)
	}
	var entry models.LogEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return nil, fmt.Errorf("decode log entry: %w", err)
	}
	return &entry, nil
}

// ListLogKeys scans for all log-entry keys. Scan is cursor based so large log
// volumes do not block the store.
func (r *RedisRepository) ListLogKeys(ctx context.Context) ([]string, error) {
	defer r.trackDuration("ListLogKeys", time.Now())
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	var keys []string
	var cursor uint64
	for {
		batch, next, err := r.client.Scan(cctx, cursor, logPrefix+"*", 500).Result()
		if err != nil {
			return nil, classify(err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (r *RedisRepository) DeleteLog(ctx context.Context, id string) error {
	defer r.trackDuration("DeleteLog", time.Now())
	cctx, cancel := r.opCtx(ctx)
	defer cancel()
	return classify(r.client.Del(cctx, id).Err())
}

func (r *RedisRepository) AcquireLock(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()
	ok, err := r.client.SetNX(cctx, key, "lock", expiration).Result()
	if err != nil {
		return false, classify(err)
	}
	return ok, nil
}

func (r *RedisRepository) ReleaseLock(ctx context.Context, key string) error {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()
	return classify(r.client.Del(cctx, key).Err())
}
