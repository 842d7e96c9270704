package service

import (
	"context"
	"errors"
	"time"

	"ipgate/internal/models"
	"ipgate/internal/repository"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

var ErrKeyNotFound = errors.New("api key not found")

// Decision is the outcome of evaluating an API key against a route.
type Decision struct {
	Allowed bool
	Reason  string // "expired", "insufficient permission", "unknown route"
}

// DefaultRoutePermissions maps the key-authenticated route ids to the
// permission flag each one requires.
func DefaultRoutePermissions() map[string]string {
	return map[string]string{
		"check-api":  "read",
		"get-api":    "list",
		"add-api":    "add",
		"remove-api": "delete",
	}
}

// APIKeyService manages issued API keys and evaluates their permissions.
// The key index is best-effort: a record write that succeeds but whose index
// update fails leaves a usable key that is missing from listings.
type APIKeyService struct {
	redisRepo  *repository.RedisRepository
	routePerms map[string]string
	now        func() time.Time
}

// NewAPIKeyService builds a service over the given repository. A nil
// routePerms falls back to DefaultRoutePermissions.
func NewAPIKeyService(r *repository.RedisRepository, routePerms map[string]string) *APIKeyService {
	if routePerms == nil {
		routePerms = DefaultRoutePermissions()
	}
	return &APIKeyService{redisRepo: r, routePerms: routePerms, now: time.Now}
}

// CreateParams carries the caller-supplied fields for a new key. A zero Key
// means generate one.
type CreateParams struct {
	Key         string
	Note        string
	Permissions *models.Permissions
	ExpiryDate  string
	CreatedBy   string
}

func (s *APIKeyService) Create(ctx context.Context, p CreateParams) (*models.APIKey, error) {
	key := p.Key
	if key == "" {
		key = uuid.NewString()
	}
	perms := p.Permissions
	if perms == nil {
		perms = &models.Permissions{Read: true}
	}
	rec := models.APIKey{
		Key:         key,
		Note:        p.Note,
		Permissions: perms,
		CreatedAt:   s.now().UTC().Format(time.RFC3339),
		ExpiryDate:  p.ExpiryDate,
		CreatedBy:   p.CreatedBy,
	}

	if err := s.redisRepo.PutAPIKey(ctx, rec); err != nil {
		return nil, err
	}
	s.addToIndex(ctx, key)
	return &rec, nil
}

func (s *APIKeyService) addToIndex(ctx context.Context, key string) {
	index, err := s.redisRepo.GetKeyIndex(ctx)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		zlog.Warn().Err(err).Msg("Failed to read api key index, key will be missing from listings")
		return
	}
	for _, k := range index {
		if k == key {
			return
		}
	}
	index = append(index, key)
	if err := s.redisRepo.SaveKeyIndex(ctx, index); err != nil {
		zlog.Warn().Err(err).Msg("Failed to update api key index, key will be missing from listings")
	}
}

func (s *APIKeyService) removeFromIndex(ctx context.Context, key string) {
	index, err := s.redisRepo.GetKeyIndex(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			zlog.Warn().Err(err).Msg("Failed to read api key index for removal")
		}
		return
	}
	out := index[:0]
	for _, k := range index {
		if k != key {
			out = append(out, k)
		}
	}
	if len(out) == len(index) {
		return
	}
	if err := s.redisRepo.SaveKeyIndex(ctx, out); err != nil {
		zlog.Warn().Err(err).Msg("Failed to update api key index after deletion")
	}
}

// Get fetches a single key record.
func (s *APIKeyService) Get(ctx context.Context, key string) (*models.APIKey, error) {
	rec, err := s.redisRepo.GetAPIKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return rec, nil
}

// List returns every key reachable through the index. Index entries whose
// record is gone are skipped.
func (s *APIKeyService) List(ctx context.Context) ([]models.APIKey, error) {
	index, err := s.redisRepo.GetKeyIndex(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []models.APIKey{}, nil
		}
		return nil, err
	}

	out := make([]models.APIKey, 0, len(index))
	for _, k := range index {
		rec, err := s.redisRepo.GetAPIKey(ctx, k)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

// UpdateParams carries the optional fields of an update. Nil pointers leave
// the stored value untouched.
type UpdateParams struct {
	Note        *string
	Permissions *models.Permissions
	ExpiryDate  *string
}

func (s *APIKeyService) Update(ctx context.Context, key string, p UpdateParams) (*models.APIKey, error) {
	rec, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if p.Note != nil {
		rec.Note = *p.Note
	}
	if p.Permissions != nil {
		rec.Permissions = p.Permissions
	}
	if p.ExpiryDate != nil {
		rec.ExpiryDate = *p.ExpiryDate
	}
	if err := s.redisRepo.PutAPIKey(ctx, *rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *APIKeyService) Delete(ctx context.Context, key string) error {
	if err := s.redisRepo.DeleteAPIKey(ctx, key); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrKeyNotFound
		}
		return err
	}
	s.removeFromIndex(ctx, key)
	return nil
}

// expired reports whether the record's expiry date lies in the past. Records
// without an expiry date, or with one that does not parse, never expire.
func (s *APIKeyService) expired(rec *models.APIKey) bool {
	if rec.ExpiryDate == "" {
		return false
	}
	t, err := time.Parse(time.RFC3339, rec.ExpiryDate)
	if err != nil {
		if t, err = time.Parse("2006-01-02", rec.ExpiryDate); err != nil {
			return false
		}
	}
	return !t.After(s.now())
}

// Authorize evaluates a key record against a route id. Expiry is checked
// before permissions so an expired key is reported as expired even when its
// stored flags would have covered the route.
func (s *APIKeyService) Authorize(rec *models.APIKey, routeID string) Decision {
	if s.expired(rec) {
		return Decision{Reason: "expired"}
	}
	required, ok := s.routePerms[routeID]
	if !ok {
		return Decision{Reason: "unknown route"}
	}
	if rec.Permissions == nil {
		return Decision{Reason: "insufficient permission"}
	}
	var granted bool
	switch required {
	case "read":
		granted = rec.Permissions.Read
	case "list":
		granted = rec.Permissions.List
	case "add":
		granted = rec.Permissions.Add
	case "delete":
		granted = rec.Permissions.Delete
	}
	if !granted {
		return Decision{Reason: "insufficient permission"}
	}
	return Decision{Allowed: true}
}
