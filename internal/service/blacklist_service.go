package service

import (
	"context"
	"errors"
	"sync"

	"ipgate/internal/repository"

	"github.com/bits-and-blooms/bloom/v3"
	zlog "github.com/rs/zerolog/log"
)

var (
	ErrInvalidIP  = errors.New("invalid IPv4 address")
	ErrDuplicate  = errors.New("ip already blacklisted")
	ErrIPNotFound = errors.New("ip not in blacklist")
)

// BlacklistService manages the single blacklist document. The store is the
// only authority: other replicas mutate the same document, so the in-process
// bloom filter is a hint, never an answer. Check always consults the store
// and re-seeds the filter when it proves stale.
type BlacklistService struct {
	redisRepo *repository.RedisRepository
	mu        sync.RWMutex
	filter    *bloom.BloomFilter
}

func NewBlacklistService(r *repository.RedisRepository) *BlacklistService {
	return &BlacklistService{
		redisRepo: r,
		filter:    bloom.NewWithEstimates(100000, 0.01),
	}
}

// ValidIPv4 reports whether s is a strict dotted-quad IPv4 address. Octets
// must be plain decimal in 0..255 with no leading zeros.
func ValidIPv4(s string) bool {
	octets := 0
	val, digits := 0, 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '.' {
			if digits == 0 || octets == 3 && i < len(s) {
				return false
			}
			octets++
			val, digits = 0, 0
			continue
		}
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		if digits > 0 && val == 0 {
			return false
		}
		val = val*10 + int(c-'0')
		digits++
		if digits > 3 || val > 255 {
			return false
		}
	}
	return octets == 4
}

// Warm loads the current blacklist into the bloom filter. Called once at
// startup; a failure leaves the filter empty, which only costs Check a
// re-seed on the first stale hit since the store is consulted regardless.
func (s *BlacklistService) Warm(ctx context.Context) {
	ips, err := s.redisRepo.GetBlacklist(ctx)
	if err != nil {
		zlog.Warn().Err(err).Msg("Failed to warm blacklist bloom filter")
		return
	}
	s.resync(ips)
	zlog.Info().Int("count", len(ips)).Msg("Blacklist bloom filter warmed")
}

// resync replaces the filter with one seeded from ips. The filter cannot
// forget entries, so removals and cross-replica drift both end here.
func (s *BlacklistService) resync(ips []string) {
	fresh := bloom.NewWithEstimates(100000, 0.01)
	for _, ip := range ips {
		fresh.AddString(ip)
	}
	s.mu.Lock()
	s.filter = fresh
	s.mu.Unlock()
}

// Add appends an IP and returns the new list size. Duplicates leave the
// stored list unchanged.
func (s *BlacklistService) Add(ctx context.Context, ip string) (int, error) {
	if !ValidIPv4(ip) {
		return 0, ErrInvalidIP
	}
	ips, err := s.redisRepo.GetBlacklist(ctx)
	if err != nil {
		return 0, err
	}
	for _, existing := range ips {
		if existing == ip {
			return len(ips), ErrDuplicate
		}
	}
	ips = append(ips, ip)
	if err := s.redisRepo.SaveBlacklist(ctx, ips); err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.filter.AddString(ip)
	s.mu.Unlock()
	return len(ips), nil
}

// Remove deletes an IP and returns the new list size.
func (s *BlacklistService) Remove(ctx context.Context, ip string) (int, error) {
	if !ValidIPv4(ip) {
		return 0, ErrInvalidIP
	}
	ips, err := s.redisRepo.GetBlacklist(ctx)
	if err != nil {
		return 0, err
	}
	out := make([]string, 0, len(ips))
	for _, existing := range ips {
		if existing != ip {
			out = append(out, existing)
		}
	}
	if len(out) == len(ips) {
		return len(ips), ErrIPNotFound
	}
	if err := s.redisRepo.SaveBlacklist(ctx, out); err != nil {
		return 0, err
	}
	s.resync(out)
	return len(out), nil
}

// Get returns the full blacklist.
func (s *BlacklistService) Get(ctx context.Context) ([]string, error) {
	return s.redisRepo.GetBlacklist(ctx)
}

// Check reports whether an IP is blacklisted. The stored list is always
// consulted: the filter only sees this process's writes, so a filter miss for
// an IP another replica added would otherwise stand as a false negative. A
// stale miss triggers a re-seed so the filter tracks cross-replica additions.
func (s *BlacklistService) Check(ctx context.Context, ip string) (bool, error) {
	if !ValidIPv4(ip) {
		return false, ErrInvalidIP
	}
	s.mu.RLock()
	maybe := s.filter.TestString(ip)
	s.mu.RUnlock()

	ips, err := s.redisRepo.GetBlacklist(ctx)
	if err != nil {
		return false, err
	}
	for _, existing := range ips {
		if existing == ip {
			if !maybe {
				s.resync(ips)
			}
			return true, nil
		}
	}
	return false, nil
}
