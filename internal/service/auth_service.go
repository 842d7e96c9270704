package service

import (
	"errors"
	"time"

	"ipgate/internal/config"
	"ipgate/internal/token"

	zlog "github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAuthNotConfigured  = errors.New("admin credentials not configured")
)

// AuthService handles admin login and session token verification. The admin
// password from the environment is bcrypt-hashed once at startup so the
// plaintext is not kept around for comparisons.
type AuthService struct {
	username     string
	passwordHash []byte
	secret       string
	tokenTTL     time.Duration
	now          func() time.Time
}

func NewAuthService(cfg *config.Config) *AuthService {
	s := &AuthService{
		username: cfg.AdminUsername,
		secret:   cfg.JWTSecret,
		tokenTTL: time.Duration(cfg.TokenTTLHours) * time.Hour,
		now:      time.Now,
	}
	if cfg.AdminPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			zlog.Error().Err(err).Msg("Failed to hash admin password")
			return s
		}
		s.passwordHash = hash
	}
	return s
}

// Login checks the credentials and returns a signed session token.
func (s *AuthService) Login(username, password string) (string, error) {
	if s.username == "" || len(s.passwordHash) == 0 {
		return "", ErrAuthNotConfigured
	}
	if username != s.username {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	claims := token.Claims{
		Username: username,
		Role:     "admin",
		Exp:      s.now().Add(s.tokenTTL).Unix(),
	}
	return token.Sign(claims, s.secret), nil
}

// VerifyToken validates the signature and the expiry of a session token.
// Expired tokens return token.ErrTokenExpired alongside the parsed claims so
// callers can report who the token belonged to.
func (s *AuthService) VerifyToken(tok string) (*token.Claims, error) {
	claims, err := token.Verify(tok, s.secret)
	if err != nil {
		return nil, err
	}
	if claims.Expired(s.now()) {
		return claims, token.ErrTokenExpired
	}
	return claims, nil
}
