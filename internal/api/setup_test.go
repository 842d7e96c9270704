package api

import (
	"strconv"
	"testing"
	"time"

	"ipgate/internal/config"
	"ipgate/internal/repository"
	"ipgate/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
)

type testEnv struct {
	router    *gin.Engine
	handler   *Handler
	repo      *repository.RedisRepository
	auth      *service.AuthService
	keys      *service.APIKeyService
	blacklist *service.BlacklistService
	logs      *service.LogService
}

func testConfig() *config.Config {
	return &config.Config{
		AdminUsername:     "admin",
		AdminPassword:     "hunter2",
		JWTSecret:         "test-secret",
		TokenTTLHours:     24,
		MetricsAllowedIPs: "127.0.0.1",
		LogRetentionDays:  30,
	}
}

func newTestEnv(t *testing.T, policy RoutePolicy) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	port, _ := strconv.Atoi(mr.Port())
	repo := repository.NewRedisRepository(mr.Host(), port, "", 0, 3*time.Second)

	cfg := testConfig()
	auth := service.NewAuthService(cfg)
	keys := service.NewAPIKeyService(repo, nil)
	blacklist := service.NewBlacklistService(repo)
	logs := service.NewLogService(repo, nil)

	h := NewHandler(cfg, repo, policy, auth, keys, blacklist, logs)
	r := gin.New()
	h.RegisterRoutes(r)

	return &testEnv{
		router:    r,
		handler:   h,
		repo:      repo,
		auth:      auth,
		keys:      keys,
		blacklist: blacklist,
		logs:      logs,
	}
}
