package api

import (
	"net/http"

	"ipgate/internal/config"
	"ipgate/internal/repository"
	"ipgate/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	cfg              *config.Config
	redisRepo        *repository.RedisRepository
	policy           RoutePolicy
	authService      *service.AuthService
	apiKeyService    *service.APIKeyService
	blacklistService *service.BlacklistService
	logService       *service.LogService
	mainLimiter      gin.HandlerFunc
	loginLimiter     gin.HandlerFunc
}

func NewHandler(cfg *config.Config, r *repository.RedisRepository, policy RoutePolicy, auth *service.AuthService, keys *service.APIKeyService, bl *service.BlacklistService, logs *service.LogService) *Handler {
	return &Handler{
		cfg:              cfg,
		redisRepo:        r,
		policy:           policy,
		authService:      auth,
		apiKeyService:    keys,
		blacklistService: bl,
		logService:       logs,
	}
}

func (h *Handler) SetLimiters(main, login gin.HandlerFunc) {
	h.mainLimiter = main
	h.loginLimiter = login
}

func (h *Handler) limiter(fn gin.HandlerFunc) gin.HandlerFunc {
	if fn == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return fn
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.Use(h.CORSMiddleware())
	r.Use(h.PrometheusMiddleware())
	r.Use(h.Gate())

	auth := r.Group("/api/auth")
	{
		auth.POST("/login", h.limiter(h.loginLimiter), h.Login)
		auth.GET("/verify", h.Verify)
		auth.POST("/verify", h.Verify)
	}

	apikey := r.Group("/api/apikey")
	apikey.Use(h.limiter(h.mainLimiter))
	{
		apikey.POST("/create", h.CreateAPIKey)
		apikey.GET("/list", h.ListAPIKeys)
		apikey.POST("/update", h.UpdateAPIKey)
		apikey.POST("/delete", h.DeleteAPIKey)
	}

	blacklist := r.Group("/api/blacklist")
	blacklist.Use(h.limiter(h.mainLimiter))
	{
		blacklist.POST("/add", h.AddIP)
		blacklist.POST("/remove", h.RemoveIP)
		blacklist.GET("/get", h.GetBlacklist)
		blacklist.POST("/get", h.GetBlacklist)

		blacklist.GET("/check-api", h.CheckIPByKey)
		blacklist.POST("/check-api", h.CheckIPByKey)
		blacklist.GET("/get-api", h.GetBlacklistByKey)
		blacklist.POST("/get-api", h.GetBlacklistByKey)
		blacklist.POST("/add-api", h.AddIPByKey)
		blacklist.POST("/remove-api", h.RemoveIPByKey)
	}

	logs := r.Group("/api/logs")
	logs.Use(h.limiter(h.mainLimiter))
	{
		logs.GET("/list", h.ListLogs)
		logs.GET("/advanced", h.AdvancedLogs)
		logs.POST("/cleanup", h.CleanupLogs)
	}

	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", h.MetricsAuthMiddleware(), gin.WrapH(promhttp.Handler()))
}

func (h *Handler) Health(c *gin.Context) {
	status := "UP"
	redisStatus := "OK"
	if h.redisRepo != nil {
		if err := h.redisRepo.Ping(c.Request.Context()); err != nil {
			redisStatus = "ERROR"
			status = "DEGRADED"
		}
	} else {
		redisStatus = "MISSING"
		status = "DEGRADED"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "redis": redisStatus})
}

func (h *Handler) Ready(c *gin.Context) {
	dep := map[string]interface{}{"redis": true}
	if h.redisRepo == nil || h.redisRepo.Ping(c.Request.Context()) != nil {
		dep["redis"] = false
	}
	c.JSON(http.StatusOK, gin.H{"status": "READY", "dependencies": dep})
}
