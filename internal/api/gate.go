package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"ipgate/internal/metrics"
	"ipgate/internal/models"
	"ipgate/internal/service"
	"ipgate/internal/token"

	"github.com/gin-gonic/gin"
	zlog "github.com/rs/zerolog/log"
)

// Context keys set by the gate for downstream handlers.
const (
	ctxClaims   = "claims"
	ctxAPIKey   = "apiKeyRecord"
	ctxOperator = "operator"
)

const maxPeekBody = 1 << 20

var errBodyTooLarge = errors.New("request body exceeds peek limit")

// peekBodyField reads a string field out of a JSON request body without
// consuming it for the handler. Bodies over maxPeekBody return
// errBodyTooLarge so the caller can reject them instead of parsing a
// truncated document.
func peekBodyField(c *gin.Context, field string) (string, error) {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return "", nil
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPeekBody+1))
	if err != nil {
		return "", nil
	}
	if len(body) > maxPeekBody {
		return "", errBodyTooLarge
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	var m map[string]interface{}
	if json.Unmarshal(body, &m) != nil {
		return "", nil
	}
	v, _ := m[field].(string)
	return v, nil
}

func requestMeta(c *gin.Context) models.LogRequest {
	return models.LogRequest{
		Method:    c.Request.Method,
		Path:      c.Request.URL.Path,
		Query:     c.Request.URL.RawQuery,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// Gate authenticates every request according to the route policy. API-key
// routes are checked first, then public paths, then token routes. Each grant
// or deny produces exactly one operation-log record; CORS preflights and the
// fail-open forward produce none.
func (h *Handler) Gate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		defer func() {
			if r := recover(); r != nil {
				zlog.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("Recovered from panic in request handling")
				h.logService.Record(c.Request.Context(), models.LogEntry{
					OperationType: service.OpSystemError,
					Status:        service.StatusFailed,
					Level:         service.LevelCritical,
					Message:       "unhandled error during request processing",
					Request:       requestMeta(c),
				})
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
			}
		}()

		if h.redisRepo == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Storage unavailable"})
			return
		}

		path := c.Request.URL.Path
		if routeID, ok := h.policy.APIKeyRoutes[path]; ok {
			h.gateAPIKey(c, routeID)
			return
		}
		if h.policy.PublicPaths[path] {
			c.Next()
			return
		}
		if h.policy.TokenPaths[path] {
			h.gateToken(c)
			return
		}

		if h.policy.FailOpen {
			c.Next()
			return
		}
		metrics.MetricAuthDecisions.WithLabelValues("unclassified", "deny").Inc()
		h.logService.Failure(c.Request.Context(), service.OpAuthTokenVerify, "anonymous", requestMeta(c),
			errors.New("no authentication for unclassified route"), nil)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication required"})
	}
}

func (h *Handler) gateAPIKey(c *gin.Context, routeID string) {
	ctx := c.Request.Context()
	meta := requestMeta(c)

	key, err := peekBodyField(c, "key")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "message": "Request body too large"})
		return
	}
	if key == "" {
		key = c.Query("key")
	}
	if key == "" {
		metrics.MetricAuthDecisions.WithLabelValues("apikey", "deny").Inc()
		h.logService.Failure(ctx, service.OpAPIKeyVerify, "anonymous", meta, errors.New("missing api key"), map[string]interface{}{"route": routeID})
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "API key required"})
		return
	}

	rec, err := h.apiKeyService.Get(ctx, key)
	if err != nil {
		if errors.Is(err, service.ErrKeyNotFound) {
			metrics.MetricAuthDecisions.WithLabelValues("apikey", "deny").Inc()
			h.logService.Failure(ctx, service.OpAPIKeyVerify, "anonymous", meta, errors.New("unknown api key"), map[string]interface{}{"route": routeID})
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid API key"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Storage unavailable"})
		return
	}

	decision := h.apiKeyService.Authorize(rec, routeID)
	if !decision.Allowed {
		metrics.MetricAuthDecisions.WithLabelValues("apikey", "deny").Inc()
		if decision.Reason == "expired" {
			h.logService.Failure(ctx, service.OpAPIKeyVerify, keyOperator(rec), meta, errors.New("api key expired"), map[string]interface{}{"route": routeID})
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "API key expired"})
			return
		}
		h.logService.Failure(ctx, service.OpPermissionCheck, keyOperator(rec), meta,
			errors.New(decision.Reason), map[string]interface{}{"route": routeID})
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Permission denied"})
		return
	}

	metrics.MetricAuthDecisions.WithLabelValues("apikey", "grant").Inc()
	h.logService.Success(ctx, service.OpPermissionCheck, keyOperator(rec), meta, map[string]interface{}{"route": routeID})
	c.Set(ctxAPIKey, rec)
	c.Set(ctxOperator, keyOperator(rec))
	c.Next()
}

// keyOperator names the caller in log records without recording the key
// itself.
func keyOperator(rec *models.APIKey) string {
	if rec.Note != "" {
		return "apikey:" + rec.Note
	}
	if len(rec.Key) > 8 {
		return "apikey:" + rec.Key[:8]
	}
	return "apikey:" + rec.Key
}

func (h *Handler) gateToken(c *gin.Context) {
	ctx := c.Request.Context()
	meta := requestMeta(c)

	tok, err := peekBodyField(c, "token")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "message": "Request body too large"})
		return
	}
	if tok == "" {
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			tok = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if tok == "" {
		metrics.MetricAuthDecisions.WithLabelValues("token", "deny").Inc()
		h.logService.Failure(ctx, service.OpAuthTokenVerify, "anonymous", meta, errors.New("missing token"), nil)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication required"})
		return
	}

	claims, err := h.authService.VerifyToken(tok)
	if err != nil {
		metrics.MetricAuthDecisions.WithLabelValues("token", "deny").Inc()
		if errors.Is(err, token.ErrTokenExpired) {
			operator := "anonymous"
			if claims != nil {
				operator = claims.Username
			}
			h.logService.Failure(ctx, service.OpAuthTokenVerify, operator, meta, errors.New("token expired"), nil)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Token expired"})
			return
		}
		// Signature and format failures get the same message so the response
		// does not reveal which check failed.
		h.logService.Failure(ctx, service.OpAuthTokenVerify, "anonymous", meta, errors.New("invalid token"), nil)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid token"})
		return
	}

	metrics.MetricAuthDecisions.WithLabelValues("token", "grant").Inc()
	h.logService.Success(ctx, service.OpAuthTokenVerify, claims.Username, meta, nil)
	c.Set(ctxClaims, claims)
	c.Set(ctxOperator, claims.Username)
	c.Next()
}

// operator returns the caller identity the gate stored, or "system" for
// fail-open forwarded requests.
func operator(c *gin.Context) string {
	if v, ok := c.Get(ctxOperator); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "system"
}

func claimsFrom(c *gin.Context) *token.Claims {
	if v, ok := c.Get(ctxClaims); ok {
		if cl, ok := v.(*token.Claims); ok {
			return cl
		}
	}
	return nil
}
