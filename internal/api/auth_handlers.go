package api

import (
	"errors"
	"net/http"
	"strings"

	"ipgate/internal/service"
	"ipgate/internal/token"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Username and password are required"})
		return
	}

	meta := requestMeta(c)
	tok, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrAuthNotConfigured) {
			h.logService.Failure(c.Request.Context(), service.OpAuthLogin, req.Username, meta, err, nil)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Server not configured"})
			return
		}
		h.logService.Failure(c.Request.Context(), service.OpAuthLogin, req.Username, meta, errors.New("invalid credentials"), nil)
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid username or password"})
		return
	}

	h.logService.Success(c.Request.Context(), service.OpAuthLogin, req.Username, meta, nil)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Login successful", "token": tok})
}

// Verify reports whether a session token is still valid. The route is public
// so the handler does its own token extraction: JSON body field first, then
// the Authorization header.
func (h *Handler) Verify(c *gin.Context) {
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
	meta := requestMeta(c)
	if tok == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"valid": false, "message": "No token provided"})
		return
	}

	claims, err := h.authService.VerifyToken(tok)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			op := "anonymous"
			if claims != nil {
				op = claims.Username
			}
			h.logService.Failure(c.Request.Context(), service.OpAuthTokenVerify, op, meta, errors.New("token expired"), nil)
			c.JSON(http.StatusUnauthorized, gin.H{"valid": false, "message": "Token expired"})
			return
		}
		h.logService.Failure(c.Request.Context(), service.OpAuthTokenVerify, "anonymous", meta, errors.New("invalid token"), nil)
		c.JSON(http.StatusUnauthorized, gin.H{"valid": false, "message": "Invalid token"})
		return
	}

	h.logService.Success(c.Request.Context(), service.OpAuthTokenVerify, claims.Username, meta, nil)
	c.JSON(http.StatusOK, gin.H{"valid": true, "user": gin.H{"username": claims.Username, "role": claims.Role}})
}
