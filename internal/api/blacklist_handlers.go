package api

import (
	"errors"
	"net/http"

	"ipgate/internal/metrics"
	"ipgate/internal/service"

	"github.com/gin-gonic/gin"
)

// requestIP pulls the target IP from the JSON body, falling back to the query
// string for the GET variants of the key routes. Oversized bodies were
// already rejected by the gate on these routes, so the error is dropped.
func requestIP(c *gin.Context) string {
	if ip, err := peekBodyField(c, "ip"); err == nil && ip != "" {
		return ip
	}
	return c.Query("ip")
}

func (h *Handler) addIP(c *gin.Context) {
	ip := requestIP(c)
	meta := requestMeta(c)
	ctx := c.Request.Context()

	count, err := h.blacklistService.Add(ctx, ip)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidIP):
			metrics.MetricBlacklistOps.WithLabelValues("add", "invalid").Inc()
			h.logService.Failure(ctx, service.OpBlacklistAdd, operator(c), meta, err, map[string]interface{}{"ip": ip})
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid IP address"})
		case errors.Is(err, service.ErrDuplicate):
			metrics.MetricBlacklistOps.WithLabelValues("add", "conflict").Inc()
			h.logService.Failure(ctx, service.OpBlacklistAdd, operator(c), meta, err, map[string]interface{}{"ip": ip})
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": "IP is already blacklisted", "count": count})
		default:
			metrics.MetricBlacklistOps.WithLabelValues("add", "error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Storage unavailable"})
		}
		return
	}

	metrics.MetricBlacklistOps.WithLabelValues("add", "success").Inc()
	h.logService.Success(ctx, service.OpBlacklistAdd, operator(c), meta, map[string]interface{}{"ip": ip, "count": count})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "IP added to blacklist", "count": count})
}

func (h *Handler) removeIP(c *gin.Context) {
	ip := requestIP(c)
	meta := requestMeta(c)
	ctx := c.Request.Context()

	count, err := h.blacklistService.Remove(ctx, ip)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidIP):
			metrics.MetricBlacklistOps.WithLabelValues("remove", "invalid").Inc()
			h.logService.Failure(ctx, service.OpBlacklistRemove, operator(c), meta, err, map[string]interface{}{"ip": ip})
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid IP address"})
		case errors.Is(err, service.ErrIPNotFound):
			metrics.MetricBlacklistOps.WithLabelValues("remove", "not_found").Inc()
			h.logService.Failure(ctx, service.OpBlacklistRemove, operator(c), meta, err, map[string]interface{}{"ip": ip})
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "IP not found in blacklist", "count": count})
		default:
			metrics.MetricBlacklistOps.WithLabelValues("remove", "error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Storage unavailable"})
		}
		return
	}

	metrics.MetricBlacklistOps.WithLabelValues("remove", "success").Inc()
	h.logService.Success(ctx, service.OpBlacklistRemove, operator(c), meta, map[string]interface{}{"ip": ip, "count": count})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "IP removed from blacklist", "count": count})
}

func (h *Handler) AddIP(c *gin.Context)    { h.addIP(c) }
func (h *Handler) RemoveIP(c *gin.Context) { h.removeIP(c) }

func (h *Handler) GetBlacklist(c *gin.Context) {
	ips, err := h.blacklistService.Get(c.Request.Context())
	if err != nil {
		metrics.MetricBlacklistOps.WithLabelValues("get", "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Storage unavailable"})
		return
	}
	metrics.MetricBlacklistOps.WithLabelValues("get", "success").Inc()
	h.logService.Success(c.Request.Context(), service.OpBlacklistGet, operator(c), requestMeta(c), map[string]interface{}{"count": len(ips)})
	c.JSON(http.StatusOK, gin.H{"success": true, "data": ips, "count": len(ips)})
}

// Key-authenticated variants. The gate has already verified the key and its
// permission for each route.

func (h *Handler) CheckIPByKey(c *gin.Context) {
	ip := requestIP(c)
	ctx := c.Request.Context()
	meta := requestMeta(c)

	blocked, err := h.blacklistService.Check(ctx, ip)
	if err != nil {
		if errors.Is(err, service.ErrInvalidIP) {
			metrics.MetricBlacklistOps.WithLabelValues("check", "invalid").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid IP address"})
			return
		}
		metrics.MetricBlacklistOps.WithLabelValues("check", "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Storage unavailable"})
		return
	}

	metrics.MetricBlacklistOps.WithLabelValues("check", "success").Inc()
	h.logService.Success(ctx, service.OpBlacklistCheck, operator(c), meta, map[string]interface{}{"ip": ip, "blocked": blocked})
	msg := "IP is not blacklisted"
	if blocked {
		msg = "IP is blacklisted"
	}
	c.JSON(http.StatusOK, gin.H{"ip": ip, "blocked": blocked, "message": msg})
}

func (h *Handler) GetBlacklistByKey(c *gin.Context) {
	ips, err := h.blacklistService.Get(c.Request.Context())
	if err != nil {
		metrics.MetricBlacklistOps.WithLabelValues("get", "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Storage unavailable"})
		return
	}
	metrics.MetricBlacklistOps.WithLabelValues("get", "success").Inc()
	h.logService.Success(c.Request.Context(), service.OpBlacklistGet, operator(c), requestMeta(c), map[string]interface{}{"count": len(ips)})
	c.JSON(http.StatusOK, ips)
}

func (h *Handler) AddIPByKey(c *gin.Context)    { h.addIP(c) }
func (h *Handler) RemoveIPByKey(c *gin.Context) { h.removeIP(c) }
