package api

import (
	"net/http"
	"strconv"

	"ipgate/internal/service"

	"github.com/gin-gonic/gin"
)

func intQuery(c *gin.Context, name string, fallback int) int {
	if v, err := strconv.Atoi(c.Query(name)); err == nil {
		return v
	}
	return fallback
}

func int64Query(c *gin.Context, name string) int64 {
	v, _ := strconv.ParseInt(c.Query(name), 10, 64)
	return v
}

func (h *Handler) listLogs(c *gin.Context, filter service.LogFilter) {
	page := intQuery(c, "page", 1)
	pageSize := intQuery(c, "pageSize", 20)

	logs, total, err := h.logService.List(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch logs"})
		return
	}

	totalPages := (total + pageSize - 1) / pageSize
	h.logService.Success(c.Request.Context(), service.OpLogsView, operator(c), requestMeta(c), map[string]interface{}{"page": page, "total": total})
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"logs": logs,
			"pagination": gin.H{
				"page":       page,
				"pageSize":   pageSize,
				"total":      total,
				"totalPages": totalPages,
			},
		},
	})
}

func (h *Handler) ListLogs(c *gin.Context) {
	h.listLogs(c, service.LogFilter{
		OperationType: c.Query("operationType"),
		Operator:      c.Query("operator"),
		Status:        c.Query("status"),
		StartTime:     int64Query(c, "startTime"),
		EndTime:       int64Query(c, "endTime"),
	})
}

// AdvancedLogs adds free-text search over message, operator, operation type,
// path and error text.
func (h *Handler) AdvancedLogs(c *gin.Context) {
	h.listLogs(c, service.LogFilter{
		OperationType: c.Query("operationType"),
		Operator:      c.Query("operator"),
		Status:        c.Query("status"),
		StartTime:     int64Query(c, "startTime"),
		EndTime:       int64Query(c, "endTime"),
		Query:         c.Query("query"),
	})
}

func (h *Handler) CleanupLogs(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil || claims.Role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Admin access required"})
		return
	}

	var req struct {
		RetentionDays int  `json:"retentionDays"`
		ClearAll      bool `json:"clearAll"`
	}
	_ = c.ShouldBindJSON(&req)

	var deleted int
	var err error
	if req.ClearAll {
		deleted, err = h.logService.ClearAll(c.Request.Context())
	} else {
		days := req.RetentionDays
		if days <= 0 {
			days = h.cfg.LogRetentionDays
		}
		deleted, err = h.logService.Cleanup(c.Request.Context(), days)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Cleanup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "deletedCount": deleted})
}
