package handler

import (
	"net/http"

	"bastportal/internal/middleware"
	"bastportal/internal/service"
	"bastportal/internal/workflow"
	"bastportal/pkg/pagination"
	"bastportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
	auth         *middleware.Auth
}

func NewAuditHandler(auditService service.AuditService, auth *middleware.Auth) *AuditHandler {
	return &AuditHandler{auditService: auditService, auth: auth}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(h.auth.RequireRole(workflow.RoleAdmin))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs returns non-status actions, newest first
// @Summary      Get audit logs
// @Description  Lists document creation, draft saves, attachment edits, uploads and SA/GR input
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        action     query     string  false  "Filter by action"
// @Param        entity_id  query     string  false  "Filter by document id"
// @Param        actor      query     string  false  "Filter by actor email"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Success      200        {object}  response.Response{data=response.Page}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)
	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), service.AuditFilter{
		Action:     c.Query("action"),
		EntityID:   c.Query("entity_id"),
		ActorEmail: c.Query("actor"),
		Page:       p.Page,
		Limit:      p.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, logs, total, p.Page, p.Limit))
}
