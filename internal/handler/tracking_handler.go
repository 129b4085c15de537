package handler

import (
	"net/http"

	"bastportal/internal/middleware"
	"bastportal/internal/service"
	"bastportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type TrackingHandler struct {
	trackingService service.TrackingService
	auth            *middleware.Auth
}

func NewTrackingHandler(trackingService service.TrackingService, auth *middleware.Auth) *TrackingHandler {
	return &TrackingHandler{trackingService: trackingService, auth: auth}
}

func (h *TrackingHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/tracking/:type/:id", h.auth.RequireRole(), h.GetTrackingLog)
}

// GetTrackingLog returns the status history of a document
// @Summary      Get tracking log
// @Tags         tracking
// @Security     BearerAuth
// @Produce      json
// @Param        type  path      string  true  "bast or invoice"
// @Param        id    path      string  true  "Document ID"
// @Success      200   {object}  response.Response{data=[]model.TrackingLog}
// @Failure      404   {object}  response.Response
// @Router       /api/tracking/{type}/{id} [get]
func (h *TrackingHandler) GetTrackingLog(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	logs, err := h.trackingService.GetTrackingLog(c.Request.Context(), c.Param("type"), c.Param("id"), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, logs))
}
