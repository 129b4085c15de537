package handler

import (
	"net/http"
	"strconv"
	"strings"

	"bastportal/internal/middleware"
	"bastportal/internal/service"
	"bastportal/internal/workflow"
	"bastportal/pkg/pagination"
	"bastportal/pkg/response"

	"github.com/gin-gonic/gin"
)

// TransitionRequest names the event to apply. Note is required for reject.
type TransitionRequest struct {
	Event string `json:"event" binding:"required"`
	Note  string `json:"note"`
}

type BastHandler struct {
	bastService           service.BastService
	reconciliationService service.ReconciliationService
	fileService           service.FileService
	auth                  *middleware.Auth
}

func NewBastHandler(bastService service.BastService, reconciliationService service.ReconciliationService, fileService service.FileService, auth *middleware.Auth) *BastHandler {
	return &BastHandler{
		bastService:           bastService,
		reconciliationService: reconciliationService,
		fileService:           fileService,
		auth:                  auth,
	}
}

func (h *BastHandler) RegisterRoutes(router *gin.RouterGroup) {
	vendorOnly := h.auth.RequireRole(workflow.RoleVendor)
	anyone := h.auth.RequireRole()

	basts := router.Group("/api/basts")
	{
		basts.POST("", vendorOnly, h.CreateBast)
		basts.GET("", anyone, h.ListBasts)
		basts.GET("/summary", anyone, h.GetBastSummary)
		basts.GET("/:id", anyone, h.GetBastDetail)
		basts.PUT("/:id/draft", vendorOnly, h.SaveDraft)
		basts.POST("/:id/submit", vendorOnly, h.SubmitBast)
		basts.POST("/:id/transitions", anyone, h.TransitionBast)
		basts.POST("/:id/sagr", h.auth.RequireRole(workflow.RoleStaff), h.InputSagr)
		basts.POST("/:id/documents", vendorOnly, h.AddSupportingDocument)
		basts.DELETE("/:id/documents/:index", vendorOnly, h.RemoveSupportingDocument)
	}
}

// CreateBast creates a BAST in DRAFT
// @Summary      Create BAST
// @Description  Creates a BAST in DRAFT for the caller's vendor. id_bast is generated when omitted.
// @Tags         basts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.BastPayload  true  "BAST payload"
// @Success      201      {object}  response.Response{data=model.Bast}
// @Failure      422      {object}  response.Response
// @Router       /api/basts [post]
func (h *BastHandler) CreateBast(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var req service.BastPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	bast, err := h.bastService.CreateBast(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, bast))
}

// SaveDraft overwrites the payload of a DRAFT
// @Summary      Save BAST draft
// @Tags         basts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "BAST ID"
// @Param        payload  body      service.BastPayload  true  "BAST payload"
// @Success      200      {object}  response.Response{data=model.Bast}
// @Failure      409      {object}  response.Response
// @Router       /api/basts/{id}/draft [put]
func (h *BastHandler) SaveDraft(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var req service.BastPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	bast, err := h.bastService.SaveDraft(c.Request.Context(), c.Param("id"), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, bast))
}

// SubmitBast sends a BAST to review
// @Summary      Submit BAST
// @Description  Validates the whole payload and moves DRAFT or REJECT_FROM_REVIEW to WAITING_REVIEW. An empty body submits the stored payload.
// @Tags         basts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string               true   "BAST ID"
// @Param        payload  body      service.BastPayload  false  "Replacement payload"
// @Success      200      {object}  response.Response{data=model.Bast}
// @Failure      422      {object}  response.Response
// @Router       /api/basts/{id}/submit [post]
func (h *BastHandler) SubmitBast(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var req *service.BastPayload
	if c.Request.ContentLength > 0 {
		var payload service.BastPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			badRequest(c, err)
			return
		}
		req = &payload
	}

	bast, err := h.bastService.SubmitBast(c.Request.Context(), c.Param("id"), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, bast))
}

// TransitionBast applies a lifecycle event
// @Summary      Apply BAST event
// @Description  Applies reject, approve-review, approve, vendor-confirm or finalize on behalf of the caller
// @Tags         basts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string             true  "BAST ID"
// @Param        payload  body      TransitionRequest  true  "Event"
// @Success      200      {object}  response.Response{data=model.Bast}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/basts/{id}/transitions [post]
func (h *BastHandler) TransitionBast(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	bast, err := h.bastService.TransitionBast(c.Request.Context(), c.Param("id"), req.Event, actor, req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, bast))
}

// InputSagr records the SA/GR reference
// @Summary      Input SA/GR
// @Description  Accepts JSON {nomor_sagr, file} or a multipart form with nomor_sagr and the file itself
// @Tags         basts
// @Security     BearerAuth
// @Accept       json,mpfd
// @Produce      json
// @Param        id       path      string            true  "BAST ID"
// @Param        payload  body      service.SagrInput  true  "SA/GR reference"
// @Success      200      {object}  response.Response{data=model.Bast}
// @Failure      422      {object}  response.Response
// @Router       /api/basts/{id}/sagr [post]
func (h *BastHandler) InputSagr(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	var in service.SagrInput
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		in.NomorSagr = c.PostForm("nomor_sagr")
		in.File = c.PostForm("file")
		if fh, err := c.FormFile("file"); err == nil {
			uploaded, err := storeFormFile(c, h.fileService, actor, fh)
			if err != nil {
				writeError(c, err)
				return
			}
			in.File = uploaded.Ref
		}
	} else if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	bast, err := h.reconciliationService.InputSagr(c.Request.Context(), c.Param("id"), in, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, bast))
}

// AddSupportingDocument appends a dokumen pendukung
// @Summary      Add supporting document
// @Tags         basts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "BAST ID"
// @Param        payload  body      service.SupportingDocPayload  true  "Document"
// @Success      200      {object}  response.Response{data=model.Bast}
// @Failure      422      {object}  response.Response
// @Router       /api/basts/{id}/documents [post]
func (h *BastHandler) AddSupportingDocument(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var req service.SupportingDocPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	bast, err := h.bastService.AddSupportingDocument(c.Request.Context(), c.Param("id"), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, bast))
}

// RemoveSupportingDocument drops a dokumen pendukung
// @Summary      Remove supporting document
// @Tags         basts
// @Security     BearerAuth
// @Produce      json
// @Param        id     path      string  true  "BAST ID"
// @Param        index  path      int     true  "Zero-based document index"
// @Success      200    {object}  response.Response{data=model.Bast}
// @Failure      422    {object}  response.Response
// @Router       /api/basts/{id}/documents/{index} [delete]
func (h *BastHandler) RemoveSupportingDocument(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, err)
		return
	}

	bast, err := h.bastService.RemoveSupportingDocument(c.Request.Context(), c.Param("id"), index, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, bast))
}

// GetBastDetail returns a BAST with totals, next events and tracking log
// @Summary      Get BAST detail
// @Tags         basts
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "BAST ID"
// @Success      200  {object}  response.Response{data=service.BastDetail}
// @Failure      404  {object}  response.Response
// @Router       /api/basts/{id} [get]
func (h *BastHandler) GetBastDetail(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	detail, err := h.bastService.GetBastDetail(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}

// ListBasts returns a paginated list of BASTs
// @Summary      List BASTs
// @Description  Vendors only see their own documents
// @Tags         basts
// @Security     BearerAuth
// @Produce      json
// @Param        status    query     string  false  "Filter by status"
// @Param        reviewer  query     string  false  "Filter by reviewer email"
// @Param        vendor_id query     string  false  "Filter by vendor"
// @Param        q         query     string  false  "Search id, PO, contract or subject"
// @Param        page      query     int     false  "Page number (default 1)"
// @Param        limit     query     int     false  "Number of items per page (default 20)"
// @Success      200       {object}  response.Response{data=response.Page}
// @Router       /api/basts [get]
func (h *BastHandler) ListBasts(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)
	filter := bastFilter(c, actor)
	filter.Page, filter.Limit = p.Page, p.Limit

	basts, total, err := h.bastService.ListBasts(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, basts, total, p.Page, p.Limit))
}

// GetBastSummary counts BASTs per status
// @Summary      BAST dashboard summary
// @Tags         basts
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=model.BastSummary}
// @Router       /api/basts/summary [get]
func (h *BastHandler) GetBastSummary(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	summary, err := h.bastService.GetBastSummary(c.Request.Context(), bastFilter(c, actor))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}

func bastFilter(c *gin.Context, actor workflow.Actor) service.BastListFilter {
	filter := service.BastListFilter{
		Status:        c.Query("status"),
		VendorID:      c.Query("vendor_id"),
		ReviewerEmail: c.Query("reviewer"),
		Search:        c.Query("q"),
	}
	if actor.Role == workflow.RoleVendor {
		filter.VendorID = actor.VendorID
	}
	return filter
}
