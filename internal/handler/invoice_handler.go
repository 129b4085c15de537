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

// AssignPicRequest names the staff member taking the invoice.
type AssignPicRequest struct {
	PicEmail string `json:"pic_email" binding:"required,email"`
}

type InvoiceHandler struct {
	invoiceService service.InvoiceService
	auth           *middleware.Auth
}

func NewInvoiceHandler(invoiceService service.InvoiceService, auth *middleware.Auth) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		auth:           auth,
	}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	anyone := h.auth.RequireRole()

	invoices := router.Group("/api/invoices")
	{
		invoices.POST("", h.auth.RequireRole(workflow.RoleVendor), h.UploadInvoice)
		invoices.GET("", anyone, h.ListInvoices)
		invoices.GET("/summary", anyone, h.GetInvoiceSummary)
		invoices.GET("/:id", anyone, h.GetInvoiceDetail)
		invoices.PUT("/:id/pic", h.auth.RequireRole(workflow.RoleAdmin, workflow.RoleStaff), h.AssignPic)
		invoices.POST("/:id/transitions", h.auth.RequireRole(workflow.RoleStaff), h.TransitionInvoice)
	}
}

// UploadInvoice registers a vendor invoice
// @Summary      Upload invoice
// @Description  Registers a vendor invoice in status sent. tanggal_jatuh_tempo must be after tanggal_invoice.
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.InvoiceUploadRequest  true  "Invoice"
// @Success      201      {object}  response.Response{data=model.Invoice}
// @Failure      422      {object}  response.Response
// @Router       /api/invoices [post]
func (h *InvoiceHandler) UploadInvoice(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var req service.InvoiceUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	invoice, err := h.invoiceService.UploadInvoice(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// ListInvoices returns a paginated list of invoices with time remaining
// @Summary      List invoices
// @Description  Vendors only see their own invoices
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by status (sent, received, rejected, paid)"
// @Param        pic     query     string  false  "Filter by PIC email"
// @Param        q       query     string  false  "Search invoice number"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page}
// @Router       /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)
	filter := invoiceFilter(c, actor)
	filter.Page, filter.Limit = p.Page, p.Limit

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, invoices, total, p.Page, p.Limit))
}

// GetInvoiceDetail returns one invoice with its tracking log
// @Summary      Get invoice detail
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceDetail}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoiceDetail(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	detail, err := h.invoiceService.GetInvoiceDetail(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}

// AssignPic sets the person in charge
// @Summary      Assign invoice PIC
// @Description  Admins assign any staff member; staff may only claim an invoice for themselves
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string            true  "Invoice ID"
// @Param        payload  body      AssignPicRequest  true  "PIC"
// @Success      200      {object}  response.Response{data=model.Invoice}
// @Failure      403      {object}  response.Response
// @Router       /api/invoices/{id}/pic [put]
func (h *InvoiceHandler) AssignPic(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var req AssignPicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	invoice, err := h.invoiceService.AssignPic(c.Request.Context(), c.Param("id"), req.PicEmail, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// TransitionInvoice applies receive, reject or pay
// @Summary      Apply invoice event
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string             true  "Invoice ID"
// @Param        payload  body      TransitionRequest  true  "Event"
// @Success      200      {object}  response.Response{data=model.Invoice}
// @Failure      409      {object}  response.Response
// @Router       /api/invoices/{id}/transitions [post]
func (h *InvoiceHandler) TransitionInvoice(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	invoice, err := h.invoiceService.TransitionInvoice(c.Request.Context(), c.Param("id"), req.Event, actor, req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// GetInvoiceSummary counts invoices per status
// @Summary      Invoice dashboard summary
// @Description  Counts per status plus unpaid invoices overdue or due today
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=model.InvoiceSummary}
// @Router       /api/invoices/summary [get]
func (h *InvoiceHandler) GetInvoiceSummary(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	summary, err := h.invoiceService.GetInvoiceSummary(c.Request.Context(), invoiceFilter(c, actor))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}

func invoiceFilter(c *gin.Context, actor workflow.Actor) service.InvoiceListFilter {
	filter := service.InvoiceListFilter{
		Status:   c.Query("status"),
		VendorID: c.Query("vendor_id"),
		PicEmail: c.Query("pic"),
		Search:   c.Query("q"),
	}
	if actor.Role == workflow.RoleVendor {
		filter.VendorID = actor.VendorID
	}
	return filter
}
