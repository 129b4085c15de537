package handler

import (
	"fmt"
	"mime/multipart"
	"net/http"

	"bastportal/internal/middleware"
	"bastportal/internal/service"
	"bastportal/internal/validation"
	"bastportal/internal/workflow"
	"bastportal/pkg/response"

	"github.com/gin-gonic/gin"
)

// MaxUploadSize caps a single uploaded file.
const MaxUploadSize = 20 << 20

type FileHandler struct {
	fileService service.FileService
	auth        *middleware.Auth
}

func NewFileHandler(fileService service.FileService, auth *middleware.Auth) *FileHandler {
	return &FileHandler{fileService: fileService, auth: auth}
}

func (h *FileHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/api/files", h.auth.RequireRole(), h.Upload)
}

// Upload stores one file and returns its reference
// @Summary      Upload file
// @Description  Stores a contract copy, supporting document, tax invoice or SA/GR file. Use the returned ref in document payloads.
// @Tags         files
// @Security     BearerAuth
// @Accept       mpfd
// @Produce      json
// @Param        file  formData  file  true  "File"
// @Success      201   {object}  response.Response{data=service.UploadedFile}
// @Failure      422   {object}  response.Response
// @Router       /api/files [post]
func (h *FileHandler) Upload(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, validation.Field("file", validation.Required))
		return
	}

	uploaded, err := storeFormFile(c, h.fileService, actor, fh)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, uploaded))
}

func storeFormFile(c *gin.Context, files service.FileService, actor workflow.Actor, fh *multipart.FileHeader) (service.UploadedFile, error) {
	if fh.Size > MaxUploadSize {
		return service.UploadedFile{}, validation.Field("file", validation.OutOfRange)
	}
	f, err := fh.Open()
	if err != nil {
		return service.UploadedFile{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()
	return files.Upload(c.Request.Context(), actor, fh.Filename, fh.Size, f, fh.Header.Get("Content-Type"))
}
