package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"bastportal/internal/apperror"
	"bastportal/internal/attachment"
	"bastportal/internal/middleware"
	"bastportal/internal/service"
	"bastportal/internal/storage"
	"bastportal/internal/validation"
	"bastportal/internal/workflow"
	"bastportal/pkg/response"

	"github.com/gin-gonic/gin"
)

// Error codes carried in the response envelope.
const (
	codeValidation   = "ValidationError"
	codeInvalid      = "InvalidTransition"
	codeUnauthorized = "UnauthorizedTransition"
	codeConflict     = "ConcurrencyConflict"
	codeDuplicate    = "Duplicate"
	codeNotFound     = "NotFound"
	codeLookup       = "ExternalLookupFailure"
	codeTimeout      = "Timeout"
)

// writeError maps a service error to the response envelope. Field errors and
// transition details travel in details.
func writeError(c *gin.Context, err error) {
	status := apperror.HTTPStatus(err)
	message := err.Error()
	var (
		code    string
		details interface{}
		verrs   validation.Errors
		perr    *attachment.PolicyError
		terr    *workflow.TransitionError
		rerr    *service.ReconciliationError
	)

	switch {
	case errors.As(err, &rerr):
		code = string(rerr.Code)
		details = gin.H{"current": rerr.Current}
	case errors.As(err, &verrs):
		code = codeValidation
		details = verrs
	case errors.As(err, &perr):
		code = string(perr.Code)
		details = gin.H{"slot": perr.Slot}
	case errors.As(err, &terr):
		code = codeInvalid
		if errors.Is(err, apperror.ErrUnauthorizedTransition) {
			code = codeUnauthorized
		}
		details = gin.H{"current": terr.Current, "event": terr.Event, "allowed": terr.Allowed}
	case errors.Is(err, storage.ErrInvalidReference):
		status, code = http.StatusNotFound, codeNotFound
	case errors.Is(err, apperror.ErrConcurrencyConflict):
		code = codeConflict
	case errors.Is(err, apperror.ErrDuplicate):
		code = codeDuplicate
	case errors.Is(err, apperror.ErrNotFound):
		code = codeNotFound
	case errors.Is(err, apperror.ErrExternalLookup):
		code = codeLookup
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, codeTimeout
	}

	if status == http.StatusInternalServerError {
		log.Printf("[HTTP] %s %s: %v", c.Request.Method, c.FullPath(), err)
		message = "internal server error"
	}
	c.JSON(status, response.ErrorWithDetails(status, message, code, details))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
}

// actorOf returns the authenticated actor. Routes without RequireRole never
// call it.
func actorOf(c *gin.Context) (workflow.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
	}
	return actor, ok
}
