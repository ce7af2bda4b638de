package v1

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/api/middleware"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/repository"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
)

// ErrorResponse is the body of non validation errors.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// ValidationResponse is the body of validation errors. Errors is a field
// map, a positional list of field maps, or a map of such lists.
type ValidationResponse struct {
	Errors        any    `json:"errors"`
	CorrelationID string `json:"correlation_id"`
}

// StatusOf maps an error onto its HTTP status.
func StatusOf(err error) int {
	if errors.Is(err, repository.ErrDuplicateKey) {
		return http.StatusBadRequest
	}
	switch errors.CategoryOf(err) {
	case errors.CategoryValidation, errors.CategoryFileParsing:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryForbidden:
		return http.StatusForbidden
	case errors.CategoryUnauthorized:
		return http.StatusUnauthorized
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case errors.CategoryState, errors.CategoryConflict, errors.CategoryRangeReconcile:
		return http.StatusConflict
	case errors.CategoryConfiguration:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// validationPayload extracts the structured payload of a validation error.
func validationPayload(err error) (any, bool) {
	var ne errors.NestedErrors
	if errors.As(err, &ne) {
		return ne.Compact(), true
	}
	var le errors.ListErrors
	if errors.As(err, &le) {
		return le, true
	}
	var fe errors.FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	if errors.Is(err, repository.ErrDuplicateKey) {
		fe = errors.FieldErrors{}
		fe.Add(errors.NonFieldKey, errors.CodeUnique, "An object with these values already exists.")
		return fe, true
	}
	return nil, false
}

// correlationID returns the request ID, or a fresh one outside the request
// ID middleware.
func correlationID(ctx echo.Context) string {
	if id := middleware.RequestIDFrom(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

// HandleError renders err with the status of its category. message is a
// short description of the failed operation.
func (c *Controller) HandleError(ctx echo.Context, err error, message string) error {
	id := correlationID(ctx)
	code := StatusOf(err)

	if payload, ok := validationPayload(err); ok {
		c.logger.Debug("request rejected",
			logger.String("correlation_id", id),
			logger.String("path", ctx.Request().URL.Path),
			logger.String("message", message))
		return ctx.JSON(http.StatusBadRequest, ValidationResponse{Errors: payload, CorrelationID: id})
	}

	resp := ErrorResponse{
		Error:         err.Error(),
		Message:       message,
		Code:          code,
		CorrelationID: id,
	}

	if code >= http.StatusInternalServerError {
		// Internal details stay in the log.
		resp.Error = http.StatusText(code)
		c.logger.Error("API error",
			logger.String("correlation_id", id),
			logger.String("message", message),
			logger.Error(err),
			logger.String("category", string(errors.CategoryOf(err))),
			logger.String("path", ctx.Request().URL.Path),
			logger.String("method", ctx.Request().Method),
			logger.String("ip", ctx.RealIP()))
	} else {
		c.logger.Debug("API error",
			logger.String("correlation_id", id),
			logger.String("message", message),
			logger.Error(err),
			logger.Int("code", code))
	}

	return ctx.JSON(code, resp)
}
