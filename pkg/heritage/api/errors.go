package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/swadeshi/heritage/pkg/heritage"
)

// Error codes carried in ErrorBody.Code
const (
	CodeValidation       = "validation_error"
	CodeNotFound         = "not_found"
	CodeForbidden        = "forbidden"
	CodeUnauthorized     = "unauthorized"
	CodeUnsupportedMedia = "unsupported_media"
	CodeConflict         = "conflict"
	CodeInternal         = "internal_error"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes a failure
type ErrorBody struct {
	Code    string                `json:"code"`
	Message string                `json:"message"`
	Fields  []heritage.FieldError `json:"fields,omitempty"`
}

// classify maps domain errors to a status and error code
func classify(err error) (int, ErrorBody) {
	var verr *heritage.ValidationError
	var merr *heritage.UnsupportedMediaError
	var maxErr *http.MaxBytesError

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, ErrorBody{Code: CodeValidation, Message: "validation failed", Fields: verr.Fields}
	case errors.As(err, &merr):
		return http.StatusUnsupportedMediaType, ErrorBody{Code: CodeUnsupportedMedia, Message: merr.Error()}
	case errors.As(err, &maxErr):
		return http.StatusUnsupportedMediaType, ErrorBody{Code: CodeUnsupportedMedia, Message: "request body too large"}
	case errors.Is(err, heritage.ErrEntryNotFound):
		return http.StatusNotFound, ErrorBody{Code: CodeNotFound, Message: "heritage entry not found"}
	case errors.Is(err, heritage.ErrCategoryNotFound):
		return http.StatusNotFound, ErrorBody{Code: CodeNotFound, Message: "category not found"}
	case errors.Is(err, heritage.ErrForbidden):
		return http.StatusForbidden, ErrorBody{Code: CodeForbidden, Message: err.Error()}
	case errors.Is(err, heritage.ErrInvalidTransition):
		return http.StatusConflict, ErrorBody{Code: CodeConflict, Message: err.Error()}
	case errors.Is(err, heritage.ErrEntryChanged):
		return http.StatusConflict, ErrorBody{Code: CodeConflict, Message: "entry was modified concurrently, retry the update"}
	case errors.Is(err, heritage.ErrCategoryExists):
		return http.StatusConflict, ErrorBody{Code: CodeConflict, Message: "category already exists"}
	case errors.Is(err, heritage.ErrInvalidStatus):
		return http.StatusBadRequest, ErrorBody{Code: CodeValidation, Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorBody{Code: CodeInternal, Message: "internal server error"}
	}
}

// writeError renders err as an ErrorResponse; 5xx causes are logged, not exposed
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Errorf("%s %s failed: %v", r.Method, r.URL.Path, err)
	}
	writeStatus(w, r, status, body)
}

func writeStatus(w http.ResponseWriter, r *http.Request, status int, body ErrorBody) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: body})
}

func badRequest(w http.ResponseWriter, r *http.Request, field, message string) {
	writeStatus(w, r, http.StatusBadRequest, ErrorBody{
		Code:    CodeValidation,
		Message: "validation failed",
		Fields:  []heritage.FieldError{{Field: field, Message: message}},
	})
}
