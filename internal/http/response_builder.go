package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fareboard/internal/core"
	"fareboard/internal/log"
)

// ResponseBuilder provides a fluent API for JSON responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{statusCode: http.StatusOK, headers: make(map[string]string)}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.payload = v
	return b
}

// Write sends the response. A nil payload writes no body.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.payload)
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func ErrorResponse(statusCode int, message string, details ...string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(ErrorBody{Error: message, Details: details})
}

func BadRequestError(message string, details ...string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message, details...)
}

func UnprocessableEntityError(message string, details ...string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message, details...)
}

func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func UnauthorizedError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message)
}

// requestError marks a malformed request, as opposed to a record that
// fails validation.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

// writeError maps err onto a status: malformed requests are 400, invalid
// records 422, everything else (storage included) 500 with a generic body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var re *requestError
	switch {
	case errors.As(err, &re):
		BadRequestError(re.msg).Write(w)
	case core.IsValidation(err):
		UnprocessableEntityError("validation failed", core.ValidationMessages(err)...).Write(w)
	default:
		logger := log.FromContext(r.Context())
		fields := log.NewFields().WithRequest(r.Method, r.URL.Path, r.URL.RawQuery).WithError(err)
		if core.IsStorage(err) {
			logger.ErrorContext(r.Context(), "Storage failure", fields.Args()...)
			InternalServerError("storage unavailable").Write(w)
			return
		}
		logger.ErrorContext(r.Context(), "Request failed", fields.Args()...)
		InternalServerError("internal error").Write(w)
	}
}
