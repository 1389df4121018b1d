package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/MJE43/mogwai-breed-go/internal/engine"
	"github.com/MJE43/mogwai-breed-go/internal/scan"
	"github.com/MJE43/mogwai-breed-go/internal/scripting"
	"github.com/MJE43/mogwai-breed-go/internal/store"
)

// ErrorBuilder helps construct structured errors with context
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]any
	requestID string
}

// NewError creates a new error builder
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]any),
	}
}

// WithContext adds context information to the error
func (eb *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRequestID adds request ID to the error
func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// WithCause adds the underlying cause error
func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

// Build creates the final EngineError
func (eb *ErrorBuilder) Build() EngineError {
	var ctx map[string]any
	if len(eb.context) > 0 {
		ctx = eb.context
	}
	return EngineError{
		Type:      eb.errType,
		Message:   eb.message,
		Context:   ctx,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ErrorHandler provides centralized error handling with logging
type ErrorHandler struct {
	logger         zerolog.Logger
	securityLogger *SecurityLogger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger zerolog.Logger, securityLogger *SecurityLogger) *ErrorHandler {
	return &ErrorHandler{
		logger:         logger,
		securityLogger: securityLogger,
	}
}

// classify maps an engine error to its response type and HTTP status.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, scan.ErrTraitNotFound):
		return ErrTypeTraitNotFound, http.StatusBadRequest
	case errors.Is(err, scan.ErrInvalidRange):
		return ErrTypeInvalidNonce, http.StatusBadRequest
	case errors.Is(err, scan.ErrInvalidPredicate),
		errors.Is(err, scripting.ErrEmptySource),
		errors.Is(err, scripting.ErrSourceTooLong):
		return ErrTypeInvalidPredicate, http.StatusBadRequest
	case errors.Is(err, scan.ErrInvalidTarget), errors.Is(err, engine.ErrUnknownScheme):
		return ErrTypeInvalidParams, http.StatusBadRequest
	case errors.Is(err, scan.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrTypeTimeout, http.StatusRequestTimeout
	case errors.Is(err, store.ErrNotFound):
		return ErrTypeRunNotFound, http.StatusNotFound
	default:
		return ErrTypeInternal, http.StatusInternalServerError
	}
}

// HandleError processes an error and writes appropriate HTTP response
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	var engineErr EngineError
	if errors.As(err, &engineErr) {
		status, ok := statusForType(engineErr.Type)
		if !ok {
			status = http.StatusInternalServerError
		}
		eh.logError(r, engineErr, status)
		eh.writeErrorResponse(w, status, engineErr)
		return
	}

	errType, status := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	engineErr = NewError(errType, message).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method).
		WithCause(err).
		Build()

	eh.logError(r, engineErr, status)
	eh.writeErrorResponse(w, status, engineErr)
}

// statusForType returns the status for a known error type.
func statusForType(errType string) (int, bool) {
	switch errType {
	case ErrTypeInvalidSeed, ErrTypeInvalidNonce, ErrTypeInvalidParams, ErrTypeValidation,
		ErrTypeTraitNotFound, ErrTypeInvalidPredicate:
		return http.StatusBadRequest, true
	case ErrTypeRunNotFound:
		return http.StatusNotFound, true
	case ErrTypeTimeout:
		return http.StatusRequestTimeout, true
	case ErrTypeServiceUnavailable:
		return http.StatusServiceUnavailable, true
	case ErrTypeInternal:
		return http.StatusInternalServerError, true
	}
	return 0, false
}

// HandleValidationError handles validation-specific errors
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, field, message string) {
	eh.HandleFieldError(w, r, &FieldError{Type: ErrTypeValidation, Field: field, Message: message})
}

// HandleFieldError rejects a request with the error type the field check chose.
func (eh *ErrorHandler) HandleFieldError(w http.ResponseWriter, r *http.Request, fe *FieldError) {
	requestID := middleware.GetReqID(r.Context())
	field, message := fe.Field, fe.Message

	engineErr := NewError(fe.Type, fmt.Sprintf("Validation failed: %s", message)).
		WithRequestID(requestID).
		WithContext("field", field).
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method).
		Build()

	eh.securityLogger.LogSecurityEvent(
		requestID,
		"validation_failure",
		message,
		map[string]any{
			"field": field,
			"path":  r.URL.Path,
		},
		r.RemoteAddr,
	)

	eh.logError(r, engineErr, http.StatusBadRequest)
	eh.writeErrorResponse(w, http.StatusBadRequest, engineErr)
}

// HandleTimeoutError handles timeout-specific errors
func (eh *ErrorHandler) HandleTimeoutError(w http.ResponseWriter, r *http.Request, operation string, timeoutMs int) {
	engineErr := NewError(ErrTypeTimeout, fmt.Sprintf("Operation timed out: %s", operation)).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("operation", operation).
		WithContext("timeout_ms", timeoutMs).
		WithContext("path", r.URL.Path).
		Build()

	eh.logError(r, engineErr, http.StatusRequestTimeout)
	eh.writeErrorResponse(w, http.StatusRequestTimeout, engineErr)
}

// HandleUnavailable reports a feature switched off by configuration.
func (eh *ErrorHandler) HandleUnavailable(w http.ResponseWriter, r *http.Request, feature string) {
	engineErr := NewError(ErrTypeServiceUnavailable, fmt.Sprintf("%s is disabled", feature)).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("path", r.URL.Path).
		Build()

	eh.logError(r, engineErr, http.StatusServiceUnavailable)
	eh.writeErrorResponse(w, http.StatusServiceUnavailable, engineErr)
}

// logError logs the error with appropriate level and context
func (eh *ErrorHandler) logError(r *http.Request, engineErr EngineError, status int) {
	category := GetErrorCategory(engineErr.Type)

	var ev *zerolog.Event
	switch {
	case status >= 500:
		ev = eh.logger.Error()
	case category == CategoryValidation || category == CategoryBreed:
		ev = eh.logger.Warn()
	default:
		ev = eh.logger.Info()
	}

	fields := make(map[string]any, len(engineErr.Context))
	for key, value := range engineErr.Context {
		// Never log raw seeds - only hashes
		if key == "server_seed" || key == "client_seed" {
			continue
		}
		fields[key] = value
	}

	ev.Str("type", engineErr.Type).
		Str("category", string(category)).
		Int("status", status).
		Str("request_id", engineErr.RequestID).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("remote_ip", r.RemoteAddr).
		Fields(fields).
		Msg(engineErr.Message)
}

// writeErrorResponse writes the error response as JSON
func (eh *ErrorHandler) writeErrorResponse(w http.ResponseWriter, status int, engineErr EngineError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.Header().Set("X-Error-Type", engineErr.Type)
	w.Header().Set("X-Error-Category", string(GetErrorCategory(engineErr.Type)))
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(engineErr); err != nil {
		eh.logger.Error().Err(err).Msg("encode error response")
	}
}

// RecoveryHandler provides panic recovery with structured error logging
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				requestID := middleware.GetReqID(r.Context())

				eh.logger.Error().
					Str("request_id", requestID).
					Str("path", r.URL.Path).
					Str("method", r.Method).
					Interface("panic", rvr).
					Msg("panic recovered")

				engineErr := NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(requestID).
					WithContext("path", r.URL.Path).
					WithContext("method", r.Method).
					Build()

				eh.writeErrorResponse(w, http.StatusInternalServerError, engineErr)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
