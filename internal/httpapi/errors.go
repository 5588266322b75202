package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"lcamail-engine/internal/auth"
	"lcamail-engine/internal/coverletter"
	"lcamail-engine/internal/dispatch"
	"lcamail-engine/internal/lca"
	"lcamail-engine/internal/mailer"
	"lcamail-engine/internal/secrets"
	"lcamail-engine/internal/store"
)

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	WriteJSON(w, status, newAPIError(r, code, message))
}

func newAPIError(r *http.Request, code, message string) APIError {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	return e
}

// errorStatus maps domain errors onto HTTP.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errBadJSON):
		return http.StatusBadRequest, "invalid_json"
	case errors.Is(err, lca.ErrDataFileNotFound):
		return http.StatusNotFound, "data_file_not_found"
	case errors.Is(err, lca.ErrParse):
		return http.StatusInternalServerError, "parse_failure"
	case errors.Is(err, lca.ErrInvalidFilters):
		return http.StatusBadRequest, "invalid_filters"
	case errors.Is(err, dispatch.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, mailer.ErrAttachment):
		return http.StatusBadRequest, "invalid_attachment"
	case errors.Is(err, dispatch.ErrTransportUnavailable):
		return http.StatusBadGateway, "transport_unavailable"
	case errors.Is(err, dispatch.ErrAlreadyApplied):
		return http.StatusConflict, "already_applied"
	case errors.Is(err, dispatch.ErrSendFailed):
		return http.StatusBadGateway, "send_failed"
	case errors.Is(err, secrets.ErrNoPassword):
		return http.StatusPreconditionFailed, "smtp_password_missing"
	case errors.Is(err, auth.ErrMissingCredentials):
		return http.StatusBadRequest, "missing_credentials"
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusConflict, "user_exists"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, store.ErrInvalidApplication):
		return http.StatusBadRequest, "invalid_application"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, coverletter.ErrNotConfigured):
		return http.StatusServiceUnavailable, "ai_not_configured"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeServiceError writes err using the domain mapping and logs server-side
// failures.
func (d Deps) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= 500 {
		d.Log.Error("request failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.String("code", code),
			zap.Error(err),
		)
	}
	WriteError(w, r, status, code, err.Error())
}
