package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/maazshahbaz/ai-humanizer/internal/errs"
	"github.com/maazshahbaz/ai-humanizer/internal/humanizer"
)

type errorBody struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	CTA     string `json:"cta,omitempty"`
	// Retryable tells the client that resubmitting the same request may succeed.
	Retryable bool `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// best-effort
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a service error to an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	var qe *errs.QuotaError
	switch {
	case errors.As(err, &qe), errors.Is(err, errs.ErrQuotaExceeded):
		return http.StatusPaymentRequired, "QUOTA_EXCEEDED"
	case errors.Is(err, errs.ErrValidation):
		return http.StatusUnprocessableEntity, "VALIDATION"
	case errors.Is(err, errs.ErrConfiguration):
		return http.StatusServiceUnavailable, "CONFIGURATION"
	case errors.Is(err, errs.ErrTimeout):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, errs.ErrProvider):
		return http.StatusBadGateway, "PROVIDER"
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, errs.ErrAlreadyExists):
		return http.StatusConflict, "ALREADY_EXISTS"
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, context.Canceled):
		// client went away
		return 499, "CANCELED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// writeError renders err. Internal errors are logged and replaced by a generic message.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status, code := statusFor(err)
	body := apiError{Code: code, Message: err.Error(), Retryable: humanizer.IsRetryable(err)}

	var qe *errs.QuotaError
	if errors.As(err, &qe) {
		body.CTA = qe.CTA
	}
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway &&
		status != http.StatusGatewayTimeout && status != http.StatusServiceUnavailable {
		log.Error("request failed", zap.Error(err))
		body.Message = "internal error"
	}
	writeJSON(w, status, errorBody{Error: body})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: apiError{Code: "BAD_REQUEST", Message: msg}})
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeBadRequest(w, "invalid request body")
		return false
	}
	if err := v.Struct(dst); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: apiError{
			Code:    "VALIDATION",
			Message: formatValidationError(err),
		}})
		return false
	}
	return true
}

func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "email":
			parts = append(parts, fe.Field()+" must be a valid email")
		case "min":
			parts = append(parts, fe.Field()+" must be at least "+fe.Param()+" characters")
		case "max":
			parts = append(parts, fe.Field()+" must be at most "+fe.Param()+" characters")
		default:
			parts = append(parts, fe.Field()+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
