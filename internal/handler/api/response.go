// Package api implements the JSON HTTP handlers. Responses use a single
// envelope: {"data": ...} on success, {"errors": [{"message", "code"}]} on
// failure.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/njord/internal/domain"
	"github.com/dukerupert/njord/internal/middleware"
)

var validate = validator.New()

type dataEnvelope struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Errors []errorBody `json:"errors"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// writeData writes a success envelope.
func writeData(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dataEnvelope{Data: v})
}

// writeError maps a domain error to its HTTP status and writes the error
// envelope. Internal details are logged, never sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	status := statusForCode(code)

	logger := middleware.GetLogger(r.Context())
	logArgs := []any{
		"error", err.Error(),
		"code", code,
		"status", status,
	}
	if ref := domain.ErrorRef(err); ref != "" {
		logArgs = append(logArgs, "support_ref", ref)
	}
	if status >= 500 {
		logger.Error("request failed", logArgs...)
	} else {
		logger.Info("request rejected", logArgs...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorEnvelope{
		Errors: []errorBody{{Message: message, Code: code}},
	})
}

func statusForCode(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EPAYMENT:
		return http.StatusPaymentRequired
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.ETIMEOUT:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decodeAndValidate parses the JSON request body into dst and runs the
// validator tags. Returns a domain validation error suitable for writeError.
func decodeAndValidate(r *http.Request, dst any) error {
	const op = "api.decode"

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Invalid(op, "request body must be valid JSON")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return domain.Invalid(op, validationMessage(verrs[0]))
		}
		return domain.Invalid(op, "invalid request")
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	default:
		return fe.Field() + " is invalid"
	}
}
