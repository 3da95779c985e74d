package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"veriboard/internal/middleware"
	"veriboard/internal/services"
)

type errorBody struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// statusFor maps a service error to its HTTP status and client message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrInvalidOrExpiredCode),
		errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrReasonRequired):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrCompanyNotVerified):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrDocumentMissing):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrAccountExists),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrNotVerified),
		errors.Is(err, services.ErrNothingToReview):
		return http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, services.ErrTooManyRequests):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, services.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, services.ErrDocumentTooLarge.Error()
	}
	return http.StatusInternalServerError, "Internal server error"
}

// respondError is the single place handlers turn errors into responses.
func respondError(c *gin.Context, err error) {
	var (
		verrs validator.ValidationErrors
		verr  *services.ValidationError
		syn   *json.SyntaxError
		typ   *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &verrs):
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = describeFieldError(fe)
		}
		c.JSON(http.StatusBadRequest, errorBody{Message: "Validation failed", Errors: fields})
		return
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, errorBody{Message: "Validation failed", Errors: map[string]string{verr.Field: verr.Message}})
		return
	case errors.As(err, &syn), errors.As(err, &typ), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		c.JSON(http.StatusBadRequest, errorBody{Message: "Invalid request body"})
		return
	}

	status, msg := statusFor(err)
	entry := middleware.LoggerFrom(c).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("[http] request failed")
	} else {
		entry.WithField("status", status).Debug("[http] request rejected")
	}
	c.JSON(status, errorBody{Message: msg})
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "accounttype":
		return "must be candidate or company"
	case "otpcode":
		return "must be a 6-digit code"
	case "datetime":
		return "must be a date in " + fe.Param() + " format"
	}
	return "is invalid"
}

func logFields(c *gin.Context, fields logrus.Fields) *logrus.Entry {
	return middleware.LoggerFrom(c).WithFields(fields)
}
