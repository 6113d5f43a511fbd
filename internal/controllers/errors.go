package controllers

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/backend"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

var validate = validator.New()

// respondServiceError maps a service-layer error onto the HTTP error shape.
func respondServiceError(w http.ResponseWriter, err error) {
	utils.HandleAppError(w, toAppError(err))
}

func toAppError(err error) *utils.AppError {
	appErr := func(status int, code, msg string) *utils.AppError {
		return &utils.AppError{StatusCode: status, Code: code, Message: msg, Err: err}
	}

	switch {
	case errors.Is(err, utils.ErrInvalidToken):
		return appErr(http.StatusBadRequest, utils.ErrCodeInvalidToken, "Invalid or expired token")
	case errors.Is(err, utils.ErrEmailNotVerified):
		return appErr(http.StatusForbidden, utils.ErrCodeEmailNotVerified, "Email address has not been verified")
	case errors.Is(err, utils.ErrRateLimitExceeded):
		return appErr(http.StatusTooManyRequests, utils.ErrCodeRateLimitExceeded, "Too many attempts, please wait and try again")
	case errors.Is(err, utils.ErrNotFound):
		return appErr(http.StatusNotFound, utils.ErrCodeNotFound, "No matching waitlist entry")
	case errors.Is(err, utils.ErrMaintenanceDisabled):
		return appErr(http.StatusServiceUnavailable, utils.ErrCodeServiceUnavailable, "This feature is not enabled")
	}

	switch backend.KindOf(err) {
	case backend.KindConfig:
		return appErr(http.StatusServiceUnavailable, utils.ErrCodeConfig,
			"The waitlist has a service configuration problem, please contact support")
	case backend.KindNetwork, backend.KindCors:
		return appErr(http.StatusServiceUnavailable, utils.ErrCodeNetwork,
			"Could not reach the waitlist service, please try again")
	case backend.KindDuplicate:
		e := appErr(http.StatusConflict, utils.ErrCodeConflict, "This email is already registered")
		e.Err = fmt.Errorf("%w: %v", utils.ErrEmailExists, err)
		return e
	case backend.KindNotFound:
		return appErr(http.StatusNotFound, utils.ErrCodeNotFound, publicMessage(err))
	case backend.KindCancelled:
		return appErr(http.StatusServiceUnavailable, utils.ErrCodeServiceUnavailable, "Request cancelled")
	default:
		return appErr(http.StatusBadGateway, utils.ErrCodeExternalServiceFailure, publicMessage(err))
	}
}

func publicMessage(err error) string {
	var be *backend.Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return "An unexpected error occurred"
}

// clientIP returns the connection address. The first X-Forwarded-For hop
// is used only when trustProxy is set, since any client can send the header.
func clientIP(r *http.Request, trustProxy bool) string {
	if fwd := r.Header.Get("X-Forwarded-For"); trustProxy && fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
