// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"errors"
	"net/http"

	"github.com/commxr/commxr-go/internal/domain/apperrors"
	"github.com/gin-gonic/gin"
)

// statusFor maps an error kind onto the HTTP status returned to clients
func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindAuthentication:
		return http.StatusUnauthorized
	case apperrors.KindAuthorization:
		return http.StatusForbidden
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindRateLimited:
		return http.StatusTooManyRequests
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindUpstreamTransient, apperrors.KindDegraded:
		return http.StatusServiceUnavailable
	case apperrors.KindUpstreamFatal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"detail": ...} for err. Unclassified errors never leak
// their message.
func respondError(c *gin.Context, err error, notFoundDetail string) {
	kind := apperrors.KindOf(err)
	status := statusFor(kind)

	detail := "Internal server error"
	switch kind {
	case apperrors.KindNotFound:
		detail = notFoundDetail
	case apperrors.KindUnknown:
	default:
		var appErr *apperrors.Error
		if errors.As(err, &appErr) && appErr.Message != "" {
			detail = appErr.Message
		} else {
			detail = err.Error()
		}
	}

	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.JSON(status, gin.H{"detail": detail})
}

var errUnauthenticated = apperrors.Unauthenticated("handlers.identity", "Missing authentication token")
