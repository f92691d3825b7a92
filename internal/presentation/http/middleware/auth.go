// Package middleware provides HTTP middleware for the presentation layer.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/commxr/commxr-go/internal/domain/apperrors"
	"github.com/commxr/commxr-go/internal/domain/providers"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// AuthMiddleware requires a valid bearer token and stores the caller identity
func AuthMiddleware(verifier providers.TokenVerifier, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		marker := perfTracker.StartOperation("middleware_auth", "")
		defer marker.Complete()

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			marker.SetError(errors.New("missing token"))
			abortUnauthorized(c, "Missing authentication token")
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			marker.SetError(err)
			logger.Auth().Debug("Bearer token rejected", "path", c.FullPath(), "error", err)
			detail := "Invalid or expired token"
			var appErr *apperrors.Error
			if errors.As(err, &appErr) && appErr.Kind == apperrors.KindAuthentication && appErr.Message != "" {
				detail = appErr.Message
			}
			abortUnauthorized(c, detail)
			return
		}

		marker.SetSuccess(true)
		c.Set(identityKey, identity)
		c.Next()
	}
}

// GetIdentity returns the identity stored by AuthMiddleware
func GetIdentity(c *gin.Context) (*providers.Identity, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return nil, false
	}
	identity, ok := value.(*providers.Identity)
	return identity, ok && identity != nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abortUnauthorized(c *gin.Context, detail string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": detail})
}
