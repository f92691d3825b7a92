package handlers

import (
	"net/http"

	"github.com/commxr/commxr-go/internal/application/services"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin"
)

// AuthHandlers contains token issuance handlers
type AuthHandlers struct {
	authService *services.AuthService
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewAuthHandlers creates auth handlers with injected dependencies
func NewAuthHandlers(authService *services.AuthService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// TokenRequest is the body of POST /api/auth/token
type TokenRequest struct {
	UserID   string `json:"uid" binding:"required"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

// PostToken handles POST /api/auth/token - mints a development identity token
func (h *AuthHandlers) PostToken(c *gin.Context) {
	marker := h.perfTracker.StartOperation("post_token_request", "")
	defer marker.Complete()
	h.logger.Auth().Debug("Received token request", "method", c.Request.Method, "path", c.Request.URL.Path)

	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Auth().Warn("Invalid token request", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"detail": "uid and password are required"})
		return
	}

	result, err := h.authService.IssueToken(req.UserID, req.Email, req.Password)
	if err != nil {
		marker.SetError(err)
		respondError(c, err, "Not found")
		return
	}

	marker.SetSuccess(true)
	h.logger.Perf().Info("Performance for PostToken request", "duration", marker.Elapsed(), "success", true)
	c.JSON(http.StatusOK, result)
}
