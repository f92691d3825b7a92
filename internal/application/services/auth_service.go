package services

import (
	"context"
	"strings"
	"time"

	"github.com/commxr/commxr-go/internal/domain/apperrors"
	"github.com/commxr/commxr-go/internal/domain/providers"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/performance"
	"github.com/commxr/commxr-go/internal/infrastructure/security"
	"golang.org/x/crypto/bcrypt"
)

// AuthConfig holds the signing material for identity tokens
type AuthConfig struct {
	JWTSecret          string
	Issuer             string
	TokenTTL           time.Duration
	IssuerPasswordHash string
}

// TokenResult is returned by IssueToken
type TokenResult struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"uid"`
}

// AuthService verifies bearer tokens and mints development tokens
type AuthService struct {
	config      AuthConfig
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewAuthService creates a new authentication service
func NewAuthService(config AuthConfig, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *AuthService {
	if config.TokenTTL <= 0 {
		config.TokenTTL = time.Hour
	}
	return &AuthService{
		config:      config,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

var _ providers.TokenVerifier = (*AuthService)(nil)

// Verify validates the token signature and expiry and extracts the uid claim
func (a *AuthService) Verify(_ context.Context, token string) (*providers.Identity, error) {
	const op = "auth.verify"

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.Unauthenticated(op, "Missing authentication token")
	}

	claims, err := security.ValidateJWT(token, a.config.JWTSecret)
	if err != nil {
		a.logger.Auth().Debug("Token rejected", "error", err)
		return nil, &apperrors.Error{Kind: apperrors.KindAuthentication, Op: op, Message: "Invalid or expired token", Err: err}
	}

	uid, _ := claims["uid"].(string)
	if uid == "" {
		uid, _ = claims["sub"].(string)
	}
	if uid == "" {
		return nil, apperrors.Unauthenticated(op, "Invalid or expired token")
	}
	email, _ := claims["email"].(string)

	return &providers.Identity{UserID: uid, Email: email}, nil
}

// IssueToken mints a token for userID when password matches the configured
// issuer hash. Issuance is disabled when no hash is configured.
func (a *AuthService) IssueToken(userID, email, password string) (*TokenResult, error) {
	const op = "auth.issue"
	marker := a.perfTracker.StartOperation("auth:issue_token", "")
	defer marker.Complete()

	if a.config.IssuerPasswordHash == "" {
		err := apperrors.PermissionDenied(op, "Token issuance is disabled")
		marker.SetError(err)
		return nil, err
	}
	if strings.TrimSpace(userID) == "" {
		err := apperrors.Validation(op, "uid is required")
		marker.SetError(err)
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.config.IssuerPasswordHash), []byte(password)); err != nil {
		a.logger.LogAuthOperation("issue_token", userID, false, map[string]any{"reason": "invalid credentials"})
		marker.SetError(err)
		return nil, apperrors.Unauthenticated(op, "Invalid credentials")
	}

	token, expiresAt, err := security.GenerateIdentityToken(userID, email, a.config.Issuer, a.config.JWTSecret, a.config.TokenTTL)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	a.logger.LogAuthOperation("issue_token", userID, true, map[string]any{"expiresAt": expiresAt})
	return &TokenResult{Token: token, TokenType: "bearer", ExpiresAt: expiresAt, UserID: userID}, nil
}
