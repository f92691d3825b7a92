package services

import (
	"context"
	"testing"
	"time"

	"github.com/commxr/commxr-go/internal/domain/apperrors"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/performance"
	"github.com/commxr/commxr-go/internal/infrastructure/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-signing-secret"

func newTestAuthService(t *testing.T, password string) *AuthService {
	t.Helper()
	cfg := AuthConfig{JWTSecret: testSecret, Issuer: "commxr-test", TokenTTL: time.Minute}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		cfg.IssuerPasswordHash = string(hash)
	}
	return NewAuthService(cfg, logging.NewNopLogger(), performance.NewTracker(nil))
}

func TestAuthIssueAndVerify(t *testing.T) {
	svc := newTestAuthService(t, "letmein")

	res, err := svc.IssueToken("user-42", "u42@example.com", "letmein")
	require.NoError(t, err)
	assert.Equal(t, "bearer", res.TokenType)
	assert.True(t, res.ExpiresAt.After(time.Now()))

	id, err := svc.Verify(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", id.UserID)
	assert.Equal(t, "u42@example.com", id.Email)
}

func TestAuthIssueRejectsWrongPassword(t *testing.T) {
	svc := newTestAuthService(t, "letmein")

	_, err := svc.IssueToken("user-42", "", "guess")
	assert.True(t, apperrors.Is(err, apperrors.KindAuthentication))

	_, err = svc.IssueToken("", "", "letmein")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestAuthIssueDisabledWithoutHash(t *testing.T) {
	svc := newTestAuthService(t, "")
	_, err := svc.IssueToken("user-42", "", "anything")
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))
}

func TestAuthVerifyRejectsBadTokens(t *testing.T) {
	svc := newTestAuthService(t, "")
	ctx := context.Background()

	_, err := svc.Verify(ctx, "")
	assert.True(t, apperrors.Is(err, apperrors.KindAuthentication))

	_, err = svc.Verify(ctx, "not-a-jwt")
	assert.True(t, apperrors.Is(err, apperrors.KindAuthentication))

	foreign, _, err := security.GenerateIdentityToken("user-1", "", "other", "another-secret", time.Minute)
	require.NoError(t, err)
	_, err = svc.Verify(ctx, foreign)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthentication))

	expired, _, err := security.GenerateIdentityToken("user-1", "", "commxr-test", testSecret, -time.Minute)
	require.NoError(t, err)
	_, err = svc.Verify(ctx, expired)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthentication))
}
