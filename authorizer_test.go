package emailauth_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prunklabs/go-emailauth"
)

func newTestTokenService(t *testing.T) *emailauth.TokenService {
	t.Helper()
	service, err := emailauth.NewTokenService([]byte("test-signing-key"), time.Hour, "test-issuer", nil)
	require.NoError(t, err)
	return service
}

func TestAuthorizer_Authorize(t *testing.T) {
	resource := "arn:aws:execute-api:us-east-1:123456789012:api/prod/GET/projects"

	t.Run("allows an active user", func(t *testing.T) {
		tokens := newTestTokenService(t)
		session, err := tokens.Create("user-1", nil, emailauth.TokenOptions{})
		require.NoError(t, err)

		store := &MockUserStore{}
		store.On("GetByID", mock.Anything, "user-1").Return(&emailauth.User{
			UserID: "user-1",
			Email:  "alice@example.com",
			Status: emailauth.UserStatusActive,
		}, nil)

		authorizer := emailauth.NewAuthorizer(tokens, store)

		decision := authorizer.Authorize(context.Background(), "Bearer "+session, resource)

		assert.True(t, decision.Allowed())
		assert.Nil(t, decision.Reject)
		assert.Equal(t, "user-1", decision.PrincipalID)
		require.NotNil(t, decision.Principal)
		assert.Equal(t, "user-1", decision.Principal.UserID)
		assert.Equal(t, "alice@example.com", decision.Principal.Email)

		doc := decision.PolicyDocument
		assert.Equal(t, emailauth.PolicyVersion, doc.Version)
		require.Len(t, doc.Statement, 1)
		assert.Equal(t, emailauth.PolicyActionInvoke, doc.Statement[0].Action)
		assert.Equal(t, emailauth.EffectAllow, doc.Statement[0].Effect)
		assert.Equal(t, resource, doc.Statement[0].Resource)
	})

	t.Run("accepts a bare token without the scheme", func(t *testing.T) {
		tokens := newTestTokenService(t)
		session, err := tokens.Create("user-1", nil, emailauth.TokenOptions{})
		require.NoError(t, err)

		store := &MockUserStore{}
		store.On("GetByID", mock.Anything, "user-1").Return(&emailauth.User{
			UserID: "user-1",
			Email:  "alice@example.com",
			Status: emailauth.UserStatusActive,
		}, nil)

		authorizer := emailauth.NewAuthorizer(tokens, store)

		decision := authorizer.Authorize(context.Background(), session, resource)
		assert.True(t, decision.Allowed())
	})

	t.Run("denies a missing token with 401", func(t *testing.T) {
		authorizer := emailauth.NewAuthorizer(newTestTokenService(t), &MockUserStore{})

		decision := authorizer.Authorize(context.Background(), "", resource)

		assert.False(t, decision.Allowed())
		require.NotNil(t, decision.Reject)
		assert.Equal(t, http.StatusUnauthorized, decision.Reject.StatusCode)
		assert.Equal(t, "Missing token", decision.Reject.Message)
		assert.Equal(t, emailauth.EffectDeny, decision.PolicyDocument.Statement[0].Effect)
	})

	t.Run("denies an invalid token with 401", func(t *testing.T) {
		authorizer := emailauth.NewAuthorizer(newTestTokenService(t), &MockUserStore{})

		decision := authorizer.Authorize(context.Background(), "Bearer not-a-jwt", resource)

		assert.False(t, decision.Allowed())
		assert.Equal(t, http.StatusUnauthorized, decision.Reject.StatusCode)
		assert.Equal(t, "Invalid token", decision.Reject.Message)
	})

	t.Run("denies an expired token with 401", func(t *testing.T) {
		past := time.Now().Add(-2 * time.Hour)
		backdated, err := emailauth.NewTokenService([]byte("test-signing-key"), time.Hour, "test-issuer", nil)
		require.NoError(t, err)
		backdated.WithClock(func() time.Time { return past })

		stale, err := backdated.Create("user-1", nil, emailauth.TokenOptions{})
		require.NoError(t, err)

		authorizer := emailauth.NewAuthorizer(newTestTokenService(t), &MockUserStore{})

		decision := authorizer.Authorize(context.Background(), "Bearer "+stale, resource)

		assert.False(t, decision.Allowed())
		assert.Equal(t, http.StatusUnauthorized, decision.Reject.StatusCode)
	})

	t.Run("denies a vanished user with 401", func(t *testing.T) {
		tokens := newTestTokenService(t)
		session, err := tokens.Create("user-9", nil, emailauth.TokenOptions{})
		require.NoError(t, err)

		store := &MockUserStore{}
		store.On("GetByID", mock.Anything, "user-9").Return(nil, emailauth.ErrUserNotFound)

		authorizer := emailauth.NewAuthorizer(tokens, store)

		decision := authorizer.Authorize(context.Background(), "Bearer "+session, resource)

		assert.False(t, decision.Allowed())
		assert.Equal(t, http.StatusUnauthorized, decision.Reject.StatusCode)
		assert.Equal(t, "Invalid token", decision.Reject.Message)
	})

	t.Run("denies a suspended user with 403", func(t *testing.T) {
		tokens := newTestTokenService(t)
		session, err := tokens.Create("user-1", nil, emailauth.TokenOptions{})
		require.NoError(t, err)

		store := &MockUserStore{}
		store.On("GetByID", mock.Anything, "user-1").Return(&emailauth.User{
			UserID: "user-1",
			Email:  "alice@example.com",
			Status: emailauth.UserStatusSuspended,
		}, nil)

		authorizer := emailauth.NewAuthorizer(tokens, store)

		decision := authorizer.Authorize(context.Background(), "Bearer "+session, resource)

		assert.False(t, decision.Allowed())
		assert.Equal(t, http.StatusForbidden, decision.Reject.StatusCode)
		assert.Equal(t, "Unauthorized", decision.Reject.Message)
	})

	t.Run("denies on store failure with 500", func(t *testing.T) {
		tokens := newTestTokenService(t)
		session, err := tokens.Create("user-1", nil, emailauth.TokenOptions{})
		require.NoError(t, err)

		store := &MockUserStore{}
		store.On("GetByID", mock.Anything, "user-1").
			Return(nil, goerrors.New("connection refused", goerrors.CategoryInternal))

		authorizer := emailauth.NewAuthorizer(tokens, store)

		decision := authorizer.Authorize(context.Background(), "Bearer "+session, resource)

		assert.False(t, decision.Allowed())
		assert.Equal(t, http.StatusInternalServerError, decision.Reject.StatusCode)
		assert.Equal(t, "Internal server error", decision.Reject.Message)
	})

	t.Run("rejects a non bearer scheme", func(t *testing.T) {
		authorizer := emailauth.NewAuthorizer(newTestTokenService(t), &MockUserStore{})

		decision := authorizer.Authorize(context.Background(), "Basic dXNlcjpwYXNz", resource)

		assert.False(t, decision.Allowed())
		assert.Equal(t, http.StatusUnauthorized, decision.Reject.StatusCode)
	})
}
