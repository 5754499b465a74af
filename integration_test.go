package emailauth_test

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/prunklabs/go-emailauth"
	"github.com/prunklabs/go-emailauth/store/bunstore"
)

// TestPasswordlessFlow drives the whole passwordless loop against a real
// store: request a token, redeem it, mint a session, authorize a request
// with it, then check the replay and debounce edges.
func TestPasswordlessFlow(t *testing.T) {
	ctx := context.Background()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	bunDB := bun.NewDB(db, sqlitedialect.New())
	t.Cleanup(func() {
		_ = bunDB.Close()
		_ = db.Close()
	})

	store := bunstore.New(bunDB)
	require.NoError(t, store.CreateSchema(ctx))

	alice, err := store.Register(ctx, "alice@example.com")
	require.NoError(t, err)

	issuer := emailauth.NewIssuer(store, 3*time.Minute)
	verifier := emailauth.NewVerifier(store, 30*time.Minute)
	tokens, err := emailauth.NewTokenService([]byte("integration-test-key"), 30*24*time.Hour, "prunk", nil)
	require.NoError(t, err)
	authorizer := emailauth.NewAuthorizer(tokens, store)

	rawToken, err := issuer.Issue(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, rawToken)

	t.Run("second request inside the debounce window", func(t *testing.T) {
		_, err := issuer.Issue(ctx, "alice@example.com")
		assert.ErrorIs(t, err, emailauth.ErrTooManyRequests)
	})

	t.Run("an unknown address is reported as not found", func(t *testing.T) {
		_, err := issuer.Issue(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, emailauth.ErrUserNotFound)

		_, err = verifier.Verify(ctx, "nobody@example.com", rawToken)
		assert.ErrorIs(t, err, emailauth.ErrUserNotFound)
	})

	identity, err := verifier.Verify(ctx, "alice@example.com", rawToken)
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, identity.UserID)
	assert.Equal(t, "alice@example.com", identity.Email)

	t.Run("verification stamps last login", func(t *testing.T) {
		user, err := store.GetByID(ctx, alice.UserID)
		require.NoError(t, err)
		require.NotNil(t, user.LastLoginAt)
	})

	t.Run("the token is spent", func(t *testing.T) {
		_, err := verifier.Verify(ctx, "alice@example.com", rawToken)
		assert.ErrorIs(t, err, emailauth.ErrEmailAuthCompleted)
	})

	session, err := tokens.Create(identity.UserID, nil, emailauth.TokenOptions{})
	require.NoError(t, err)

	t.Run("the session authorizes requests", func(t *testing.T) {
		decision := authorizer.Authorize(ctx, "Bearer "+session, "/projects")
		require.True(t, decision.Allowed())
		assert.Equal(t, alice.UserID, decision.PrincipalID)
		assert.Equal(t, "alice@example.com", decision.Principal.Email)
	})

	t.Run("the session refreshes", func(t *testing.T) {
		refreshed, err := tokens.Refresh(session, emailauth.TokenOptions{})
		require.NoError(t, err)

		decision := authorizer.Authorize(ctx, "Bearer "+refreshed, "/projects")
		assert.True(t, decision.Allowed())
	})

	t.Run("a suspended account is shut out", func(t *testing.T) {
		_, err := bunDB.NewUpdate().
			Model((*emailauth.User)(nil)).
			Set("status = ?", emailauth.UserStatusSuspended).
			Where("user_id = ?", alice.UserID).
			Exec(ctx)
		require.NoError(t, err)

		decision := authorizer.Authorize(ctx, "Bearer "+session, "/projects")
		require.False(t, decision.Allowed())
		assert.Equal(t, http.StatusForbidden, decision.Reject.StatusCode)
	})
}
