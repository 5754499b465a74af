package emailauth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Verifier redeems one-time email-auth tokens. A token verifies exactly
// once; the completed flag is flipped with a conditional write so two
// concurrent verifications cannot both succeed.
type Verifier struct {
	store            UserStore
	codec            TokenCodec
	expirationWindow time.Duration
	logger           Logger
	now              func() time.Time
}

// NewVerifier returns a Verifier backed by the given store.
func NewVerifier(store UserStore, expirationWindow time.Duration) *Verifier {
	return &Verifier{
		store:            store,
		codec:            NewTokenCodec(),
		expirationWindow: expirationWindow,
		logger:           defLogger{},
		now:              time.Now,
	}
}

func (v *Verifier) WithLogger(logger Logger) *Verifier {
	if logger != nil {
		v.logger = logger
	}
	return v
}

func (v *Verifier) WithTokenCodec(codec TokenCodec) *Verifier {
	if codec != nil {
		v.codec = codec
	}
	return v
}

// WithClock injects a custom clock (useful for tests).
func (v *Verifier) WithClock(clock func() time.Time) *Verifier {
	if clock != nil {
		v.now = clock
	}
	return v
}

// Verify checks a presented token for the given email and, on success,
// permanently consumes it and returns the verified identity.
//
// The check order is deliberate: existence, completion, validity, expiry.
// A replayed token is distinguished from a stale or wrong one without
// telling a guesser which check they got closest to.
func (v *Verifier) Verify(ctx context.Context, email, presentedToken string) (*Identity, error) {
	user, err := v.store.GetByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, wrapInternal(err, "failed to look up user for verification")
	}

	if err := statusAuthError(user.Status); err != nil {
		return nil, err
	}

	ea := user.EmailAuth
	if ea == nil {
		return nil, ErrEmailAuthMissing
	}

	if ea.Completed {
		return nil, ErrEmailAuthCompleted
	}

	if !v.codec.Matches(presentedToken, ea.TokenHash) {
		return nil, ErrEmailAuthInvalidToken
	}

	now := v.now()
	if ea.SentAtTime().Add(v.expirationWindow).Before(now) {
		return nil, ErrEmailAuthExpired
	}

	completed := *ea
	completed.Completed = true

	if err := v.store.UpdateEmailAuth(ctx, user.UserID, ea, &completed); err != nil {
		if IsEmailAuthConflict(err) {
			// a concurrent verification won; this token is spent
			return nil, ErrEmailAuthCompleted
		}
		return nil, wrapInternal(err, "failed to mark email auth completed")
	}

	if tracker, ok := v.store.(LastLoginTracker); ok {
		if err := tracker.TrackLastLogin(ctx, user.UserID, now.UnixMilli()); err != nil {
			v.logger.Warn("failed to track last login", "user_id", user.UserID, "error", err)
		}
	}

	v.logger.Info("email auth verified", "user_id", user.UserID)

	return &Identity{UserID: user.UserID, Email: user.Email}, nil
}
