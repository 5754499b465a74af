package emailauth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Issuer generates one-time email-auth tokens, enforcing the per-user
// debounce window. It never sends email; callers embed the returned raw
// token in a signin link and hand it to the delivery channel.
type Issuer struct {
	store          UserStore
	codec          TokenCodec
	debounceWindow time.Duration
	logger         Logger
	now            func() time.Time
}

// NewIssuer returns an Issuer backed by the given store.
func NewIssuer(store UserStore, debounceWindow time.Duration) *Issuer {
	return &Issuer{
		store:          store,
		codec:          NewTokenCodec(),
		debounceWindow: debounceWindow,
		logger:         defLogger{},
		now:            time.Now,
	}
}

func (i *Issuer) WithLogger(logger Logger) *Issuer {
	if logger != nil {
		i.logger = logger
	}
	return i
}

func (i *Issuer) WithTokenCodec(codec TokenCodec) *Issuer {
	if codec != nil {
		i.codec = codec
	}
	return i
}

// WithClock injects a custom clock (useful for tests).
func (i *Issuer) WithClock(clock func() time.Time) *Issuer {
	if clock != nil {
		i.now = clock
	}
	return i
}

// Issue creates a fresh token for the given email and persists its digest,
// overwriting any previous emailAuth state. Inside the debounce window it
// fails with ErrTooManyRequests and the outstanding token stays valid.
//
// The overwrite is conditional on the emailAuth state read at the start of
// the call, so of two concurrent requests for the same email exactly one
// wins; the loser surfaces ErrTooManyRequests as well.
func (i *Issuer) Issue(ctx context.Context, email string) (string, error) {
	user, err := i.store.GetByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return "", ErrUserNotFound
		}
		return "", wrapInternal(err, "failed to look up user for email auth")
	}

	if err := statusAuthError(user.Status); err != nil {
		return "", err
	}

	now := i.now()
	prior := user.EmailAuth

	if prior != nil && prior.SentAtTime().Add(i.debounceWindow).After(now) {
		i.logger.Debug("email auth debounced", "user_id", user.UserID, "sent_at", prior.SentAt)
		return "", ErrTooManyRequests
	}

	raw, hash, err := i.codec.Generate()
	if err != nil {
		return "", wrapInternal(err, "failed to generate email auth token")
	}

	next := &EmailAuth{
		TokenHash: hash,
		SentAt:    now.UnixMilli(),
		Completed: false,
	}

	if err := i.store.UpdateEmailAuth(ctx, user.UserID, prior, next); err != nil {
		if IsEmailAuthConflict(err) {
			// lost the race against a concurrent issuance
			i.logger.Warn("concurrent email auth issuance", "user_id", user.UserID)
			return "", ErrTooManyRequests
		}
		return "", wrapInternal(err, "failed to persist email auth token")
	}

	i.logger.Info("email auth token issued", "user_id", user.UserID)

	return raw, nil
}
