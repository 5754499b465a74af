package emailauth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// UserStore is the keyed store holding user records. Implementations must
// honor the compare-and-swap contract of UpdateEmailAuth: the write succeeds
// only when the persisted emailAuth state still equals prior, otherwise they
// return an error matching IsEmailAuthConflict.
type UserStore interface {
	GetByID(ctx context.Context, userID string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetStatus(ctx context.Context, userID string) (UserStatus, error)
	UpdateEmailAuth(ctx context.Context, userID string, prior, next *EmailAuth) error
}

// LastLoginTracker is an optional UserStore upgrade. Stores that implement it
// get a last-login timestamp stamped after a successful verification.
type LastLoginTracker interface {
	TrackLastLogin(ctx context.Context, userID string, at int64) error
}

// TokenCodec generates email-auth tokens and checks presented tokens against
// the stored digest. Only the digest is ever persisted.
type TokenCodec interface {
	Generate() (raw, hash string, err error)
	Matches(raw, storedHash string) bool
}

// Mailer is the delivery channel for signin links. The core builds the link
// and the HTML body; delivery itself is a collaborator concern.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetTokenExpiration() time.Duration
	GetDebounceWindow() time.Duration
	GetSessionExpiration() time.Duration
	GetServiceName() string
	GetServiceDomain() string
	GetEmailAuthPath() string
	GetEmailSender() string
}

// Identity is the proof of a completed email verification: the pair handed to
// the session layer to mint a bearer credential.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] EMAILAUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] EMAILAUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] EMAILAUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] EMAILAUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
