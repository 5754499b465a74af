package emailauth

import (
	"time"

	"github.com/uptrace/bun"
)

// UserStatus is the user's account status
type UserStatus = string

const (
	// UserStatusActive may obtain sessions
	UserStatusActive UserStatus = "ACTIVE"
	// UserStatusSuspended is locked out of new sessions
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// EmailAuth is the outstanding email-auth state for a user. At most one
// exists per user; a new issuance overwrites the previous one. Only the
// digest of the token is stored, never the raw token.
type EmailAuth struct {
	TokenHash string `bun:"token_hash" json:"token" dynamodbav:"token"`
	SentAt    int64  `bun:"sent_at" json:"sentAt" dynamodbav:"sentAt"`
	Completed bool   `bun:"completed" json:"completed" dynamodbav:"completed"`
}

// SentAtTime returns the issuance instant.
func (e *EmailAuth) SentAtTime() time.Time {
	return time.UnixMilli(e.SentAt)
}

// User is the identity record
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr" dynamodbav:"-"`

	UserID      string         `bun:"user_id,pk" json:"userId" dynamodbav:"userId"`
	Email       string         `bun:"email,notnull,unique" json:"email" dynamodbav:"email"`
	Status      UserStatus     `bun:"status,notnull" json:"status" dynamodbav:"status"`
	Preferences map[string]any `bun:"preferences,nullzero" json:"preferences,omitempty" dynamodbav:"preferences,omitempty"`
	CreatedAt   int64          `bun:"created_at,notnull" json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt   int64          `bun:"updated_at,notnull" json:"updatedAt" dynamodbav:"updatedAt"`
	LastLoginAt *int64         `bun:"last_login_at,nullzero" json:"lastLoginAt,omitempty" dynamodbav:"lastLoginAt,omitempty"`
	EmailAuth   *EmailAuth     `bun:"email_auth,nullzero,type:jsonb" json:"emailAuth,omitempty" dynamodbav:"emailAuth,omitempty"`
}

// EnsureStatus backfills the status for records created before the column existed.
func (u *User) EnsureStatus() {
	if u.Status == "" {
		u.Status = UserStatusActive
	}
}

// IsActive reports whether the user may obtain a session.
func (u *User) IsActive() bool {
	u.EnsureStatus()
	return u.Status == UserStatusActive
}

func statusAuthError(status UserStatus) error {
	switch status {
	case UserStatusActive, "":
		return nil
	default:
		return ErrAccountSuspended
	}
}
