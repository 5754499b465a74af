package emailauth

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced alongside structured errors so API clients can branch
// without string matching.
const (
	TextCodeUserNotFound       = "USER_NOT_FOUND"
	TextCodeTooManyRequests    = "EMAIL_AUTH_DEBOUNCED"
	TextCodeEmailAuthMissing   = "EMAIL_AUTH_MISSING"
	TextCodeEmailAuthCompleted = "EMAIL_AUTH_COMPLETED"
	TextCodeEmailAuthInvalid   = "EMAIL_AUTH_INVALID_TOKEN"
	TextCodeEmailAuthExpired   = "EMAIL_AUTH_EXPIRED"
	TextCodeEmailAuthConflict  = "EMAIL_AUTH_CONFLICT"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenNotYetValid   = "TOKEN_NOT_YET_VALID"
	TextCodeTokenSignature     = "TOKEN_SIGNATURE_INVALID"
	TextCodeMissingUserClaim   = "TOKEN_MISSING_USER_CLAIM"
	TextCodeAccountSuspended   = "ACCOUNT_SUSPENDED"
	TextCodeMissingSigningKey  = "MISSING_SIGNING_KEY"
)

// ErrUserNotFound is returned when no user matches the given id or email.
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrTooManyRequests is returned when a token is requested inside the
// debounce window. The outstanding token stays valid until its own expiry.
var ErrTooManyRequests = goerrors.New("too many requests", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyRequests).
	WithCode(http.StatusTooManyRequests)

// ErrEmailAuthMissing is returned when verification runs against a user that
// never requested a signin link.
var ErrEmailAuthMissing = goerrors.New("no email auth outstanding", goerrors.CategoryNotFound).
	WithTextCode(TextCodeEmailAuthMissing).
	WithCode(goerrors.CodeNotFound)

// ErrEmailAuthCompleted is returned when a token is presented a second time.
var ErrEmailAuthCompleted = goerrors.New("email auth already completed", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailAuthCompleted).
	WithCode(goerrors.CodeConflict)

// ErrEmailAuthInvalidToken is returned when the presented token does not
// match the stored digest.
var ErrEmailAuthInvalidToken = goerrors.New("invalid email auth token", goerrors.CategoryAuth).
	WithTextCode(TextCodeEmailAuthInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailAuthExpired is returned when an otherwise correct token is
// presented after the expiration window.
var ErrEmailAuthExpired = goerrors.New("email auth token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeEmailAuthExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailAuthConflict is the store-level compare-and-swap failure: the
// emailAuth state changed between read and write.
var ErrEmailAuthConflict = goerrors.New("email auth state changed concurrently", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailAuthConflict).
	WithCode(goerrors.CodeConflict)

// ErrTokenMalformed is returned for structurally invalid session tokens.
var ErrTokenMalformed = goerrors.New("session token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for well formed session tokens past their exp claim.
var ErrTokenExpired = goerrors.New("session token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenNotYetValid is returned for session tokens used before their nbf claim.
var ErrTokenNotYetValid = goerrors.New("session token not yet valid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenNotYetValid).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenSignatureInvalid is returned when the signature does not verify
// against the configured secret.
var ErrTokenSignatureInvalid = goerrors.New("session token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenSignature).
	WithCode(goerrors.CodeUnauthorized)

// ErrMissingUserClaim is returned when a valid session token carries no userId.
var ErrMissingUserClaim = goerrors.New("session token has no user claim", goerrors.CategoryAuth).
	WithTextCode(TextCodeMissingUserClaim).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountSuspended is returned when a valid credential belongs to a
// non-active account.
var ErrAccountSuspended = goerrors.New("account is suspended", goerrors.CategoryAuthz).
	WithTextCode(TextCodeAccountSuspended).
	WithCode(goerrors.CodeForbidden)

// ErrMissingSigningKey is a startup configuration failure, never retried.
var ErrMissingSigningKey = goerrors.New("signing key is required", goerrors.CategoryOperation).
	WithTextCode(TextCodeMissingSigningKey).
	WithCode(goerrors.CodeInternal)

// IsEmailAuthConflict reports whether err is the store CAS conflict.
func IsEmailAuthConflict(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == TextCodeEmailAuthConflict
	}
	return false
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// wrapInternal passes structured domain errors through unchanged and wraps
// anything else as an internal failure.
func wrapInternal(err error, msg string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithCode(goerrors.CodeInternal)
}
