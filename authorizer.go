package emailauth

import (
	"context"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// PolicyVersion is the policy language version stamped on every decision.
	PolicyVersion = "2012-10-17"
	// PolicyActionInvoke is the gated action.
	PolicyActionInvoke = "execute-api:Invoke"

	// EffectAllow grants access to the resource.
	EffectAllow = "Allow"
	// EffectDeny rejects access to the resource.
	EffectDeny = "Deny"
)

// PolicyStatement is a single grant or rejection scoped to a resource.
type PolicyStatement struct {
	Action   string `json:"Action"`
	Effect   string `json:"Effect"`
	Resource string `json:"Resource"`
}

// PolicyDocument is the reverse-proxy style access artifact attached to a
// decision. Its payload is independent of the business content of the call.
type PolicyDocument struct {
	Version   string            `json:"Version"`
	Statement []PolicyStatement `json:"Statement"`
}

// PrincipalContext travels with allowed requests.
type PrincipalContext struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// RejectContext travels with denied requests.
type RejectContext struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// Decision is the per-request authorization outcome. It is produced fresh
// per call and never persisted.
type Decision struct {
	PrincipalID    string         `json:"principalId"`
	PolicyDocument PolicyDocument `json:"policyDocument"`
	Principal      *PrincipalContext
	Reject         *RejectContext
}

// Allowed reports whether the decision grants access.
func (d Decision) Allowed() bool {
	return d.Principal != nil
}

// Authorizer gates every API call: it validates the bearer credential and
// checks the account's current status against the store. Validation failures
// deny with 401, inactive accounts with 403, and any internal fault with 500.
// An unhandled fault must never come out as an allow.
type Authorizer struct {
	tokens *TokenService
	store  UserStore
	logger Logger
}

// NewAuthorizer returns a request authorizer backed by the token service and
// user store.
func NewAuthorizer(tokens *TokenService, store UserStore) *Authorizer {
	return &Authorizer{
		tokens: tokens,
		store:  store,
		logger: defLogger{},
	}
}

func (a *Authorizer) WithLogger(logger Logger) *Authorizer {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// Authorize runs the per-request decision state machine over the raw
// Authorization header value. resource is the identifier of the originating
// call and is echoed into the policy document.
func (a *Authorizer) Authorize(ctx context.Context, authorization, resource string) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("authorizer panic recovered", "panic", r)
			decision = a.deny(resource, http.StatusInternalServerError, "Internal server error")
		}
	}()

	token := bearerToken(authorization)
	if token == "" {
		a.logger.Debug("missing bearer token")
		return a.deny(resource, http.StatusUnauthorized, "Missing token")
	}

	claims, err := a.tokens.Validate(token, TokenOptions{})
	if err != nil {
		a.logger.Debug("token validation failed", "error", err)
		return a.deny(resource, http.StatusUnauthorized, "Invalid token")
	}

	userID := claims.PrincipalID()
	if userID == "" {
		a.logger.Debug("token carries no user claim")
		return a.deny(resource, http.StatusUnauthorized, "Invalid token")
	}

	user, err := a.store.GetByID(ctx, userID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			a.logger.Debug("user not found for token", "user_id", userID)
			return a.deny(resource, http.StatusUnauthorized, "Invalid token")
		}
		a.logger.Error("authorizer store lookup failed", "user_id", userID, "error", err)
		return a.deny(resource, http.StatusInternalServerError, "Internal server error")
	}

	if !user.IsActive() {
		a.logger.Debug("user is not active", "user_id", userID, "status", user.Status)
		return a.deny(resource, http.StatusForbidden, "Unauthorized")
	}

	return Decision{
		PrincipalID:    user.UserID,
		PolicyDocument: policyFor(EffectAllow, resource),
		Principal: &PrincipalContext{
			UserID: user.UserID,
			Email:  user.Email,
		},
	}
}

func (a *Authorizer) deny(resource string, statusCode int, message string) Decision {
	return Decision{
		PolicyDocument: policyFor(EffectDeny, resource),
		Reject: &RejectContext{
			StatusCode: statusCode,
			Message:    message,
		},
	}
}

func policyFor(effect, resource string) PolicyDocument {
	return PolicyDocument{
		Version: PolicyVersion,
		Statement: []PolicyStatement{
			{
				Action:   PolicyActionInvoke,
				Effect:   effect,
				Resource: resource,
			},
		},
	}
}

// bearerToken extracts the credential from an Authorization header value.
// Both "Bearer <token>" and a bare token are accepted.
func bearerToken(authorization string) string {
	value := strings.TrimSpace(authorization)
	if value == "" {
		return ""
	}
	if scheme, rest, ok := strings.Cut(value, " "); ok {
		if strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(rest)
		}
		return ""
	}
	return value
}
