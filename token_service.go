package emailauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenOptions tweak a single Create/Validate/Refresh call. Zero values fall
// back to the service defaults.
type TokenOptions struct {
	// ExpiresIn overrides the default session expiration.
	ExpiresIn time.Duration
	// Issuer overrides the default issuer if provided.
	Issuer string
	// Audience overrides the default audience if provided.
	Audience []string
	// Subject sets the sub claim; defaults to the userId.
	Subject string
}

// TokenService mints and validates signed session credentials. Sessions are
// stateless: validity is signature plus expiry, nothing is stored server side.
type TokenService struct {
	signingKey        []byte
	sessionExpiration time.Duration
	issuer            string
	audience          jwt.ClaimStrings
	logger            Logger
	now               func() time.Time
}

// NewTokenService creates a new TokenService instance. A missing signing key
// is a fatal configuration error, not something to retry.
func NewTokenService(signingKey []byte, sessionExpiration time.Duration, issuer string, audience []string) (*TokenService, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}

	var aud jwt.ClaimStrings
	if len(audience) > 0 {
		aud = make(jwt.ClaimStrings, len(audience))
		copy(aud, audience)
	}

	return &TokenService{
		signingKey:        signingKey,
		sessionExpiration: sessionExpiration,
		issuer:            issuer,
		audience:          aud,
		logger:            defLogger{},
		now:               time.Now,
	}, nil
}

func (ts *TokenService) WithLogger(logger Logger) *TokenService {
	if logger != nil {
		ts.logger = logger
	}
	return ts
}

// WithClock injects a custom clock (useful for tests).
func (ts *TokenService) WithClock(clock func() time.Time) *TokenService {
	if clock != nil {
		ts.now = clock
	}
	return ts
}

// Create mints a signed session credential carrying the userId claim and any
// extra metadata claims.
func (ts *TokenService) Create(userID string, metadata map[string]any, opts TokenOptions) (string, error) {
	now := ts.now()

	expiresIn := opts.ExpiresIn
	if expiresIn == 0 {
		expiresIn = ts.sessionExpiration
	}

	issuer := opts.Issuer
	if issuer == "" {
		issuer = ts.issuer
	}

	audience := ts.audience
	if len(opts.Audience) > 0 {
		audience = make(jwt.ClaimStrings, len(opts.Audience))
		copy(audience, opts.Audience)
	}

	subject := opts.Subject
	if subject == "" {
		subject = userID
	}

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
		UserID:   userID,
		Metadata: metadata,
	}

	ensureTokenID(&claims.RegisteredClaims)

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary session claims using the configured signing key.
func (ts *TokenService) SignClaims(claims *SessionClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}

	return signedString, nil
}

// Validate parses and verifies a session credential, returning its claims.
// Failures come back as distinct kinds: malformed, expired, not yet valid,
// or signature mismatch; all of them map to a 401 at the boundary.
func (ts *TokenService) Validate(tokenString string, opts TokenOptions) (*SessionClaims, error) {
	issuer := opts.Issuer
	if issuer == "" {
		issuer = ts.issuer
	}

	audience := ts.audience
	if len(opts.Audience) > 0 {
		audience = opts.Audience
	}

	parserOptions := make([]jwt.ParserOption, 0, 2)
	if issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(issuer))
	}
	if len(audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		switch {
		case goerrors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case goerrors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		case goerrors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignatureInvalid
		default:
			return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
				WithTextCode(ErrTokenMalformed.TextCode).
				WithCode(goerrors.CodeUnauthorized)
		}
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("token validate could not decode claims")
	return nil, ErrTokenMalformed
}

// Decode structurally parses a credential WITHOUT verifying the signature.
// It exists for non-trust-boundary inspection (debug views, log enrichment)
// and returns nil for anything unparseable. Never feed its output into an
// authorization decision.
func (ts *TokenService) Decode(tokenString string) *SessionClaims {
	claims := &SessionClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil
	}
	return claims
}

// Refresh re-issues a credential from an existing one. The old token is fully
// validated first, then the standard time and identity claims are dropped and
// the surviving application claims are re-signed with fresh timestamps.
func (ts *TokenService) Refresh(tokenString string, opts TokenOptions) (string, error) {
	claims, err := ts.Validate(tokenString, TokenOptions{Issuer: opts.Issuer, Audience: opts.Audience})
	if err != nil {
		return "", err
	}

	if claims.PrincipalID() == "" {
		return "", ErrMissingUserClaim
	}

	return ts.Create(claims.PrincipalID(), claims.Metadata, opts)
}

// IsExpired reports whether a credential fails validation specifically on
// expiry. Any other failure reports false.
func (ts *TokenService) IsExpired(tokenString string) bool {
	_, err := ts.Validate(tokenString, TokenOptions{})
	return IsTokenExpiredError(err)
}
