package emailauth

import (
	"os"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Defaults applied when the environment leaves a knob unset.
const (
	DefaultTokenExpiration   = 30 * time.Minute
	DefaultDebounceWindow    = 3 * time.Minute
	DefaultSessionExpiration = 30 * 24 * time.Hour
	DefaultEmailAuthPath     = "/auth/verify"
)

// EnvConfig is the environment backed Config implementation. Build it with
// NewConfigFromEnv or populate the fields directly in tests and examples.
type EnvConfig struct {
	SigningKey        string
	Issuer            string
	Audience          []string
	TokenExpiration   time.Duration
	DebounceWindow    time.Duration
	SessionExpiration time.Duration
	ServiceName       string
	ServiceDomain     string
	EmailAuthPath     string
	EmailSender       string
}

var _ Config = (*EnvConfig)(nil)

// NewConfigFromEnv loads configuration from the process environment:
//
//	JWT_SECRET                   signing secret (required)
//	JWT_ISSUER                   optional iss claim
//	JWT_AUDIENCE                 optional comma separated aud claim
//	JWT_EXPIRATION_TIME          session lifetime, Go duration (default 720h)
//	EMAIL_AUTH_TOKEN_EXPIRATION  email token lifetime (default 30m)
//	EMAIL_AUTH_DEBOUNCE_TIME     min gap between issuances (default 3m)
//	SERVICE_NAME                 display name used in the signin email
//	SERVICE_DOMAIN               host for the signin link
//	EMAIL_AUTH_PATH              path for the signin link (default /auth/verify)
//	EMAIL_AUTH_SENDER            From address for signin mail
func NewConfigFromEnv() (*EnvConfig, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, ErrMissingSigningKey
	}

	cfg := &EnvConfig{
		SigningKey:        secret,
		Issuer:            os.Getenv("JWT_ISSUER"),
		TokenExpiration:   DefaultTokenExpiration,
		DebounceWindow:    DefaultDebounceWindow,
		SessionExpiration: DefaultSessionExpiration,
		ServiceName:       os.Getenv("SERVICE_NAME"),
		ServiceDomain:     os.Getenv("SERVICE_DOMAIN"),
		EmailAuthPath:     DefaultEmailAuthPath,
		EmailSender:       os.Getenv("EMAIL_AUTH_SENDER"),
	}

	if aud := os.Getenv("JWT_AUDIENCE"); aud != "" {
		for _, entry := range strings.Split(aud, ",") {
			if entry = strings.TrimSpace(entry); entry != "" {
				cfg.Audience = append(cfg.Audience, entry)
			}
		}
	}

	if path := os.Getenv("EMAIL_AUTH_PATH"); path != "" {
		cfg.EmailAuthPath = path
	}

	var err error
	if cfg.SessionExpiration, err = envDuration("JWT_EXPIRATION_TIME", DefaultSessionExpiration); err != nil {
		return nil, err
	}
	if cfg.TokenExpiration, err = envDuration("EMAIL_AUTH_TOKEN_EXPIRATION", DefaultTokenExpiration); err != nil {
		return nil, err
	}
	if cfg.DebounceWindow, err = envDuration("EMAIL_AUTH_DEBOUNCE_TIME", DefaultDebounceWindow); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryOperation, "invalid duration for "+key).
			WithCode(goerrors.CodeInternal)
	}
	return d, nil
}

func (c *EnvConfig) GetSigningKey() string { return c.SigningKey }
func (c *EnvConfig) GetIssuer() string { return c.Issuer }
func (c *EnvConfig) GetAudience() []string { return c.Audience }
func (c *EnvConfig) GetServiceName() string { return c.ServiceName }
func (c *EnvConfig) GetServiceDomain() string { return c.ServiceDomain }
func (c *EnvConfig) GetEmailAuthPath() string { return c.EmailAuthPath }
func (c *EnvConfig) GetEmailSender() string { return c.EmailSender }

func (c *EnvConfig) GetTokenExpiration() time.Duration {
	if c.TokenExpiration == 0 {
		return DefaultTokenExpiration
	}
	return c.TokenExpiration
}

func (c *EnvConfig) GetDebounceWindow() time.Duration {
	if c.DebounceWindow == 0 {
		return DefaultDebounceWindow
	}
	return c.DebounceWindow
}

func (c *EnvConfig) GetSessionExpiration() time.Duration {
	if c.SessionExpiration == 0 {
		return DefaultSessionExpiration
	}
	return c.SessionExpiration
}
