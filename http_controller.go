package emailauth

import (
	"context"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// requestTimeout bounds each auth operation; the store and mail clients
// carry their own I/O timeouts underneath.
const requestTimeout = 10 * time.Second

type AuthControllerRoutes struct {
	Request string
	Verify  string
	Refresh string
}

// AuthController exposes the passwordless flow over HTTP: request a signin
// link, exchange the emailed token for a session credential, refresh a
// session credential.
type AuthController struct {
	Debug    bool
	Logger   Logger
	Routes   *AuthControllerRoutes
	Issuer   *Issuer
	Verifier *Verifier
	Tokens   *TokenService
	Mailer   Mailer
	Config   Config
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Request: "/auth/email",
			Verify:  "/auth/verify",
			Refresh: "/auth/refresh",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Issuer == nil {
		panic("Missing Issuer in email auth controller...")
	}

	if c.Verifier == nil {
		panic("Missing Verifier in email auth controller...")
	}

	if c.Tokens == nil {
		panic("Missing TokenService in email auth controller...")
	}

	if c.Mailer == nil {
		panic("Missing Mailer in email auth controller...")
	}

	if c.Config == nil {
		panic("Missing Config in email auth controller...")
	}

	return c
}

func (a *AuthController) WithLogger(logger Logger) *AuthController {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

// RegisterAuthRoutes mounts the email auth endpoints on the given router.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	app.
		Post(controller.Routes.Request, controller.RequestEmailAuth).
		SetName("email-auth.request")

	app.
		Get(controller.Routes.Verify, controller.VerifyEmailAuth).
		SetName("email-auth.verify")

	app.
		Post(controller.Routes.Refresh, controller.RefreshSession).
		SetName("email-auth.refresh")
}

// RequestEmailAuthPayload carries the signin-link request body.
type RequestEmailAuthPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will run validation rules
func (r RequestEmailAuthPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

// RequestEmailAuth issues a one-time token and hands the signin link to the
// delivery channel. The raw token never appears in the response.
func (a *AuthController) RequestEmailAuth(ctx router.Context) error {
	payload := new(RequestEmailAuthPayload)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(http.StatusBadRequest, errorBody("Invalid request payload"))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, errorBody(err.Error()))
	}

	reqCtx, cancel := context.WithTimeout(ctx.Context(), requestTimeout)
	defer cancel()

	token, err := a.Issuer.Issue(reqCtx, payload.Email)
	if err != nil {
		return a.writeError(ctx, err)
	}

	link := SigninLink(a.Config.GetServiceDomain(), a.Config.GetEmailAuthPath(), token, payload.Email)

	if a.Debug {
		a.Logger.Debug("signin link issued", "link", print.MaybePrettyJSON(map[string]string{
			"email": payload.Email,
			"link":  link,
		}))
	}

	subject := SigninEmailSubject(a.Config.GetServiceName())
	body := SigninEmailBody(a.Config.GetServiceName(), link, payload.Email)

	if err := a.Mailer.Send(reqCtx, payload.Email, subject, body); err != nil {
		a.Logger.Error("failed to deliver signin email", "email", payload.Email, "error", err)
		return ctx.JSON(http.StatusInternalServerError, errorBody("Internal server error"))
	}

	return ctx.JSON(http.StatusCreated, map[string]any{"status": "success"})
}

// VerifyEmailAuthQuery carries the link parameters.
type VerifyEmailAuthQuery struct {
	Email string `query:"email" json:"email"`
	Token string `query:"token" json:"token"`
}

// Validate will run validation rules
func (q VerifyEmailAuthQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Email, validation.Required, is.Email),
		validation.Field(&q.Token, validation.Required),
	)
}

// VerifyEmailAuth redeems the emailed token and answers with a signed
// session credential. Every non-internal verification failure collapses to
// one generic 400 so the response does not reveal which check failed.
func (a *AuthController) VerifyEmailAuth(ctx router.Context) error {
	query := VerifyEmailAuthQuery{
		Email: ctx.Query("email", ""),
		Token: ctx.Query("token", ""),
	}

	if err := query.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, errorBody("Malformed email verification"))
	}

	reqCtx, cancel := context.WithTimeout(ctx.Context(), requestTimeout)
	defer cancel()

	identity, err := a.Verifier.Verify(reqCtx, query.Email, query.Token)
	if err != nil {
		a.Logger.Warn("email verification failed", "email", query.Email, "error", err)

		if statusOf(err) != http.StatusInternalServerError {
			return ctx.JSON(http.StatusBadRequest, errorBody("Malformed email verification"))
		}
		return ctx.JSON(http.StatusInternalServerError, errorBody("Internal server error"))
	}

	session, err := a.Tokens.Create(identity.UserID, nil, TokenOptions{
		ExpiresIn: a.Config.GetSessionExpiration(),
	})
	if err != nil {
		a.Logger.Error("failed to mint session token", "user_id", identity.UserID, "error", err)
		return ctx.JSON(http.StatusInternalServerError, errorBody("Internal server error"))
	}

	return ctx.JSON(http.StatusOK, map[string]any{"token": session})
}

// RefreshSessionPayload carries the session credential to re-issue.
type RefreshSessionPayload struct {
	Token string `form:"token" json:"token"`
}

// Validate will run validation rules
func (r RefreshSessionPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

// RefreshSession re-issues a session credential. The old credential is fully
// validated before any claim of it is trusted.
func (a *AuthController) RefreshSession(ctx router.Context) error {
	payload := new(RefreshSessionPayload)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(http.StatusBadRequest, errorBody("Invalid request payload"))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, errorBody(err.Error()))
	}

	session, err := a.Tokens.Refresh(payload.Token, TokenOptions{
		ExpiresIn: a.Config.GetSessionExpiration(),
	})
	if err != nil {
		a.Logger.Warn("session refresh rejected", "error", err)
		return a.writeError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{"token": session})
}

// writeError maps structured domain errors onto their HTTP status and hides
// everything else behind a 500.
func (a *AuthController) writeError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		a.Logger.Error("unexpected error at auth boundary", "error", err)
		return ctx.JSON(http.StatusInternalServerError, errorBody("Internal server error"))
	}

	status := richErr.Code
	if status == 0 || status >= http.StatusInternalServerError {
		a.Logger.Error("internal error at auth boundary",
			"error", richErr.Message,
			"category", richErr.Category,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
		return ctx.JSON(http.StatusInternalServerError, errorBody("Internal server error"))
	}

	return ctx.JSON(status, errorBody(richErr.Message))
}

func statusOf(err error) int {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code != 0 {
		return richErr.Code
	}
	return http.StatusInternalServerError
}

func errorBody(message string) map[string]any {
	return map[string]any{"error": message}
}
