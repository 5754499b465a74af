package emailauth

import (
	"github.com/goliatone/go-router"
)

// PrincipalLocalsKey is where the middleware stores the principal context in
// the router locals.
const PrincipalLocalsKey = "emailauth:principal"

// ProtectedRoute gates a route group through the request authorizer. Denied
// requests are answered with the decision's status code; allowed requests
// proceed with the principal attached to both the router locals and the
// standard context.
func ProtectedRoute(authorizer *Authorizer) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			decision := authorizer.Authorize(
				c.Context(),
				c.Header(router.HeaderAuthorization),
				c.Path(),
			)

			if !decision.Allowed() {
				reject := decision.Reject
				return c.JSON(reject.StatusCode, map[string]any{
					"statusCode": reject.StatusCode,
					"message":    reject.Message,
				})
			}

			c.Locals(PrincipalLocalsKey, decision.Principal)
			c.SetContext(WithPrincipal(c.Context(), decision.Principal))

			return next(c)
		}
	}
}
