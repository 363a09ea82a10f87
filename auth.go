package auth

import (
	"context"

	"github.com/labstack/echo/v4"
)

// CredentialValidator confirms a caller's identity against the host
// application's user store. When password is non-nil it must verify the
// pair; when nil the login was extracted from a signed token and only needs
// to be re-resolved to a principal (a token proves a claimed identity, not
// that the identity is still authorized).
//
// On failure the returned message becomes the machine-readable keyword of
// the 401 response, e.g. "invaliduser" or "invalidpass".
type CredentialValidator func(ctx context.Context, login string, password *string) (success bool, principal any, message string)

// Loader resolves a per-rule context item for the declarative engine. The
// item is exposed read-only to the rule condition. A loader error is a
// configuration problem and surfaces as a 500, never as a client error.
type Loader func(c echo.Context) (any, error)

// FieldAccessor supplies one or more externally resolved objects for the
// field-ownership guards. It may return a single object or a slice.
type FieldAccessor func(c echo.Context) any

// GetUser returns the principal attached to the request, or nil when the
// request is anonymous.
func GetUser(c echo.Context) any {
	return c.Get(contextUserKey)
}

// GetLogin returns the login name the principal authenticated with.
func GetLogin(c echo.Context) string {
	login, _ := c.Get(contextLoginKey).(string)
	return login
}

// GetAuthMethod returns how the request was authenticated: MethodCredentials,
// MethodToken, or "" for a session resumed from the store or anonymous.
func GetAuthMethod(c echo.Context) AuthMethod {
	method, _ := c.Get(contextMethodKey).(AuthMethod)
	return method
}
