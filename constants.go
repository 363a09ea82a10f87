package auth

// AuthMethod records how the current request was authenticated.
type AuthMethod string

const (
	MethodCredentials AuthMethod = "credentials"
	MethodToken       AuthMethod = "token"
)

const (
	// DefaultAuthHeader carries the session outcome back to the client:
	// "success=<token> <login> <expiry>" or "error=<message>".
	DefaultAuthHeader = "X-CS-Auth"
	// DefaultUserHeader carries the serialized principal on success.
	DefaultUserHeader = "X-CS-User"

	// SessionCookie binds a request to a server-side session record when a
	// session store is configured.
	SessionCookie = "cs-session"

	corsHeader = "Access-Control-Expose-Headers"

	// DefaultExpiry is the session TTL in minutes.
	DefaultExpiry = 15

	contextUserKey   = "cs.auth.user"
	contextLoginKey  = "cs.auth.login"
	contextMethodKey = "cs.auth.method"
)

const (
	// DefaultIDField is the principal field holding its identifier.
	DefaultIDField = "id"
	// DefaultRolesField is the principal field holding its role list.
	DefaultRolesField = "roles"
	// DefaultIDParam is the request parameter compared against the
	// principal id by the self guard.
	DefaultIDParam = "user"
)
