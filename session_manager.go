package auth

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/xompass/vsaas-auth/http_errors"
)

var errorMessageRe = regexp.MustCompile(`^error=(.+)$`)

type strategyResult int

const (
	// strategySkipped: the request carries no evidence this strategy
	// understands; try the next one.
	strategySkipped strategyResult = iota
	// strategyResolved: identity established (or deliberately anonymous);
	// the chain stops and the request continues.
	strategyResolved
	// strategyFailed: evidence was presented and rejected; terminal for
	// the request, no later strategy is attempted.
	strategyFailed
)

type strategy func(c echo.Context) (strategyResult, error)

// Validate is the authentication middleware. It establishes exactly one of
// {authenticated principal, anonymous} by trying, in order: basic
// credentials, a stored session, a bearer token. The first strategy that
// recognizes its evidence wins; a strategy that rejects its evidence ends
// the request with a 401. A request with no evidence at all continues
// anonymously.
//
// Authorization is never decided here; guards and the declarative engine run
// downstream against the identity this middleware attaches.
func (s *Security) Validate(next echo.HandlerFunc) echo.HandlerFunc {
	strategies := []strategy{
		s.tryCredentials,
		s.tryStoredSession,
		s.tryToken,
	}

	return func(c echo.Context) error {
		for _, try := range strategies {
			result, err := try(c)
			switch result {
			case strategyResolved:
				return next(c)
			case strategyFailed:
				return err
			}
		}

		// no credentials of any kind
		s.clearSession(c, "")
		return next(c)
	}
}

// Clear drops the current session: store entry, cookie and response headers.
// Meant for logout handlers.
func (s *Security) Clear(c echo.Context) {
	s.clearSession(c, "")
}

// Message extracts the failure message from an auth-status header, or ""
// when the header does not carry an error marker.
func (s *Security) Message(header http.Header) string {
	match := errorMessageRe.FindStringSubmatch(header.Get(s.authHeader))
	if len(match) > 1 {
		return match[1]
	}
	return ""
}

// tryCredentials handles "Authorization: Basic". The injected validator owns
// the password check; its failure message becomes the response keyword.
func (s *Security) tryCredentials(c echo.Context) (strategyResult, error) {
	login, password, ok := c.Request().BasicAuth()
	if !ok {
		return strategySkipped, nil
	}

	success, principal, message := s.options.Validate(c.Request().Context(), login, &password)
	if !success || principal == nil {
		s.Debugf("credential authentication failed for %q: %s", login, message)
		s.clearSession(c, message)
		return strategyFailed, http_errors.Unauthenticated(message)
	}

	s.startSession(c, principal, login, MethodCredentials)
	return strategyResolved, nil
}

// tryStoredSession resumes a session previously saved in the store. An
// expired record is a soft fail: the record is dropped and the request
// continues anonymously, it never produces an error response.
func (s *Security) tryStoredSession(c echo.Context) (strategyResult, error) {
	if s.store == nil {
		return strategySkipped, nil
	}
	cookie, err := c.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return strategySkipped, nil
	}

	record, err := s.store.Get(c.Request().Context(), cookie.Value)
	if err != nil {
		s.Errorf("session store read failed: %v", err)
		return strategySkipped, nil
	}
	if record == nil {
		return strategySkipped, nil
	}

	if record.Expiry <= time.Now().Unix() {
		s.clearSession(c, "")
		return strategyResolved, nil
	}

	var principal any
	if err := sonic.Unmarshal(record.Principal, &principal); err != nil {
		s.Errorf("stored session for %q is corrupt: %v", record.Login, err)
		s.clearSession(c, "")
		return strategyResolved, nil
	}

	// refresh on use: new expiry, new token, store touched
	s.startSession(c, principal, record.Login, "")
	return strategyResolved, nil
}

// tryToken handles a stateless signed token, from "Authorization: Bearer" or
// the auth header itself. The token only proves a claimed identity: the
// subject is re-resolved through the validator before a session starts.
func (s *Security) tryToken(c echo.Context) (strategyResult, error) {
	tok := bearerToken(c.Request(), s.authHeader)
	if tok == "" {
		return strategySkipped, nil
	}

	claims, err := s.codec.Validate(tok)
	if err != nil {
		s.clearSession(c, "invalidtoken")
		return strategyFailed, http_errors.InvalidToken()
	}

	success, principal, _ := s.options.Validate(c.Request().Context(), claims.Subject, nil)
	if !success || principal == nil {
		s.clearSession(c, "invalidtoken")
		return strategyFailed, http_errors.InvalidToken()
	}

	s.startSession(c, principal, claims.Subject, MethodToken)
	return strategyResolved, nil
}

func bearerToken(req *http.Request, authHeader string) string {
	if header := req.Header.Get(echo.HeaderAuthorization); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	// clients may also send the raw token in the auth header; some send the
	// literal string "null", which counts as absent
	if raw := req.Header.Get(authHeader); raw != "" && raw != "null" {
		return raw
	}
	return ""
}

// startSession is the shared success path: expose the auth headers for CORS,
// persist the record if a store is configured, attach the identity to the
// request context, and issue a fresh token with a new expiry.
func (s *Security) startSession(c echo.Context, principal any, login string, method AuthMethod) {
	expiry := time.Now().Add(s.expiry).Unix()
	s.exposeHeaders(c)

	if s.store != nil {
		id := s.sessionID(c)
		raw, err := sonic.Marshal(principal)
		if err != nil {
			s.Errorf("cannot serialize principal for session store: %v", err)
		} else if err := s.store.Put(c.Request().Context(), id, &SessionRecord{
			Principal: raw,
			Login:     login,
			Expiry:    expiry,
		}); err != nil {
			s.Errorf("session store write failed: %v", err)
		}
	}

	c.Set(contextUserKey, principal)
	c.Set(contextLoginKey, login)
	if method != "" {
		c.Set(contextMethodKey, method)
	}

	header := c.Response().Header()
	tok, err := s.codec.Generate(login, principal, expiry)
	if err != nil {
		s.Errorf("token generation failed for %q: %v", login, err)
	} else {
		header.Set(s.authHeader, fmt.Sprintf("success=%s %s %d", tok, login, expiry))
	}

	if raw, err := sonic.Marshal(principal); err == nil {
		header.Set(s.userHeader, string(raw))
	}
}

// clearSession is the shared failure/anonymous path. A failure message is
// echoed in the auth header as "error=<message>"; without one the headers
// are removed outright.
func (s *Security) clearSession(c echo.Context, message string) {
	s.exposeHeaders(c)

	if s.store != nil {
		if cookie, err := c.Cookie(SessionCookie); err == nil && cookie.Value != "" {
			if err := s.store.Delete(c.Request().Context(), cookie.Value); err != nil {
				s.Errorf("session store delete failed: %v", err)
			}
			c.SetCookie(&http.Cookie{
				Name:     SessionCookie,
				Value:    "",
				Path:     "/",
				MaxAge:   -1,
				HttpOnly: true,
			})
		}
	}

	header := c.Response().Header()
	header.Del(s.userHeader)
	if message != "" {
		header.Set(s.authHeader, "error="+message)
	} else {
		header.Del(s.authHeader)
	}
}

// sessionID returns the id binding this request to its store entry,
// issuing the cookie when absent.
func (s *Security) sessionID(c echo.Context) string {
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	id := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		Expires:  time.Now().Add(s.expiry),
		HttpOnly: true,
	})
	return id
}

// exposeHeaders appends the auth and user header names to the CORS exposure
// list, preserving whatever is already there.
func (s *Security) exposeHeaders(c echo.Context) {
	header := c.Response().Header()
	exposed := make([]string, 0, 4)
	for _, part := range strings.Split(header.Get(corsHeader), ",") {
		part = strings.TrimSpace(part)
		if part != "" && !strings.EqualFold(part, s.authHeader) && !strings.EqualFold(part, s.userHeader) {
			exposed = append(exposed, part)
		}
	}
	exposed = append(exposed, s.authHeader, s.userHeader)
	header.Set(corsHeader, strings.Join(exposed, ","))
}
