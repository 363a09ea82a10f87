package auth

import (
	"github.com/labstack/echo/v4"
)

// ConditionalRestrictor wraps the guard set so each guard is only enforced
// when a named query or body parameter equals a given value; otherwise the
// guard is skipped entirely and the request continues.
type ConditionalRestrictor struct {
	sec   *Security
	name  string
	value string
}

// IfParam returns a guard set conditioned on a request parameter:
//
//	e.GET("/users", list, sec.IfParam("private", "true").RestrictToLoggedIn)
//
// lets anonymous callers through unless the request asks for private data.
func (s *Security) IfParam(name, value string) *ConditionalRestrictor {
	return &ConditionalRestrictor{sec: s, name: name, value: value}
}

func (r *ConditionalRestrictor) RestrictToLoggedIn(next echo.HandlerFunc) echo.HandlerFunc {
	return r.guard(r.sec.RestrictToLoggedIn)(next)
}

func (r *ConditionalRestrictor) RestrictToSelf(next echo.HandlerFunc) echo.HandlerFunc {
	return r.guard(r.sec.RestrictToSelf)(next)
}

func (r *ConditionalRestrictor) RestrictToRoles(roles ...string) echo.MiddlewareFunc {
	return r.guard(r.sec.RestrictToRoles(roles...))
}

func (r *ConditionalRestrictor) RestrictToSelfOrRoles(roles ...string) echo.MiddlewareFunc {
	return r.guard(r.sec.RestrictToSelfOrRoles(roles...))
}

func (r *ConditionalRestrictor) RestrictToParam(params ...string) echo.MiddlewareFunc {
	return r.guard(r.sec.RestrictToParam(params...))
}

func (r *ConditionalRestrictor) RestrictToParamOrRoles(params []string, roles []string) echo.MiddlewareFunc {
	return r.guard(r.sec.RestrictToParamOrRoles(params, roles))
}

func (r *ConditionalRestrictor) RestrictToField(fields []string, accessor FieldAccessor) echo.MiddlewareFunc {
	return r.guard(r.sec.RestrictToField(fields, accessor))
}

func (r *ConditionalRestrictor) RestrictToFieldOrRoles(fields []string, roles []string, accessor FieldAccessor) echo.MiddlewareFunc {
	return r.guard(r.sec.RestrictToFieldOrRoles(fields, roles, accessor))
}

func (r *ConditionalRestrictor) guard(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		guarded := mw(next)
		return func(c echo.Context) error {
			if queryOrBodyParam(c, r.name) == r.value {
				return guarded(c)
			}
			return next(c)
		}
	}
}
