package auth

import (
	"reflect"

	"github.com/labstack/echo/v4"
	"github.com/xompass/vsaas-auth/http_errors"
)

// Predicate guards. Every guard requires an authenticated principal first:
// an anonymous request is always a 401, an authenticated but disallowed one
// a 403 with the "unauthorized" keyword. Guards only read the principal and
// the request; the allow/deny decision is their only effect.

// RestrictToLoggedIn passes iff a principal exists.
func (s *Security) RestrictToLoggedIn(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if GetUser(c) == nil {
			return http_errors.Unauthenticated()
		}
		return next(c)
	}
}

// RestrictToSelf passes iff the principal's id equals the configured id
// parameter of the request.
func (s *Security) RestrictToSelf(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if GetUser(c) == nil {
			return http_errors.Unauthenticated()
		}
		if !s.checkSelf(c) {
			return http_errors.Unauthorized()
		}
		return next(c)
	}
}

// RestrictToRoles passes iff the principal holds at least one of the given
// roles.
func (s *Security) RestrictToRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if GetUser(c) == nil {
				return http_errors.Unauthenticated()
			}
			if !s.checkRoles(c, roles) {
				return http_errors.Unauthorized()
			}
			return next(c)
		}
	}
}

// RestrictToSelfOrRoles passes iff either the self check or the role check
// passes.
func (s *Security) RestrictToSelfOrRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if GetUser(c) == nil {
				return http_errors.Unauthenticated()
			}
			if !s.checkSelf(c) && !s.checkRoles(c, roles) {
				return http_errors.Unauthorized()
			}
			return next(c)
		}
	}
}

// RestrictToParam passes iff the principal's id equals the value of any of
// the listed request parameters.
func (s *Security) RestrictToParam(params ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if GetUser(c) == nil {
				return http_errors.Unauthenticated()
			}
			if !s.checkParam(c, params) {
				return http_errors.Unauthorized()
			}
			return next(c)
		}
	}
}

func (s *Security) RestrictToParamOrRoles(params []string, roles []string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if GetUser(c) == nil {
				return http_errors.Unauthenticated()
			}
			if !s.checkRoles(c, roles) && !s.checkParam(c, params) {
				return http_errors.Unauthorized()
			}
			return next(c)
		}
	}
}

// RestrictToField passes iff, for every object the accessor returns, the
// principal's id matches at least one of the listed field names: an AND
// across objects, an OR across fields per object.
func (s *Security) RestrictToField(fields []string, accessor FieldAccessor) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if GetUser(c) == nil {
				return http_errors.Unauthenticated()
			}
			if !s.checkField(c, fields, accessor) {
				return http_errors.Unauthorized()
			}
			return next(c)
		}
	}
}

func (s *Security) RestrictToFieldOrRoles(fields []string, roles []string, accessor FieldAccessor) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if GetUser(c) == nil {
				return http_errors.Unauthenticated()
			}
			if !s.checkRoles(c, roles) && !s.checkField(c, fields, accessor) {
				return http_errors.Unauthorized()
			}
			return next(c)
		}
	}
}

func (s *Security) checkSelf(c echo.Context) bool {
	id := s.principalID(GetUser(c))
	return id != "" && id == ParamValue(c, s.params.ID)
}

func (s *Security) checkRoles(c echo.Context, roles []string) bool {
	target := make(map[string]bool, len(roles))
	for _, role := range roles {
		target[role] = true
	}
	for _, role := range s.principalRoles(GetUser(c)) {
		if target[role] {
			return true
		}
	}
	return false
}

func (s *Security) checkParam(c echo.Context, params []string) bool {
	id := s.principalID(GetUser(c))
	if id == "" {
		return false
	}
	for _, name := range params {
		if id == ParamValue(c, name) {
			return true
		}
	}
	return false
}

func (s *Security) checkField(c echo.Context, fields []string, accessor FieldAccessor) bool {
	if accessor == nil {
		return false
	}
	id := s.principalID(GetUser(c))
	if id == "" {
		return false
	}

	objects := normalizeList(accessor(c))
	if len(objects) == 0 {
		return false
	}

	for _, object := range objects {
		matched := false
		for _, field := range fields {
			if v, ok := fieldValue(object, field); ok && v != nil && stringValue(v) == id {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func normalizeList(v any) []any {
	if v == nil {
		return nil
	}
	value := reflect.ValueOf(v)
	if value.Kind() == reflect.Slice || value.Kind() == reflect.Array {
		out := make([]any, 0, value.Len())
		for i := 0; i < value.Len(); i++ {
			out = append(out, value.Index(i).Interface())
		}
		return out
	}
	return []any{v}
}
