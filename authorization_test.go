package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func guardApp(sec *Security, register func(e *echo.Echo)) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler
	e.Use(sec.Validate)
	register(e)
	return e
}

func get(e *echo.Echo, path, login string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if login != "" {
		req.SetBasicAuth(login, "1234")
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func ok200(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRestrictToLoggedIn(t *testing.T) {
	sec := newTestSecurity(t)
	e := guardApp(sec, func(e *echo.Echo) {
		e.GET("/secure", ok200, sec.RestrictToLoggedIn)
	})

	assert.Equal(t, http.StatusUnauthorized, get(e, "/secure", "").Code)
	assert.Equal(t, http.StatusOK, get(e, "/secure", "jill").Code)
}

func TestRestrictToSelf(t *testing.T) {
	sec := newTestSecurity(t)
	e := guardApp(sec, func(e *echo.Echo) {
		e.GET("/user/:user", ok200, sec.RestrictToSelf)
	})

	// jill has id 2
	assert.Equal(t, http.StatusOK, get(e, "/user/2", "jill").Code)

	rec := get(e, "/user/1", "jill")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthorized")

	assert.Equal(t, http.StatusUnauthorized, get(e, "/user/2", "").Code)
}

func TestRestrictToRoles(t *testing.T) {
	sec := newTestSecurity(t)
	e := guardApp(sec, func(e *echo.Echo) {
		e.GET("/admin", ok200, sec.RestrictToRoles("admin"))
	})

	// jill's roles are ["user","regular"]
	assert.Equal(t, http.StatusForbidden, get(e, "/admin", "jill").Code)
	assert.Equal(t, http.StatusOK, get(e, "/admin", "john").Code)
	assert.Equal(t, http.StatusUnauthorized, get(e, "/admin", "").Code)
}

func TestRestrictToSelfOrRoles(t *testing.T) {
	sec := newTestSecurity(t)
	e := guardApp(sec, func(e *echo.Echo) {
		e.GET("/user/:user", ok200, sec.RestrictToSelfOrRoles("admin"))
	})

	// self
	assert.Equal(t, http.StatusOK, get(e, "/user/2", "jill").Code)
	// not self, but admin
	assert.Equal(t, http.StatusOK, get(e, "/user/2", "john").Code)
	// neither
	assert.Equal(t, http.StatusForbidden, get(e, "/user/1", "jill").Code)
}

func TestRestrictToParam(t *testing.T) {
	sec := newTestSecurity(t)
	e := guardApp(sec, func(e *echo.Echo) {
		e.GET("/things", ok200, sec.RestrictToParam("owner", "searchOwner"))
	})

	assert.Equal(t, http.StatusOK, get(e, "/things?owner=2", "jill").Code)
	assert.Equal(t, http.StatusOK, get(e, "/things?searchOwner=2", "jill").Code)
	assert.Equal(t, http.StatusForbidden, get(e, "/things?owner=1", "jill").Code)
	assert.Equal(t, http.StatusForbidden, get(e, "/things", "jill").Code)
}

func TestRestrictToParamOrRoles(t *testing.T) {
	sec := newTestSecurity(t)
	e := guardApp(sec, func(e *echo.Echo) {
		e.GET("/things", ok200, sec.RestrictToParamOrRoles([]string{"owner"}, []string{"admin"}))
	})

	assert.Equal(t, http.StatusOK, get(e, "/things?owner=2", "jill").Code)
	assert.Equal(t, http.StatusOK, get(e, "/things", "john").Code)
	assert.Equal(t, http.StatusForbidden, get(e, "/things", "jill").Code)
}

func TestRestrictToField(t *testing.T) {
	sec := newTestSecurity(t)
	accessor := func(c echo.Context) any {
		return map[string]any{"owner": "2", "recipient": "4"}
	}
	e := guardApp(sec, func(e *echo.Echo) {
		e.GET("/owned", ok200, sec.RestrictToField([]string{"owner"}, accessor))
		e.GET("/received", ok200, sec.RestrictToField([]string{"recipient"}, accessor))
		e.GET("/either", ok200, sec.RestrictToField([]string{"owner", "recipient"}, accessor))
	})

	assert.Equal(t, http.StatusOK, get(e, "/owned", "jill").Code)
	assert.Equal(t, http.StatusForbidden, get(e, "/received", "jill").Code)
	// OR across field names on one object
	assert.Equal(t, http.StatusOK, get(e, "/either", "jill").Code)
}

func TestRestrictToField_AllObjectsMustPass(t *testing.T) {
	sec := newTestSecurity(t)
	both := func(c echo.Context) any {
		return []map[string]any{{"owner": "2"}, {"owner": "2", "recipient": "1"}}
	}
	mixed := func(c echo.Context) any {
		return []map[string]any{{"owner": "2"}, {"owner": "1"}}
	}
	empty := func(c echo.Context) any { return nil }
	e := guardApp(sec, func(e *echo.Echo) {
		e.GET("/both", ok200, sec.RestrictToField([]string{"owner"}, both))
		e.GET("/mixed", ok200, sec.RestrictToField([]string{"owner"}, mixed))
		e.GET("/empty", ok200, sec.RestrictToField([]string{"owner"}, empty))
	})

	assert.Equal(t, http.StatusOK, get(e, "/both", "jill").Code)
	// AND across objects: one non-matching object denies
	assert.Equal(t, http.StatusForbidden, get(e, "/mixed", "jill").Code)
	assert.Equal(t, http.StatusForbidden, get(e, "/empty", "jill").Code)
}

func TestRestrictToFieldOrRoles(t *testing.T) {
	sec := newTestSecurity(t)
	accessor := func(c echo.Context) any {
		return map[string]any{"owner": "nobody"}
	}
	e := guardApp(sec, func(e *echo.Echo) {
		e.GET("/owned", ok200, sec.RestrictToFieldOrRoles([]string{"owner"}, []string{"admin"}, accessor))
	})

	assert.Equal(t, http.StatusForbidden, get(e, "/owned", "jill").Code)
	assert.Equal(t, http.StatusOK, get(e, "/owned", "john").Code)
}

func TestIfParam(t *testing.T) {
	sec := newTestSecurity(t)
	e := guardApp(sec, func(e *echo.Echo) {
		e.GET("/mixed", ok200, sec.IfParam("private", "true").RestrictToLoggedIn)
	})

	// parameter absent: the wrapped guard is skipped entirely
	assert.Equal(t, http.StatusOK, get(e, "/mixed", "").Code)
	assert.Equal(t, http.StatusOK, get(e, "/mixed?private=false", "").Code)

	// parameter set: the guard is enforced
	assert.Equal(t, http.StatusUnauthorized, get(e, "/mixed?private=true", "").Code)
	assert.Equal(t, http.StatusOK, get(e, "/mixed?private=true", "jill").Code)
}

func TestIfParam_IndirectGuard(t *testing.T) {
	sec := newTestSecurity(t)
	e := guardApp(sec, func(e *echo.Echo) {
		e.GET("/mixed", ok200, sec.IfParam("private", "true").RestrictToRoles("admin"))
	})

	assert.Equal(t, http.StatusOK, get(e, "/mixed", "jill").Code)
	assert.Equal(t, http.StatusForbidden, get(e, "/mixed?private=true", "jill").Code)
	assert.Equal(t, http.StatusOK, get(e, "/mixed?private=true", "john").Code)
}

func TestGuards_StructPrincipalFieldAccess(t *testing.T) {
	// field names are resolved through json tags on struct principals
	sec := newTestSecurity(t, func(o *Options) {
		o.Fields = Fields{ID: "id", Roles: "roles"}
	})
	e := guardApp(sec, func(e *echo.Echo) {
		e.GET("/user/:user", ok200, sec.RestrictToSelf)
	})

	assert.Equal(t, http.StatusOK, get(e, "/user/1", "john").Code)
	assert.Equal(t, http.StatusForbidden, get(e, "/user/2", "john").Code)
}
