package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func testContext(req *http.Request) echo.Context {
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestParamValue_PathFirst(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/things/7?id=99", nil)
	c := testContext(req)
	c.SetParamNames("id")
	c.SetParamValues("7")

	assert.Equal(t, "7", ParamValue(c, "id"))
}

func TestParamValue_BodyBeforeQuery(t *testing.T) {
	body := strings.NewReader(`{"id":"9","count":3,"flag":true}`)
	req := httptest.NewRequest(http.MethodPost, "/things?id=99", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := testContext(req)

	assert.Equal(t, "9", ParamValue(c, "id"))
	assert.Equal(t, "3", ParamValue(c, "count"))
	assert.Equal(t, "true", ParamValue(c, "flag"))
}

func TestParamValue_QueryFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/things?id=99", nil)
	c := testContext(req)

	assert.Equal(t, "99", ParamValue(c, "id"))
	assert.Equal(t, "", ParamValue(c, "missing"))
}

func TestParamValue_NonJSONBodyIgnored(t *testing.T) {
	body := strings.NewReader("id=9")
	req := httptest.NewRequest(http.MethodPost, "/things?id=99", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	c := testContext(req)

	assert.Equal(t, "99", ParamValue(c, "id"))
}

func TestParamValue_BodyIsRestoredForHandlers(t *testing.T) {
	payload := `{"id":"9"}`
	req := httptest.NewRequest(http.MethodPost, "/things", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := testContext(req)

	assert.Equal(t, "9", ParamValue(c, "id"))

	// downstream binding must still see the full body
	bound := map[string]any{}
	assert.NoError(t, c.Bind(&bound))
	assert.Equal(t, "9", bound["id"])
}

func TestParamValue_MalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/things?id=99", strings.NewReader("{oops"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := testContext(req)

	assert.Equal(t, "99", ParamValue(c, "id"))
}
