package auth

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/valyala/fastjson"
)

const contextBodyKey = "cs.auth.body"

// ParamValue resolves a request parameter the way the guards and the
// declarative engine see it: path parameters first, then JSON body fields,
// then query parameters.
func ParamValue(c echo.Context, name string) string {
	for i, pname := range c.ParamNames() {
		if pname == name {
			return c.ParamValues()[i]
		}
	}
	if v, ok := bodyParam(c, name); ok {
		return v
	}
	return c.QueryParam(name)
}

// queryOrBodyParam skips path parameters; IfParam conditions only ever key
// off query and body values.
func queryOrBodyParam(c echo.Context, name string) string {
	if v := c.QueryParam(name); v != "" {
		return v
	}
	v, _ := bodyParam(c, name)
	return v
}

// bodyParam reads a scalar top-level field from a JSON request body without
// binding it into a struct. Non-JSON bodies are ignored.
func bodyParam(c echo.Context, name string) (string, bool) {
	body := cachedBody(c)
	if len(body) == 0 {
		return "", false
	}

	value, err := fastjson.ParseBytes(body)
	if err != nil {
		return "", false
	}
	field := value.Get(name)
	if field == nil {
		return "", false
	}

	switch field.Type() {
	case fastjson.TypeString:
		b, _ := field.StringBytes()
		return string(b), true
	case fastjson.TypeNumber:
		f, _ := field.Float64()
		return strconv.FormatFloat(f, 'f', -1, 64), true
	case fastjson.TypeTrue:
		return "true", true
	case fastjson.TypeFalse:
		return "false", true
	}
	return "", false
}

// cachedBody buffers the request body once per request and restores it so
// downstream binding still works.
func cachedBody(c echo.Context) []byte {
	if body, ok := c.Get(contextBodyKey).([]byte); ok {
		return body
	}

	req := c.Request()
	var body []byte
	contentType := req.Header.Get(echo.HeaderContentType)
	if req.Body != nil && strings.HasPrefix(contentType, echo.MIMEApplicationJSON) {
		body, _ = io.ReadAll(req.Body)
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	c.Set(contextBodyKey, body)
	return body
}
