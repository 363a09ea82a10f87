package auth

import (
	"net/http"

	"github.com/go-errors/errors"
	"github.com/karagenc/fj4echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/xompass/vsaas-auth/http_errors"
)

// NewEchoApp builds an echo instance preconfigured for the middleware:
// recovery, CORS, security headers and the error handler that maps keyword
// errors onto their status codes.
func NewEchoApp() *echo.Echo {
	app := echo.New()
	app.Use(middleware.Recover())
	app.Use(middleware.CORS())
	app.Use(middleware.Secure())

	app.JSONSerializer = fj4echo.New()
	app.HTTPErrorHandler = HTTPErrorHandler

	return app
}

// HTTPErrorHandler renders the errors produced by the guards and the
// declarative engine. Anything unrecognized becomes a 500.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	responseError := &http_errors.ErrorResponse{
		Code:    code,
		Message: "Internal Server Error",
	}

	switch e := err.(type) {
	case *echo.HTTPError:
		code = e.Code
		responseError = http_errors.NewErrorResponse(code, e.Error())
	case *http_errors.ErrorResponse:
		responseError = e
		code = e.Code
	case *errors.Error:
		responseError = http_errors.InternalServerError(e.Error(), e.ErrorStack())
	default:
		if err.Error() != "" {
			responseError.Message = err.Error()
		}
	}

	c.JSON(code, responseError)
}
