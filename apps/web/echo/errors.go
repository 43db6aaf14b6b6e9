package echoweb

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/wartburg/mcsp/core"
	"github.com/wartburg/mcsp/core/course"
	"github.com/wartburg/mcsp/core/user"
)

var (
	errHttpNotFound = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// newAppHTTPErrorHandler returns an echo.HTTPErrorHandler rendering the error page.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(appName string, logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message string

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if m, ok := origErr.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(code)
			}
		case *core.ValidationError:
			code = http.StatusBadRequest
			message = origErr.Error()
		default:
			if isNotFound(origErr) {
				code = http.StatusNotFound
				message = origErr.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			message = http.StatusText(code)
			args := []interface{}{errors.Wrap(err, message)}
			if usr, ok := contextUser(ctx); ok {
				args = append(args, usr)
			}
			logger.Error(message, args...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.Render(code, "errors/error.html", echo.Map{
					"app_name": appName,
					"code":     code,
					"title":    http.StatusText(code),
					"message":  message,
				})
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func isNotFound(err error) bool {
	switch err {
	case user.ErrNotFound, course.ErrNotFound, course.ErrAssignmentNotFound, course.ErrHandoutNotFound:
		return true
	}
	return false
}
