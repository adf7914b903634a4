package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const panicStackSize = 4 << 10

// Recovery turns a handler panic into a 500 and logs the panic value with a
// truncated stack. http.ErrAbortHandler is re-raised so net/http can drop the
// connection as intended.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}

				cause, ok := r.(error)
				if !ok {
					cause = fmt.Errorf("%v", r)
				}
				stack := make([]byte, panicStackSize)
				stack = stack[:runtime.Stack(stack, false)]

				rid, _ := c.Get(RequestIDKey).(string)
				req := c.Request()
				logger.Error().
					Err(cause).
					Str("request_id", rid).
					Str("method", req.Method).
					Str("path", req.URL.Path).
					Bytes("stack", stack).
					Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(cause)
			}()
			return next(c)
		}
	}
}

