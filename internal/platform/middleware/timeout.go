package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout puts a deadline on the request context. Handlers run on the
// request goroutine and must honour ctx; when they give up because the
// deadline passed and have not written a response, a 504 with a {"detail"}
// body is sent. Paths under /ws/ are long-lived sockets and are skipped.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if strings.HasPrefix(c.Request().URL.Path, "/ws/") {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if ctx.Err() != context.DeadlineExceeded || c.Response().Committed {
				return err
			}
			if err == nil || errors.Is(err, context.DeadlineExceeded) {
				return c.JSON(http.StatusGatewayTimeout, map[string]string{
					"detail": "Request processing exceeded the allowed time limit",
				})
			}
			return err
		}
	}
}
