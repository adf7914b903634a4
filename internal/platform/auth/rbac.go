package auth

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Actions guarded by the access policy.
const (
	ActionListDoctorAppointments = "appointments.list"
	ActionUpdateAppointment      = "appointments.update_status"
	ActionReadChatHistory        = "chat.history"
)

// policy maps an action to the roles allowed to perform it. Admins are
// allowed everything.
var policy = map[string][]string{
	ActionListDoctorAppointments: {"doctor"},
	ActionUpdateAppointment:      {"doctor"},
	ActionReadChatHistory:        {"patient", "doctor", "nurse"},
}

// Allow is the single (role, action) -> allow/deny decision point.
func Allow(role, action string) bool {
	if role == "admin" {
		return true
	}
	for _, r := range policy[action] {
		if r == role {
			return true
		}
	}
	return false
}

// RequirePermission returns middleware that rejects callers whose role is
// not allowed to perform action.
func RequirePermission(action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := IdentityFromContext(c.Request().Context())
			if id == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !Allow(id.Role, action) {
				return echo.NewHTTPError(http.StatusForbidden,
					fmt.Sprintf("role %s may not perform %s", id.Role, action))
			}
			return next(c)
		}
	}
}
