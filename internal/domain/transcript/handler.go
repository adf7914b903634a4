package transcript

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/medchat/medchat/internal/platform/auth"
	"github.com/medchat/medchat/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/chat/history/:patient_id", h.History, auth.RequirePermission(auth.ActionReadChatHistory))
}

func (h *Handler) History(c echo.Context) error {
	patientID, err := strconv.Atoi(c.Param("patient_id"))
	if err != nil || patientID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	// Patients only see their own conversation.
	if id := auth.IdentityFromContext(c.Request().Context()); id != nil && id.Role == "patient" && id.ID != patientID {
		return echo.NewHTTPError(http.StatusForbidden, "cannot read another patient's history")
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.History(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Exchange{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
