package appointment

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medchat/medchat/internal/platform/auth"
	"github.com/medchat/medchat/internal/platform/sibling"
)

type detail struct {
	Detail string `json:"detail"`
}

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.With().Str("component", "doctor-appointments").Logger()}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctor/appointments/", h.List, auth.RequirePermission(auth.ActionListDoctorAppointments))
	api.PUT("/doctor/appointments/:id/status", h.UpdateStatus, auth.RequirePermission(auth.ActionUpdateAppointment))
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	id := auth.IdentityFromContext(ctx)
	if id == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	body, err := h.svc.ListForDoctor(ctx, auth.TokenFromContext(ctx), id.ID)
	if err != nil {
		return h.upstreamError(c, err, "Unable to fetch appointments")
	}
	return c.JSONBlob(http.StatusOK, body)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	apptID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	var upd StatusUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := upd.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, detail{Detail: err.Error()})
	}

	ctx := c.Request().Context()
	body, err := h.svc.UpdateStatus(ctx, auth.TokenFromContext(ctx), apptID, upd)
	if err != nil {
		return h.upstreamError(c, err, "Unable to update appointment")
	}
	return c.JSONBlob(http.StatusOK, body)
}

// upstreamError passes a patient-service status through with a fixed detail;
// anything else is a transport failure.
func (h *Handler) upstreamError(c echo.Context, err error, msg string) error {
	var se *sibling.StatusError
	if errors.As(err, &se) {
		h.logger.Warn().Int("status", se.StatusCode).Str("body", se.Body).Msg(msg)
		return c.JSON(se.StatusCode, detail{Detail: msg})
	}
	h.logger.Error().Err(err).Msg("patient_service request failed")
	return c.JSON(http.StatusInternalServerError, detail{Detail: "Error communicating with patient_service"})
}
