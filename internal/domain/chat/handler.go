package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/medchat/medchat/internal/domain/transcript"
	"github.com/medchat/medchat/internal/platform/websocket"
)

// Request is the chat body. Pointers distinguish missing fields from zero
// values.
type Request struct {
	PatientID *int    `json:"patient_id"`
	Message   *string `json:"message"`
}

type Reply struct {
	Response string `json:"response"`
}

type ErrorReply struct {
	Detail string `json:"detail"`
}

const relayErrorPrefix = "Lỗi khi giao tiếp với Rasa: "

func relayError(err error) ErrorReply {
	return ErrorReply{Detail: relayErrorPrefix + err.Error()}
}

type Handler struct {
	svc *Service
	ws  *websocket.Server
}

// NewHandler wires the REST endpoint and, when ws is non-nil, the socket.
func NewHandler(svc *Service, ws *websocket.Server) *Handler {
	return &Handler{svc: svc, ws: ws}
}

func (h *Handler) RegisterRoutes(api *echo.Group, root *echo.Echo) {
	api.POST("/chat/", h.Chat)
	if h.ws != nil {
		root.GET("/ws/chat", h.Stream)
	}
}

func (h *Handler) Chat(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PatientID == nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorReply{Detail: "patient_id is required"})
	}
	if req.Message == nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorReply{Detail: "message is required"})
	}

	reply, err := h.svc.Send(c.Request().Context(), *req.PatientID, transcript.ChannelREST, *req.Message)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, relayError(err))
	}
	return c.JSON(http.StatusOK, Reply{Response: reply})
}

// Stream serves GET /ws/chat?patient_id=N. Each text frame is one message;
// each reply frame is {"response"} or {"detail"} and goes to every socket the
// patient has open, so parallel tabs see the same conversation.
func (h *Handler) Stream(c echo.Context) error {
	patientID, err := strconv.Atoi(c.QueryParam("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id query parameter is required")
	}

	topic := "patient:" + strconv.Itoa(patientID)
	return h.ws.Serve(c, topic, func(ctx context.Context, payload []byte) []byte {
		var out any
		reply, err := h.svc.Send(ctx, patientID, transcript.ChannelWebSocket, string(payload))
		if err != nil {
			out = relayError(err)
		} else {
			out = Reply{Response: reply}
		}
		data, _ := json.Marshal(out)
		h.ws.Hub().Broadcast(topic, data)
		return nil
	})
}
