package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medchat/medchat/internal/platform/websocket"
)

// -- mocks --

type mockRelay struct {
	mu      sync.Mutex
	reply   string
	err     error
	senders []string
}

func (m *mockRelay) Relay(_ context.Context, sender, message string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.senders = append(m.senders, sender)
	if m.err != nil {
		return "", m.err
	}
	return m.reply + message, nil
}

type recorded struct {
	patientID int
	channel   string
	response  string
	err       error
}

type mockRecorder struct {
	calls []recorded
}

func (m *mockRecorder) Record(_ context.Context, patientID int, channel, _, response string, relayErr error, _ time.Duration) {
	m.calls = append(m.calls, recorded{patientID, channel, response, relayErr})
}

func postChat(t *testing.T, h *Handler, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, h.Chat(e.NewContext(req, rec))
}

func TestHandler_Chat(t *testing.T) {
	relay := &mockRelay{reply: "bot: "}
	rec := &mockRecorder{}
	h := NewHandler(NewService(relay, rec, zerolog.Nop()), nil)

	resp, err := postChat(t, h, `{"patient_id":12,"message":"Tôi bị sốt"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var out Reply
	json.Unmarshal(resp.Body.Bytes(), &out)
	if out.Response != "bot: Tôi bị sốt" {
		t.Errorf("unexpected response %q", out.Response)
	}
	if len(relay.senders) != 1 || relay.senders[0] != "12" {
		t.Errorf("expected sender \"12\", got %v", relay.senders)
	}
	if len(rec.calls) != 1 || rec.calls[0].channel != "rest" || rec.calls[0].patientID != 12 {
		t.Errorf("unexpected recorder calls %+v", rec.calls)
	}
}

func TestHandler_Chat_RelayFailure(t *testing.T) {
	relay := &mockRelay{err: &TransportError{Cause: errors.New("connection refused")}}
	rec := &mockRecorder{}
	h := NewHandler(NewService(relay, rec, zerolog.Nop()), nil)

	resp, err := postChat(t, h, `{"patient_id":3,"message":"x"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	var out ErrorReply
	json.Unmarshal(resp.Body.Bytes(), &out)
	if out.Detail != "Lỗi khi giao tiếp với Rasa: connection refused" {
		t.Errorf("unexpected detail %q", out.Detail)
	}
	if len(rec.calls) != 1 || rec.calls[0].err == nil {
		t.Errorf("expected failure recorded, got %+v", rec.calls)
	}
}

func TestHandler_Chat_UnreachableEngine(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	h := NewHandler(NewService(NewRasaClient(url, time.Second), nil, zerolog.Nop()), nil)
	resp, err := postChat(t, h, `{"patient_id":3,"message":"x"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	var out ErrorReply
	json.Unmarshal(resp.Body.Bytes(), &out)
	if !strings.HasPrefix(out.Detail, "Lỗi khi giao tiếp với Rasa: ") || len(out.Detail) == len("Lỗi khi giao tiếp với Rasa: ") {
		t.Errorf("expected detail with cause, got %q", out.Detail)
	}
}

func TestHandler_Chat_Validation(t *testing.T) {
	h := NewHandler(NewService(&mockRelay{}, nil, zerolog.Nop()), nil)

	for _, body := range []string{`{"message":"x"}`, `{"patient_id":1}`} {
		resp, err := postChat(t, h, body)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: expected 422, got %d", body, resp.Code)
		}
	}

	if _, err := postChat(t, h, `{"patient_id":"abc","message":"x"}`); err == nil {
		t.Error("expected bind error for non-integer patient_id")
	}
}

func TestHandler_Stream(t *testing.T) {
	relay := &mockRelay{reply: "bot: "}
	rec := &mockRecorder{}
	wsSrv := websocket.NewServer(websocket.NewHub(), nil, zerolog.Nop())
	h := NewHandler(NewService(relay, rec, zerolog.Nop()), wsSrv)

	e := echo.New()
	h.RegisterRoutes(e.Group("/api"), e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat?patient_id=21"
	conn, _, err := gorillawebsocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(gorillawebsocket.TextMessage, []byte("ho nhiều")); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var out Reply
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Response != "bot: ho nhiều" {
		t.Errorf("unexpected reply %q", out.Response)
	}
	relay.mu.Lock()
	defer relay.mu.Unlock()
	if len(relay.senders) != 1 || relay.senders[0] != "21" {
		t.Errorf("expected sender 21, got %v", relay.senders)
	}
}

func TestHandler_Stream_RelayFailure(t *testing.T) {
	relay := &mockRelay{err: &TransportError{Cause: errors.New("timeout")}}
	wsSrv := websocket.NewServer(websocket.NewHub(), nil, zerolog.Nop())
	h := NewHandler(NewService(relay, nil, zerolog.Nop()), wsSrv)

	e := echo.New()
	h.RegisterRoutes(e.Group("/api"), e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn, _, err := gorillawebsocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/chat?patient_id=2", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.WriteMessage(gorillawebsocket.TextMessage, []byte("x"))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var out ErrorReply
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Detail != "Lỗi khi giao tiếp với Rasa: timeout" {
		t.Errorf("unexpected detail %q", out.Detail)
	}
}

func TestHandler_Stream_MissingPatient(t *testing.T) {
	h := NewHandler(NewService(&mockRelay{}, nil, zerolog.Nop()), websocket.NewServer(websocket.NewHub(), nil, zerolog.Nop()))
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/ws/chat", nil), httptest.NewRecorder())

	err := h.Stream(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_Stream_ReachesEverySocketOfPatient(t *testing.T) {
	hub := websocket.NewHub()
	wsSrv := websocket.NewServer(hub, nil, zerolog.Nop())
	h := NewHandler(NewService(&mockRelay{reply: "bot: "}, nil, zerolog.Nop()), wsSrv)

	e := echo.New()
	h.RegisterRoutes(e.Group("/api"), e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	dial := func(patient string) *gorillawebsocket.Conn {
		t.Helper()
		conn, _, err := gorillawebsocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/chat?patient_id="+patient, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		t.Cleanup(func() { conn.Close() })
		return conn
	}
	phone, laptop, other := dial("21"), dial("21"), dial("22")

	deadline := time.Now().Add(2 * time.Second)
	for (hub.TopicCount("patient:21") != 2 || hub.TopicCount("patient:22") != 1) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.TopicCount("patient:21") != 2 {
		t.Fatalf("expected 2 sockets for patient 21, got %d", hub.TopicCount("patient:21"))
	}

	if err := phone.WriteMessage(gorillawebsocket.TextMessage, []byte("sốt")); err != nil {
		t.Fatalf("write: %v", err)
	}

	for name, conn := range map[string]*gorillawebsocket.Conn{"phone": phone, "laptop": laptop} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var out Reply
		if err := conn.ReadJSON(&out); err != nil {
			t.Fatalf("%s: read: %v", name, err)
		}
		if out.Response != "bot: sốt" {
			t.Errorf("%s: unexpected reply %q", name, out.Response)
		}
	}

	other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, msg, err := other.ReadMessage(); err == nil {
		t.Errorf("other patient received %q", msg)
	}
}
