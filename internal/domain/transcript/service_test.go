package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medchat/medchat/internal/platform/auth"
)

// -- Mock Repository --

type mockRepo struct {
	items     []*Exchange
	createErr error
}

func (m *mockRepo) Create(_ context.Context, e *Exchange) error {
	if m.createErr != nil {
		return m.createErr
	}
	e.ID = uuid.New()
	e.CreatedAt = time.Now().Add(time.Duration(len(m.items)) * time.Second)
	m.items = append(m.items, e)
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID, limit, offset int) ([]*Exchange, int, error) {
	var matched []*Exchange
	for _, e := range m.items {
		if e.PatientID == patientID {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func TestService_Record(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, zerolog.Nop())

	svc.Record(context.Background(), 5, ChannelREST, "xin chào", "Chào bạn", nil, 120*time.Millisecond)
	svc.Record(context.Background(), 5, ChannelWebSocket, "sốt", "", errors.New("timeout"), 5*time.Second)

	if len(repo.items) != 2 {
		t.Fatalf("expected 2 records, got %d", len(repo.items))
	}
	ok := repo.items[0]
	if ok.Response == nil || *ok.Response != "Chào bạn" || ok.Error != nil || ok.LatencyMS != 120 {
		t.Errorf("unexpected success record %+v", ok)
	}
	failed := repo.items[1]
	if failed.Error == nil || *failed.Error != "timeout" || failed.Response != nil || failed.Channel != ChannelWebSocket {
		t.Errorf("unexpected failure record %+v", failed)
	}
}

func TestService_Record_StoreFailureIsSwallowed(t *testing.T) {
	svc := NewService(&mockRepo{createErr: errors.New("db down")}, zerolog.Nop())
	// Must not panic or block.
	svc.Record(context.Background(), 1, ChannelREST, "a", "b", nil, 0)
}

func TestService_History_InvalidPatient(t *testing.T) {
	svc := NewService(&mockRepo{}, zerolog.Nop())
	if _, _, err := svc.History(context.Background(), 0, 10, 0); err == nil {
		t.Error("expected error for patient 0")
	}
}

func historyContext(t *testing.T, patientParam, query string, id *auth.Identity) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/chat/history/"+patientParam+query, nil)
	if id != nil {
		req = req.WithContext(context.WithValue(req.Context(), auth.IdentityKey, id))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("patient_id")
	c.SetParamValues(patientParam)
	return c, rec
}

func TestHandler_History(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, zerolog.Nop())
	for i := 0; i < 3; i++ {
		svc.Record(context.Background(), 5, ChannelREST, "m", "r", nil, 0)
	}
	svc.Record(context.Background(), 6, ChannelREST, "other", "r", nil, 0)

	h := NewHandler(svc)
	c, rec := historyContext(t, "5", "?limit=2", &auth.Identity{ID: 9, Role: "doctor"})
	if err := h.History(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Data    []Exchange `json:"data"`
		Total   int        `json:"total"`
		HasMore bool       `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 3 || len(body.Data) != 2 || !body.HasMore {
		t.Errorf("unexpected page total=%d len=%d has_more=%v", body.Total, len(body.Data), body.HasMore)
	}
}

func TestHandler_History_Empty(t *testing.T) {
	h := NewHandler(NewService(&mockRepo{}, zerolog.Nop()))
	c, rec := historyContext(t, "5", "", &auth.Identity{ID: 5, Role: "patient"})
	if err := h.History(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if data, ok := body["data"].([]interface{}); !ok || len(data) != 0 {
		t.Errorf("expected empty data array, got %v", body["data"])
	}
}

func TestHandler_History_OtherPatientForbidden(t *testing.T) {
	h := NewHandler(NewService(&mockRepo{}, zerolog.Nop()))
	c, _ := historyContext(t, "5", "", &auth.Identity{ID: 6, Role: "patient"})
	err := h.History(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestHandler_History_InvalidID(t *testing.T) {
	h := NewHandler(NewService(&mockRepo{}, zerolog.Nop()))
	for _, p := range []string{"abc", "0", "-3"} {
		c, _ := historyContext(t, p, "", nil)
		if err := h.History(c); err == nil {
			t.Errorf("expected error for patient_id %q", p)
		}
	}
}
