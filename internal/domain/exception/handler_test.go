package exception

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medsched/medsched/internal/domain/scheduling"
)

func newTestHandler() (*Handler, *fakeSlots, *memRepo, *echo.Echo) {
	repo := newMemRepo()
	slots := &fakeSlots{}
	h := NewHandler(newTestService(repo, slots, nil))
	return h, slots, repo, echo.New()
}

func TestHandler_Create(t *testing.T) {
	h, slots, _, e := newTestHandler()
	slots.add("2024-03-04", "09:00", scheduling.SlotAvailable)

	body := `{"exception_type":"vacation","date":"2024-03-04","reason":"vacation"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("doctorId")
	c.SetParamValues(uuid.NewString())

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var resp createResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Exception == nil || resp.Exception.ID == uuid.Nil {
		t.Fatal("expected a persisted exception in the response")
	}
	if len(resp.BlockedSlotIDs) != 1 {
		t.Errorf("expected 1 blocked slot, got %d", len(resp.BlockedSlotIDs))
	}
}

func TestHandler_Create_InvalidRecurrence(t *testing.T) {
	h, _, _, e := newTestHandler()

	body := `{"exception_type":"vacation","date":"2024-03-04","recurring":true,"recur_pattern":"daily","recur_interval":1}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("doctorId")
	c.SetParamValues(uuid.NewString())

	err := h.Create(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_Delete(t *testing.T) {
	h, slots, repo, e := newTestHandler()
	sl := slots.add("2024-03-04", "09:00", scheduling.SlotBlocked)

	exc := &Exception{
		DoctorID:        uuid.New(),
		Date:            mustDate("2024-03-04"),
		AffectedSlotIDs: []uuid.UUID{sl.id},
	}
	repo.Create(context.Background(), exc)

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(exc.ID.String())

	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var res DeleteResult
	json.Unmarshal(rec.Body.Bytes(), &res)
	if len(res.RestoredSlotIDs) != 1 || res.RestoredSlotIDs[0] != sl.id {
		t.Errorf("expected the blocked slot restored, got %v", res.RestoredSlotIDs)
	}
}

func TestHandler_CheckDate(t *testing.T) {
	h, _, repo, e := newTestHandler()
	doctorID := uuid.New()
	repo.Create(context.Background(), &Exception{DoctorID: doctorID, Date: mustDate("2024-03-04"), Reason: "out"})

	req := httptest.NewRequest(http.MethodGet, "/?date=2024-03-04", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("doctorId")
	c.SetParamValues(doctorID.String())

	if err := h.CheckDate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var check DateCheck
	json.Unmarshal(rec.Body.Bytes(), &check)
	if check.Available {
		t.Error("expected the day to be unavailable")
	}
	if len(check.Windows) != 1 || !check.Windows[0].FullDay || check.Windows[0].Reason != "out" {
		t.Errorf("full-day exception should be listed in the response, got %+v", check.Windows)
	}
}

func TestHandler_Upcoming_RequiresValidDoctor(t *testing.T) {
	h, _, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("doctorId")
	c.SetParamValues("not-a-uuid")

	err := h.Upcoming(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
