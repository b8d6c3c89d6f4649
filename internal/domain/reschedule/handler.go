package reschedule

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medsched/medsched/internal/platform/auth"
	"github.com/medsched/medsched/pkg/pagination"
	"github.com/medsched/medsched/pkg/schederr"
	"github.com/medsched/medsched/pkg/timeslot"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	patient := api.Group("", auth.RequireRole("admin", "patient"))
	patient.POST("/reschedule-requests", h.Create)
	patient.POST("/reschedule-requests/:id/cancel", h.Cancel)
	patient.GET("/patients/:patientId/reschedule-requests", h.ListByPatient)

	staff := api.Group("", auth.RequireRole("admin", "doctor"))
	staff.POST("/reschedule-requests/:id/approve", h.Approve)
	staff.POST("/reschedule-requests/:id/reject", h.Reject)
	staff.GET("/doctors/:doctorId/reschedule-requests", h.ListByDoctor)

	read := api.Group("", auth.RequireRole("admin", "doctor", "patient"))
	read.GET("/reschedule-requests/:id", h.Get)
}

func httpError(err error) *echo.HTTPError {
	return echo.NewHTTPError(schederr.HTTPStatus(err), err.Error())
}

type createRequest struct {
	AppointmentID   uuid.UUID           `json:"appointment_id"`
	RequestedSlotID *uuid.UUID          `json:"requested_slot_id"`
	RequestedDate   *timeslot.Date      `json:"requested_date"`
	RequestedTime   *timeslot.TimeOfDay `json:"requested_time"`
	Reason          string              `json:"reason"`
}

func (h *Handler) Create(c echo.Context) error {
	var body createRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req := &Request{
		AppointmentID:   body.AppointmentID,
		RequestedSlotID: body.RequestedSlotID,
		RequestedDate:   body.RequestedDate,
		RequestedTime:   body.RequestedTime,
		Reason:          body.Reason,
	}
	if err := h.svc.Create(c.Request().Context(), req); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, req)
}

type decisionRequest struct {
	RespondedBy uuid.UUID `json:"responded_by"`
	AdminNotes  string    `json:"admin_notes"`
}

func (h *Handler) Approve(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body decisionRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req, err := h.svc.Approve(c.Request().Context(), id, body.RespondedBy, body.AdminNotes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) Reject(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body decisionRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req, err := h.svc.Reject(c.Request().Context(), id, body.RespondedBy, body.AdminNotes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, req)
}

type cancelRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body cancelRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req, err := h.svc.Cancel(c.Request().Context(), id, body.PatientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	req, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) ListByDoctor(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByDoctor(c.Request().Context(), doctorID,
		Status(c.QueryParam("status")), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID,
		Status(c.QueryParam("status")), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
