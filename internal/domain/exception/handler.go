package exception

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
	manage := api.Group("", auth.RequireRole("admin", "doctor"))
	manage.POST("/doctors/:doctorId/exceptions", h.Create)
	manage.DELETE("/exceptions/:id", h.Delete)

	read := api.Group("", auth.RequireRole("admin", "doctor", "patient"))
	read.GET("/exceptions/:id", h.Get)
	read.GET("/exceptions/:id/occurrences", h.Occurrences)
	read.GET("/doctors/:doctorId/exceptions", h.List)
	read.GET("/doctors/:doctorId/exceptions/check", h.CheckDate)
	read.GET("/doctors/:doctorId/exceptions/upcoming", h.Upcoming)
}

func httpError(err error) *echo.HTTPError {
	return echo.NewHTTPError(schederr.HTTPStatus(err), err.Error())
}

type createRequest struct {
	Type           Type                `json:"exception_type"`
	Date           timeslot.Date       `json:"date"`
	StartTime      *timeslot.TimeOfDay `json:"start_time"`
	EndTime        *timeslot.TimeOfDay `json:"end_time"`
	Reason         string              `json:"reason"`
	Recurring      bool                `json:"recurring"`
	RecurPattern   RecurPattern        `json:"recur_pattern"`
	RecurInterval  int                 `json:"recur_interval"`
	RecurEndDate   *timeslot.Date      `json:"recur_end_date"`
	CreatedBy      uuid.UUID           `json:"created_by"`
	OverrideBooked bool                `json:"override_booked"`
}

type createResponse struct {
	Exception      *Exception  `json:"exception"`
	BlockedSlotIDs []uuid.UUID `json:"blocked_slot_ids"`
	SkippedBooked  []uuid.UUID `json:"skipped_booked,omitempty"`
	AppointmentIDs []uuid.UUID `json:"affected_appointment_ids,omitempty"`
}

func (h *Handler) Create(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	e := &Exception{
		DoctorID:      doctorID,
		Type:          req.Type,
		Date:          req.Date,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Reason:        req.Reason,
		Recurring:     req.Recurring,
		RecurPattern:  req.RecurPattern,
		RecurInterval: req.RecurInterval,
		RecurEndDate:  req.RecurEndDate,
		CreatedBy:     req.CreatedBy,
	}
	res, err := h.svc.Create(c.Request().Context(), e, req.OverrideBooked)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, createResponse{
		Exception:      e,
		BlockedSlotIDs: res.BlockedIDs,
		SkippedBooked:  res.SkippedBooked,
		AppointmentIDs: res.AppointmentIDs,
	})
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	res, err := h.svc.Delete(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	e, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) List(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByDoctor(c.Request().Context(), doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) CheckDate(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	date, err := timeslot.ParseDate(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date")
	}
	var at *timeslot.TimeOfDay
	if v := c.QueryParam("time"); v != "" {
		t, err := timeslot.ParseTimeOfDay(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid time")
		}
		at = &t
	}
	check, err := h.svc.CheckDate(c.Request().Context(), doctorID, date, at)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, check)
}

func (h *Handler) Occurrences(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var from timeslot.Date
	if v := c.QueryParam("from"); v != "" {
		if from, err = timeslot.ParseDate(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from date")
		}
	}
	occ, err := h.svc.Occurrences(c.Request().Context(), id, from)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, occ)
}

func (h *Handler) Upcoming(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	var from timeslot.Date
	if v := c.QueryParam("from"); v != "" {
		if from, err = timeslot.ParseDate(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from date")
		}
	}
	occ, err := h.svc.Upcoming(c.Request().Context(), doctorID, from)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, occ)
}
