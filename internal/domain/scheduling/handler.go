package scheduling

import (
	"net/http"
	"strconv"

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
	manage.POST("/templates", h.CreateTemplate)
	manage.GET("/templates/:id", h.GetTemplate)
	manage.PUT("/templates/:id", h.UpdateTemplate)
	manage.DELETE("/templates/:id", h.DeleteTemplate)
	manage.GET("/doctors/:doctorId/templates", h.ListTemplates)

	manage.POST("/doctors/:doctorId/slots/generate", h.GenerateSlots)
	manage.POST("/slots", h.CreateManualSlot)
	manage.DELETE("/slots/:id", h.DeleteSlot)
	manage.POST("/doctors/:doctorId/slots/block", h.BlockSlots)

	read := api.Group("", auth.RequireRole("admin", "doctor", "patient"))
	read.GET("/slots/:id", h.GetSlot)
	read.GET("/doctors/:doctorId/slots", h.ListSlots)
	read.GET("/doctors/:doctorId/availability/next", h.NextAvailable)
	read.GET("/doctors/:doctorId/availability/week", h.WeeklySummary)
	read.GET("/doctors/:doctorId/availability/alternatives", h.Alternatives)
	read.POST("/availability/bulk-check", h.BulkCheck)

	book := api.Group("", auth.RequireRole("admin", "doctor", "patient"))
	book.POST("/slots/:id/book", h.BookSlot)
	book.POST("/slots/:id/release", h.ReleaseSlot)
}

func httpError(err error) *echo.HTTPError {
	return echo.NewHTTPError(schederr.HTTPStatus(err), err.Error())
}

// -- Templates --

func (h *Handler) CreateTemplate(c echo.Context) error {
	var t Template
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateTemplate(c.Request().Context(), &t); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTemplate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.GetTemplate(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) UpdateTemplate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var t Template
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.ID = id
	if err := h.svc.UpdateTemplate(c.Request().Context(), &t); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTemplate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteTemplate(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListTemplates(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListTemplates(c.Request().Context(), doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Slots --

type generateRequest struct {
	StartDate timeslot.Date `json:"start_date"`
	EndDate   timeslot.Date `json:"end_date"`
}

func (h *Handler) GenerateSlots(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.GenerateSlots(c.Request().Context(), doctorID, req.StartDate, req.EndDate)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) CreateManualSlot(c echo.Context) error {
	var sl Slot
	if err := c.Bind(&sl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateManualSlot(c.Request().Context(), &sl); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sl)
}

func (h *Handler) GetSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sl, err := h.svc.GetSlot(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sl)
}

func (h *Handler) DeleteSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteSlot(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListSlots(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	from, err := timeslot.ParseDate(c.QueryParam("from"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid from date")
	}
	to, err := timeslot.ParseDate(c.QueryParam("to"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid to date")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSlots(c.Request().Context(), doctorID, from, to,
		SlotStatus(c.QueryParam("status")), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Booking --

type bookRequest struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
}

func (h *Handler) BookSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.BookSlot(c.Request().Context(), id, req.AppointmentID); err != nil {
		return httpError(err)
	}
	sl, err := h.svc.GetSlot(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sl)
}

func (h *Handler) ReleaseSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.ReleaseSlot(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	sl, err := h.svc.GetSlot(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sl)
}

// -- Blocking --

type blockRequest struct {
	Date           timeslot.Date      `json:"date"`
	StartTime      timeslot.TimeOfDay `json:"start_time"`
	EndTime        timeslot.TimeOfDay `json:"end_time"`
	OverrideBooked bool               `json:"override_booked"`
}

func (h *Handler) BlockSlots(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	var req blockRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Date.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	res, err := h.svc.BlockSlots(c.Request().Context(), doctorID, req.Date,
		req.StartTime, req.EndTime, BlockPolicy{OverrideBooked: req.OverrideBooked})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// -- Availability --

func (h *Handler) NextAvailable(c echo.Context) error {
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
	sl, err := h.svc.NextAvailableSlot(c.Request().Context(), doctorID, from)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sl)
}

func (h *Handler) WeeklySummary(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	weekStart, err := timeslot.ParseDate(c.QueryParam("week_start"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid week_start date")
	}
	summary, err := h.svc.WeeklySummary(c.Request().Context(), doctorID, weekStart)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) Alternatives(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	preferred, err := timeslot.ParseDate(c.QueryParam("preferred_date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid preferred_date")
	}
	var preferredTime timeslot.TimeOfDay
	if v := c.QueryParam("preferred_time"); v != "" {
		if preferredTime, err = timeslot.ParseTimeOfDay(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid preferred_time")
		}
	}
	radius := intQueryParam(c, "radius_days")
	limit := intQueryParam(c, "max_results")
	alts, err := h.svc.FindAlternativeSlots(c.Request().Context(), doctorID, preferred, preferredTime, radius, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, alts)
}

type bulkCheckRequest struct {
	Checks []CheckRequest `json:"checks"`
}

func (h *Handler) BulkCheck(c echo.Context) error {
	var req bulkCheckRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	results, err := h.svc.BulkCheckAvailability(c.Request().Context(), req.Checks)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, results)
}

func intQueryParam(c echo.Context, name string) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return n
}
