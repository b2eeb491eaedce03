package scheduling

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/civil"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := auth.RequireRole(auth.RoleStaff)

	g := api.Group("/appointments", staff)
	g.POST("", h.Book)
	g.GET("", h.ListAppointments)
	g.GET("/slots/:doctor_id/:date", h.SlotsByPath)
	g.GET("/:id", h.GetAppointment)
	g.PUT("/:id", h.UpdateAppointment)
	g.POST("/:id/cancel", h.CancelAppointment)

	api.GET("/doctors/:id/slots", h.DoctorSlots, staff)
	api.GET("/doctors/:id/upcoming", h.DoctorUpcoming, staff)
	api.GET("/patients/:id/appointments", h.PatientAppointments, staff)
}

// httpError adds the scheduling rejections to the shared error mapping.
func httpError(err error) *echo.HTTPError {
	var past *PastDateError
	if errors.As(err, &past) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, apperr.Response{Error: "past_date", Message: past.Error()})
	}
	var taken *SlotTakenError
	if errors.As(err, &taken) {
		return echo.NewHTTPError(http.StatusConflict, apperr.Response{Error: "slot_taken", Message: taken.Error()})
	}
	return apperr.HTTPError(err)
}

func (h *Handler) Book(c echo.Context) error {
	var in BookingInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req, err := in.Parse()
	if err != nil {
		return httpError(err)
	}
	req.CreatedBy = creatorID(c)

	a, err := h.svc.Book(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	params := SearchParams{Query: c.QueryParam("q")}
	if raw := c.QueryParam("status"); raw != "" {
		st := Status(raw)
		if !st.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown status")
		}
		params.Status = &st
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAppointments(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(nonNil(items), total, pg).WithLinks(c.Request().URL))
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in BookingInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req, err := in.Parse()
	if err != nil {
		return httpError(err)
	}
	a, err := h.svc.Update(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) SlotsByPath(c echo.Context) error {
	return h.slots(c, c.Param("doctor_id"), c.Param("date"))
}

func (h *Handler) DoctorSlots(c echo.Context) error {
	return h.slots(c, c.Param("id"), c.QueryParam("date"))
}

func (h *Handler) slots(c echo.Context, rawID, rawDate string) error {
	doctorID, err := uuid.Parse(rawID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if rawDate == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	date, err := civil.ParseDate(rawDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	slots, err := h.svc.AvailableSlots(c.Request().Context(), doctorID, date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, slots)
}

func (h *Handler) DoctorUpcoming(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.UpcomingForDoctor(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, nonNil(items))
}

func (h *Handler) PatientAppointments(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(nonNil(items), total, pg).WithLinks(c.Request().URL))
}

func nonNil(items []*Detail) []*Detail {
	if items == nil {
		return []*Detail{}
	}
	return items
}

// creatorID returns the authenticated user's id, or nil for callers without
// a user record.
func creatorID(c echo.Context) *uuid.UUID {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return nil
	}
	return &id
}
