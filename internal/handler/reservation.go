package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/campuslab/lab-reservation/internal/access"
	"github.com/campuslab/lab-reservation/internal/booking"
	"github.com/campuslab/lab-reservation/internal/middleware"
	"github.com/campuslab/lab-reservation/internal/recurrence"
)

// ReservationHandler serves the requester-facing reservation endpoints.
// JWT authentication is assumed to have run; the user id and user type
// come from the token claims.
type ReservationHandler struct {
	Service *booking.Service
}

// NewReservationHandler constructs a ReservationHandler.
func NewReservationHandler(svc *booking.Service) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Service: svc}
}

// submitRequest is the body of POST /v1/reservations.  Either dates or
// pattern must be present; when both are sent the explicit dates win.
type submitRequest struct {
	ResourceID uint64   `json:"resource_id"`
	TimeBlocks []string `json:"time_blocks"`
	Dates      []string `json:"dates,omitempty"`
	Pattern    *struct {
		StartDate     string `json:"start_date"`
		DaysOfWeek    []int  `json:"days_of_week"`
		NumberOfWeeks int    `json:"number_of_weeks"`
	} `json:"pattern,omitempty"`
	// UserTypeOther carries a free-text type for requesters outside the
	// configured catalog; the token's user_type claim wins when set.
	UserTypeOther string `json:"user_type_other,omitempty"`
}

// Submit handles POST /v1/reservations.  It creates one PENDING
// reservation per expanded date and reports per-date rejections; a
// partially successful recurring submission still returns 201.
func (h *ReservationHandler) Submit(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var body submitRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.ResourceID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "resource_id is required"})
	}

	spec := recurrence.DateSpec{}
	for _, raw := range body.Dates {
		d, err := parseDate(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date: " + raw})
		}
		spec.Dates = append(spec.Dates, d)
	}
	if body.Pattern != nil {
		start, err := parseDate(body.Pattern.StartDate)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pattern start_date"})
		}
		spec.Pattern = &recurrence.Pattern{
			Start:    start,
			Weekdays: body.Pattern.DaysOfWeek,
			Weeks:    body.Pattern.NumberOfWeeks,
		}
	}

	result, err := h.Service.Submit(c.Request().Context(), booking.SubmitInput{
		UserID:     userID,
		UserType:   access.UserType{Known: middleware.UserTypeClaim(c), Other: body.UserTypeOther},
		ResourceID: body.ResourceID,
		BlockKeys:  body.TimeBlocks,
		DateSpec:   spec,
	})
	if err != nil {
		return writeDomainError(c, err)
	}
	status := http.StatusCreated
	if len(result.Created) == 0 {
		// Every expanded date was rejected.
		status = http.StatusConflict
	}
	return c.JSON(status, result)
}

// ListMine handles GET /v1/reservations and returns the caller's
// reservations, newest date first.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	items, err := h.Service.ListUserReservations(c.Request().Context(), userID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": items})
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	rec, err := h.Service.GetReservation(c.Request().Context(), id, userID, middleware.IsAdmin(c))
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// Cancel handles DELETE /v1/reservations/:id.  Owners may withdraw
// PENDING reservations and cancel APPROVED ones; repeating the call on
// an already cancelled reservation returns the same terminal state.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	rec, err := h.Service.Cancel(c.Request().Context(), id, userID, middleware.IsAdmin(c))
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// ListGroup handles GET /v1/reservation-groups/:id and returns every
// reservation generated from one recurring submission.
func (h *ReservationHandler) ListGroup(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	groupID := c.Param("id")
	if groupID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
	}
	items, err := h.Service.ListGroup(c.Request().Context(), groupID)
	if err != nil {
		return writeDomainError(c, err)
	}
	if !middleware.IsAdmin(c) {
		// Non-admins only see their own groups.
		for i := range items {
			if items[i].UserID != userID {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": items})
}
