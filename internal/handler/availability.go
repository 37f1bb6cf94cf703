package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campuslab/lab-reservation/internal/access"
	"github.com/campuslab/lab-reservation/internal/booking"
	"github.com/campuslab/lab-reservation/internal/middleware"
)

// AvailabilityHandler serves the occupied-blocks views used by the
// reservation calendar.
type AvailabilityHandler struct {
	Service *booking.Service
}

// NewAvailabilityHandler constructs an AvailabilityHandler.
func NewAvailabilityHandler(svc *booking.Service) *AvailabilityHandler {
	if svc == nil {
		panic("nil service passed to NewAvailabilityHandler")
	}
	return &AvailabilityHandler{Service: svc}
}

// dateRange parses the from/to query parameters; to defaults to from
// for single-day queries.
func dateRange(c echo.Context) (time.Time, time.Time, bool) {
	from, err := parseDate(c.QueryParam("from"))
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	to := from
	if raw := c.QueryParam("to"); raw != "" {
		if to, err = parseDate(raw); err != nil {
			return time.Time{}, time.Time{}, false
		}
	}
	return from, to, true
}

// ForResource handles GET /v1/resources/:id/availability?from=&to=.
// The response maps each date in the range to the occupied block keys;
// free days map to an empty list.
func (h *AvailabilityHandler) ForResource(c echo.Context) error {
	if _, err := currentUser(c); err != nil {
		return err
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	from, to, ok := dateRange(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "from and to must be YYYY-MM-DD"})
	}
	occupied, err := h.Service.Availability(c.Request().Context(), id, from, to)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"resource_id": id, "occupied": occupied})
}

// ForAll handles GET /v1/availability?from=&to= and returns the
// occupied blocks of every resource visible to the caller.
func (h *AvailabilityHandler) ForAll(c echo.Context) error {
	if _, err := currentUser(c); err != nil {
		return err
	}
	from, to, ok := dateRange(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "from and to must be YYYY-MM-DD"})
	}
	ut := access.UserType{Known: middleware.UserTypeClaim(c), Other: c.QueryParam("user_type_other")}
	occupied, err := h.Service.AvailabilityAll(c.Request().Context(), ut, from, to)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"occupied": occupied})
}
