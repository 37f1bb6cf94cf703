// Package handler contains the HTTP handlers of the reservation API.
// Handlers bind and validate request shapes, delegate to the booking
// service and the grid manager, and translate domain errors to HTTP
// status codes.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campuslab/lab-reservation/internal/booking"
	"github.com/campuslab/lab-reservation/internal/grid"
	"github.com/campuslab/lab-reservation/internal/middleware"
	"github.com/campuslab/lab-reservation/internal/recurrence"
	"github.com/campuslab/lab-reservation/internal/repository"
)

// currentUser extracts the authenticated user's id or fails with 401.
// The error is non-nil so callers bail out instead of running on with
// a zero user id.
func currentUser(c echo.Context) (uint64, error) {
	uid, ok := middleware.UserID(c)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return uid, nil
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// parseDate parses a YYYY-MM-DD query or body value.
func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// writeDomainError maps domain errors onto HTTP responses.  Unknown
// errors become 500 without leaking internals.
func writeDomainError(c echo.Context, err error) error {
	var (
		validation *booking.ValidationError
		transition *booking.InvalidTransitionError
		pattern    *recurrence.InvalidPatternError
		occupied   *grid.CellOccupiedError
		boundary   *grid.OccupiedBoundaryError
		bounds     *grid.BoundsError
	)
	switch {
	case errors.Is(err, repository.ErrResourceNotFound),
		errors.Is(err, repository.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrAccessDenied),
		errors.Is(err, booking.ErrNotOwner):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrResourceUnavailable),
		errors.Is(err, repository.ErrHasFutureReservations),
		errors.Is(err, repository.ErrCellTaken),
		errors.Is(err, grid.ErrNotLaidOut),
		errors.Is(err, grid.ErrGridFull):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.As(err, &transition),
		errors.As(err, &occupied),
		errors.As(err, &boundary):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.As(err, &pattern):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.As(err, &validation), errors.As(err, &bounds):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	c.Logger().Errorf("internal error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
