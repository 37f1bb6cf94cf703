package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/campuslab/lab-reservation/internal/booking"
)

// AdminReservationHandler serves the approver endpoints.  Routes using
// it are wrapped with RequireRole("admin").
type AdminReservationHandler struct {
	Service *booking.Service
}

// NewAdminReservationHandler constructs an AdminReservationHandler.
func NewAdminReservationHandler(svc *booking.Service) *AdminReservationHandler {
	if svc == nil {
		panic("nil service passed to NewAdminReservationHandler")
	}
	return &AdminReservationHandler{Service: svc}
}

// ListPending handles GET /v1/admin/reservations/pending and returns
// the approval queue, oldest first.
func (h *AdminReservationHandler) ListPending(c echo.Context) error {
	items, err := h.Service.ListPending(c.Request().Context())
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": items})
}

type decisionRequest struct {
	Decision string `json:"decision"` // APPROVED or REJECTED
}

func (r decisionRequest) approve() (bool, bool) {
	switch strings.ToUpper(strings.TrimSpace(r.Decision)) {
	case "APPROVED":
		return true, true
	case "REJECTED":
		return false, true
	}
	return false, false
}

// Decide handles POST /v1/reservations/:id/decision.  The decision is
// applied exactly once; a second decision on the same reservation
// returns 409.
func (h *AdminReservationHandler) Decide(c echo.Context) error {
	approverID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body decisionRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	approve, ok := body.approve()
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "decision must be APPROVED or REJECTED"})
	}
	rec, err := h.Service.Decide(c.Request().Context(), id, approve, approverID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// DecideGroup handles POST /v1/reservation-groups/:id/decision.  The
// decision is applied to every still-pending member of the group; the
// response lists what was decided and what was skipped.
func (h *AdminReservationHandler) DecideGroup(c echo.Context) error {
	approverID, err := currentUser(c)
	if err != nil {
		return err
	}
	groupID := c.Param("id")
	if groupID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
	}
	var body decisionRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	approve, ok := body.approve()
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "decision must be APPROVED or REJECTED"})
	}
	out, err := h.Service.DecideGroup(c.Request().Context(), groupID, approve, approverID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
