package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/campuslab/lab-reservation/internal/grid"
)

// GridHandler serves the lab layout endpoints.  Reads are open to all
// authenticated users; mutations are admin-only via route middleware.
type GridHandler struct {
	Manager *grid.Manager
}

// NewGridHandler constructs a GridHandler.
func NewGridHandler(mgr *grid.Manager) *GridHandler {
	if mgr == nil {
		panic("nil manager passed to NewGridHandler")
	}
	return &GridHandler{Manager: mgr}
}

// View handles GET /v1/grid and returns the layout dimensions, the
// occupied cells and the unplaced resources.
func (h *GridHandler) View(c echo.Context) error {
	if _, err := currentUser(c); err != nil {
		return err
	}
	snap, err := h.Manager.View(c.Request().Context())
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// Place handles POST /v1/admin/resources/:id/position with body
// {"row": r, "col": c}.  Placing into an occupied cell returns 409 and
// never evicts the occupant.
func (h *GridHandler) Place(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	var body struct {
		Row *int `json:"row"`
		Col *int `json:"col"`
	}
	if err := c.Bind(&body); err != nil || body.Row == nil || body.Col == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "row and col are required"})
	}
	if err := h.Manager.Place(c.Request().Context(), id, *body.Row, *body.Col); err != nil {
		return writeDomainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Unplace handles DELETE /v1/admin/resources/:id/position.  Removing a
// resource that is already unplaced is a no-op.
func (h *GridHandler) Unplace(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	if err := h.Manager.Unplace(c.Request().Context(), id); err != nil {
		return writeDomainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Resize handles POST /v1/admin/grid/resize with body
// {"rows": r, "cols": c}.  Shrinks that would strand placed resources
// return 409.
func (h *GridHandler) Resize(c echo.Context) error {
	var body struct {
		Rows int `json:"rows"`
		Cols int `json:"cols"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.Manager.Resize(c.Request().Context(), body.Rows, body.Cols); err != nil {
		return writeDomainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AutoAssign handles POST /v1/admin/grid/auto-assign.  It lays out a
// brand-new lab in one call and refuses to run once anything has been
// placed manually.
func (h *GridHandler) AutoAssign(c echo.Context) error {
	if err := h.Manager.AutoAssign(c.Request().Context()); err != nil {
		return writeDomainError(c, err)
	}
	snap, err := h.Manager.View(c.Request().Context())
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}
