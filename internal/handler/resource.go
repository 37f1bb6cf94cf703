package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campuslab/lab-reservation/internal/access"
	"github.com/campuslab/lab-reservation/internal/booking"
	"github.com/campuslab/lab-reservation/internal/middleware"
	"github.com/campuslab/lab-reservation/internal/model"
	"github.com/campuslab/lab-reservation/internal/repository"
)

// ResourceHandler serves resource browsing for requesters and resource
// administration for admins.
type ResourceHandler struct {
	Service   *booking.Service
	Resources *repository.ResourceRepo
}

// NewResourceHandler constructs a ResourceHandler.
func NewResourceHandler(svc *booking.Service, resources *repository.ResourceRepo) *ResourceHandler {
	if svc == nil || resources == nil {
		panic("nil dependency passed to NewResourceHandler")
	}
	return &ResourceHandler{Service: svc, Resources: resources}
}

// List handles GET /v1/resources.  The list is filtered by the caller's
// user type; SPECIAL resources the caller may not use are omitted
// entirely rather than marked.
func (h *ResourceHandler) List(c echo.Context) error {
	if _, err := currentUser(c); err != nil {
		return err
	}
	ut := access.UserType{Known: middleware.UserTypeClaim(c), Other: c.QueryParam("user_type_other")}
	items, err := h.Service.ListResources(c.Request().Context(), ut)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"resources": items})
}

type resourceRequest struct {
	Number           uint32   `json:"number"`
	Kind             string   `json:"kind"`
	AccessLevel      string   `json:"access_level"`
	AllowedUserTypes []string `json:"allowed_user_types"`
	IsAvailable      *bool    `json:"is_available,omitempty"`
}

func (r resourceRequest) validate() (model.ResourceKind, model.AccessLevel, string) {
	kind := model.ResourceKind(r.Kind)
	if kind != model.KindComputer && kind != model.KindHeadset {
		return "", "", "kind must be COMPUTER or HEADSET"
	}
	level := model.AccessLevel(r.AccessLevel)
	if level == "" {
		level = model.AccessNormal
	}
	if level != model.AccessNormal && level != model.AccessSpecial {
		return "", "", "access_level must be NORMAL or SPECIAL"
	}
	if r.Number == 0 {
		return "", "", "number is required"
	}
	return kind, level, ""
}

// Create handles POST /v1/admin/resources.  New resources start
// unplaced; the grid endpoints assign positions separately.
func (h *ResourceHandler) Create(c echo.Context) error {
	var body resourceRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	kind, level, problem := body.validate()
	if problem != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": problem})
	}
	available := true
	if body.IsAvailable != nil {
		available = *body.IsAvailable
	}
	resource := &model.Resource{
		Number:           body.Number,
		Kind:             kind,
		AccessLevel:      level,
		AllowedUserTypes: body.AllowedUserTypes,
		IsAvailable:      available,
	}
	if err := h.Resources.Create(c.Request().Context(), resource); err != nil {
		if repository.IsDuplicate(err) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "resource number already in use"})
		}
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusCreated, resource)
}

// Update handles PUT /v1/admin/resources/:id.  The grid position is
// not updatable here; placement goes through the grid endpoints.
func (h *ResourceHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	var body resourceRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	kind, level, problem := body.validate()
	if problem != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": problem})
	}
	existing, err := h.Resources.GetByID(c.Request().Context(), id)
	if err != nil {
		return writeDomainError(c, err)
	}
	existing.Number = body.Number
	existing.Kind = kind
	existing.AccessLevel = level
	existing.AllowedUserTypes = body.AllowedUserTypes
	if body.IsAvailable != nil {
		existing.IsAvailable = *body.IsAvailable
	}
	if err := h.Resources.Update(c.Request().Context(), existing); err != nil {
		if repository.IsDuplicate(err) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "resource number already in use"})
		}
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, existing)
}

// Delete handles DELETE /v1/admin/resources/:id.  Deletion is refused
// with 409 while the resource still has approved reservations today or
// later; those must be cancelled first.
func (h *ResourceHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if err := h.Resources.Delete(c.Request().Context(), id, today); err != nil {
		return writeDomainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
