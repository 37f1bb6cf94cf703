// Package router wires the API routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/campuslab/lab-reservation/internal/handler"
	"github.com/campuslab/lab-reservation/internal/middleware"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Reservation      *handler.ReservationHandler
	AdminReservation *handler.AdminReservationHandler
	Resource         *handler.ResourceHandler
	Availability     *handler.AvailabilityHandler
	Grid             *handler.GridHandler
}

// Register mounts all routes on the given Echo instance.  The health
// check stays unauthenticated; everything else requires a valid access
// token, and the /v1/admin tree plus the decision endpoints require the
// admin role on top.  The limiter guards submission only and runs
// after token validation so its buckets key on the caller's user id.
func Register(e *echo.Echo, h Handlers, jwtSecret string, limiter echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))

	// Requester endpoints.
	auth.GET("/resources", h.Resource.List)
	auth.GET("/resources/:id/availability", h.Availability.ForResource)
	auth.GET("/availability", h.Availability.ForAll)
	auth.GET("/grid", h.Grid.View)
	auth.POST("/reservations", h.Reservation.Submit, limiter)
	auth.GET("/reservations", h.Reservation.ListMine)
	auth.GET("/reservations/:id", h.Reservation.Get)
	auth.DELETE("/reservations/:id", h.Reservation.Cancel)
	auth.GET("/reservation-groups/:id", h.Reservation.ListGroup)

	// Approver decisions.  These sit outside /v1/admin for URL
	// stability but still require the admin role.
	adminOnly := middleware.RequireRole("admin")
	auth.POST("/reservations/:id/decision", h.AdminReservation.Decide, adminOnly)
	auth.POST("/reservation-groups/:id/decision", h.AdminReservation.DecideGroup, adminOnly)

	// Administration tree.
	admin := auth.Group("/admin", adminOnly)
	admin.GET("/reservations/pending", h.AdminReservation.ListPending)
	admin.POST("/resources", h.Resource.Create)
	admin.PUT("/resources/:id", h.Resource.Update)
	admin.DELETE("/resources/:id", h.Resource.Delete)
	admin.POST("/resources/:id/position", h.Grid.Place)
	admin.DELETE("/resources/:id/position", h.Grid.Unplace)
	admin.POST("/grid/resize", h.Grid.Resize)
	admin.POST("/grid/auto-assign", h.Grid.AutoAssign)
}
