package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/campuslab/lab-reservation/internal/booking"
	"github.com/campuslab/lab-reservation/internal/cache"
	"github.com/campuslab/lab-reservation/internal/config"
	"github.com/campuslab/lab-reservation/internal/database"
	"github.com/campuslab/lab-reservation/internal/grid"
	"github.com/campuslab/lab-reservation/internal/handler"
	"github.com/campuslab/lab-reservation/internal/middleware"
	"github.com/campuslab/lab-reservation/internal/queue"
	"github.com/campuslab/lab-reservation/internal/repository"
	"github.com/campuslab/lab-reservation/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("schema: %v", err)
	}
	cancel()

	// Redis is optional; without it rate limiting and the availability
	// cache are disabled and everything hits MySQL directly.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, rate limiting and availability cache disabled")
	}

	resourceRepo := repository.NewResourceRepo(db)
	reservationRepo := repository.NewReservationRepo(db)
	layoutRepo := repository.NewLayoutRepo(db)
	userTypeRepo := repository.NewUserTypeRepo(db)

	var availCache *cache.Availability
	if rdb != nil && cfg.AvailabilityCaching {
		availCache = cache.NewAvailability(rdb, cfg.AvailabilityTTL)
	}

	svc := booking.NewService(db, resourceRepo, reservationRepo, userTypeRepo,
		queue.NewPublisher(), availCache)
	gridMgr := grid.NewManager(resourceRepo, layoutRepo)

	// The consumer tails reservation.events and appends the durable
	// local trail for the notification and audit subsystems.
	go func() {
		if err := queue.StartReservationConsumer(); err != nil {
			log.Printf("reservation consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true

	router.Register(e, router.Handlers{
		Reservation:      handler.NewReservationHandler(svc),
		AdminReservation: handler.NewAdminReservationHandler(svc),
		Resource:         handler.NewResourceHandler(svc, resourceRepo),
		Availability:     handler.NewAvailabilityHandler(svc),
		Grid:             handler.NewGridHandler(gridMgr),
	}, cfg.JWTSecret, middleware.RateLimit(config.LoadRateLimitConfig(), rdb))

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
