package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-checkout/internal/config"
	"github.com/iliyamo/cinema-checkout/internal/handler"
	"github.com/iliyamo/cinema-checkout/internal/middleware"
)

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Health   echo.HandlerFunc
	Catalog  *handler.CatalogHandler
	Bookings *handler.BookingHandler
	Payments *handler.PaymentHandler
	Admin    *handler.AdminHandler
}

// Options carries the middleware settings.  A nil Redis client disables the
// catalog cache and the checkout rate limiter.
type Options struct {
	JWTSecret string
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	Redis     *redis.Client
}

// RegisterRoutes maps every endpoint of the checkout service.
//
// Browse routes are public.  Bookable movies and theaters are cached in
// Redis; showtimes and seat occupancy are never cached because occupancy
// is server-authoritative.  Everything that reads or writes a shopper's
// bookings or payments requires a bearer token.
func RegisterRoutes(e *echo.Echo, h Handlers, opt Options) {
	e.GET("/healthz", h.Health)

	cache := middleware.NewRedisCache(opt.Cache, opt.Redis)
	e.GET("/bookings/movies", h.Catalog.BookableMovies, cache)
	e.GET("/theaters", h.Catalog.Theaters, cache)
	e.GET("/showtimes", h.Catalog.Showtimes)
	e.GET("/showtimes/:id", h.Catalog.Showtime)
	e.GET("/bookings/showtime/:id/booked-seats", h.Catalog.BookedSeats)
	e.GET("/bookings/showtime/:id/seats", h.Catalog.SeatMap, middleware.OptionalJWTAuth(opt.JWTSecret))

	auth := middleware.JWTAuth(opt.JWTSecret)
	limit := middleware.NewTokenBucket(opt.RateLimit, opt.Redis)

	// Middleware is attached per route: the /bookings prefix also hosts the
	// public browse routes above.
	b := e.Group("/bookings")
	b.POST("", h.Bookings.Create, auth)
	b.GET("/user/:userId", h.Bookings.ListByUser, auth)
	b.GET("/:id", h.Bookings.Get, auth)
	b.DELETE("/:id", h.Bookings.Cancel, auth)

	e.POST("/checkout", h.Payments.Checkout, auth, limit)

	p := e.Group("/payment")
	p.GET("/success", h.Payments.Success, auth)
	p.GET("/fail", h.Payments.Fail, auth)
	p.POST("/confirm", h.Payments.Confirm, auth, limit)
	p.POST("/cancel", h.Payments.Cancel, auth)
	p.GET("/user/:userId", h.Payments.ByUser, auth)
	p.GET("/booking/:bookingId", h.Payments.ByBooking, auth)
	p.GET("/:paymentKey", h.Payments.ByKey, auth)

	if h.Admin != nil {
		e.POST("/admin/sweep", h.Admin.Sweep, auth, middleware.RequireRole("ADMIN"))
	}
}
