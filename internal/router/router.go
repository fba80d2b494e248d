// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"context"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/equipment-lending/internal/config"
	"github.com/iliyamo/equipment-lending/internal/handler"
	"github.com/iliyamo/equipment-lending/internal/middleware"
)

// Deps is everything the HTTP layer needs. Redis may be nil, which
// disables rate limiting and response caching.
type Deps struct {
	Cfg          config.Config
	RateLimit    config.RateLimitConfig
	Cache        config.CacheConfig
	Redis        *redis.Client
	Log          *zap.Logger
	Ping         func(ctx context.Context) error
	Auth         *handler.AuthHandler
	Items        *handler.ItemHandler
	Reservations *handler.ReservationHandler
}

// New builds the Echo instance with every route registered.
func New(d Deps) *echo.Echo {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(d.Log))

	RegisterRoutes(e, d.Ping)
	RegisterAuth(e, d.Auth, d.Cfg.JWTSecret)

	// rate limiting keys on the caller, so it runs after JWTAuth
	limiter := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log)
	invalidate := middleware.InvalidateCache(d.Cache, d.Redis, d.Log)
	RegisterItems(e, d.Items, d.Cfg.JWTSecret, limiter,
		middleware.NewRedisCache(d.Cache, d.Redis), invalidate)
	RegisterReservations(e, d.Reservations, d.Cfg.JWTSecret, limiter, invalidate)
	return e
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, ping func(ctx context.Context) error) {
	e.GET("/healthz", handler.Health(ping))
}

// RegisterAuth registers signup and login under /v1/auth and the
// authenticated /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/signup", a.Signup)
	g.POST("/login", a.Login)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}
