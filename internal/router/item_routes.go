package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/equipment-lending/internal/handler"
	"github.com/iliyamo/equipment-lending/internal/middleware"
	"github.com/iliyamo/equipment-lending/internal/policy"
)

// RegisterItems registers the catalog under /v1/items. Any authenticated
// caller may browse; writes need manage_catalog and flush the read cache.
func RegisterItems(e *echo.Echo, h *handler.ItemHandler, jwtSecret string, limiter, cache, invalidate echo.MiddlewareFunc) {
	g := e.Group("/v1/items", middleware.JWTAuth(jwtSecret), limiter)

	g.GET("", h.List, cache)
	g.GET("/:id", h.Get, cache)

	manage := middleware.Authorize(policy.ActionManageCatalog)
	g.POST("", h.Create, manage, invalidate)
	g.PUT("/:id", h.Update, manage, invalidate)
	g.DELETE("/:id", h.Delete, manage, invalidate)
}
