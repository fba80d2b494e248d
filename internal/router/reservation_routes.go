package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/equipment-lending/internal/handler"
	"github.com/iliyamo/equipment-lending/internal/middleware"
	"github.com/iliyamo/equipment-lending/internal/policy"
)

// RegisterReservations registers the reservation workflow under
// /v1/reservations. Each transition is gated by its policy action; reads
// are scoped to the caller inside the handler. Transitions that move
// units (reject, issue, return) run invalidate so cached catalog reads
// never show a stale available quantity.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, limiter, invalidate echo.MiddlewareFunc) {
	g := e.Group("/v1/reservations", middleware.JWTAuth(jwtSecret), limiter)

	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("", h.Create, middleware.Authorize(policy.ActionCreate))

	g.POST("/:id/approve", h.Approve, middleware.Authorize(policy.ActionApprove))
	g.POST("/:id/reject", h.Reject, middleware.Authorize(policy.ActionReject), invalidate)
	g.POST("/:id/issue", h.Issue, middleware.Authorize(policy.ActionIssue), invalidate)
	g.POST("/:id/return", h.Return, middleware.Authorize(policy.ActionReturn), invalidate)
}
