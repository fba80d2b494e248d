package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/equipment-lending/internal/middleware"
	"github.com/iliyamo/equipment-lending/internal/model"
	"github.com/iliyamo/equipment-lending/internal/policy"
	"github.com/iliyamo/equipment-lending/internal/service"
)

// ReservationHandler exposes the reservation engine. Role checks for the
// transitions happen in middleware.Authorize; this handler only scopes
// reads to their owner.
type ReservationHandler struct {
	Svc *service.ReservationService
	Log *zap.Logger
}

func NewReservationHandler(svc *service.ReservationService, log *zap.Logger) *ReservationHandler {
	return &ReservationHandler{Svc: svc, Log: log}
}

type createReservationReq struct {
	ItemID    uint64 `json:"item_id"`
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`   // YYYY-MM-DD, inclusive
	Quantity  int    `json:"quantity"`
}

type decisionReq struct {
	Note string `json:"note"`
}

type decisionResp struct {
	State string     `json:"state"` // UNDECIDED | DECIDED
	At    *time.Time `json:"at,omitempty"`
	Note  string     `json:"note,omitempty"`
}

type reservationResp struct {
	ID          uint64                  `json:"id"`
	RequesterID uint64                  `json:"requester_id"`
	ItemID      uint64                  `json:"item_id"`
	StartDate   string                  `json:"start_date"`
	EndDate     string                  `json:"end_date"`
	Quantity    int                     `json:"quantity"`
	Status      model.ReservationStatus `json:"status"`
	Decision    decisionResp            `json:"decision"`
	CreatedAt   time.Time               `json:"created_at"`
}

func toReservationResp(r *model.Reservation) reservationResp {
	d := decisionResp{State: "UNDECIDED"}
	if at, note, ok := model.DecisionOf(r.Decision); ok {
		d = decisionResp{State: "DECIDED", At: &at, Note: note}
	}
	return reservationResp{
		ID:          r.ID,
		RequesterID: r.RequesterID,
		ItemID:      r.ItemID,
		StartDate:   r.StartDate.Format(model.DateLayout),
		EndDate:     r.EndDate.Format(model.DateLayout),
		Quantity:    r.Quantity,
		Status:      r.Status,
		Decision:    d,
		CreatedAt:   r.CreatedAt,
	}
}

// Create handles POST /v1/reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ItemID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "item_id is required"})
	}
	start, err := model.ParseDate(req.StartDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_date must be YYYY-MM-DD"})
	}
	end, err := model.ParseDate(req.EndDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_date must be YYYY-MM-DD"})
	}

	r, err := h.Svc.Create(c.Request().Context(), service.CreateInput{
		RequesterID: userID,
		ItemID:      req.ItemID,
		StartDate:   start,
		EndDate:     end,
		Quantity:    req.Quantity,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toReservationResp(r))
}

// List handles GET /v1/reservations?mine=&status=&item_id=. Callers
// without list_all only ever see their own reservations.
func (h *ReservationHandler) List(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var f model.ReservationFilter
	mine, _ := strconv.ParseBool(c.QueryParam("mine"))
	if mine || !policy.Can(middleware.Role(c), policy.ActionListAll) {
		f.RequesterID = userID
	}
	if s := strings.TrimSpace(c.QueryParam("status")); s != "" {
		f.Status = model.ReservationStatus(strings.ToUpper(s))
	}
	if s := c.QueryParam("item_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item_id"})
		}
		f.ItemID = id
	}

	list, err := h.Svc.List(c.Request().Context(), f)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]reservationResp, 0, len(list))
	for i := range list {
		out = append(out, toReservationResp(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// Get handles GET /v1/reservations/:id for the owner or anyone with
// list_all. Others get 404 so ids do not leak.
func (h *ReservationHandler) Get(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	r, err := h.Svc.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if r.RequesterID != userID && !policy.Can(middleware.Role(c), policy.ActionListAll) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}
	return c.JSON(http.StatusOK, toReservationResp(r))
}

// Approve handles POST /v1/reservations/:id/approve with an optional note.
func (h *ReservationHandler) Approve(c echo.Context) error {
	return h.decide(c, h.Svc.Approve)
}

// Reject handles POST /v1/reservations/:id/reject with an optional note.
func (h *ReservationHandler) Reject(c echo.Context) error {
	return h.decide(c, h.Svc.Reject)
}

// Issue handles POST /v1/reservations/:id/issue.
func (h *ReservationHandler) Issue(c echo.Context) error {
	return h.act(c, h.Svc.Issue)
}

// Return handles POST /v1/reservations/:id/return.
func (h *ReservationHandler) Return(c echo.Context) error {
	return h.act(c, h.Svc.MarkReturned)
}

type noteOp func(ctx context.Context, id uint64, note string) (*model.Reservation, error)

func (h *ReservationHandler) decide(c echo.Context, op noteOp) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var req decisionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	r, err := op(c.Request().Context(), id, req.Note)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toReservationResp(r))
}

func (h *ReservationHandler) act(c echo.Context, op func(ctx context.Context, id uint64) (*model.Reservation, error)) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	r, err := op(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toReservationResp(r))
}
