package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/equipment-lending/internal/model"
	"github.com/iliyamo/equipment-lending/internal/service"
)

// ItemHandler serves the equipment catalog. Reads are open to every
// authenticated caller; writes are gated by the router.
type ItemHandler struct {
	Catalog *service.CatalogService
	Log     *zap.Logger
}

func NewItemHandler(catalog *service.CatalogService, log *zap.Logger) *ItemHandler {
	return &ItemHandler{Catalog: catalog, Log: log}
}

// itemReq mirrors service.ItemInput; absent fields stay nil.
type itemReq struct {
	Name              *string `json:"name"`
	Category          *string `json:"category"`
	ConditionNote     *string `json:"condition_note"`
	TotalQuantity     *int    `json:"total_quantity"`
	AvailableQuantity *int    `json:"available_quantity"`
}

func (r itemReq) input() service.ItemInput {
	return service.ItemInput{
		Name:              r.Name,
		Category:          r.Category,
		ConditionNote:     r.ConditionNote,
		TotalQuantity:     r.TotalQuantity,
		AvailableQuantity: r.AvailableQuantity,
	}
}

// List handles GET /v1/items?category=&available_only=.
func (h *ItemHandler) List(c echo.Context) error {
	f := model.ItemFilter{Category: c.QueryParam("category")}
	if v := c.QueryParam("available_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "available_only must be a boolean"})
		}
		f.AvailableOnly = b
	}
	items, err := h.Catalog.List(c.Request().Context(), f)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/items/:id.
func (h *ItemHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}
	it, err := h.Catalog.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, it)
}

// Create handles POST /v1/items.
func (h *ItemHandler) Create(c echo.Context) error {
	var req itemReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	it, err := h.Catalog.Create(c.Request().Context(), req.input())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, it)
}

// Update handles PUT /v1/items/:id. Only the fields present are changed.
func (h *ItemHandler) Update(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}
	var req itemReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	it, err := h.Catalog.Update(c.Request().Context(), id, req.input())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, it)
}

// Delete handles DELETE /v1/items/:id.
func (h *ItemHandler) Delete(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}
	if err := h.Catalog.Delete(c.Request().Context(), id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
