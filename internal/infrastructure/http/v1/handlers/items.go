package handlers

import (
	"github.com/gin-gonic/gin"

	"retailpos/internal/app"
	"retailpos/internal/infrastructure/http/v1/dto"
	"retailpos/pkg/logger"
)

// ItemHandler exposes the item catalog used to pre-fill lines.
type ItemHandler struct {
	*BaseHandler
	engine *app.Engine
}

// NewItemHandler creates an item handler.
func NewItemHandler(base *BaseHandler, engine *app.Engine) *ItemHandler {
	return &ItemHandler{BaseHandler: base, engine: engine}
}

// Get handles GET /items/:id
func (h *ItemHandler) Get(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	item, err := h.engine.Storage.Catalog.GetItem(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}

// Put handles PUT /items/:id
func (h *ItemHandler) Put(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.PutItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	item, err := req.ToItem(c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := item.Validate(ctx); err != nil {
		h.Error(c, err)
		return
	}

	if err := h.engine.Storage.Catalog.Put(ctx, item); err != nil {
		h.Error(c, err)
		return
	}
	logger.Info(ctx, "item saved", "item_id", item.ID, "sku", item.SKU)
	h.OK(c, item)
}
