package handlers

import (
	"github.com/gin-gonic/gin"

	"retailpos/internal/app"
	"retailpos/internal/infrastructure/http/v1/dto"
)

// StockHandler reads the stock register.
type StockHandler struct {
	*BaseHandler
	engine *app.Engine
}

// NewStockHandler creates a stock handler.
func NewStockHandler(base *BaseHandler, engine *app.Engine) *StockHandler {
	return &StockHandler{BaseHandler: base, engine: engine}
}

// OnHand handles GET /stock/:item/:location
func (h *StockHandler) OnHand(c *gin.Context) {
	itemID, ok := h.ParamID(c, "item")
	if !ok {
		return
	}
	locationID, ok := h.ParamID(c, "location")
	if !ok {
		return
	}

	qty, err := h.engine.OnHand(c.Request.Context(), locationID, itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.StockResponse{
		ItemID:     itemID.String(),
		LocationID: locationID.String(),
		OnHand:     qty,
	})
}
