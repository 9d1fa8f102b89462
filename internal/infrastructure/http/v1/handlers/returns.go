package handlers

import (
	"github.com/gin-gonic/gin"

	"retailpos/internal/app"
	"retailpos/internal/infrastructure/http/v1/dto"
)

// ReturnHandler accepts and amends returns.
type ReturnHandler struct {
	*BaseHandler
	engine *app.Engine
}

// NewReturnHandler creates a return handler.
func NewReturnHandler(base *BaseHandler, engine *app.Engine) *ReturnHandler {
	return &ReturnHandler{BaseHandler: base, engine: engine}
}

// RegisterRoutes registers return routes.
func (h *ReturnHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.POST("/:id/amend", h.Amend)
}

// Create handles POST /returns
func (h *ReturnHandler) Create(c *gin.Context) {
	var req dto.CreateReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}
	returnReq, err := req.ToRequest()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.engine.Returns.ValidateAndSave(c.Request.Context(), h.Session(c), returnReq, req.Capture())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, result)
}

// Amend handles POST /returns/:id/amend
func (h *ReturnHandler) Amend(c *gin.Context) {
	returnID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req dto.AmendReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}
	amendReq, err := req.ToRequest(returnID)
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.engine.Returns.Amend(c.Request.Context(), h.Session(c), amendReq, req.Capture())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, result)
}
