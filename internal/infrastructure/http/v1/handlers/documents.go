package handlers

import (
	"github.com/gin-gonic/gin"

	"retailpos/internal/app"
	"retailpos/internal/core/entity"
	"retailpos/internal/domain/revision"
	"retailpos/internal/infrastructure/http/v1/dto"
)

// DocumentHandler serves sales and purchases: drafts, finalization, revisions,
// voids and the read side of the revision chain.
type DocumentHandler struct {
	*BaseHandler
	engine *app.Engine
}

// NewDocumentHandler creates a document handler.
func NewDocumentHandler(base *BaseHandler, engine *app.Engine) *DocumentHandler {
	return &DocumentHandler{BaseHandler: base, engine: engine}
}

// RegisterRoutes registers document routes.
func (h *DocumentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.UpdateDraft)
	rg.POST("/:id/finalize", h.Finalize)
	rg.POST("/:id/amend", h.Amend)
	rg.POST("/:id/void", h.Void)
	rg.POST("/:id/repost", h.Repost)
	rg.GET("/:id/actions", h.Actions)
	rg.GET("/:id/chain", h.Chain)
	rg.GET("/:id/payments", h.Payments)
	rg.GET("/:id/ledger", h.Ledger)
	rg.GET("/:id/return-draft", h.ReturnDraft)
	rg.GET("/:id/returns", h.Returns)
}

// List handles GET /documents
func (h *DocumentHandler) List(c *gin.Context) {
	var req dto.ListDocumentsRequest
	if !h.BindQuery(c, &req) {
		return
	}

	result, err := h.engine.Documents.List(c.Request.Context(), req.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Create handles POST /documents
func (h *DocumentHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	createReq, err := req.ToRequest(ctx, h.engine.Storage.Catalog)
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.engine.Documents.Create(ctx, h.Session(c), createReq, req.Capture())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, result)
}

// Get handles GET /documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	doc, err := h.engine.Documents.Get(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// UpdateDraft handles PUT /documents/:id
func (h *DocumentHandler) UpdateDraft(c *gin.Context) {
	ctx := c.Request.Context()
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateDraftRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.engine.Documents.Get(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	updateReq, err := req.ToRequest(ctx, h.engine.Storage.Catalog, doc)
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.engine.Documents.UpdateDraft(ctx, h.Session(c), updateReq)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Finalize handles POST /documents/:id/finalize
func (h *DocumentHandler) Finalize(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req dto.TenderRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	result, err := h.engine.Documents.Finalize(c.Request.Context(), h.Session(c), docID, req.Capture())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Amend handles POST /documents/:id/amend
func (h *DocumentHandler) Amend(c *gin.Context) {
	ctx := c.Request.Context()
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req dto.AmendDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	prev, err := h.engine.Documents.Get(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	amendReq, err := req.ToRequest(ctx, h.engine.Storage.Catalog, prev)
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.engine.Revisions.Amend(ctx, h.Session(c), amendReq, req.Capture())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, result)
}

// Void handles POST /documents/:id/void
func (h *DocumentHandler) Void(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req dto.TenderRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	result, err := h.engine.Documents.Void(c.Request.Context(), h.Session(c), docID, req.Capture())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Repost handles POST /documents/:id/repost
func (h *DocumentHandler) Repost(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	result, err := h.engine.Documents.Repost(c.Request.Context(), h.Session(c), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Actions handles GET /documents/:id/actions
func (h *DocumentHandler) Actions(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	actions, err := h.engine.Revisions.Actions(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if actions == nil {
		actions = []revision.Action{}
	}
	h.OK(c, dto.ActionsResponse{DocumentID: docID.String(), Actions: actions})
}

// Chain handles GET /documents/:id/chain
func (h *DocumentHandler) Chain(c *gin.Context) {
	ctx := c.Request.Context()
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	doc, err := h.engine.Documents.Get(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if doc.Number == "" {
		// a draft has no chain yet
		h.OK(c, dto.NewChainResponse("", []*entity.Document{doc}))
		return
	}

	chain, err := h.engine.Revisions.Chain(ctx, doc.Number)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewChainResponse(doc.Number, chain))
}

// Payments handles GET /documents/:id/payments
func (h *DocumentHandler) Payments(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	payments, err := h.engine.Documents.Payments(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, payments)
}

// Ledger handles GET /documents/:id/ledger
func (h *DocumentHandler) Ledger(c *gin.Context) {
	ctx := c.Request.Context()
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	doc, err := h.engine.Documents.Get(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	entry, err := h.engine.Posting.Entry(ctx, doc.LedgerType(), doc.ID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, entry)
}

// ReturnDraft handles GET /documents/:id/return-draft
func (h *DocumentHandler) ReturnDraft(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	draft, err := h.engine.Returns.BuildReturnDraft(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, draft)
}

// Returns handles GET /documents/:id/returns
func (h *DocumentHandler) Returns(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	active, err := h.engine.Returns.ActiveReturns(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, active)
}
