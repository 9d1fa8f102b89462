package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailpos/internal/app"
	"retailpos/internal/core/apperror"
	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
	"retailpos/internal/domain/posting"
	v1 "retailpos/internal/infrastructure/http/v1"
	"retailpos/internal/infrastructure/http/v1/middleware"
	"retailpos/internal/infrastructure/metrics"
	"retailpos/internal/infrastructure/storage/memory"
)

type apiFixture struct {
	t        *testing.T
	router   *gin.Engine
	eng      *app.Engine
	location id.ID
	item     id.ID
}

func newAPI(t *testing.T, opening int64) *apiFixture {
	t.Helper()
	eng, _, _ := app.NewMemory(posting.DefaultAccounts())
	m := metrics.New()
	m.Attach(eng)
	f := &apiFixture{
		t: t,
		router: v1.NewRouter(v1.RouterConfig{
			Engine:      eng,
			Idempotency: memory.NewIdempotencyStore(time.Hour),
			Metrics:     m,
		}),
		eng:      eng,
		location: id.New(),
		item:     id.New(),
	}
	if opening > 0 {
		require.NoError(t, eng.SeedOpening(context.Background(), f.location, f.item, types.NewQuantity(opening)))
	}
	return f
}

func (f *apiFixture) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderOperatorID, "op-1")
	req.Header.Set(middleware.HeaderLocationID, f.location.String())
	req.Header.Set(middleware.HeaderCounterID, "till-1")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type docResult struct {
	Document entity.Document `json:"document"`
	Delta    types.Money     `json:"delta"`
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func (f *apiFixture) saleBody(qty int64, tendered string) map[string]any {
	return map[string]any{
		"docType":  "sale",
		"finalize": true,
		"lines": []map[string]any{
			{"itemId": f.item.String(), "quantity": qty, "unitPrice": "10", "taxRatePct": "10"},
		},
		"tenders": []map[string]any{{"instrument": "cash", "amount": tendered}},
	}
}

func (f *apiFixture) onHand() types.Quantity {
	f.t.Helper()
	w := f.do(http.MethodGet, "/api/v1/stock/"+f.item.String()+"/"+f.location.String(), nil, nil)
	require.Equal(f.t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		OnHand types.Quantity `json:"onHand"`
	}
	require.NoError(f.t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.OnHand
}

func TestHealth(t *testing.T) {
	f := newAPI(t, 0)

	w := f.do(http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPI(t, 10)

	w := f.do(http.MethodPost, "/api/v1/documents", f.saleBody(1, "11"), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `route="/api/v1/documents"`)
	assert.Contains(t, body, `retailpos_engine_operations_total{operation="finalize"} 1`)
}

func TestSaleLifecycle(t *testing.T) {
	f := newAPI(t, 10)

	w := f.do(http.MethodPost, "/api/v1/documents", f.saleBody(3, "40"), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sale := decode[docResult](t, w).Document

	assert.Equal(t, entity.StatusFinal, sale.Status)
	assert.NotEmpty(t, sale.Number)
	assert.True(t, types.MustMoney("33").Equal(sale.GrandTotal))
	assert.Equal(t, types.NewQuantity(7), f.onHand())

	// amend 3 -> 4 units, delta 11 settled exactly
	w = f.do(http.MethodPost, "/api/v1/documents/"+sale.ID.String()+"/amend", map[string]any{
		"version": sale.Version,
		"lines": []map[string]any{
			{"itemId": f.item.String(), "quantity": 4, "unitPrice": "10", "taxRatePct": "10"},
		},
		"tenders": []map[string]any{{"instrument": "card", "amount": "11"}},
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	amended := decode[docResult](t, w)
	assert.True(t, types.MustMoney("11").Equal(amended.Delta))
	assert.Equal(t, 2, amended.Document.Revision)
	assert.Equal(t, sale.Number, amended.Document.Number)
	assert.Equal(t, types.NewQuantity(6), f.onHand())

	w = f.do(http.MethodGet, "/api/v1/documents/"+sale.ID.String()+"/chain", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	chain := decode[struct {
		HeadID    string            `json:"headId"`
		Revisions []entity.Document `json:"revisions"`
	}](t, w)
	assert.Len(t, chain.Revisions, 2)
	assert.Equal(t, amended.Document.ID.String(), chain.HeadID)

	// the superseded revision offers nothing
	w = f.do(http.MethodGet, "/api/v1/documents/"+sale.ID.String()+"/actions", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	actions := decode[struct {
		Actions []string `json:"actions"`
	}](t, w)
	assert.Empty(t, actions.Actions)

	w = f.do(http.MethodGet, "/api/v1/documents/"+amended.Document.ID.String()+"/ledger", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAmend_BelowOriginalRejected(t *testing.T) {
	f := newAPI(t, 10)

	w := f.do(http.MethodPost, "/api/v1/documents", f.saleBody(3, "33"), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sale := decode[docResult](t, w).Document

	w = f.do(http.MethodPost, "/api/v1/documents/"+sale.ID.String()+"/amend", map[string]any{
		"lines": []map[string]any{
			{"itemId": f.item.String(), "quantity": 1, "unitPrice": "10", "taxRatePct": "10"},
		},
	}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Equal(t, apperror.CodeAmendmentBelowOriginal, decode[errorBody](t, w).Code)
	assert.Equal(t, types.NewQuantity(7), f.onHand())
}

func TestReturnAgainstInvoice(t *testing.T) {
	f := newAPI(t, 10)

	w := f.do(http.MethodPost, "/api/v1/documents", f.saleBody(3, "33"), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sale := decode[docResult](t, w).Document
	lineID := sale.Lines[0].ID.String()

	w = f.do(http.MethodGet, "/api/v1/documents/"+sale.ID.String()+"/return-draft", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	draft := decode[struct {
		Lines []struct {
			MaxReturnQty types.Quantity `json:"maxReturnQty"`
		} `json:"lines"`
	}](t, w)
	require.Len(t, draft.Lines, 1)
	assert.Equal(t, types.NewQuantity(3), draft.Lines[0].MaxReturnQty)

	ret := map[string]any{
		"refDocumentId": sale.ID.String(),
		"lines":         []map[string]any{{"originalLineId": lineID, "quantity": 1}},
		"tenders":       []map[string]any{{"instrument": "cash", "amount": "11"}},
	}
	w = f.do(http.MethodPost, "/api/v1/returns", ret, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	returned := decode[docResult](t, w).Document
	assert.True(t, returned.IsReturn)
	assert.True(t, types.MustMoney("-11").Equal(returned.GrandTotal))
	assert.Equal(t, types.NewQuantity(8), f.onHand())

	over := map[string]any{
		"refDocumentId": sale.ID.String(),
		"lines":         []map[string]any{{"originalLineId": lineID, "quantity": 3}},
		"tenders":       []map[string]any{{"instrument": "cash", "amount": "33"}},
	}
	w = f.do(http.MethodPost, "/api/v1/returns", over, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Equal(t, apperror.CodeReturnExceeds, decode[errorBody](t, w).Code)
	assert.Equal(t, types.NewQuantity(8), f.onHand())

	// a returned original can no longer be amended
	w = f.do(http.MethodPost, "/api/v1/documents/"+sale.ID.String()+"/amend", map[string]any{
		"lines": []map[string]any{
			{"itemId": f.item.String(), "quantity": 5, "unitPrice": "10", "taxRatePct": "10"},
		},
		"tenders": []map[string]any{{"instrument": "cash", "amount": "22"}},
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
}

func TestSettlementMismatch(t *testing.T) {
	f := newAPI(t, 10)

	w := f.do(http.MethodPost, "/api/v1/documents", f.saleBody(3, "30"), nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Equal(t, apperror.CodeSettlementMismatch, decode[errorBody](t, w).Code)
	assert.Equal(t, types.NewQuantity(10), f.onHand())
}

func TestInsufficientStock(t *testing.T) {
	f := newAPI(t, 2)

	w := f.do(http.MethodPost, "/api/v1/documents", f.saleBody(3, "33"), nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Equal(t, apperror.CodeInsufficientStock, decode[errorBody](t, w).Code)
}

func TestSessionRequired(t *testing.T) {
	f := newAPI(t, 10)

	w := f.do(http.MethodPost, "/api/v1/documents", f.saleBody(1, "11"), map[string]string{
		middleware.HeaderOperatorID: "",
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, apperror.CodeValidation, decode[errorBody](t, w).Code)

	w = f.do(http.MethodGet, "/api/v1/documents", nil, map[string]string{
		middleware.HeaderLocationID: "not-a-uuid",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIdempotentFinalize(t *testing.T) {
	f := newAPI(t, 10)
	key := map[string]string{middleware.HeaderIdempotencyKey: "till-1-0001"}

	first := f.do(http.MethodPost, "/api/v1/documents", f.saleBody(3, "33"), key)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := f.do(http.MethodPost, "/api/v1/documents", f.saleBody(3, "33"), key)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, types.NewQuantity(7), f.onHand())

	// same key, different body
	w := f.do(http.MethodPost, "/api/v1/documents", f.saleBody(2, "22"), key)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(t, apperror.CodeIdempotency, decode[errorBody](t, w).Code)
}

func TestIdempotentClientErrorIsReplayed(t *testing.T) {
	f := newAPI(t, 10)
	key := map[string]string{middleware.HeaderIdempotencyKey: "till-1-0002"}

	first := f.do(http.MethodPost, "/api/v1/documents", f.saleBody(3, "30"), key)
	require.Equal(t, http.StatusUnprocessableEntity, first.Code)

	second := f.do(http.MethodPost, "/api/v1/documents", f.saleBody(3, "30"), key)
	assert.Equal(t, http.StatusUnprocessableEntity, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestDraftFinalizeAndVoid(t *testing.T) {
	f := newAPI(t, 10)

	body := f.saleBody(2, "22")
	body["finalize"] = false
	w := f.do(http.MethodPost, "/api/v1/documents", body, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	draft := decode[docResult](t, w).Document
	assert.Equal(t, entity.StatusDraft, draft.Status)
	assert.Equal(t, types.NewQuantity(10), f.onHand())

	w = f.do(http.MethodPost, "/api/v1/documents/"+draft.ID.String()+"/finalize", map[string]any{
		"tenders": []map[string]any{{"instrument": "cash", "amount": "22"}},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, types.NewQuantity(8), f.onHand())

	w = f.do(http.MethodPost, "/api/v1/documents/"+draft.ID.String()+"/void", map[string]any{
		"tenders": []map[string]any{{"instrument": "cash", "amount": "22"}},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	voided := decode[docResult](t, w).Document
	assert.Equal(t, entity.StatusVoided, voided.Status)
	assert.Equal(t, types.NewQuantity(10), f.onHand())

	w = f.do(http.MethodGet, "/api/v1/documents?docType=sale", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decode[struct {
		TotalCount int64 `json:"totalCount"`
	}](t, w)
	assert.Equal(t, int64(1), list.TotalCount)
}

func TestLinePrefilledFromCatalog(t *testing.T) {
	f := newAPI(t, 10)

	w := f.do(http.MethodPut, "/api/v1/items/"+f.item.String(), map[string]any{
		"sku": "SKU-1", "name": "Widget", "price": "5", "cost": "3", "taxRatePct": "0",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/api/v1/documents", map[string]any{
		"docType": "sale",
		"lines":   []map[string]any{{"itemId": f.item.String(), "quantity": 2}},
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	doc := decode[docResult](t, w).Document
	assert.True(t, types.MustMoney("10").Equal(doc.GrandTotal))
}
