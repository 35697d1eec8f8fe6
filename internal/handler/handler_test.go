package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"settlepos/internal/apierror"
	"settlepos/internal/dto"
	"settlepos/internal/middleware"
	"settlepos/internal/model"
	"settlepos/internal/repository"
	"settlepos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() { gin.SetMode(gin.TestMode) }

// ── Stubs ────────────────────────────────────────────────────────────────────

// stubOrderService answers the handful of calls these tests make; any other
// method panics on the nil embedded interface.
type stubOrderService struct {
	service.OrderService
	snap      *dto.OrderSnapshot
	err       error
	lastActor service.Actor
	lastAdd   dto.AddItemRequest
}

func (s *stubOrderService) OpenOrder(_ context.Context, actor service.Actor, _ dto.OpenOrderRequest) (*dto.OrderSnapshot, error) {
	s.lastActor = actor
	return s.snap, s.err
}

func (s *stubOrderService) AddItem(_ context.Context, actor service.Actor, _ uuid.UUID, req dto.AddItemRequest) (*dto.OrderSnapshot, error) {
	s.lastActor, s.lastAdd = actor, req
	return s.snap, s.err
}

func (s *stubOrderService) CompItem(context.Context, service.Actor, uuid.UUID, dto.CompItemRequest) (*dto.OrderSnapshot, error) {
	return s.snap, s.err
}

func (s *stubOrderService) GetOrder(context.Context, uuid.UUID) (*dto.OrderSnapshot, error) {
	return s.snap, s.err
}

type stubSource struct{ ch chan []byte }

func (s *stubSource) Subscribe(context.Context, uuid.UUID) (<-chan []byte, error) { return s.ch, nil }

// streamRecorder adds the CloseNotify gin's Stream expects.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *streamRecorder) CloseNotify() <-chan bool { return r.closed }

var testActorID = uuid.New()

// withClaims stands in for JWTAuth.
func withClaims(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ClaimsKey, &middleware.JWTClaims{UserID: testActorID.String(), Username: "ana", Role: role, Typ: "access"})
		c.Next()
	}
}

func newRouter(svc *stubOrderService, claims bool) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Localize("en"))
	if claims {
		r.Use(withClaims("cashier"))
	}
	h := NewOrdersHandler(svc)
	r.POST("/v1/orders", h.OpenOrder)
	r.GET("/v1/orders/:id", h.GetOrder)
	r.POST("/v1/orders/:id/items", h.AddItem)
	r.POST("/v1/orders/:id/items/comp", h.CompItem)
	return r
}

func do(r http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apierror.APIError {
	t.Helper()
	var body apierror.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// ── Orders ───────────────────────────────────────────────────────────────────

func TestOpenOrder_Created(t *testing.T) {
	svc := &stubOrderService{snap: &dto.OrderSnapshot{ID: uuid.NewString(), ReceiptNumber: 7, Status: "OPEN"}}
	w := do(newRouter(svc, true), http.MethodPost, "/v1/orders", `{"command_id":"`+uuid.NewString()+`"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"receipt_number":7`)
	assert.Equal(t, testActorID, svc.lastActor.ID)
	assert.Equal(t, "cashier", svc.lastActor.Role)
}

func TestAddItem_PassesRequest(t *testing.T) {
	svc := &stubOrderService{snap: &dto.OrderSnapshot{Status: "OPEN"}}
	productID := uuid.NewString()
	body := `{"command_id":"` + uuid.NewString() + `","product_id":"` + productID + `","quantity":2}`

	w := do(newRouter(svc, true), http.MethodPost, "/v1/orders/"+uuid.NewString()+"/items", body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, productID, svc.lastAdd.ProductID)
	assert.Equal(t, 2, svc.lastAdd.Quantity)
}

func TestAddItem_ValidationFields(t *testing.T) {
	svc := &stubOrderService{}
	w := do(newRouter(svc, true), http.MethodPost, "/v1/orders/"+uuid.NewString()+"/items", `{"command_id":"nope","quantity":0}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, apierror.ErrValidation.Code, body.Code)
	assert.Equal(t, "uuid", body.Fields["command_id"])
	assert.Equal(t, "required", body.Fields["product_id"])
	assert.Equal(t, "required", body.Fields["quantity"])
}

func TestCommand_BadOrderID(t *testing.T) {
	w := do(newRouter(&stubOrderService{}, true), http.MethodPost, "/v1/orders/abc/items", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "uuid", decodeError(t, w).Fields["id"])
}

func TestCommand_MalformedJSON(t *testing.T) {
	w := do(newRouter(&stubOrderService{}, true), http.MethodPost, "/v1/orders", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apierror.ErrInvalidRequest.Code, decodeError(t, w).Code)
}

func TestCommand_RequiresActor(t *testing.T) {
	w := do(newRouter(&stubOrderService{}, false), http.MethodPost, "/v1/orders", `{"command_id":"`+uuid.NewString()+`"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCommand_ErrorIsLocalized(t *testing.T) {
	svc := &stubOrderService{err: apierror.ErrEscalationRequired.With("compItem needs item.comp")}
	body := `{"command_id":"` + uuid.NewString() + `","item_id":"` + uuid.NewString() + `","quantity":1,"reason":"cold"}`
	path := "/v1/orders/" + uuid.NewString() + "/items/comp"

	w := do(newRouter(svc, true), http.MethodPost, path, body, "Accept-Language", "es-AR,es;q=0.9")
	assert.Equal(t, http.StatusForbidden, w.Code)
	got := decodeError(t, w)
	assert.Equal(t, apierror.Code("E2002"), got.Code)
	assert.Equal(t, apierror.CommandCode("ESCALATION_REQUIRED"), got.CommandCode)
	assert.Equal(t, "Se requiere autorizacion de un supervisor.", got.Detail)
	assert.NotContains(t, w.Body.String(), "item.comp")
}

func TestInternalError_NotLeaked(t *testing.T) {
	svc := &stubOrderService{err: apierror.ErrDatabase.Wrap(assert.AnError)}
	w := do(newRouter(svc, true), http.MethodGet, "/v1/orders/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}

// ── Stream ───────────────────────────────────────────────────────────────────

func TestStream_SendsCurrentThenUpdates(t *testing.T) {
	id := uuid.New()
	svc := &stubOrderService{snap: &dto.OrderSnapshot{ID: id.String(), Version: 1}}
	src := &stubSource{ch: make(chan []byte, 2)}
	src.ch <- []byte(`{"id":"` + id.String() + `","version":2}`)
	close(src.ch)

	h := NewStreamHandler(svc, src)
	h.heartbeat = time.Hour
	r := gin.New()
	r.GET("/v1/orders/:id/stream", h.Stream)

	w := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool)}
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/orders/"+id.String()+"/stream", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	out := w.Body.String()
	assert.Equal(t, 2, strings.Count(out, "event:snapshot"))
	assert.Less(t, strings.Index(out, `"version":1`), strings.Index(out, `"version":2`))
}

func TestStream_UnknownOrder(t *testing.T) {
	svc := &stubOrderService{err: apierror.ErrOrderNotFound}
	h := NewStreamHandler(svc, &stubSource{ch: make(chan []byte)})
	r := gin.New()
	r.GET("/v1/orders/:id/stream", h.Stream)

	w := do(r, http.MethodGet, "/v1/orders/"+uuid.NewString()+"/stream", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ── Products ─────────────────────────────────────────────────────────────────

type stubProducts struct {
	repository.ProductRepository
	product *model.Product
}

func (s *stubProducts) FindBySKU(_ context.Context, sku string) (*model.Product, error) {
	if s.product == nil || s.product.SKU != sku {
		return nil, gorm.ErrRecordNotFound
	}
	return s.product, nil
}

func TestProductBySKU(t *testing.T) {
	p := &model.Product{
		ID: uuid.New(), SKU: "LAT", Name: "Latte", Price: decimal.RequireFromString("12.50"), Active: true,
		Options: []model.ProductOption{{ID: "oat", Name: "Oat milk", PriceDelta: decimal.RequireFromString("1.00")}},
	}
	h := NewProductsHandler(&stubProducts{product: p}, nil)
	r := gin.New()
	r.GET("/v1/products/sku/:sku", h.GetBySKU)

	w := do(r, http.MethodGet, "/v1/products/sku/LAT", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.ProductResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, p.ID.String(), resp.ID)
	require.Len(t, resp.Options, 1)
	assert.Equal(t, "oat", resp.Options[0].ID)

	w = do(r, http.MethodGet, "/v1/products/sku/NOPE", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apierror.ErrProductNotFound.Code, decodeError(t, w).Code)
}
