package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/medistore/medistore-api/internal/api/middleware"
	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/internal/core/ports"
	"github.com/medistore/medistore-api/pkg/pagination"
)

// stubOrderService embeds the interface so tests only implement what they call.
type stubOrderService struct {
	ports.OrderService

	checkoutFn     func(ctx context.Context, actor domain.Identity, in ports.CheckoutInput) (*domain.Order, error)
	myOrdersFn     func(ctx context.Context, actor domain.Identity, in ports.ListOrdersInput) (*ports.OrderPage, error)
	allOrdersFn    func(ctx context.Context, actor domain.Identity, in ports.ListOrdersInput) (*ports.OrderPage, error)
	getFn          func(ctx context.Context, actor domain.Identity, id string) (*domain.Order, error)
	sellerOrdersFn func(ctx context.Context, actor domain.Identity, in ports.ListSellerOrdersInput) (*ports.SellerOrderPage, error)
	sellerStatusFn func(ctx context.Context, actor domain.Identity, id, status string) (*domain.Order, error)
}

func (s *stubOrderService) Checkout(ctx context.Context, actor domain.Identity, in ports.CheckoutInput) (*domain.Order, error) {
	return s.checkoutFn(ctx, actor, in)
}

func (s *stubOrderService) GetMyOrders(ctx context.Context, actor domain.Identity, in ports.ListOrdersInput) (*ports.OrderPage, error) {
	return s.myOrdersFn(ctx, actor, in)
}

func (s *stubOrderService) GetAllOrders(ctx context.Context, actor domain.Identity, in ports.ListOrdersInput) (*ports.OrderPage, error) {
	return s.allOrdersFn(ctx, actor, in)
}

func (s *stubOrderService) GetSingleOrder(ctx context.Context, actor domain.Identity, id string) (*domain.Order, error) {
	return s.getFn(ctx, actor, id)
}

func (s *stubOrderService) GetSellerOrders(ctx context.Context, actor domain.Identity, in ports.ListSellerOrdersInput) (*ports.SellerOrderPage, error) {
	return s.sellerOrdersFn(ctx, actor, in)
}

func (s *stubOrderService) UpdateOrderStatusBySeller(ctx context.Context, actor domain.Identity, id, status string) (*domain.Order, error) {
	return s.sellerStatusFn(ctx, actor, id, status)
}

func sampleOrder() *domain.Order {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Order{
		ID:         "ord-1",
		CustomerID: "cust-1",
		Address:    "1 Main St",
		Phone:      "555-0100",
		Status:     domain.StatusPlaced,
		Total:      decimal.RequireFromString("21.00"),
		Items: []domain.OrderItem{{
			ID: "it-1", MedicineID: "med-a", SellerID: "seller-1", Quantity: 2,
			Price:    decimal.RequireFromString("10.50"),
			Medicine: &domain.MedicineSummary{ID: "med-a", Name: "Aspirin"},
		}},
		StatusHistory: []domain.StatusHistoryEntry{{Status: domain.StatusPlaced, ActorRole: domain.RoleCustomer, Timestamp: at}},
		CreatedAt:     at,
		UpdatedAt:     at,
	}
}

func authed(c echo.Context, userID string, role domain.Role) {
	middleware.WithIdentity(c, domain.Identity{UserID: userID, Role: role})
}

func TestOrderHandler_Checkout_Success(t *testing.T) {
	e := newEcho()
	stub := &stubOrderService{
		checkoutFn: func(ctx context.Context, actor domain.Identity, in ports.CheckoutInput) (*domain.Order, error) {
			if actor.UserID != "cust-1" || actor.Role != domain.RoleCustomer {
				t.Fatalf("unexpected actor: %+v", actor)
			}
			if in.IdempotencyKey != "key-1" || len(in.Items) != 1 || in.Items[0].Quantity != 2 {
				t.Fatalf("unexpected input: %+v", in)
			}
			return sampleOrder(), nil
		},
	}
	h := NewOrderHandler(stub)

	body := `{"address":"1 Main St","phone":"555-0100","items":[{"medicine_id":"med-a","quantity":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/orders/checkout", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	authed(c, "cust-1", domain.RoleCustomer)

	if err := h.Checkout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp orderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.ID != "ord-1" || resp.Status != "PLACED" || resp.Links.Self != "/v1/orders/ord-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !resp.Items[0].Subtotal.Equal(decimal.RequireFromString("21")) {
		t.Fatalf("unexpected subtotal %s", resp.Items[0].Subtotal)
	}
}

func TestOrderHandler_Checkout_RejectsBadPayload(t *testing.T) {
	cases := map[string]string{
		"empty items":   `{"address":"a","phone":"p","items":[]}`,
		"zero quantity": `{"address":"a","phone":"p","items":[{"medicine_id":"m","quantity":0}]}`,
		"no address":    `{"phone":"p","items":[{"medicine_id":"m","quantity":1}]}`,
		"no medicine":   `{"address":"a","phone":"p","items":[{"quantity":1}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEcho()
			stub := &stubOrderService{
				checkoutFn: func(ctx context.Context, actor domain.Identity, in ports.CheckoutInput) (*domain.Order, error) {
					t.Fatalf("should not be called")
					return nil, nil
				},
			}
			h := NewOrderHandler(stub)

			req := httptest.NewRequest(http.MethodPost, "/v1/orders/checkout", strings.NewReader(body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			authed(c, "cust-1", domain.RoleCustomer)

			if code := httpCode(h.Checkout(c)); code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", code)
			}
		})
	}
}

func TestOrderHandler_Checkout_MissingIdentity(t *testing.T) {
	e := newEcho()
	h := NewOrderHandler(&stubOrderService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/orders/checkout", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if code := httpCode(h.Checkout(c)); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestOrderHandler_Checkout_PropagatesDomainError(t *testing.T) {
	e := newEcho()
	stub := &stubOrderService{
		checkoutFn: func(ctx context.Context, actor domain.Identity, in ports.CheckoutInput) (*domain.Order, error) {
			return nil, domain.ErrInsufficientStock
		},
	}
	h := NewOrderHandler(stub)

	body := `{"address":"a","phone":"p","items":[{"medicine_id":"m","quantity":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/orders/checkout", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	authed(c, "cust-1", domain.RoleCustomer)

	if err := h.Checkout(c); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestOrderHandler_ListAll_ParsesQuery(t *testing.T) {
	e := newEcho()
	stub := &stubOrderService{
		allOrdersFn: func(ctx context.Context, actor domain.Identity, in ports.ListOrdersInput) (*ports.OrderPage, error) {
			if in.Page != 2 || in.Limit != 5 || in.SortBy != "total" || in.SortOrder != "asc" {
				t.Fatalf("unexpected paging: %+v", in)
			}
			if in.Status != "SHIPPED" || in.CustomerID != "cust-9" {
				t.Fatalf("unexpected filters: %+v", in)
			}
			if in.MinTotal == nil || !in.MinTotal.Equal(decimal.RequireFromString("10.5")) || in.MaxTotal != nil {
				t.Fatalf("unexpected totals: %v %v", in.MinTotal, in.MaxTotal)
			}
			return &ports.OrderPage{
				Items: []*domain.Order{sampleOrder()},
				Meta:  pagination.Meta{Page: 2, Limit: 5, Total: 6, TotalPages: 2},
			}, nil
		},
	}
	h := NewOrderHandler(stub)

	req := httptest.NewRequest(http.MethodGet,
		"/v1/orders?page=2&limit=5&sortBy=total&sortOrder=asc&status=shipped&customerId=cust-9&minTotal=10.5", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	authed(c, "admin-1", domain.RoleAdmin)

	if err := h.ListAll(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp listOrdersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Data) != 1 || resp.Pagination.Total != 6 || resp.Pagination.TotalPages != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestOrderHandler_ListAll_RejectsBadAmount(t *testing.T) {
	e := newEcho()
	h := NewOrderHandler(&stubOrderService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/orders?maxTotal=lots", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	authed(c, "admin-1", domain.RoleAdmin)

	if code := httpCode(h.ListAll(c)); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestOrderHandler_ListMine_RejectsNonNumericPage(t *testing.T) {
	e := newEcho()
	h := NewOrderHandler(&stubOrderService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/orders/me?page=two", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	authed(c, "cust-1", domain.RoleCustomer)

	if code := httpCode(h.ListMine(c)); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestOrderHandler_Get_UsesPathParam(t *testing.T) {
	e := newEcho()
	stub := &stubOrderService{
		getFn: func(ctx context.Context, actor domain.Identity, id string) (*domain.Order, error) {
			if id != "ord-1" {
				t.Fatalf("unexpected id %q", id)
			}
			return nil, domain.ErrOrderNotFound
		},
	}
	h := NewOrderHandler(stub)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/orders/:id")
	c.SetParamNames("id")
	c.SetParamValues("ord-1")
	authed(c, "cust-1", domain.RoleCustomer)

	if err := h.Get(c); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrderHandler_ListSeller(t *testing.T) {
	e := newEcho()
	order := sampleOrder()
	stub := &stubOrderService{
		sellerOrdersFn: func(ctx context.Context, actor domain.Identity, in ports.ListSellerOrdersInput) (*ports.SellerOrderPage, error) {
			if actor.Role != domain.RoleSeller || in.Search != "aspirin" {
				t.Fatalf("unexpected call: %+v %+v", actor, in)
			}
			return &ports.SellerOrderPage{
				Items: []*domain.SellerOrderItem{{
					OrderItem: order.Items[0],
					Order:     domain.SellerOrderHeader{ID: order.ID, Status: order.Status, Total: order.Total, CreatedAt: order.CreatedAt},
				}},
				Meta: pagination.Meta{Page: 1, Limit: 10, Total: 1, TotalPages: 1},
			}, nil
		},
	}
	h := NewOrderHandler(stub)

	req := httptest.NewRequest(http.MethodGet, "/v1/orders/seller/me?search=aspirin", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	authed(c, "seller-1", domain.RoleSeller)

	if err := h.ListSeller(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	data := resp["data"].([]any)
	line := data[0].(map[string]any)
	if line["medicine_id"] != "med-a" || line["order"].(map[string]any)["id"] != "ord-1" {
		t.Fatalf("unexpected seller line: %+v", line)
	}
}

func TestOrderHandler_UpdateStatusBySeller_ValidatesStatus(t *testing.T) {
	e := newEcho()
	called := false
	stub := &stubOrderService{
		sellerStatusFn: func(ctx context.Context, actor domain.Identity, id, status string) (*domain.Order, error) {
			called = true
			o := sampleOrder()
			o.Status = domain.OrderStatus(status)
			return o, nil
		},
	}
	h := NewOrderHandler(stub)

	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"LOST"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	authed(c, "seller-1", domain.RoleSeller)

	if code := httpCode(h.UpdateStatusBySeller(c)); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if called {
		t.Fatalf("service must not be called for an unknown status")
	}

	req = httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"SHIPPED"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("ord-1")
	authed(c, "seller-1", domain.RoleSeller)

	if err := h.UpdateStatusBySeller(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"SHIPPED"`) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}
