package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/pkg/pagination"
)

// ItemInput is one cart line as submitted by the client.
type ItemInput struct {
	MedicineID string
	Quantity   int
}

// CheckoutInput carries everything needed to place an order.
type CheckoutInput struct {
	Address string
	Phone   string
	Items   []ItemInput
	// IdempotencyKey is optional; a replay with the same key returns the
	// order created by the first request.
	IdempotencyKey string
}

// ListOrdersInput carries the raw listing parameters for customer and admin views.
type ListOrdersInput struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
	Status    string
	Search    string
	// Admin-only filters; ignored for the customer's own listing.
	CustomerID string
	MinTotal   *decimal.Decimal
	MaxTotal   *decimal.Decimal
}

// ListSellerOrdersInput carries the raw listing parameters for the seller view.
type ListSellerOrdersInput struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
	Status    string
	Search    string
}

// OrderPage is one page of orders.
type OrderPage struct {
	Items []*domain.Order
	Meta  pagination.Meta
}

// SellerOrderPage is one page of seller-scoped order lines.
type SellerOrderPage struct {
	Items []*domain.SellerOrderItem
	Meta  pagination.Meta
}

// OrderService exposes the order/inventory core to transports.
type OrderService interface {
	Checkout(ctx context.Context, actor domain.Identity, input CheckoutInput) (*domain.Order, error)
	GetMyOrders(ctx context.Context, actor domain.Identity, input ListOrdersInput) (*OrderPage, error)
	GetAllOrders(ctx context.Context, actor domain.Identity, input ListOrdersInput) (*OrderPage, error)
	GetSingleOrder(ctx context.Context, actor domain.Identity, orderID string) (*domain.Order, error)
	UpdateOrderItems(ctx context.Context, actor domain.Identity, orderID string, items []ItemInput) (*domain.Order, error)
	CancelOrder(ctx context.Context, actor domain.Identity, orderID string) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, actor domain.Identity, orderID, status string) (*domain.Order, error)
	GetSellerOrders(ctx context.Context, actor domain.Identity, input ListSellerOrdersInput) (*SellerOrderPage, error)
	UpdateOrderStatusBySeller(ctx context.Context, actor domain.Identity, orderID, status string) (*domain.Order, error)
}
