package handler

import (
	"time"

	"github.com/shopspring/decimal"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request types ---

type itemRequest struct {
	MedicineID string `json:"medicine_id" validate:"required"`
	Quantity   int    `json:"quantity"    validate:"required,gte=1"`
}

type checkoutRequest struct {
	Address string        `json:"address" validate:"required,notblank"`
	Phone   string        `json:"phone"   validate:"required,notblank"`
	Items   []itemRequest `json:"items"   validate:"required,min=1,dive"`
}

type updateItemsRequest struct {
	Items []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,order_status"`
}

// listOrdersQuery is bound from the query string of every order listing.
type listOrdersQuery struct {
	Page       int    `query:"page"`
	Limit      int    `query:"limit"`
	SortBy     string `query:"sortBy"`
	SortOrder  string `query:"sortOrder"`
	Status     string `query:"status"`
	Search     string `query:"search"`
	CustomerID string `query:"customerId"`
	MinTotal   string `query:"minTotal"`
	MaxTotal   string `query:"maxTotal"`
}

// --- Response types ---
// Owned by the transport layer so the JSON contract is not coupled to
// domain structs.

type customerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type medicineSummaryResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Manufacturer string          `json:"manufacturer,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Status       string          `json:"status,omitempty"`
}

type orderItemResponse struct {
	ID         string                   `json:"id"`
	MedicineID string                   `json:"medicine_id"`
	SellerID   string                   `json:"seller_id"`
	Quantity   int                      `json:"quantity"`
	Price      decimal.Decimal          `json:"price"`
	Subtotal   decimal.Decimal          `json:"subtotal"`
	Medicine   *medicineSummaryResponse `json:"medicine,omitempty"`
}

type statusHistoryResponse struct {
	Status    string    `json:"status"`
	ActorRole string    `json:"actor_role"`
	Timestamp time.Time `json:"timestamp"`
}

type orderLinks struct {
	Self string `json:"self"`
}

type orderResponse struct {
	ID            string                  `json:"id"`
	CustomerID    string                  `json:"customer_id"`
	Customer      *customerResponse       `json:"customer,omitempty"`
	Address       string                  `json:"address"`
	Phone         string                  `json:"phone"`
	Total         decimal.Decimal         `json:"total"`
	Status        string                  `json:"status"`
	Items         []orderItemResponse     `json:"items"`
	StatusHistory []statusHistoryResponse `json:"status_history,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
	Links         orderLinks              `json:"_links"`
}

type sellerOrderHeaderResponse struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Total     decimal.Decimal   `json:"total"`
	Address   string            `json:"address"`
	Phone     string            `json:"phone"`
	Customer  *customerResponse `json:"customer,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type sellerOrderItemResponse struct {
	orderItemResponse
	Order sellerOrderHeaderResponse `json:"order"`
}

type paginationResponse struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

type listOrdersResponse struct {
	Data       []orderResponse    `json:"data"`
	Pagination paginationResponse `json:"pagination"`
}

type listSellerOrdersResponse struct {
	Data       []sellerOrderItemResponse `json:"data"`
	Pagination paginationResponse        `json:"pagination"`
}
