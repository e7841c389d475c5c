package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/internal/core/ports"
	"github.com/medistore/medistore-api/pkg/pagination"
)

// --- Request → Service input ---

func toItemInputs(items []itemRequest) []ports.ItemInput {
	out := make([]ports.ItemInput, len(items))
	for i, it := range items {
		out[i] = ports.ItemInput{MedicineID: it.MedicineID, Quantity: it.Quantity}
	}
	return out
}

func toCheckoutInput(req checkoutRequest, idempotencyKey string) ports.CheckoutInput {
	return ports.CheckoutInput{
		Address:        req.Address,
		Phone:          req.Phone,
		Items:          toItemInputs(req.Items),
		IdempotencyKey: idempotencyKey,
	}
}

func toListInput(q listOrdersQuery) (ports.ListOrdersInput, error) {
	in := ports.ListOrdersInput{
		Page:       q.Page,
		Limit:      q.Limit,
		SortBy:     q.SortBy,
		SortOrder:  q.SortOrder,
		Status:     strings.ToUpper(strings.TrimSpace(q.Status)),
		Search:     q.Search,
		CustomerID: q.CustomerID,
	}
	var err error
	if in.MinTotal, err = parseAmount("minTotal", q.MinTotal); err != nil {
		return in, err
	}
	if in.MaxTotal, err = parseAmount("maxTotal", q.MaxTotal); err != nil {
		return in, err
	}
	return in, nil
}

func toSellerListInput(q listOrdersQuery) ports.ListSellerOrdersInput {
	return ports.ListSellerOrdersInput{
		Page:      q.Page,
		Limit:     q.Limit,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
		Status:    strings.ToUpper(strings.TrimSpace(q.Status)),
		Search:    q.Search,
	}
}

func parseAmount(name, raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s must be a number", name))
	}
	return &d, nil
}

// --- Service result → HTTP response ---

func toCustomerResponse(c *domain.CustomerSummary) *customerResponse {
	if c == nil {
		return nil
	}
	return &customerResponse{ID: c.ID, Name: c.Name, Email: c.Email}
}

func toItemResponse(it domain.OrderItem) orderItemResponse {
	r := orderItemResponse{
		ID:         it.ID,
		MedicineID: it.MedicineID,
		SellerID:   it.SellerID,
		Quantity:   it.Quantity,
		Price:      it.Price,
		Subtotal:   it.Subtotal(),
	}
	if it.Medicine != nil {
		r.Medicine = &medicineSummaryResponse{
			ID:           it.Medicine.ID,
			Name:         it.Medicine.Name,
			Manufacturer: it.Medicine.Manufacturer,
			Price:        it.Medicine.Price,
			Status:       string(it.Medicine.Status),
		}
	}
	return r
}

func toOrderResponse(o *domain.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = toItemResponse(it)
	}
	var history []statusHistoryResponse
	for _, h := range o.StatusHistory {
		history = append(history, statusHistoryResponse{
			Status:    string(h.Status),
			ActorRole: string(h.ActorRole),
			Timestamp: h.Timestamp.UTC(),
		})
	}
	return orderResponse{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		Customer:      toCustomerResponse(o.Customer),
		Address:       o.Address,
		Phone:         o.Phone,
		Total:         o.Total,
		Status:        string(o.Status),
		Items:         items,
		StatusHistory: history,
		CreatedAt:     o.CreatedAt.UTC(),
		UpdatedAt:     o.UpdatedAt.UTC(),
		Links:         orderLinks{Self: "/v1/orders/" + o.ID},
	}
}

func toPaginationResponse(m pagination.Meta) paginationResponse {
	return paginationResponse{
		Total:      m.Total,
		Page:       m.Page,
		Limit:      m.Limit,
		TotalPages: m.TotalPages,
	}
}

func toListResponse(p *ports.OrderPage) listOrdersResponse {
	data := make([]orderResponse, len(p.Items))
	for i, o := range p.Items {
		data[i] = toOrderResponse(o)
	}
	return listOrdersResponse{Data: data, Pagination: toPaginationResponse(p.Meta)}
}

func toSellerListResponse(p *ports.SellerOrderPage) listSellerOrdersResponse {
	data := make([]sellerOrderItemResponse, len(p.Items))
	for i, it := range p.Items {
		data[i] = sellerOrderItemResponse{
			orderItemResponse: toItemResponse(it.OrderItem),
			Order: sellerOrderHeaderResponse{
				ID:        it.Order.ID,
				Status:    string(it.Order.Status),
				Total:     it.Order.Total,
				Address:   it.Order.Address,
				Phone:     it.Order.Phone,
				Customer:  toCustomerResponse(it.Order.Customer),
				CreatedAt: it.Order.CreatedAt.UTC(),
			},
		}
	}
	return listSellerOrdersResponse{Data: data, Pagination: toPaginationResponse(p.Meta)}
}
