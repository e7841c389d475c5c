package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/internal/core/ports"
	"github.com/medistore/medistore-api/pkg/pagination"
)

// Sort keys accepted by every listing; anything else falls back to createdAt.
var orderSortFields = []string{"createdAt", "total", "status"}

const defaultSortField = "createdAt"

// GetMyOrders lists the caller's own orders.
func (s *OrderService) GetMyOrders(ctx context.Context, actor domain.Identity, in ports.ListOrdersInput) (*ports.OrderPage, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	filter, err := s.orderFilter(in)
	if err != nil {
		return nil, err
	}
	filter.CustomerID = actor.UserID
	filter.MinTotal, filter.MaxTotal = nil, nil

	return s.listOrders(ctx, filter)
}

// GetAllOrders is the admin listing across every customer.
func (s *OrderService) GetAllOrders(ctx context.Context, actor domain.Identity, in ports.ListOrdersInput) (*ports.OrderPage, error) {
	if err := requireRole(actor, "admin only", domain.RoleAdmin); err != nil {
		return nil, err
	}
	filter, err := s.orderFilter(in)
	if err != nil {
		return nil, err
	}
	if in.MinTotal != nil && in.MaxTotal != nil && in.MinTotal.GreaterThan(*in.MaxTotal) {
		return nil, fmt.Errorf("%w: minTotal must not exceed maxTotal", domain.ErrValidation)
	}
	filter.CustomerID = strings.TrimSpace(in.CustomerID)
	filter.MinTotal = in.MinTotal
	filter.MaxTotal = in.MaxTotal

	return s.listOrders(ctx, filter)
}

// GetSellerOrders lists the order lines that belong to the calling seller,
// each with its parent order header. Admins see every seller's lines.
func (s *OrderService) GetSellerOrders(ctx context.Context, actor domain.Identity, in ports.ListSellerOrdersInput) (*ports.SellerOrderPage, error) {
	if err := requireRole(actor, "only seller can view seller orders", domain.RoleSeller, domain.RoleAdmin); err != nil {
		return nil, err
	}
	status, err := optionalStatus(in.Status)
	if err != nil {
		return nil, err
	}

	filter := ports.SellerItemFilter{
		Status: status,
		Search: strings.TrimSpace(in.Search),
		Sort:   pagination.NewSort(in.SortBy, in.SortOrder, orderSortFields, defaultSortField),
		Page:   pagination.NewPage(in.Page, in.Limit, s.opts.MaxPageSize),
	}
	if actor.Role == domain.RoleSeller {
		filter.SellerID = actor.UserID
	}

	items, total, err := s.store.ListSellerItems(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Str("seller_id", actor.UserID).Msg("failed to list seller orders")
		return nil, err
	}
	return &ports.SellerOrderPage{Items: items, Meta: pagination.BuildMeta(filter.Page, total)}, nil
}

func (s *OrderService) orderFilter(in ports.ListOrdersInput) (ports.OrderFilter, error) {
	status, err := optionalStatus(in.Status)
	if err != nil {
		return ports.OrderFilter{}, err
	}
	return ports.OrderFilter{
		Status: status,
		Search: strings.TrimSpace(in.Search),
		Sort:   pagination.NewSort(in.SortBy, in.SortOrder, orderSortFields, defaultSortField),
		Page:   pagination.NewPage(in.Page, in.Limit, s.opts.MaxPageSize),
	}, nil
}

func (s *OrderService) listOrders(ctx context.Context, filter ports.OrderFilter) (*ports.OrderPage, error) {
	orders, total, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Str("customer_id", filter.CustomerID).Msg("failed to list orders")
		return nil, err
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	return &ports.OrderPage{Items: orders, Meta: pagination.BuildMeta(filter.Page, total)}, nil
}

// optionalStatus parses a status filter; empty means no filter.
func optionalStatus(raw string) (domain.OrderStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	return domain.ParseOrderStatus(raw)
}
