package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medistore/medistore-api/internal/api/metrics"
	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/internal/core/ports"
)

// OrderHandler handles HTTP requests for order operations. Errors are
// returned to the central error handler.
type OrderHandler struct {
	service ports.OrderService
}

func NewOrderHandler(service ports.OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

// Checkout handles POST /v1/orders/checkout.
//
// @Summary      Place an order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string           false  "Replays return the order created by the first request"
// @Param        body             body      checkoutRequest  true   "Delivery details and cart lines"
// @Success      201              {object}  orderResponse
// @Failure      400              {object}  errorResponse
// @Failure      401              {object}  errorResponse
// @Failure      403              {object}  errorResponse
// @Failure      409              {object}  errorResponse
// @Failure      422              {object}  errorResponse
// @Router       /v1/orders/checkout [post]
func (h *OrderHandler) Checkout(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req checkoutRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	key := c.Request().Header.Get("Idempotency-Key")
	order, err := h.service.Checkout(c.Request().Context(), actor, toCheckoutInput(req, key))
	if err != nil {
		metrics.CheckoutsTotal.WithLabelValues(resultLabel(err)).Inc()
		return err
	}
	metrics.CheckoutsTotal.WithLabelValues("placed").Inc()

	return c.JSON(http.StatusCreated, toOrderResponse(order))
}

// ListMine handles GET /v1/orders/me.
//
// @Summary      List the caller's orders
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Page size (default 10, max 50)"
// @Param        sortBy     query     string  false  "createdAt | total | status"
// @Param        sortOrder  query     string  false  "asc | desc (default desc)"
// @Param        status     query     string  false  "Order status filter"
// @Param        search     query     string  false  "Order id, address or phone"
// @Success      200        {object}  listOrdersResponse
// @Failure      400        {object}  errorResponse
// @Failure      401        {object}  errorResponse
// @Router       /v1/orders/me [get]
func (h *OrderHandler) ListMine(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	in, err := bindListQuery(c)
	if err != nil {
		return err
	}

	page, err := h.service.GetMyOrders(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toListResponse(page))
}

// ListAll handles GET /v1/orders (admin).
//
// @Summary      List every order
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Page size (default 10, max 50)"
// @Param        sortBy      query     string  false  "createdAt | total | status"
// @Param        sortOrder   query     string  false  "asc | desc (default desc)"
// @Param        status      query     string  false  "Order status filter"
// @Param        search      query     string  false  "Order id, address, phone, customer name or email"
// @Param        customerId  query     string  false  "Only orders of this customer"
// @Param        minTotal    query     number  false  "Minimum order total"
// @Param        maxTotal    query     number  false  "Maximum order total"
// @Success      200         {object}  listOrdersResponse
// @Failure      400         {object}  errorResponse
// @Failure      403         {object}  errorResponse
// @Router       /v1/orders [get]
func (h *OrderHandler) ListAll(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	in, err := bindListQuery(c)
	if err != nil {
		return err
	}

	page, err := h.service.GetAllOrders(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toListResponse(page))
}

// Get handles GET /v1/orders/:id.
//
// @Summary      Get one order
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Order id"
// @Success      200  {object}  orderResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/orders/{id} [get]
func (h *OrderHandler) Get(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	order, err := h.service.GetSingleOrder(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(order))
}

// UpdateItems handles PUT /v1/orders/:id/items.
//
// @Summary      Replace the items of a placed order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string              true  "Order id"
// @Param        body  body      updateItemsRequest  true  "New cart lines"
// @Success      200   {object}  orderResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/orders/{id}/items [put]
func (h *OrderHandler) UpdateItems(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req updateItemsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	order, err := h.service.UpdateOrderItems(c.Request().Context(), actor, c.Param("id"), toItemInputs(req.Items))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(order))
}

// Cancel handles PATCH /v1/orders/:id/cancel.
//
// @Summary      Cancel an order
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Order id"
// @Success      200  {object}  orderResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /v1/orders/{id}/cancel [patch]
func (h *OrderHandler) Cancel(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	order, err := h.service.CancelOrder(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	metrics.OrderTransitionsTotal.WithLabelValues(string(order.Status), string(actor.Role)).Inc()
	return c.JSON(http.StatusOK, toOrderResponse(order))
}

// UpdateStatus handles PATCH /v1/orders/:id/status (admin).
//
// @Summary      Change an order status
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string               true  "Order id"
// @Param        body  body      updateStatusRequest  true  "Target status"
// @Success      200   {object}  orderResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/orders/{id}/status [patch]
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req updateStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	order, err := h.service.UpdateOrderStatus(c.Request().Context(), actor, c.Param("id"), req.Status)
	if err != nil {
		return err
	}
	metrics.OrderTransitionsTotal.WithLabelValues(string(order.Status), string(actor.Role)).Inc()
	return c.JSON(http.StatusOK, toOrderResponse(order))
}

// ListSeller handles GET /v1/orders/seller/me.
//
// @Summary      List order lines sold by the caller
// @Tags         seller
// @Produce      json
// @Security     BearerAuth
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Page size (default 10, max 50)"
// @Param        sortBy     query     string  false  "createdAt | total | status"
// @Param        sortOrder  query     string  false  "asc | desc (default desc)"
// @Param        status     query     string  false  "Order status filter"
// @Param        search     query     string  false  "Order id, medicine name, address, phone, customer name or email"
// @Success      200        {object}  listSellerOrdersResponse
// @Failure      400        {object}  errorResponse
// @Failure      403        {object}  errorResponse
// @Router       /v1/orders/seller/me [get]
func (h *OrderHandler) ListSeller(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var q listOrdersQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}

	page, err := h.service.GetSellerOrders(c.Request().Context(), actor, toSellerListInput(q))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSellerListResponse(page))
}

// UpdateStatusBySeller handles PATCH /v1/orders/seller/:id/status.
//
// @Summary      Move an order through fulfilment
// @Tags         seller
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string               true  "Order id"
// @Param        body  body      updateStatusRequest  true  "PROCESSING, SHIPPED or DELIVERED"
// @Success      200   {object}  orderResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/orders/seller/{id}/status [patch]
func (h *OrderHandler) UpdateStatusBySeller(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req updateStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	order, err := h.service.UpdateOrderStatusBySeller(c.Request().Context(), actor, c.Param("id"), req.Status)
	if err != nil {
		return err
	}
	metrics.OrderTransitionsTotal.WithLabelValues(string(order.Status), string(actor.Role)).Inc()
	return c.JSON(http.StatusOK, toOrderResponse(order))
}

func bindListQuery(c echo.Context) (ports.ListOrdersInput, error) {
	var q listOrdersQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return ports.ListOrdersInput{}, echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}
	return toListInput(q)
}

// resultLabel reduces an error to its kind for metric labels.
func resultLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrBusinessRule):
		return "business_rule"
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrUnauthorized):
		return "denied"
	case errors.Is(err, domain.ErrTransient):
		return "transient"
	default:
		return "error"
	}
}
