package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the fulfillment state of an order.
type OrderStatus string

const (
	StatusPlaced     OrderStatus = "PLACED"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusShipped    OrderStatus = "SHIPPED"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

// AllOrderStatuses lists every valid status in lifecycle order.
var AllOrderStatuses = []OrderStatus{
	StatusPlaced, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled,
}

// validTransitions defines the allowed state machine transitions.
// DELIVERED and CANCELLED are terminal.
var validTransitions = map[OrderStatus][]OrderStatus{
	StatusPlaced:     {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
}

// sellerSettable is the subset of statuses a seller may apply.
var sellerSettable = map[OrderStatus]bool{
	StatusProcessing: true,
	StatusShipped:    true,
	StatusDelivered:  true,
}

// ParseOrderStatus validates a raw status value.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(raw)
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	for _, known := range AllOrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether a transition from current status to next is valid.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// Cancellable reports whether the cancel workflow (which restores stock) may
// run. Once goods have left the seller the order can no longer be cancelled
// through it.
func (s OrderStatus) Cancellable() bool {
	return s == StatusPlaced || s == StatusProcessing
}

// SellerCanSet reports whether a seller is allowed to apply this status.
func (s OrderStatus) SellerCanSet() bool {
	return sellerSettable[s]
}

// OrderItem is one line of an order with the seller and price snapshotted at
// the time the line was (re)created.
type OrderItem struct {
	ID         string           `json:"id"`
	OrderID    string           `json:"order_id"`
	MedicineID string           `json:"medicine_id"`
	SellerID   string           `json:"seller_id"`
	Quantity   int              `json:"quantity"`
	Price      decimal.Decimal  `json:"price"`
	Medicine   *MedicineSummary `json:"medicine,omitempty"`
}

// Subtotal is price × quantity for the line.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// StatusHistoryEntry records a single status write on an order.
type StatusHistoryEntry struct {
	Status    OrderStatus `json:"status"`
	ActorRole Role        `json:"actor_role"`
	Timestamp time.Time   `json:"timestamp"`
}

// Order is the aggregate root: header, line items and status history are
// always written together.
type Order struct {
	ID            string               `json:"id"`
	CustomerID    string               `json:"customer_id"`
	Customer      *CustomerSummary     `json:"customer,omitempty"`
	Address       string               `json:"address"`
	Phone         string               `json:"phone"`
	Total         decimal.Decimal      `json:"total"`
	Status        OrderStatus          `json:"status"`
	Items         []OrderItem          `json:"items"`
	StatusHistory []StatusHistoryEntry `json:"status_history,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// SumItems returns Σ price × quantity over items.
func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// HasSeller reports whether at least one line belongs to sellerID.
func (o *Order) HasSeller(sellerID string) bool {
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			return true
		}
	}
	return false
}

// Quantities returns the reserved quantity per medicine id.
func (o *Order) Quantities() map[string]int {
	q := make(map[string]int, len(o.Items))
	for _, it := range o.Items {
		q[it.MedicineID] += it.Quantity
	}
	return q
}

// SellerOrderItem is a seller-scoped view: one of the seller's lines together
// with its parent order header.
type SellerOrderItem struct {
	OrderItem
	Order SellerOrderHeader `json:"order"`
}

// SellerOrderHeader is the parent-order projection shown to sellers.
type SellerOrderHeader struct {
	ID        string           `json:"id"`
	Status    OrderStatus      `json:"status"`
	Total     decimal.Decimal  `json:"total"`
	Address   string           `json:"address"`
	Phone     string           `json:"phone"`
	Customer  *CustomerSummary `json:"customer,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
