package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderEventType names a committed order mutation.
type OrderEventType string

const (
	EventOrderPlaced        OrderEventType = "order.placed"
	EventOrderItemsUpdated  OrderEventType = "order.items_updated"
	EventOrderCancelled     OrderEventType = "order.cancelled"
	EventOrderStatusChanged OrderEventType = "order.status_changed"
)

// EventLine is the per-line payload carried by order events.
type EventLine struct {
	MedicineID string          `json:"medicine_id"`
	SellerID   string          `json:"seller_id"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

// OrderEvent is emitted after a mutation has been committed.
type OrderEvent struct {
	Type           OrderEventType  `json:"type"`
	OrderID        string          `json:"order_id"`
	CustomerID     string          `json:"customer_id"`
	Status         OrderStatus     `json:"status"`
	PreviousStatus OrderStatus     `json:"previous_status,omitempty"`
	Total          decimal.Decimal `json:"total"`
	Lines          []EventLine     `json:"lines,omitempty"`
	ActorID        string          `json:"actor_id"`
	ActorRole      Role            `json:"actor_role"`
	OccurredAt     time.Time       `json:"occurred_at"`

	// Trace carries the propagation headers of the request that caused the
	// event, so asynchronous delivery joins the same trace.
	Trace map[string]string `json:"-"`
}

// NewOrderEvent builds an event snapshot of o.
func NewOrderEvent(t OrderEventType, o *Order, prev OrderStatus, actor Identity, at time.Time) OrderEvent {
	lines := make([]EventLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, EventLine{
			MedicineID: it.MedicineID,
			SellerID:   it.SellerID,
			Quantity:   it.Quantity,
			Price:      it.Price,
		})
	}
	return OrderEvent{
		Type:           t,
		OrderID:        o.ID,
		CustomerID:     o.CustomerID,
		Status:         o.Status,
		PreviousStatus: prev,
		Total:          o.Total,
		Lines:          lines,
		ActorID:        actor.UserID,
		ActorRole:      actor.Role,
		OccurredAt:     at,
	}
}
