package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/pkg/pagination"
)

// OrderFilter carries all query parameters for listing orders.
type OrderFilter struct {
	CustomerID string             // empty = every customer (admin)
	Status     domain.OrderStatus // optional
	MinTotal   *decimal.Decimal   // optional: total >= MinTotal
	MaxTotal   *decimal.Decimal   // optional: total <= MaxTotal
	Search     string             // optional: partial match on id, address, phone, customer name/email
	Sort       pagination.Sort
	Page       pagination.Page
}

// SellerItemFilter carries the query parameters for a seller's order lines.
// Sorting always applies to the parent order.
type SellerItemFilter struct {
	SellerID string
	Status   domain.OrderStatus
	Search   string // order id, medicine name, address, phone, customer name/email
	Sort     pagination.Sort
	Page     pagination.Page
}

// OrderStore is the persistence boundary of the order core.
type OrderStore interface {
	// WithinTx runs fn in a single transaction. Every write made through tx
	// becomes visible together, or not at all when fn returns an error. fn
	// must use the context it is handed.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx OrderTx) error) error

	// FindMedicines bulk-loads medicine snapshots. Unknown ids are omitted.
	FindMedicines(ctx context.Context, ids []string) ([]*domain.Medicine, error)
	// FindOrder returns the fully materialized order or domain.ErrOrderNotFound.
	FindOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]*domain.Order, int64, error)
	ListSellerItems(ctx context.Context, filter SellerItemFilter) ([]*domain.SellerOrderItem, int64, error)
}

// OrderTx is the set of writes the order core performs inside a transaction.
type OrderTx interface {
	FindMedicines(ctx context.Context, ids []string) ([]*domain.Medicine, error)
	// LockOrder re-reads the order with its items inside the transaction,
	// taking whatever lock the engine offers against concurrent writers.
	LockOrder(ctx context.Context, id string) (*domain.Order, error)
	// InsertOrder writes the header, its items and its status history.
	InsertOrder(ctx context.Context, order *domain.Order) error
	// ReplaceItems deletes the item set of an order, inserts items and
	// persists the new total.
	ReplaceItems(ctx context.Context, orderID string, items []domain.OrderItem, total decimal.Decimal, at time.Time) error
	// DecrementStock subtracts qty only while the medicine is ACTIVE with at
	// least qty units. Returns domain.ErrInsufficientStock when the guard fails.
	DecrementStock(ctx context.Context, medicineID string, qty int) error
	// IncrementStock hands qty units back to the ledger.
	IncrementStock(ctx context.Context, medicineID string, qty int, mode domain.RestockMode) error
	// MarkOutOfStock flips every listed medicine whose stock is exactly zero.
	MarkOutOfStock(ctx context.Context, medicineIDs []string) error
	// SetStatus moves the order from -> to and appends entry to the history.
	// Returns domain.ErrConcurrentUpdate when the stored status is not from.
	SetStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, entry domain.StatusHistoryEntry) error
}
