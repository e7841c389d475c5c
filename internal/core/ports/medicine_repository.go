package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/pkg/pagination"
)

// MedicineFilter carries the query parameters for the catalog listing.
type MedicineFilter struct {
	SellerID     string                // optional
	Status       domain.MedicineStatus // optional
	Manufacturer string                // optional: partial match
	Search       string                // optional: partial match on name or manufacturer
	MinPrice     *decimal.Decimal      // optional: price >= MinPrice
	MaxPrice     *decimal.Decimal      // optional: price <= MaxPrice
	Sort         pagination.Sort
	Page         pagination.Page
}

// MedicineRepository is the catalog side of the stock ledger.
type MedicineRepository interface {
	Create(ctx context.Context, m *domain.Medicine) error
	FindByID(ctx context.Context, id string) (*domain.Medicine, error)
	// Update writes the editable fields of m. The write only applies while the
	// stored stock still equals expectedStock, so a catalog edit can never
	// overwrite a concurrent reservation; otherwise domain.ErrStockChanged.
	Update(ctx context.Context, m *domain.Medicine, expectedStock int) error
	// List returns one page of medicines and the number of matching rows.
	List(ctx context.Context, filter MedicineFilter) ([]*domain.Medicine, int64, error)
}
