package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/pkg/pagination"
)

// CreateMedicineInput carries a new catalog listing.
type CreateMedicineInput struct {
	Name         string
	Manufacturer string
	Price        decimal.Decimal
	Stock        int
}

// UpdateMedicineInput is a partial update; nil fields are left untouched.
type UpdateMedicineInput struct {
	Name         *string
	Manufacturer *string
	Price        *decimal.Decimal
	Stock        *int
	Status       *string
}

// ListMedicinesInput carries the raw catalog listing parameters.
type ListMedicinesInput struct {
	Page         int
	Limit        int
	SortBy       string
	SortOrder    string
	Search       string
	SellerID     string
	Status       string
	Manufacturer string
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
}

// MedicinePage is one page of the catalog.
type MedicinePage struct {
	Items []*domain.Medicine
	Meta  pagination.Meta
}

// MedicineService is the catalog surface that feeds the order core.
type MedicineService interface {
	Create(ctx context.Context, actor domain.Identity, input CreateMedicineInput) (*domain.Medicine, error)
	Get(ctx context.Context, id string) (*domain.Medicine, error)
	List(ctx context.Context, input ListMedicinesInput) (*MedicinePage, error)
	Update(ctx context.Context, actor domain.Identity, id string, input UpdateMedicineInput) (*domain.Medicine, error)
}
