package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/internal/core/ports"
	"github.com/medistore/medistore-api/pkg/pagination"
)

var medicineSortFields = []string{"createdAt", "price", "stock", "name"}

// MedicineService manages seller catalog entries. Stock written here is the
// same ledger checkout decrements.
type MedicineService struct {
	repo   ports.MedicineRepository
	logger zerolog.Logger
}

func NewMedicineService(repo ports.MedicineRepository, logger zerolog.Logger) *MedicineService {
	return &MedicineService{repo: repo, logger: logger}
}

func (s *MedicineService) Create(ctx context.Context, actor domain.Identity, in ports.CreateMedicineInput) (*domain.Medicine, error) {
	if err := requireRole(actor, "only seller can list medicines", domain.RoleSeller, domain.RoleAdmin); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if in.Price.IsNegative() {
		return nil, domain.ErrInvalidMedicinePrice
	}
	if in.Stock < 0 {
		return nil, domain.ErrInvalidMedicineStock
	}

	now := time.Now().UTC()
	m := &domain.Medicine{
		ID:           uuid.NewString(),
		SellerID:     actor.UserID,
		Name:         name,
		Manufacturer: strings.TrimSpace(in.Manufacturer),
		Price:        in.Price,
		Stock:        in.Stock,
		Status:       domain.SettleStatus(domain.MedicineActive, "", in.Stock),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		s.logger.Error().Err(err).Str("seller_id", actor.UserID).Msg("failed to create medicine")
		return nil, err
	}

	s.logger.Info().Str("medicine_id", m.ID).Str("seller_id", m.SellerID).Int("stock", m.Stock).Msg("medicine created")
	return m, nil
}

func (s *MedicineService) Get(ctx context.Context, id string) (*domain.Medicine, error) {
	return s.repo.FindByID(ctx, id)
}

// List pages through the catalog. Every status is listed unless the caller
// filters on one.
func (s *MedicineService) List(ctx context.Context, in ports.ListMedicinesInput) (*ports.MedicinePage, error) {
	filter := ports.MedicineFilter{
		SellerID:     strings.TrimSpace(in.SellerID),
		Manufacturer: strings.TrimSpace(in.Manufacturer),
		Search:       strings.TrimSpace(in.Search),
		MinPrice:     in.MinPrice,
		MaxPrice:     in.MaxPrice,
		Sort:         pagination.NewSort(in.SortBy, in.SortOrder, medicineSortFields, defaultSortField),
		Page:         pagination.NewPage(in.Page, in.Limit, pagination.DefaultMaxLimit),
	}
	if raw := strings.ToUpper(strings.TrimSpace(in.Status)); raw != "" {
		filter.Status = domain.MedicineStatus(raw)
		if !filter.Status.Valid() {
			return nil, domain.ErrInvalidMedicineStatus
		}
	}
	if in.MinPrice != nil && in.MaxPrice != nil && in.MinPrice.GreaterThan(*in.MaxPrice) {
		return nil, fmt.Errorf("%w: minPrice must not exceed maxPrice", domain.ErrValidation)
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list medicines")
		return nil, err
	}
	if items == nil {
		items = []*domain.Medicine{}
	}
	return &ports.MedicinePage{Items: items, Meta: pagination.BuildMeta(filter.Page, total)}, nil
}

// Update applies a partial change. Stock writes are compare-and-set against
// the stock that was read, so a concurrent checkout makes this fail with
// ErrStockChanged instead of silently overwriting the reservation.
func (s *MedicineService) Update(ctx context.Context, actor domain.Identity, id string, in ports.UpdateMedicineInput) (*domain.Medicine, error) {
	if err := requireRole(actor, "only seller can update medicines", domain.RoleSeller, domain.RoleAdmin); err != nil {
		return nil, err
	}

	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleSeller && m.SellerID != actor.UserID {
		return nil, fmt.Errorf("%w: medicine belongs to another seller", domain.ErrForbidden)
	}
	expected := m.Stock

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
		}
		m.Name = name
	}
	if in.Manufacturer != nil {
		m.Manufacturer = strings.TrimSpace(*in.Manufacturer)
	}
	if in.Price != nil {
		if in.Price.IsNegative() {
			return nil, domain.ErrInvalidMedicinePrice
		}
		m.Price = *in.Price
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return nil, domain.ErrInvalidMedicineStock
		}
		m.Stock = *in.Stock
	}
	var requested domain.MedicineStatus
	if in.Status != nil {
		requested = domain.MedicineStatus(strings.TrimSpace(*in.Status))
		if !requested.Valid() {
			return nil, domain.ErrInvalidMedicineStatus
		}
	}
	m.Status = domain.SettleStatus(m.Status, requested, m.Stock)
	m.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, m, expected); err != nil {
		s.logger.Warn().Err(err).Str("medicine_id", id).Msg("medicine update failed")
		return nil, err
	}

	s.logger.Info().
		Str("medicine_id", m.ID).
		Int("stock", m.Stock).
		Str("status", string(m.Status)).
		Msg("medicine updated")
	return m, nil
}
