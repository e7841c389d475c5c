package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/internal/core/ports"
)

type MedicineHandler struct {
	service ports.MedicineService
}

func NewMedicineHandler(service ports.MedicineService) *MedicineHandler {
	return &MedicineHandler{service: service}
}

type createMedicineRequest struct {
	Name         string          `json:"name"         validate:"required,notblank"`
	Manufacturer string          `json:"manufacturer"`
	Price        decimal.Decimal `json:"price"        validate:"gte=0"`
	Stock        int             `json:"stock"        validate:"gte=0"`
}

type updateMedicineRequest struct {
	Name         *string          `json:"name,omitempty"`
	Manufacturer *string          `json:"manufacturer,omitempty"`
	Price        *decimal.Decimal `json:"price,omitempty"  validate:"omitempty,gte=0"`
	Stock        *int             `json:"stock,omitempty"  validate:"omitempty,gte=0"`
	Status       *string          `json:"status,omitempty" validate:"omitempty,medicine_status"`
}

type listMedicinesQuery struct {
	Page         int    `query:"page"`
	Limit        int    `query:"limit"`
	SortBy       string `query:"sortBy"`
	SortOrder    string `query:"sortOrder"`
	Search       string `query:"search"`
	SellerID     string `query:"sellerId"`
	Status       string `query:"status"`
	Manufacturer string `query:"manufacturer"`
	MinPrice     string `query:"minPrice"`
	MaxPrice     string `query:"maxPrice"`
}

type listMedicinesResponse struct {
	Data       []medicineResponse `json:"data"`
	Pagination paginationResponse `json:"pagination"`
}

type medicineResponse struct {
	ID           string          `json:"id"`
	SellerID     string          `json:"seller_id"`
	Name         string          `json:"name"`
	Manufacturer string          `json:"manufacturer,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Stock        int             `json:"stock"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func toMedicineResponse(m *domain.Medicine) medicineResponse {
	return medicineResponse{
		ID:           m.ID,
		SellerID:     m.SellerID,
		Name:         m.Name,
		Manufacturer: m.Manufacturer,
		Price:        m.Price,
		Stock:        m.Stock,
		Status:       string(m.Status),
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

// Create handles POST /v1/medicines.
//
// @Summary      List a medicine for sale
// @Tags         medicines
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createMedicineRequest  true  "Medicine details"
// @Success      201   {object}  medicineResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /v1/medicines [post]
func (h *MedicineHandler) Create(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req createMedicineRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	m, err := h.service.Create(c.Request().Context(), actor, ports.CreateMedicineInput{
		Name:         req.Name,
		Manufacturer: req.Manufacturer,
		Price:        req.Price,
		Stock:        req.Stock,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toMedicineResponse(m))
}

// Get handles GET /v1/medicines/:id.
//
// @Summary      Get a medicine
// @Tags         medicines
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Medicine id"
// @Success      200  {object}  medicineResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/medicines/{id} [get]
func (h *MedicineHandler) Get(c echo.Context) error {
	m, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toMedicineResponse(m))
}

// List handles GET /v1/medicines.
//
// @Summary      Browse the catalog
// @Tags         medicines
// @Produce      json
// @Security     BearerAuth
// @Param        page          query     int     false  "Page number (default 1)"
// @Param        limit         query     int     false  "Page size (default 10, max 50)"
// @Param        sortBy        query     string  false  "createdAt | price | stock | name"
// @Param        sortOrder     query     string  false  "asc | desc (default desc)"
// @Param        search        query     string  false  "Name or manufacturer"
// @Param        sellerId      query     string  false  "Only this seller's listings"
// @Param        status        query     string  false  "ACTIVE | OUT_OF_STOCK | DISABLED"
// @Param        manufacturer  query     string  false  "Manufacturer contains"
// @Param        minPrice      query     number  false  "Minimum price"
// @Param        maxPrice      query     number  false  "Maximum price"
// @Success      200           {object}  listMedicinesResponse
// @Failure      400           {object}  errorResponse
// @Router       /v1/medicines [get]
func (h *MedicineHandler) List(c echo.Context) error {
	var q listMedicinesQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}
	in := ports.ListMedicinesInput{
		Page:         q.Page,
		Limit:        q.Limit,
		SortBy:       q.SortBy,
		SortOrder:    q.SortOrder,
		Search:       q.Search,
		SellerID:     q.SellerID,
		Status:       q.Status,
		Manufacturer: q.Manufacturer,
	}
	var err error
	if in.MinPrice, err = parseAmount("minPrice", q.MinPrice); err != nil {
		return err
	}
	if in.MaxPrice, err = parseAmount("maxPrice", q.MaxPrice); err != nil {
		return err
	}

	page, err := h.service.List(c.Request().Context(), in)
	if err != nil {
		return err
	}
	data := make([]medicineResponse, len(page.Items))
	for i, m := range page.Items {
		data[i] = toMedicineResponse(m)
	}
	return c.JSON(http.StatusOK, listMedicinesResponse{Data: data, Pagination: toPaginationResponse(page.Meta)})
}

// Update handles PATCH /v1/medicines/:id.
//
// @Summary      Update a medicine
// @Tags         medicines
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                 true  "Medicine id"
// @Param        body  body      updateMedicineRequest  true  "Fields to change"
// @Success      200   {object}  medicineResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /v1/medicines/{id} [patch]
func (h *MedicineHandler) Update(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req updateMedicineRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	m, err := h.service.Update(c.Request().Context(), actor, c.Param("id"), ports.UpdateMedicineInput{
		Name:         req.Name,
		Manufacturer: req.Manufacturer,
		Price:        req.Price,
		Stock:        req.Stock,
		Status:       req.Status,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toMedicineResponse(m))
}
