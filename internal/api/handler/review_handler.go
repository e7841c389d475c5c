package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/internal/core/ports"
)

type ReviewHandler struct {
	service ports.ReviewService
}

func NewReviewHandler(service ports.ReviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

type createReviewRequest struct {
	MedicineID string  `json:"medicine_id" validate:"required,notblank"`
	Rating     int     `json:"rating"      validate:"required,min=1,max=5"`
	Comment    *string `json:"comment,omitempty" validate:"omitempty,max=500"`
}

type updateReviewRequest struct {
	Rating  *int    `json:"rating,omitempty"  validate:"omitempty,min=1,max=5"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=500"`
}

type listReviewsQuery struct {
	Page       int    `query:"page"`
	Limit      int    `query:"limit"`
	SortBy     string `query:"sortBy"`
	SortOrder  string `query:"sortOrder"`
	MedicineID string `query:"medicineId"`
	CustomerID string `query:"customerId"`
}

type reviewResponse struct {
	ID         string            `json:"id"`
	MedicineID string            `json:"medicine_id"`
	Rating     int               `json:"rating"`
	Comment    string            `json:"comment,omitempty"`
	Customer   *customerResponse `json:"customer,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

type ratingResponse struct {
	TotalReviews  int64   `json:"total_reviews"`
	AverageRating float64 `json:"average_rating"`
}

type listReviewsResponse struct {
	Data       []reviewResponse   `json:"data"`
	Pagination paginationResponse `json:"pagination"`
	Rating     ratingResponse     `json:"rating"`
}

func toReviewResponse(r *domain.Review) reviewResponse {
	resp := reviewResponse{
		ID:         r.ID,
		MedicineID: r.MedicineID,
		Rating:     r.Rating,
		Comment:    r.Comment,
		Customer:   toCustomerResponse(r.Customer),
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if resp.Customer == nil {
		resp.Customer = &customerResponse{ID: r.CustomerID}
	}
	return resp
}

func toReviewListResponse(p *ports.ReviewPage) listReviewsResponse {
	data := make([]reviewResponse, len(p.Items))
	for i, r := range p.Items {
		data[i] = toReviewResponse(r)
	}
	return listReviewsResponse{
		Data:       data,
		Pagination: toPaginationResponse(p.Meta),
		Rating:     ratingResponse{TotalReviews: p.Rating.Total, AverageRating: p.Rating.Average},
	}
}

func bindReviewQuery(c echo.Context) (ports.ListReviewsInput, error) {
	var q listReviewsQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return ports.ListReviewsInput{}, echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}
	return ports.ListReviewsInput{
		Page:       q.Page,
		Limit:      q.Limit,
		SortBy:     q.SortBy,
		SortOrder:  q.SortOrder,
		MedicineID: q.MedicineID,
		CustomerID: q.CustomerID,
	}, nil
}

// Create handles POST /v1/reviews.
//
// @Summary      Review a delivered medicine
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createReviewRequest  true  "Rating and optional comment"
// @Success      201   {object}  reviewResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /v1/reviews [post]
func (h *ReviewHandler) Create(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req createReviewRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	r, err := h.service.Create(c.Request().Context(), actor, ports.CreateReviewInput{
		MedicineID: req.MedicineID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toReviewResponse(r))
}

// List handles GET /v1/reviews.
//
// @Summary      List reviews
// @Tags         reviews
// @Produce      json
// @Security     BearerAuth
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Page size (default 10, max 50)"
// @Param        sortBy      query     string  false  "createdAt | rating"
// @Param        sortOrder   query     string  false  "asc | desc (default desc)"
// @Param        medicineId  query     string  false  "Only reviews of this medicine"
// @Param        customerId  query     string  false  "Only reviews by this customer"
// @Success      200         {object}  listReviewsResponse
// @Failure      404         {object}  errorResponse
// @Router       /v1/reviews [get]
func (h *ReviewHandler) List(c echo.Context) error {
	in, err := bindReviewQuery(c)
	if err != nil {
		return err
	}
	page, err := h.service.List(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReviewListResponse(page))
}

// ListForMedicine handles GET /v1/medicines/:id/reviews.
//
// @Summary      List the reviews of one medicine
// @Tags         reviews
// @Produce      json
// @Security     BearerAuth
// @Param        id         path      string  true   "Medicine id"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Page size (default 10, max 50)"
// @Param        sortBy     query     string  false  "createdAt | rating"
// @Param        sortOrder  query     string  false  "asc | desc (default desc)"
// @Success      200        {object}  listReviewsResponse
// @Failure      404        {object}  errorResponse
// @Router       /v1/medicines/{id}/reviews [get]
func (h *ReviewHandler) ListForMedicine(c echo.Context) error {
	in, err := bindReviewQuery(c)
	if err != nil {
		return err
	}
	in.MedicineID = c.Param("id")
	in.CustomerID = ""
	page, err := h.service.List(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReviewListResponse(page))
}

// ListMine handles GET /v1/reviews/me.
//
// @Summary      List my reviews
// @Tags         reviews
// @Produce      json
// @Security     BearerAuth
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Page size (default 10, max 50)"
// @Param        sortBy      query     string  false  "createdAt | rating"
// @Param        sortOrder   query     string  false  "asc | desc (default desc)"
// @Param        medicineId  query     string  false  "Only reviews of this medicine"
// @Success      200         {object}  listReviewsResponse
// @Failure      401         {object}  errorResponse
// @Router       /v1/reviews/me [get]
func (h *ReviewHandler) ListMine(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	in, err := bindReviewQuery(c)
	if err != nil {
		return err
	}
	page, err := h.service.ListMine(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReviewListResponse(page))
}

// Update handles PATCH /v1/reviews/:id.
//
// @Summary      Edit a review
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string               true  "Review id"
// @Param        body  body      updateReviewRequest  true  "Fields to change"
// @Success      200   {object}  reviewResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /v1/reviews/{id} [patch]
func (h *ReviewHandler) Update(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req updateReviewRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	r, err := h.service.Update(c.Request().Context(), actor, c.Param("id"), ports.UpdateReviewInput{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReviewResponse(r))
}

// Delete handles DELETE /v1/reviews/:id.
//
// @Summary      Delete a review
// @Tags         reviews
// @Security     BearerAuth
// @Param        id   path  string  true  "Review id"
// @Success      204
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/reviews/{id} [delete]
func (h *ReviewHandler) Delete(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), actor, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
