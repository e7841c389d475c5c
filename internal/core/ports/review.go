package ports

import (
	"context"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/pkg/pagination"
)

// ReviewFilter narrows a review listing. Empty ids mean no filter.
type ReviewFilter struct {
	MedicineID string
	CustomerID string
	Sort       pagination.Sort
	Page       pagination.Page
}

// ReviewRepository persists reviews and answers the purchase check they
// depend on.
type ReviewRepository interface {
	// Create stores a review. Returns domain.ErrDuplicateReview when the
	// customer already reviewed the medicine.
	Create(ctx context.Context, r *domain.Review) error
	FindByID(ctx context.Context, id string) (*domain.Review, error)
	// Update writes rating, comment and updated_at.
	Update(ctx context.Context, r *domain.Review) error
	Delete(ctx context.Context, id string) error
	// List returns one page of reviews plus rating stats over every match.
	List(ctx context.Context, filter ReviewFilter) ([]*domain.Review, domain.RatingStats, error)
	// HasDeliveredPurchase reports whether customerID holds an order line for
	// medicineID in an order that reached DELIVERED.
	HasDeliveredPurchase(ctx context.Context, customerID, medicineID string) (bool, error)
}

// CreateReviewInput carries a new review.
type CreateReviewInput struct {
	MedicineID string
	Rating     int
	Comment    *string
}

// UpdateReviewInput is a partial update; nil fields are left untouched.
type UpdateReviewInput struct {
	Rating  *int
	Comment *string
}

// ListReviewsInput carries the raw review listing parameters.
type ListReviewsInput struct {
	Page       int
	Limit      int
	SortBy     string
	SortOrder  string
	MedicineID string
	CustomerID string
}

// ReviewPage is one page of reviews with the stats of the whole result set.
type ReviewPage struct {
	Items  []*domain.Review
	Meta   pagination.Meta
	Rating domain.RatingStats
}

// ReviewService manages verified-purchase reviews.
type ReviewService interface {
	Create(ctx context.Context, actor domain.Identity, input CreateReviewInput) (*domain.Review, error)
	List(ctx context.Context, input ListReviewsInput) (*ReviewPage, error)
	ListMine(ctx context.Context, actor domain.Identity, input ListReviewsInput) (*ReviewPage, error)
	Update(ctx context.Context, actor domain.Identity, id string, input UpdateReviewInput) (*domain.Review, error)
	Delete(ctx context.Context, actor domain.Identity, id string) error
}
